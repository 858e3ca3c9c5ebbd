package config

// This file defines a Redis client constructor for the application.
// Redis backs the shared rate-limit counter store in multi-instance
// deployments. The client parameters are loaded from environment
// variables. If connection fails during startup, the function returns
// nil and callers should degrade gracefully by falling back to the
// in-process counter store.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand (takes precedence if both host/port and addr are set)
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS with certificate verification when "true" or "1"
//	REDIS_TLS_SKIP_VERIFY – skip certificate verification, for self-signed
//	certs in dev setups only
//
// The returned client may be nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	pwd := os.Getenv("REDIS_PASSWORD")
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  pwd,
		DB:        dbNum,
		TLSConfig: redisTLSConfig(os.Getenv("REDIS_TLS"), os.Getenv("REDIS_TLS_SKIP_VERIFY")),
	})
	// Ping the server with a short timeout. Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}

// redisTLSConfig maps the TLS env vars to a client config. TLS off by
// default, verified certificates when enabled, and skipping
// verification takes its own explicit opt-in.
func redisTLSConfig(enabled, skipVerify string) *tls.Config {
	if !boolValue(enabled) {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: boolValue(skipVerify)}
}

func boolValue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
