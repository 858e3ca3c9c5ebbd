package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mariocelzo/biblioflow/internal/automation"
	"github.com/mariocelzo/biblioflow/internal/availability"
	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/database"
	"github.com/mariocelzo/biblioflow/internal/handler"
	"github.com/mariocelzo/biblioflow/internal/loans"
	"github.com/mariocelzo/biblioflow/internal/middleware"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/queue"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Rate-limit counters live in Redis when one is configured so all
	// replicas share a window; otherwise each process counts alone.
	var counters middleware.CounterStore
	if rdb := config.NewRedisClient(); rdb != nil {
		counters = middleware.NewRedisCounterStore(rdb)
	} else {
		counters = middleware.NewMemoryCounterStore()
	}

	uow := repository.NewUnitOfWork(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rooms := repository.NewRoomRepo(db)
	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)
	books := repository.NewBookRepo(db)
	loanRepo := repository.NewLoanRepo(db)
	events := repository.NewEventLogRepo(db)
	notifications := repository.NewNotificationRepo(db)

	notifier := notify.New(notifications)
	bookingSvc := booking.NewService(uow, seats, reservations, events, notifier, time.UTC)
	loanSvc := loans.NewService(uow, loanRepo, books, events, notifier, cfg.LoanDays)
	resolver := availability.NewResolver(seats, reservations)
	sweeper := automation.NewSweeper(uow, reservations, loanRepo, events, bookingSvc, notifier, cfg.LoanReminderDays)

	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		Availability:  handler.NewAvailabilityHandler(resolver),
		Rooms:         handler.NewRoomHandler(rooms, seats),
		Seats:         handler.NewSeatHandler(bookingSvc, seats),
		Reservations:  handler.NewReservationHandler(&cfg, bookingSvc, reservations),
		Scanner:       handler.NewScannerHandler(&cfg, bookingSvc),
		Books:         handler.NewBookHandler(books),
		Loans:         handler.NewLoanHandler(loanSvc, loanRepo),
		Notifications: handler.NewNotificationHandler(notifications),
		Events:        handler.NewEventHandler(events),
		Cron:          handler.NewCronHandler(&cfg, sweeper),
	}

	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	if cfg.AutomationInterval > 0 {
		stop, err := automation.StartRunner(sweeper, cfg.AutomationInterval)
		if err != nil {
			log.Fatalf("automation: %v", err)
		}
		defer stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, handlers, &cfg, rlCfg, counters)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
