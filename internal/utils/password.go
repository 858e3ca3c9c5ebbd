package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash for a member's password. A zero
// or out-of-range cost falls back to the library default so a missing
// BCRYPT_COST never produces trivially crackable hashes.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether the supplied password matches the
// stored hash. Comparison time does not depend on where they differ.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
