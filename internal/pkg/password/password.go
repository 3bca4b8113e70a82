// Package password hashes seeded account credentials. Login itself belongs to
// the identity collaborator.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor for stored credentials.
const DefaultCost = 12

// Hash hashes password using bcrypt at DefaultCost.
func Hash(password string) (string, error) {
	return HashWithCost(password, DefaultCost)
}

// HashWithCost is Hash with an explicit work factor.
func HashWithCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// Verify compares password with hash
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
