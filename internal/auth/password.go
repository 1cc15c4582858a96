package auth

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8

	// DelegationPasswordCost is higher than the primary cost; delegation
	// logins are rare and the secret is shared with other people.
	DelegationPasswordCost = 12
)

func HashPassword(password string) (string, error) {
	return hashPasswordCost(password, bcrypt.DefaultCost)
}

func hashPasswordCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
