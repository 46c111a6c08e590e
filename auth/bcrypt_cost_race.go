//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds are slow enough already, keep hashing at the library default
	return bcrypt.DefaultCost
}
