//go:build race

package usersync

import "golang.org/x/crypto/bcrypt"

// race builds run bcrypt several times slower, use the library default
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
