//go:build !race

package usersync

func passwordHashCost() int {
	return 12
}
