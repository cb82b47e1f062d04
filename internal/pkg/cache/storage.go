package cache

import (
	redisstorage "github.com/gofiber/storage/redis"
)

// NewFiberStorage returns a fiber.Storage on the same Redis server, using
// database 1 so middleware state stays apart from the cache keys.
func NewFiberStorage(host string, port int, password string) *redisstorage.Storage {
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
