package controllers

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/internal/pkg/cache"
	"github.com/ManuelReschke/MeterGate/internal/pkg/database"
	"github.com/gofiber/fiber/v2"
)

// cacheStatus reports the cache state. The cache is optional, so a down cache
// never fails the health check.
func cacheStatus(ctx context.Context) string {
	rdb := cache.GetClient()
	if rdb == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "ok"
}

// HandleHealth pings the database and the cache.
func HandleHealth(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "database": "not_configured"})
	}
	sqlDB, err := db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "database": "down"})
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"database": "ok",
		"cache":    cacheStatus(c.UserContext()),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
