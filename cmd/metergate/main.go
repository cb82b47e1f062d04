package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/MeterGate/app/controllers"
	"github.com/ManuelReschke/MeterGate/internal/pkg/bootstrap"
	"github.com/ManuelReschke/MeterGate/internal/pkg/cache"
	"github.com/ManuelReschke/MeterGate/internal/pkg/env"
	"github.com/ManuelReschke/MeterGate/internal/pkg/router"
)

func main() {
	c, err := bootstrap.New(context.Background())
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	app := NewApplication(c)

	if c.Config.Jobs.Enabled {
		c.Scheduler.Start()
	} else {
		log.Info("[Scheduler] JOBS_ENABLED=false, lifecycle jobs run only on demand")
	}

	go func() {
		if err := app.Listen(c.Config.ListenAddr()); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	c.Scheduler.Stop()
}

func NewApplication(c *bootstrap.Components) *fiber.App {
	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "MeterGate",
		BodyLimit: 1 << 20, // Stripe events are far below 1 MiB
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./docs/openapi.yml"),
		Path:     "api",
	}
	if _, err := os.Stat(openAPICfg.FilePath); err == nil {
		app.Use(swagger.New(openAPICfg))
	} else {
		log.Warnf("OpenAPI spec not found at %s, /docs/api disabled", openAPICfg.FilePath)
	}

	controllers.Initialize(
		controllers.NewBillingController(c.Billing),
		controllers.NewAdminController(c.Repos, c.Scheduler, c.Reports, c.Outcomes),
	)

	opts := router.Options{
		AdminUser:     c.Config.AdminUser,
		AdminPassword: c.Config.AdminPassword,
	}
	if c.Config.CacheEnabled() {
		opts.LimiterStorage = cache.NewFiberStorage(c.Config.CacheHost, c.Config.CachePortInt(), env.GetEnv("CACHE_PASSWORD", ""))
	}

	// ROUTER
	router.InstallRouter(app, opts)

	return app
}
