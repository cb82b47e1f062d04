package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MeterGate/internal/pkg/bootstrap"
	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	name := os.Args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	res, err := c.Scheduler.RunNow(ctx, name)
	if err != nil {
		log.Errorf("Job %s failed: %v", name, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	if res.Failed > 0 {
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/jobs/main.go <job>")
	fmt.Println("Jobs: " + strings.Join([]string{
		lifecycle.JobQuotaReset,
		lifecycle.JobRotation,
		lifecycle.JobSecurity,
		lifecycle.JobWeeklyReport,
	}, ", "))
}
