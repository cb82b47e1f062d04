package bootstrap

import (
	"context"
	"testing"

	"github.com/ManuelReschke/MeterGate/internal/pkg/config"
	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Jobs: config.Jobs{
			BatchSize:            500,
			QuotaResetSchedule:   "0 0 * * *",
			RotationSchedule:     "0 1 * * *",
			SecuritySchedule:     "0 2 * * *",
			WeeklyReportSchedule: "0 6 * * 1",
		},
	}
}

func TestNewScheduler_RegistersEveryJob(t *testing.T) {
	cfg := testConfig()
	reg := lifecycle.NewRegistry(lifecycle.Deps{})

	m, err := NewScheduler(cfg, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, Schedules(cfg), m.Jobs())
}

func TestNewScheduler_LockWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs.LockEnabled = true

	_, err := NewScheduler(cfg, lifecycle.NewRegistry(lifecycle.Deps{}), nil)
	assert.NoError(t, err)
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs.SecuritySchedule = "every night"

	_, err := NewScheduler(cfg, lifecycle.NewRegistry(lifecycle.Deps{}), nil)
	assert.Error(t, err)
}

func TestReportSinks(t *testing.T) {
	cfg := testConfig()
	assert.Empty(t, ReportSinks(context.Background(), cfg, nil))

	cfg.Mail = config.Mail{Host: "localhost", Port: "25", To: "ops@example.com"}
	sinks := ReportSinks(context.Background(), cfg, nil)
	require.Len(t, sinks, 1)
	assert.Equal(t, "mail", sinks[0].Name())
}
