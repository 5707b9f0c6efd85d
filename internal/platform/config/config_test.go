package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/payroll")
	t.Setenv("PAYROLL_WORKERS", "")
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 4, cfg.PayrollWorkers)
	assert.Equal(t, 365*24*time.Hour, cfg.PaymentDateMaxAge)
	assert.Equal(t, "08:30:00", cfg.AttendanceCheckIn)
	assert.Equal(t, "16:30:00", cfg.AttendanceCheckOut)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/payroll")
	t.Setenv("PAYROLL_WORKERS", "16")
	t.Setenv("RUN_SEED", "false")
	t.Setenv("PAYMENT_DATE_MAX_AGE", "30")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("ATTENDANCE_CHECK_IN", "09:00")
	cfg := Load()

	assert.Equal(t, 16, cfg.PayrollWorkers)
	assert.False(t, cfg.RunSeed)
	assert.Equal(t, 30*24*time.Hour, cfg.PaymentDateMaxAge)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "09:00", cfg.AttendanceCheckIn)
}

func TestValidate(t *testing.T) {
	base := Config{DatabaseURL: "postgres://x", MaxBodyBytes: 4096, PayrollWorkers: 1, PaymentDateMaxAge: time.Hour, PayslipDir: "slips"}
	require.NoError(t, base.Validate())

	missing := base
	missing.DatabaseURL = ""
	assert.Error(t, missing.Validate())

	workers := base
	workers.PayrollWorkers = 0
	assert.Error(t, workers.Validate())

	mail := base
	mail.EmailEnabled = true
	assert.Error(t, mail.Validate())

	prod := base
	prod.Environment = "production"
	assert.Error(t, prod.Validate())
	prod.PayslipEncryptionKey = "key"
	assert.NoError(t, prod.Validate())
}
