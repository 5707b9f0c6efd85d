package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr                 string
	Environment          string
	LogLevel             string
	DatabaseURL          string
	RunMigrations        bool
	RunSeed              bool
	MigrationsDir        string
	MaxBodyBytes         int64
	MetricsEnabled       bool
	PayslipDir           string
	PayslipEncryptionKey string
	PayrollWorkers       int
	RunRateLimit         int
	EmailEnabled         bool
	EmailFrom            string
	SMTPHost             string
	SMTPPort             int
	SMTPUser             string
	SMTPPassword         string
	SMTPUseTLS           bool
	PaymentDateMaxAge    time.Duration
	AttendanceCheckIn    string
	AttendanceCheckOut   string
	ShutdownTimeout      time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	return Config{
		Addr:                 getEnv(v, "APP_ADDR", ":8080"),
		Environment:          getEnv(v, "APP_ENV", "development"),
		LogLevel:             getEnv(v, "LOG_LEVEL", "info"),
		DatabaseURL:          getEnv(v, "DATABASE_URL", ""),
		RunMigrations:        getEnvBool(v, "RUN_MIGRATIONS", true),
		RunSeed:              getEnvBool(v, "RUN_SEED", true),
		MigrationsDir:        getEnv(v, "MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:         int64(getEnvInt(v, "MAX_BODY_BYTES", 1048576)),
		MetricsEnabled:       getEnvBool(v, "METRICS_ENABLED", true),
		PayslipDir:           getEnv(v, "PAYSLIP_DIR", "storage/payslips"),
		PayslipEncryptionKey: getEnv(v, "PAYSLIP_ENCRYPTION_KEY", ""),
		PayrollWorkers:       getEnvInt(v, "PAYROLL_WORKERS", 4),
		RunRateLimit:         getEnvInt(v, "RUN_RATE_LIMIT", 10),
		EmailEnabled:         getEnvBool(v, "EMAIL_ENABLED", false),
		EmailFrom:            getEnv(v, "EMAIL_FROM", "no-reply@example.com"),
		SMTPHost:             getEnv(v, "SMTP_HOST", ""),
		SMTPPort:             getEnvInt(v, "SMTP_PORT", 587),
		SMTPUser:             getEnv(v, "SMTP_USER", ""),
		SMTPPassword:         getEnv(v, "SMTP_PASSWORD", ""),
		SMTPUseTLS:           getEnvBool(v, "SMTP_USE_TLS", true),
		PaymentDateMaxAge:    getEnvDuration(v, "PAYMENT_DATE_MAX_AGE", 365*24*time.Hour),
		AttendanceCheckIn:    getEnv(v, "ATTENDANCE_CHECK_IN", "08:30:00"),
		AttendanceCheckOut:   getEnv(v, "ATTENDANCE_CHECK_OUT", "16:30:00"),
		ShutdownTimeout:      getEnvDuration(v, "SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(v *viper.Viper, key, fallback string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(v *viper.Viper, key string, fallback bool) bool {
	if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
		return fallback
	}
	parsed, err := parseBool(v.GetString(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(strings.TrimSpace(v.GetString(key)), "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("72h") and bare day counts ("365").
func getEnvDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	var days int
	if _, err := fmt.Sscanf(raw, "%d", &days); err == nil && fmt.Sprint(days) == raw {
		return time.Duration(days) * 24 * time.Hour
	}
	return fallback
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.RunRateLimit < 0 {
		return fmt.Errorf("RUN_RATE_LIMIT must not be negative")
	}
	if c.PaymentDateMaxAge <= 0 {
		return fmt.Errorf("PAYMENT_DATE_MAX_AGE must be positive")
	}
	if strings.TrimSpace(c.PayslipDir) == "" {
		return fmt.Errorf("PAYSLIP_DIR is required")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.Environment == "production" && strings.TrimSpace(c.PayslipEncryptionKey) == "" {
		return fmt.Errorf("PAYSLIP_ENCRYPTION_KEY must be set in production for encryption at rest")
	}
	return nil
}
