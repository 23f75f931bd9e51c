package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Kiosk    KioskConfig
	NFC      NFCConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	Security SecurityConfig
	Cron     CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// LockTimeout bounds how long a presence transaction waits on another one.
	LockTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	Timezone string
	// DefaultShiftID is used when no shift covers the check-in time. Zero disables it.
	DefaultShiftID      int64
	MaxOpenSessionHours int
	AllowedOrigins      []string
}

// PayrollConfig holds the pay rules consumed by the calculator.
type PayrollConfig struct {
	OvertimeRate            decimal.Decimal
	OvertimeDoubleRate      decimal.Decimal
	WeekendMultiplier       decimal.Decimal
	BreakTimeStart          string
	BreakTimeEnd            string
	StandardWorkHours       decimal.Decimal
	DoubleOvertimeThreshold decimal.Decimal
	HoursPrecision          int32
	SalaryPrecision         int32
}

type KioskConfig struct {
	QRTTLSeconds  int
	QRToken       string
	RateLimit     float64
	RateBurst     int
	RetentionDays int
}

type NFCConfig struct {
	PayloadTTLDays int
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type SecurityConfig struct {
	FieldEncryptionKey string
}

type CronConfig struct {
	OutboxPollInterval time.Duration
}

const (
	minQRTTLSeconds     = 10
	maxQRTTLSeconds     = 600
	defaultQRTTLSeconds = 60
)

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	lockTimeout, err := time.ParseDuration(getEnv("DB_LOCK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_LOCK_TIMEOUT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "attendance"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		MaxConns:    int32(maxConns),
		MinConns:    int32(minConns),
		LockTimeout: lockTimeout,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	defaultShiftID, err := strconv.ParseInt(getEnv("DEFAULT_SHIFT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SHIFT_ID: %w", err)
	}
	maxOpenHours, err := strconv.Atoi(getEnv("MAX_OPEN_SESSION_HOURS", "16"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_OPEN_SESSION_HOURS: %w", err)
	}

	config.App = AppConfig{
		Port:                appPort,
		Env:                 getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Timezone:            getEnv("APP_TIMEZONE", "Asia/Ho_Chi_Minh"),
		DefaultShiftID:      defaultShiftID,
		MaxOpenSessionHours: maxOpenHours,
		AllowedOrigins:      getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payroll rules
	payroll, err := loadPayroll()
	if err != nil {
		return nil, err
	}
	config.Payroll = payroll

	// Kiosk configuration
	ttl, err := strconv.Atoi(getEnv("KIOSK_QR_TTL_SECONDS", strconv.Itoa(defaultQRTTLSeconds)))
	if err != nil {
		return nil, fmt.Errorf("invalid KIOSK_QR_TTL_SECONDS: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnv("KIOSK_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid KIOSK_RATE_LIMIT: %w", err)
	}
	rateBurst, err := strconv.Atoi(getEnv("KIOSK_RATE_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid KIOSK_RATE_BURST: %w", err)
	}
	retention, err := strconv.Atoi(getEnv("KIOSK_SESSION_RETENTION_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid KIOSK_SESSION_RETENTION_DAYS: %w", err)
	}
	config.Kiosk = KioskConfig{
		QRTTLSeconds:  ClampQRTTL(ttl),
		QRToken:       getEnv("KIOSK_QR_TOKEN", ""),
		RateLimit:     rateLimit,
		RateBurst:     rateBurst,
		RetentionDays: retention,
	}

	nfcTTL, err := strconv.Atoi(getEnv("NFC_PAYLOAD_TTL_DAYS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid NFC_PAYLOAD_TTL_DAYS: %w", err)
	}
	config.NFC = NFCConfig{PayloadTTLDays: nfcTTL}

	// Redis configuration
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	idempotencyTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}
	config.Redis = RedisConfig{
		Addr:           getEnv("REDIS_ADDR", ""),
		Password:       getEnv("REDIS_PASSWORD", ""),
		DB:             redisDB,
		IdempotencyTTL: idempotencyTTL,
	}

	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS", nil),
		Topic:   getEnv("KAFKA_ATTENDANCE_TOPIC", "attendance.events.v1"),
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	config.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     smtpPort,
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "no-reply@localhost"),
		FromName: getEnv("SMTP_FROM_NAME", "Attendance"),
	}

	config.Security = SecurityConfig{
		FieldEncryptionKey: getEnv("FIELD_ENCRYPTION_KEY", ""),
	}

	pollInterval, err := time.ParseDuration(getEnv("OUTBOX_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	config.Cron = CronConfig{OutboxPollInterval: pollInterval}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadPayroll() (PayrollConfig, error) {
	var p PayrollConfig
	var err error

	decimals := []struct {
		key      string
		fallback string
		dst      *decimal.Decimal
	}{
		{"OVERTIME_RATE", "1.5", &p.OvertimeRate},
		{"OVERTIME_DOUBLE_RATE", "2.0", &p.OvertimeDoubleRate},
		{"WEEKEND_MULTIPLIER", "2.0", &p.WeekendMultiplier},
		{"STANDARD_WORK_HOURS", "8", &p.StandardWorkHours},
		{"DOUBLE_OVERTIME_THRESHOLD", "10", &p.DoubleOvertimeThreshold},
	}
	for _, d := range decimals {
		*d.dst, err = decimal.NewFromString(getEnv(d.key, d.fallback))
		if err != nil {
			return PayrollConfig{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	p.BreakTimeStart = getEnv("BREAK_TIME_START", "12:00")
	p.BreakTimeEnd = getEnv("BREAK_TIME_END", "13:00")

	hoursPrecision, err := strconv.Atoi(getEnv("HOURS_PRECISION", "2"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid HOURS_PRECISION: %w", err)
	}
	salaryPrecision, err := strconv.Atoi(getEnv("SALARY_PRECISION", "0"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid SALARY_PRECISION: %w", err)
	}
	p.HoursPrecision = int32(hoursPrecision)
	p.SalaryPrecision = int32(salaryPrecision)

	return p, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Security.FieldEncryptionKey == "" {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY is required")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	if c.App.MaxOpenSessionHours <= 0 {
		return fmt.Errorf("MAX_OPEN_SESSION_HOURS must be positive")
	}
	return c.Payroll.Validate()
}

// Validate checks that the pay rules are internally consistent.
func (p PayrollConfig) Validate() error {
	if !p.StandardWorkHours.IsPositive() {
		return fmt.Errorf("STANDARD_WORK_HOURS must be positive")
	}
	if p.DoubleOvertimeThreshold.LessThan(p.StandardWorkHours) {
		return fmt.Errorf("DOUBLE_OVERTIME_THRESHOLD must not be below STANDARD_WORK_HOURS")
	}
	for name, v := range map[string]decimal.Decimal{
		"OVERTIME_RATE":        p.OvertimeRate,
		"OVERTIME_DOUBLE_RATE": p.OvertimeDoubleRate,
		"WEEKEND_MULTIPLIER":   p.WeekendMultiplier,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if p.HoursPrecision < 0 || p.SalaryPrecision < 0 {
		return fmt.Errorf("HOURS_PRECISION and SALARY_PRECISION must not be negative")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Location returns the engine timezone. Validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClampQRTTL keeps the kiosk QR lifetime within [10s, 600s].
func ClampQRTTL(seconds int) int {
	if seconds < minQRTTLSeconds {
		return minQRTTLSeconds
	}
	if seconds > maxQRTTLSeconds {
		return maxQRTTLSeconds
	}
	return seconds
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback []string) []string {
	value := getEnv(env, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
