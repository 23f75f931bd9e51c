package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/crypto"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/email"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/messaging/kafka"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/rbac"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	identityService "github.com/cmlabs-hris/attendance-engine/internal/service/identity"
	kioskService "github.com/cmlabs-hris/attendance-engine/internal/service/kiosk"
	payrollService "github.com/cmlabs-hris/attendance-engine/internal/service/payroll"
	reportService "github.com/cmlabs-hris/attendance-engine/internal/service/report"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	setupLogger(cfg.App.LogLevel)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolOptions{
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		LockTimeout: cfg.Database.LockTimeout,
	})
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cipher, err := crypto.NewFieldCipher(cfg.Security.FieldEncryptionKey)
	if err != nil {
		slog.Error("Failed to initialize field cipher", "error", err)
		os.Exit(1)
	}

	loc := cfg.Location()
	m := metrics.New()
	hub := sse.NewHub()
	m.TrackSubscribers(hub.TotalSubscribers)
	tx := postgresql.NewTransactor(db)

	employeeRepo := postgresql.NewEmployeeRepository(db, cipher)
	shiftRepo := postgresql.NewShiftRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	kioskRepo := postgresql.NewKioskSessionRepository(db)
	outboxRepo := postgresql.NewOutboxRepository(db)
	reportRepo := postgresql.NewReportRepository(db)

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		slog.Error("Failed to initialize JWT service", "error", err)
		os.Exit(1)
	}
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		slog.Error("Failed to initialize access policy", "error", err)
		os.Exit(1)
	}
	emailService, err := email.NewEmailService(cfg.SMTP)
	if err != nil {
		slog.Error("Failed to initialize email service", "error", err)
		os.Exit(1)
	}

	rules, err := payrollService.RulesFromConfig(cfg.Payroll, loc)
	if err != nil {
		slog.Error("Invalid payroll rules", "error", err)
		os.Exit(1)
	}
	calculator, err := payrollService.NewCalculator(rules)
	if err != nil {
		slog.Error("Invalid payroll rules", "error", err)
		os.Exit(1)
	}

	shiftSvc := shiftService.NewShiftService(tx, shiftRepo, cfg.App.DefaultShiftID, nil)
	kioskSvc := kioskService.NewKioskService(tx, kioskRepo, time.Duration(cfg.Kiosk.QRTTLSeconds)*time.Second, nil, hub, m)
	identitySvc := identityService.NewIdentityService(employeeRepo, kioskSvc, cfg.NFC.PayloadTTLDays, nil)
	maxOpenSession := time.Duration(cfg.App.MaxOpenSessionHours) * time.Hour
	attendanceSvc := attendanceService.NewAttendanceService(
		tx,
		attendanceRepo,
		employeeRepo,
		outboxRepo,
		identitySvc,
		shiftSvc,
		calculator,
		attendanceService.Options{
			Location:       loc,
			MaxOpenSession: maxOpenSession,
			EventTopic:     cfg.Kafka.Topic,
			Metrics:        m,
		},
	)
	reportSvc := reportService.NewReportService(reportRepo, employeeRepo, emailService, loc, nil)

	// Optional infrastructure stays an untyped nil when unset so consumers can test for it.
	var rdb redis.Cmdable
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		rdb = client
	} else {
		slog.Warn("Redis not configured, idempotent replay disabled")
	}

	var publisher event.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer p.Close()
		publisher = p
	}

	limiter := middleware.NewKeyedRateLimiter(rate.Limit(cfg.Kiosk.RateLimit), cfg.Kiosk.RateBurst)

	scheduler := cron.NewScheduler()
	jobs := cron.NewAttendanceJobs(attendanceSvc, kioskSvc, outboxRepo, publisher, tx, m, cron.JobsConfig{
		MaxOpenSession:     maxOpenSession,
		OutboxPollInterval: cfg.Cron.OutboxPollInterval,
		KioskRetention:     time.Duration(cfg.Kiosk.RetentionDays) * 24 * time.Hour,
	})
	jobs.RegisterJobs(scheduler)
	scheduler.AddJob("sweep_rate_limiters", 10*time.Minute, func(ctx context.Context) error {
		limiter.Sweep()
		return nil
	})
	scheduler.Start()

	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		KioskToken:     cfg.Kiosk.QRToken,
		JWTService:     JWTService,
		Enforcer:       enforcer,
		RateLimiter:    limiter,
		Redis:          rdb,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		Metrics:        m.Handler(),
	}, appHTTP.Handlers{
		Attendance: appHTTP.NewAttendanceHandler(attendanceSvc),
		Shift:      appHTTP.NewShiftHandler(shiftSvc),
		Kiosk:      appHTTP.NewKioskHandler(kioskSvc, reportSvc, JWTService, hub),
		Employee:   appHTTP.NewEmployeeHandler(identitySvc),
		Report:     appHTTP.NewReportHandler(reportSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server running", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	scheduler.Stop()
	slog.Info("Server stopped")
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
