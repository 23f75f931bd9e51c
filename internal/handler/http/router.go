package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/rbac"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

// RouterOptions carries the cross-cutting pieces the routes are built with.
type RouterOptions struct {
	Env            string
	AllowedOrigins []string
	KioskToken     string

	JWTService  jwt.Service
	Enforcer    *rbac.Enforcer
	RateLimiter *middleware.KeyedRateLimiter

	// Redis is nil when idempotent replay is disabled.
	Redis          redis.Cmdable
	IdempotencyTTL time.Duration

	Metrics http.Handler
}

type Handlers struct {
	Attendance AttendanceHandler
	Shift      ShiftHandler
	Kiosk      KioskHandler
	Employee   EmployeeHandler
	Report     ReportHandler
}

func NewRouter(opts RouterOptions, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-engine"),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.HeaderIdempotencyKey, middleware.HeaderKioskToken, middleware.HeaderKioskID,
		},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After", "Idempotent-Replayed"},
		MaxAge:         300,
	}))

	r.Use(chiMiddleware.RealIP)

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	ja := opts.JWTService.JWTAuth()
	can := func(obj rbac.Object, act rbac.Action) func(http.Handler) http.Handler {
		return middleware.RequirePermission(opts.Enforcer, obj, act)
	}

	r.Route("/api/v1", func(r chi.Router) {

		// Authenticated by the short-lived token in the query
		r.Get("/kiosk/{kioskID}/events", h.Kiosk.Stream)

		// Kiosk devices or signed-in employees
		r.Group(func(r chi.Router) {
			r.Use(middleware.KioskOrAuth(ja, opts.KioskToken))
			r.Use(middleware.RateLimitByPrincipal(opts.RateLimiter))

			r.With(
				can(rbac.ObjectAttendance, rbac.ActionSubmit),
				middleware.Idempotency(opts.Redis, opts.IdempotencyTTL),
			).Post("/attendance/presence", h.Attendance.Presence)

			r.With(can(rbac.ObjectKiosk, rbac.ActionSession)).Post("/kiosk/qr-sessions", h.Kiosk.CreateSession)
			r.With(can(rbac.ObjectKiosk, rbac.ActionSession)).Post("/kiosk/{kioskID}/events/token", h.Kiosk.StreamToken)
			r.With(can(rbac.ObjectKiosk, rbac.ActionRead)).Get("/kiosk/status", h.Kiosk.Status)
			r.With(can(rbac.ObjectShift, rbac.ActionRead)).Get("/shifts/detect", h.Shift.Detect)
		})

		// Employees only
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRequired(ja))
			r.Use(middleware.RateLimitByPrincipal(opts.RateLimiter))

			r.Group(func(r chi.Router) {
				r.Use(can(rbac.ObjectAttendance, rbac.ActionSubmit))
				r.Post("/attendance/check-out", h.Attendance.CheckOut)
				r.Get("/kiosk/qr-sessions/{code}", h.Kiosk.GetSession)
			})
			r.Group(func(r chi.Router) {
				r.Use(can(rbac.ObjectAttendance, rbac.ActionReadOwn))
				r.Get("/attendance/today", h.Attendance.Today)
				r.Get("/attendance", h.Attendance.List)
				r.Get("/attendance/{id}", h.Attendance.Get)
			})
			r.With(can(rbac.ObjectAttendance, rbac.ActionManual)).Post("/attendance/manual", h.Attendance.ManualEntry)

			r.Route("/shifts", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(can(rbac.ObjectShift, rbac.ActionRead))
					r.Get("/", h.Shift.List)
					r.Get("/{id}", h.Shift.Get)
				})
				r.Group(func(r chi.Router) {
					r.Use(can(rbac.ObjectShift, rbac.ActionWrite))
					r.Post("/", h.Shift.Create)
					r.Put("/{id}", h.Shift.Update)
					r.Delete("/{id}", h.Shift.Delete)
				})
			})

			r.Route("/employees/{id}", func(r chi.Router) {
				r.Use(can(rbac.ObjectEmployee, rbac.ActionManage))
				r.Post("/nfc-payload", h.Employee.IssueNFCPayload)
				r.Put("/biometric", h.Employee.RegisterBiometric)
				r.Put("/nfc", h.Employee.RegisterNFCUID)
			})

			r.Route("/reports", func(r chi.Router) {
				r.With(can(rbac.ObjectReport, rbac.ActionReadOwn)).Get("/attendance", h.Report.Attendance)
				r.Group(func(r chi.Router) {
					r.Use(can(rbac.ObjectReport, rbac.ActionRead))
					r.Get("/payroll", h.Report.Payroll)
					r.Get("/statistics", h.Report.Statistics)
					r.Get("/today", h.Report.Today)
				})
				r.Group(func(r chi.Router) {
					r.Use(can(rbac.ObjectReport, rbac.ActionExport))
					r.Get("/payroll/export", h.Report.ExportPayroll)
					r.Post("/payroll/email", h.Report.EmailPayroll)
				})
			})
		})
	})
	return r
}
