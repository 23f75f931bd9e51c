package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/shopspring/decimal"
)

const staleBatchSize = 200

type Options struct {
	Location       *time.Location
	MaxOpenSession time.Duration
	EventTopic     string
	Now            func() time.Time
	Metrics        *metrics.Metrics
}

type attendanceServiceImpl struct {
	tx              database.Transactor
	attendanceRepo  attendance.AttendanceRepository
	employeeRepo    employee.EmployeeRepository
	outboxRepo      event.OutboxRepository
	identityService identity.IdentityService
	shiftService    shift.ShiftService
	calculator      payroll.Calculator

	loc            *time.Location
	maxOpenSession time.Duration
	topic          string
	now            func() time.Time
	metrics        *metrics.Metrics
}

// SubmitPresence implements attendance.AttendanceService.
func (s *attendanceServiceImpl) SubmitPresence(ctx context.Context, req attendance.SubmitPresenceRequest) (attendance.PresenceResult, error) {
	started := time.Now()
	result, err := s.submitPresence(ctx, req)
	if err != nil {
		s.metrics.ObserveRejection(rejectionCode(err), started)
		return attendance.PresenceResult{}, err
	}
	s.metrics.ObservePresence(result.Type, started)
	return result, nil
}

func (s *attendanceServiceImpl) submitPresence(ctx context.Context, req attendance.SubmitPresenceRequest) (attendance.PresenceResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.PresenceResult{}, err
	}

	emp, err := s.identityService.Resolve(ctx, req.Credential)
	if err != nil {
		return attendance.PresenceResult{}, err
	}

	var result attendance.PresenceResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.attendanceRepo.LockEmployee(ctx, emp.ID); err != nil {
			return fmt.Errorf("failed to lock employee %d: %w", emp.ID, err)
		}

		// Sampled under the lock so a waiter never closes a session before it opened.
		ts := req.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		ts = ts.In(s.loc)

		open, err := s.findOpen(ctx, emp.ID, ts)
		if err != nil {
			return err
		}

		if open == nil {
			result, err = s.checkIn(ctx, emp, ts, req)
		} else {
			result, err = s.checkOut(ctx, emp, *open, ts, event.TypeCheckedOut)
		}
		return err
	})
	if err != nil {
		return attendance.PresenceResult{}, err
	}

	slog.Info("presence recorded", "type", result.Type, "employee_id", emp.ID, "attendance_id", result.AttendanceID, "credential", req.Credential.Type)
	return result, nil
}

// findOpen returns the attendance a presence at ts would close, or nil. It
// must run inside the employee lock.
func (s *attendanceServiceImpl) findOpen(ctx context.Context, employeeID int64, ts time.Time) (*attendance.Attendance, error) {
	dayStart := startOfDay(ts)

	latest, err := s.attendanceRepo.LatestSince(ctx, employeeID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's attendance: %w", err)
	}
	if latest != nil {
		if latest.IsOpen() {
			return latest, nil
		}
		return nil, nil
	}

	// An overnight shift opened yesterday is still today's session.
	prev, err := s.attendanceRepo.LatestOpenBetween(ctx, employeeID, ts.Add(-s.maxOpenSession), dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous open attendance: %w", err)
	}
	if prev == nil {
		return nil, nil
	}

	sh, err := s.shiftService.Get(ctx, prev.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load shift %d: %w", prev.ShiftID, err)
	}
	if !sh.IsOvernight() {
		return nil, nil
	}
	return prev, nil
}

func (s *attendanceServiceImpl) checkIn(ctx context.Context, emp employee.Employee, ts time.Time, req attendance.SubmitPresenceRequest) (attendance.PresenceResult, error) {
	sh, err := s.shiftService.DetectByTime(ctx, shift.TimeOfDayOf(ts))
	if err != nil {
		return attendance.PresenceResult{}, err
	}

	if err := checkGeofence(sh, req.Latitude, req.Longitude); err != nil {
		return attendance.PresenceResult{}, err
	}

	device := req.DeviceInfo
	if device == "" {
		device = defaultDevice(req.Credential.Type)
	}

	created, err := s.attendanceRepo.Create(ctx, attendance.Attendance{
		EmployeeID:  emp.ID,
		ShiftID:     sh.ID,
		CheckInTime: ts,
		Timezone:    s.loc.String(),
		DeviceInfo:  &device,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return attendance.PresenceResult{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	if err := s.emit(ctx, event.TypeCheckedIn, created, emp); err != nil {
		return attendance.PresenceResult{}, err
	}

	return attendance.PresenceResult{
		Type:         attendance.PresenceCheckIn,
		AttendanceID: created.ID,
		EmployeeID:   emp.ID,
		EmployeeName: emp.DisplayName(),
		CheckInTime:  created.CheckInTime.In(s.loc),
		ShiftName:    sh.Name,
	}, nil
}

func (s *attendanceServiceImpl) checkOut(ctx context.Context, emp employee.Employee, open attendance.Attendance, ts time.Time, eventType string) (attendance.PresenceResult, error) {
	breakdown, checkOut, err := s.compute(open.CheckInTime, ts, emp.HourlyRate)
	if err != nil {
		return attendance.PresenceResult{}, err
	}

	open.Close(checkOut, breakdown)
	closed, err := s.attendanceRepo.Close(ctx, open)
	if err != nil {
		return attendance.PresenceResult{}, fmt.Errorf("failed to close attendance %d: %w", open.ID, err)
	}

	if err := s.emit(ctx, eventType, closed, emp); err != nil {
		return attendance.PresenceResult{}, err
	}

	return presenceFromClosed(closed, emp, s.loc), nil
}

// compute runs the calculator. A check-out at or before check-in yields a
// zero-length session; that needs a client supplied timestamp or a clock step.
func (s *attendanceServiceImpl) compute(checkIn, checkOut time.Time, rate decimal.Decimal) (payroll.Breakdown, time.Time, error) {
	if !checkOut.After(checkIn) {
		return payroll.Breakdown{
			WorkHours:           decimal.Zero,
			RegularHours:        decimal.Zero,
			OvertimeHours:       decimal.Zero,
			OvertimeDoubleHours: decimal.Zero,
			BreakHours:          decimal.Zero,
			Multiplier:          decimal.NewFromInt(1),
			EarnedSalary:        decimal.Zero,
		}, checkIn, nil
	}

	b, err := s.calculator.Compute(checkIn, checkOut, rate)
	if err != nil {
		return payroll.Breakdown{}, time.Time{}, fmt.Errorf("failed to compute pay: %w", err)
	}
	return b, checkOut, nil
}

// ManualEntry implements attendance.AttendanceService.
func (s *attendanceServiceImpl) ManualEntry(ctx context.Context, req attendance.ManualEntryRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(s.loc); err != nil {
		return attendance.AttendanceResponse{}, err
	}
	checkIn, checkOut := req.Times()

	emp, err := s.employeeRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	var sh shift.Shift
	if req.ShiftID != nil {
		sh, err = s.shiftService.Get(ctx, *req.ShiftID)
	} else {
		sh, err = s.shiftService.DetectByTime(ctx, shift.TimeOfDayOf(checkIn))
	}
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	actorName := req.ActorName
	if actorName == "" {
		if actor, err := s.employeeRepo.GetByID(ctx, req.ActorID); err == nil {
			actorName = actor.DisplayName()
		}
	}
	device := fmt.Sprintf("Manual Entry by Admin: %s (%d)", actorName, req.ActorID)
	record := attendance.Attendance{
		EmployeeID:  emp.ID,
		ShiftID:     sh.ID,
		CheckInTime: checkIn,
		Timezone:    s.loc.String(),
		DeviceInfo:  &device,
	}
	if checkOut != nil {
		b, err := s.calculator.Compute(checkIn, *checkOut, emp.HourlyRate)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("failed to compute pay: %w", err)
		}
		record.Close(*checkOut, b)
	}

	var created attendance.Attendance
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.attendanceRepo.LockEmployee(ctx, emp.ID); err != nil {
			return fmt.Errorf("failed to lock employee %d: %w", emp.ID, err)
		}

		if record.IsOpen() {
			open, err := s.findOpen(ctx, emp.ID, checkIn)
			if err != nil {
				return err
			}
			if open != nil {
				return attendance.ErrOpenAttendanceExists
			}
		}

		var err error
		created, err = s.attendanceRepo.Create(ctx, record)
		if err != nil {
			return fmt.Errorf("failed to create attendance: %w", err)
		}
		return s.emit(ctx, event.TypeManual, created, emp)
	})
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	slog.Info("manual attendance recorded", "attendance_id", created.ID, "employee_id", emp.ID, "actor_id", req.ActorID)

	name, shiftName := emp.DisplayName(), sh.Name
	created.EmployeeName, created.ShiftName = &name, &shiftName
	return attendance.NewAttendanceResponse(created, s.loc), nil
}

// SelfCheckOut implements attendance.AttendanceService.
func (s *attendanceServiceImpl) SelfCheckOut(ctx context.Context, employeeID int64) (attendance.PresenceResult, error) {
	emp, err := s.identityService.Resolve(ctx, identity.Credential{Type: identity.CredentialSession, UserID: employeeID})
	if err != nil {
		return attendance.PresenceResult{}, err
	}
	ts := s.now().In(s.loc)

	var result attendance.PresenceResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.attendanceRepo.LockEmployee(ctx, emp.ID); err != nil {
			return fmt.Errorf("failed to lock employee %d: %w", emp.ID, err)
		}

		open, err := s.findOpen(ctx, emp.ID, ts)
		if err != nil {
			return err
		}
		if open == nil {
			return attendance.ErrNoOpenAttendance
		}

		result, err = s.checkOut(ctx, emp, *open, ts, event.TypeCheckedOut)
		return err
	})
	if err != nil {
		return attendance.PresenceResult{}, err
	}
	return result, nil
}

// Get implements attendance.AttendanceService.
func (s *attendanceServiceImpl) Get(ctx context.Context, id int64) (attendance.AttendanceResponse, error) {
	a, err := s.attendanceRepo.GetByID(ctx, id)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	return attendance.NewAttendanceResponse(a, s.loc), nil
}

// List implements attendance.AttendanceService.
func (s *attendanceServiceImpl) List(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(s.loc); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	rows, total, err := s.attendanceRepo.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendances: %w", err)
	}

	resp := attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
		Attendances: make([]attendance.AttendanceResponse, 0, len(rows)),
	}
	for _, a := range rows {
		resp.Attendances = append(resp.Attendances, attendance.NewAttendanceResponse(a, s.loc))
	}
	return resp, nil
}

// Today implements attendance.AttendanceService.
func (s *attendanceServiceImpl) Today(ctx context.Context, employeeID int64) ([]attendance.AttendanceResponse, error) {
	from := startOfDay(s.now().In(s.loc))
	to := from.AddDate(0, 0, 1)

	rows, _, err := s.attendanceRepo.List(ctx, attendance.AttendanceFilter{
		EmployeeID: &employeeID,
		From:       &from,
		To:         &to,
		Page:       1,
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list today's attendances: %w", err)
	}

	out := make([]attendance.AttendanceResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, attendance.NewAttendanceResponse(a, s.loc))
	}
	return out, nil
}

// AutoCloseStale implements attendance.AttendanceService.
func (s *attendanceServiceImpl) AutoCloseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	stale, err := s.attendanceRepo.ListStaleOpen(ctx, now.Add(-olderThan), staleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale attendances: %w", err)
	}

	standard := hoursToDuration(s.calculator.Rules().StandardWorkHours)
	closed := 0
	for _, a := range stale {
		emp, err := s.employeeRepo.GetByID(ctx, a.EmployeeID)
		if err != nil {
			slog.Warn("auto-close skipped attendance", "attendance_id", a.ID, "error", err)
			continue
		}

		checkOut := a.CheckInTime.Add(standard)
		if checkOut.After(now) {
			checkOut = now
		}

		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.attendanceRepo.LockEmployee(ctx, a.EmployeeID); err != nil {
				return err
			}
			_, err := s.checkOut(ctx, emp, a, checkOut, event.TypeAutoClosed)
			return err
		})
		if err != nil {
			if !errors.Is(err, attendance.ErrNoOpenAttendance) {
				slog.Warn("auto-close failed", "attendance_id", a.ID, "error", err)
			}
			continue
		}
		closed++
	}

	s.metrics.AutoClosed(closed)
	return closed, nil
}

type presenceEvent struct {
	AttendanceID int64            `json:"attendance_id"`
	EmployeeID   int64            `json:"employee_id"`
	EmployeeName string           `json:"employee_name"`
	ShiftID      int64            `json:"shift_id"`
	CheckInTime  time.Time        `json:"check_in_time"`
	CheckOutTime *time.Time       `json:"check_out_time,omitempty"`
	WorkHours    *decimal.Decimal `json:"work_hours,omitempty"`
	EarnedSalary *decimal.Decimal `json:"earned_salary,omitempty"`
	DeviceInfo   *string          `json:"device_info,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// emit writes the outbox row in the caller's transaction.
func (s *attendanceServiceImpl) emit(ctx context.Context, eventType string, a attendance.Attendance, emp employee.Employee) error {
	e, err := event.NewOutboxEvent(s.topic, event.AggregateAttendance, strconv.FormatInt(a.ID, 10), eventType, presenceEvent{
		AttendanceID: a.ID,
		EmployeeID:   a.EmployeeID,
		EmployeeName: emp.DisplayName(),
		ShiftID:      a.ShiftID,
		CheckInTime:  a.CheckInTime,
		CheckOutTime: a.CheckOutTime,
		WorkHours:    a.WorkHours,
		EarnedSalary: a.EarnedSalary,
		DeviceInfo:   a.DeviceInfo,
		OccurredAt:   s.now(),
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Create(ctx, e); err != nil {
		return fmt.Errorf("failed to write outbox event: %w", err)
	}
	return nil
}

func checkGeofence(sh shift.Shift, lat, lon *float64) error {
	if !sh.HasGeofence() {
		return nil
	}
	if lat == nil || lon == nil {
		return attendance.ErrGPSRequired
	}

	distance := utils.CalculateHaversineDistance(*lat, *lon, *sh.Latitude, *sh.Longitude)
	if distance > float64(sh.Radius) {
		return &attendance.GeofenceError{
			Distance:    math.Round(distance),
			MaxDistance: float64(sh.Radius),
		}
	}
	return nil
}

func presenceFromClosed(a attendance.Attendance, emp employee.Employee, loc *time.Location) attendance.PresenceResult {
	out := a.CheckOutTime.In(loc)
	result := attendance.PresenceResult{
		Type:                attendance.PresenceCheckOut,
		AttendanceID:        a.ID,
		EmployeeID:          emp.ID,
		EmployeeName:        emp.DisplayName(),
		CheckInTime:         a.CheckInTime.In(loc),
		CheckOutTime:        &out,
		WorkHours:           a.WorkHours,
		RegularHours:        a.RegularHours,
		OvertimeHours:       a.OvertimeHours,
		OvertimeDoubleHours: a.OvertimeDoubleHours,
		BreakHours:          a.BreakHours,
		EarnedSalary:        a.EarnedSalary,
	}
	if a.ShiftName != nil {
		result.ShiftName = *a.ShiftName
	}
	return result
}

func defaultDevice(t identity.CredentialType) string {
	switch t {
	case identity.CredentialNFC:
		return "Kiosk NFC Terminal"
	case identity.CredentialBiometric:
		return "Kiosk Biometric Terminal"
	case identity.CredentialQR:
		return "Mobile QR Scan"
	default:
		return "Mobile App"
	}
}

// rejectionCode labels a failed submission for metrics.
func rejectionCode(err error) string {
	var geo *attendance.GeofenceError
	switch {
	case errors.Is(err, identity.ErrIdentityNotFound):
		return "IDENTITY_NOT_FOUND"
	case errors.Is(err, identity.ErrAccountLocked):
		return "ACCOUNT_LOCKED"
	case errors.Is(err, attendance.ErrGPSRequired):
		return "GPS_REQUIRED"
	case errors.As(err, &geo):
		return "TOO_FAR"
	case errors.Is(err, shift.ErrShiftNotFound):
		return "SHIFT_NOT_FOUND"
	case errors.Is(err, kiosk.ErrQRInvalid):
		return "QR_INVALID"
	case errors.Is(err, kiosk.ErrQRExpired):
		return "QR_EXPIRED"
	case errors.Is(err, database.ErrTransient):
		return "TRANSIENT_ERROR"
	default:
		return "OTHER"
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func hoursToDuration(h decimal.Decimal) time.Duration {
	return time.Duration(h.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
}

func NewAttendanceService(
	tx database.Transactor,
	attendanceRepo attendance.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	outboxRepo event.OutboxRepository,
	identityService identity.IdentityService,
	shiftService shift.ShiftService,
	calculator payroll.Calculator,
	opts Options,
) attendance.AttendanceService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &attendanceServiceImpl{
		tx:              tx,
		attendanceRepo:  attendanceRepo,
		employeeRepo:    employeeRepo,
		outboxRepo:      outboxRepo,
		identityService: identityService,
		shiftService:    shiftService,
		calculator:      calculator,
		loc:             opts.Location,
		maxOpenSession:  opts.MaxOpenSession,
		topic:           opts.EventTopic,
		now:             opts.Now,
		metrics:         opts.Metrics,
	}
}
