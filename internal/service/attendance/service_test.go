package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	payrollsvc "github.com/cmlabs-hris/attendance-engine/internal/service/payroll"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ict = time.FixedZone("ICT", 7*3600)

// ---- transaction and locks ----

type txStateKey struct{}

type txState struct {
	held []*sync.Mutex
}

// lockingTx mimics row locks held until commit.
type lockingTx struct{}

func (lockingTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txStateKey{}).(*txState); ok {
		return fn(ctx)
	}
	state := &txState{}
	defer func() {
		for i := len(state.held) - 1; i >= 0; i-- {
			state.held[i].Unlock()
		}
	}()
	return fn(context.WithValue(ctx, txStateKey{}, state))
}

// ---- attendance repository ----

type memoryAttendanceRepo struct {
	mu       sync.Mutex
	rows     []attendance.Attendance
	empLocks map[int64]*sync.Mutex
	lockHits int
	// onLock runs once the employee lock is held.
	onLock func()
}

func newMemoryAttendanceRepo() *memoryAttendanceRepo {
	return &memoryAttendanceRepo{empLocks: map[int64]*sync.Mutex{}}
}

func (r *memoryAttendanceRepo) LockEmployee(ctx context.Context, employeeID int64) error {
	state, ok := ctx.Value(txStateKey{}).(*txState)
	if !ok {
		return errors.New("LockEmployee called outside a transaction")
	}
	r.mu.Lock()
	l, ok := r.empLocks[employeeID]
	if !ok {
		l = &sync.Mutex{}
		r.empLocks[employeeID] = l
	}
	r.lockHits++
	r.mu.Unlock()

	l.Lock()
	state.held = append(state.held, l)
	if r.onLock != nil {
		r.onLock()
	}
	return nil
}

func (r *memoryAttendanceRepo) latest(match func(a attendance.Attendance) bool) *attendance.Attendance {
	var best *attendance.Attendance
	for i := range r.rows {
		a := r.rows[i]
		if !match(a) {
			continue
		}
		if best == nil || a.CheckInTime.After(best.CheckInTime) || (a.CheckInTime.Equal(best.CheckInTime) && a.ID > best.ID) {
			found := a
			best = &found
		}
	}
	return best
}

func (r *memoryAttendanceRepo) LatestSince(ctx context.Context, employeeID int64, since time.Time) (*attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(a attendance.Attendance) bool {
		return a.EmployeeID == employeeID && !a.CheckInTime.Before(since)
	}), nil
}

func (r *memoryAttendanceRepo) LatestOpenBetween(ctx context.Context, employeeID int64, from, to time.Time) (*attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(a attendance.Attendance) bool {
		return a.EmployeeID == employeeID && a.IsOpen() && !a.CheckInTime.Before(from) && a.CheckInTime.Before(to)
	}), nil
}

func (r *memoryAttendanceRepo) Create(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, a)
	return a, nil
}

func (r *memoryAttendanceRepo) Close(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID != a.ID {
			continue
		}
		if !r.rows[i].IsOpen() {
			return attendance.Attendance{}, attendance.ErrNoOpenAttendance
		}
		r.rows[i] = a
		return a, nil
	}
	return attendance.Attendance{}, attendance.ErrAttendanceNotFound
}

func (r *memoryAttendanceRepo) GetByID(ctx context.Context, id int64) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrAttendanceNotFound
}

func (r *memoryAttendanceRepo) List(ctx context.Context, f attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []attendance.Attendance
	for _, a := range r.rows {
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.From != nil && a.CheckInTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.CheckInTime.Before(*f.To) {
			continue
		}
		if f.Status != nil && (*f.Status == "open") != a.IsOpen() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, int64(len(out)), nil
}

func (r *memoryAttendanceRepo) ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []attendance.Attendance
	for _, a := range r.rows {
		if a.IsOpen() && a.CheckInTime.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAttendanceRepo) open(employeeID int64) []attendance.Attendance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []attendance.Attendance
	for _, a := range r.rows {
		if a.EmployeeID == employeeID && a.IsOpen() {
			out = append(out, a)
		}
	}
	return out
}

// ---- outbox ----

type memoryOutbox struct {
	mu     sync.Mutex
	events []event.OutboxEvent
}

func (o *memoryOutbox) Create(ctx context.Context, e event.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
	return nil
}

func (o *memoryOutbox) ListPending(ctx context.Context, now time.Time, limit int) ([]event.OutboxEvent, error) {
	return nil, nil
}

func (o *memoryOutbox) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error { return nil }

func (o *memoryOutbox) MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, reason string) error {
	return nil
}

func (o *memoryOutbox) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.events {
		out = append(out, e.EventType)
	}
	return out
}

// ---- identity and employees ----

type directory struct {
	employees map[int64]employee.Employee
	badges    map[string]int64
}

func (d *directory) Resolve(ctx context.Context, cred identity.Credential) (employee.Employee, error) {
	id := cred.UserID
	if cred.Type == identity.CredentialNFC {
		id = d.badges[cred.Value]
	}
	emp, ok := d.employees[id]
	if !ok {
		return employee.Employee{}, identity.ErrIdentityNotFound
	}
	if !emp.IsActive {
		return employee.Employee{}, identity.ErrAccountLocked
	}
	return emp, nil
}

func (d *directory) IssueNFCPayload(ctx context.Context, req identity.IssueNFCPayloadRequest) (identity.NFCPayloadResponse, error) {
	return identity.NFCPayloadResponse{}, nil
}

func (d *directory) RegisterBiometric(ctx context.Context, req identity.RegisterBiometricRequest) error {
	return nil
}

func (d *directory) RegisterNFCUID(ctx context.Context, req identity.RegisterNFCUIDRequest) (identity.NFCUIDResponse, error) {
	return identity.NFCUIDResponse{}, nil
}

func (d *directory) GetByID(ctx context.Context, id int64) (employee.Employee, error) {
	emp, ok := d.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

func (d *directory) GetByNFCUID(ctx context.Context, uid string) (employee.Employee, error) {
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (d *directory) GetByBiometricID(ctx context.Context, biometricID string) (employee.Employee, error) {
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (d *directory) UpdateNFCToken(ctx context.Context, id int64, tokenHash string, issuedAt time.Time, version int) error {
	return nil
}

func (d *directory) UpdateNFCUID(ctx context.Context, id int64, uid string) (time.Time, error) {
	return time.Time{}, nil
}

func (d *directory) UpdateBiometric(ctx context.Context, id int64, biometricID string, registeredAt time.Time) error {
	return nil
}

func (d *directory) ListStaff(ctx context.Context, departmentID *int64) ([]employee.Employee, error) {
	return nil, nil
}

// ---- shifts ----

type staticShifts struct {
	shifts []shift.Shift
}

func (s *staticShifts) DetectByTime(ctx context.Context, t shift.TimeOfDay) (shift.Shift, error) {
	for _, sh := range s.shifts {
		if sh.Covers(t) {
			return sh, nil
		}
	}
	return shift.Shift{}, shift.ErrShiftNotFound
}

func (s *staticShifts) ValidateOverlap(ctx context.Context, start, end shift.TimeOfDay, excludeID *int64) (*shift.OverlapError, error) {
	return nil, nil
}

func (s *staticShifts) Create(ctx context.Context, req shift.CreateShiftRequest) (shift.Shift, bool, error) {
	return shift.Shift{}, false, nil
}

func (s *staticShifts) Update(ctx context.Context, req shift.UpdateShiftRequest) (shift.Shift, error) {
	return shift.Shift{}, nil
}

func (s *staticShifts) Delete(ctx context.Context, id int64) error { return nil }

func (s *staticShifts) Get(ctx context.Context, id int64) (shift.Shift, error) {
	for _, sh := range s.shifts {
		if sh.ID == id {
			return sh, nil
		}
	}
	return shift.Shift{}, shift.ErrShiftNotFound
}

func (s *staticShifts) List(ctx context.Context) ([]shift.Shift, error) { return s.shifts, nil }

// ---- fixture ----

type fixture struct {
	svc    attendance.AttendanceService
	repo   *memoryAttendanceRepo
	outbox *memoryOutbox
	dir    *directory
	clock  *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func tod(s string) shift.TimeOfDay {
	t, err := shift.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(day, hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+hhmm, ict)
	if err != nil {
		panic(err)
	}
	return t
}

const (
	monday  = "2024-03-04"
	tuesday = "2024-03-05"
)

var (
	officeLat, officeLon = 10.7769, 106.7009
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lat, lon := officeLat, officeLon
	shifts := &staticShifts{shifts: []shift.Shift{
		{ID: 1, Name: "Day", StartTime: tod("06:00"), EndTime: tod("21:00"), Radius: 100},
		{ID: 2, Name: "Night", StartTime: tod("21:30"), EndTime: tod("05:59"), Latitude: &lat, Longitude: &lon, Radius: 100},
	}}

	dir := &directory{
		employees: map[int64]employee.Employee{
			1: {ID: 1, Name: "Lan", HourlyRate: decimal.NewFromInt(10000), IsActive: true},
			2: {ID: 2, Name: "Minh", HourlyRate: decimal.NewFromInt(20000), IsActive: false},
		},
		badges: map[string]int64{"CARD-1": 1, "CARD-2": 2},
	}

	calc, err := payrollsvc.NewCalculator(payroll.Rules{
		OvertimeRate:            decimal.RequireFromString("1.5"),
		OvertimeDoubleRate:      decimal.RequireFromString("2"),
		WeekendMultiplier:       decimal.RequireFromString("2"),
		StandardWorkHours:       decimal.NewFromInt(8),
		DoubleOvertimeThreshold: decimal.NewFromInt(10),
		HoursPrecision:          2,
		Location:                ict,
	})
	require.NoError(t, err)

	c := &clock{now: at(monday, "09:00")}
	repo := newMemoryAttendanceRepo()
	outbox := &memoryOutbox{}
	svc := NewAttendanceService(lockingTx{}, repo, dir, outbox, dir, shifts, calc, Options{
		Location:       ict,
		MaxOpenSession: 16 * time.Hour,
		EventTopic:     "attendance.events.v1",
		Now:            c.Now,
	})

	return &fixture{svc: svc, repo: repo, outbox: outbox, dir: dir, clock: c}
}

func badge(value string) attendance.SubmitPresenceRequest {
	return attendance.SubmitPresenceRequest{Credential: identity.Credential{Type: identity.CredentialNFC, Value: value}}
}

func assertDecimal(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString(want).Equal(*got), "want %s, got %s", want, got.String())
}

// ---- tests ----

func TestSubmitPresence_CheckInThenCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckIn, in.Type)
	assert.Equal(t, "Day", in.ShiftName)
	assert.True(t, at(monday, "09:00").Equal(in.CheckInTime))
	assert.Nil(t, in.WorkHours)

	f.clock.Set(at(monday, "18:00"))
	out, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckOut, out.Type)
	assert.Equal(t, in.AttendanceID, out.AttendanceID)
	assertDecimal(t, "9", out.WorkHours)
	assertDecimal(t, "8", out.RegularHours)
	assertDecimal(t, "1", out.OvertimeHours)
	assertDecimal(t, "95000", out.EarnedSalary)

	// A new submission after a closed session opens a second one the same day.
	f.clock.Set(at(monday, "19:00"))
	again, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckIn, again.Type)
	assert.NotEqual(t, in.AttendanceID, again.AttendanceID)

	assert.Equal(t, []string{event.TypeCheckedIn, event.TypeCheckedOut, event.TypeCheckedIn}, f.outbox.types())
	var payload presenceEvent
	require.NoError(t, json.Unmarshal(f.outbox.events[1].Payload, &payload))
	assert.Equal(t, in.AttendanceID, payload.AttendanceID)
	assert.Equal(t, "attendance.events.v1", f.outbox.events[1].Topic)
}

func TestSubmitPresence_IdentityRejectedBeforeLocking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitPresence(ctx, badge("UNKNOWN"))
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	_, err = f.svc.SubmitPresence(ctx, badge("CARD-2"))
	assert.ErrorIs(t, err, identity.ErrAccountLocked)

	assert.Zero(t, f.repo.lockHits)
	assert.Empty(t, f.repo.rows)
}

func TestSubmitPresence_Geofence(t *testing.T) {
	ctx := context.Background()

	t.Run("missing gps", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(at(monday, "22:00"))
		_, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
		assert.ErrorIs(t, err, attendance.ErrGPSRequired)
		assert.Empty(t, f.repo.rows)
	})

	t.Run("too far", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(at(monday, "22:00"))
		req := badge("CARD-1")
		lat, lon := officeLat+0.01, officeLon // about 1.1km north
		req.Latitude, req.Longitude = &lat, &lon

		_, err := f.svc.SubmitPresence(ctx, req)
		var geo *attendance.GeofenceError
		require.ErrorAs(t, err, &geo)
		assert.ErrorIs(t, err, attendance.ErrTooFar)
		assert.InDelta(t, 1112, geo.Distance, 5)
		assert.Equal(t, 100.0, geo.MaxDistance)
	})

	t.Run("inside radius", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(at(monday, "22:00"))
		req := badge("CARD-1")
		lat, lon := officeLat+0.0005, officeLon
		req.Latitude, req.Longitude = &lat, &lon

		res, err := f.svc.SubmitPresence(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Night", res.ShiftName)
		require.Len(t, f.repo.rows, 1)
		assert.Equal(t, &lat, f.repo.rows[0].Latitude)
	})

	t.Run("check-out skips geofence", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(at(monday, "22:00"))
		req := badge("CARD-1")
		lat, lon := officeLat, officeLon
		req.Latitude, req.Longitude = &lat, &lon
		_, err := f.svc.SubmitPresence(ctx, req)
		require.NoError(t, err)

		f.clock.Set(at(monday, "23:30"))
		res, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
		require.NoError(t, err)
		assert.Equal(t, attendance.PresenceCheckOut, res.Type)
	})
}

func TestSubmitPresence_NoShiftDetected(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(at(monday, "21:10"))

	_, err := f.svc.SubmitPresence(context.Background(), badge("CARD-1"))
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestSubmitPresence_OvernightCarryOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(at(monday, "22:00"))
	req := badge("CARD-1")
	lat, lon := officeLat, officeLon
	req.Latitude, req.Longitude = &lat, &lon
	in, err := f.svc.SubmitPresence(ctx, req)
	require.NoError(t, err)

	f.clock.Set(at(tuesday, "05:30"))
	out, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckOut, out.Type)
	assert.Equal(t, in.AttendanceID, out.AttendanceID)
	assertDecimal(t, "7.5", out.WorkHours)
}

func TestSubmitPresence_DayShiftIsNotCarriedOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(at(monday, "20:00"))
	first, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	f.clock.Set(at(tuesday, "07:00"))
	next, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckIn, next.Type)
	assert.NotEqual(t, first.AttendanceID, next.AttendanceID)
}

func TestSubmitPresence_ConcurrentSubmissionsNeverOpenTwoRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan attendance.PresenceResult, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := map[string]int{}
	for res := range results {
		counts[res.Type]++
	}
	assert.Equal(t, n/2, counts[attendance.PresenceCheckIn])
	assert.Equal(t, n/2, counts[attendance.PresenceCheckOut])
	assert.Len(t, f.repo.rows, n/2)
	assert.Empty(t, f.repo.open(1))
}

func TestSubmitPresence_TimestampTakenAfterLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	// The request arrives before the check-in it closes but only gets the
	// lock an hour later.
	f.clock.Set(at(monday, "08:30"))
	f.repo.onLock = func() { f.clock.Set(at(monday, "10:00")) }

	out, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckOut, out.Type)
	assert.Equal(t, in.AttendanceID, out.AttendanceID)
	require.NotNil(t, out.CheckOutTime)
	assert.True(t, at(monday, "10:00").Equal(*out.CheckOutTime))
	assertDecimal(t, "1", out.WorkHours)
}

func TestSelfCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelfCheckOut(ctx, 1)
	assert.ErrorIs(t, err, attendance.ErrNoOpenAttendance)

	_, err = f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	f.clock.Set(at(monday, "13:00"))
	res, err := f.svc.SelfCheckOut(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceCheckOut, res.Type)
	assertDecimal(t, "4", res.WorkHours)

	_, err = f.svc.SelfCheckOut(ctx, 2)
	assert.ErrorIs(t, err, identity.ErrAccountLocked)
}

func TestManualEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := "2024-03-04 17:00:00"
	resp, err := f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{
		UserID:    1,
		CheckIn:   "2024-03-04 08:00:00",
		CheckOut:  &out,
		ActorID:   9,
		ActorName: "Admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "closed", resp.Status)
	assert.Equal(t, int64(1), resp.ShiftID)
	assertDecimal(t, "9", resp.WorkHours)
	require.NotNil(t, resp.DeviceInfo)
	assert.Equal(t, "Manual Entry by Admin: Admin (9)", *resp.DeviceInfo)
	assert.Equal(t, []string{event.TypeManual}, f.outbox.types())

	open, err := f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 19:00:00"})
	require.NoError(t, err)
	assert.Equal(t, "open", open.Status)
	assert.Nil(t, open.WorkHours)
}

func TestManualEntry_OpenEntryKeepsSingleOpenAttendance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 10:00:00", ActorID: 9})
	assert.ErrorIs(t, err, attendance.ErrOpenAttendanceExists)
	assert.Len(t, f.repo.open(1), 1)
	assert.Equal(t, []string{event.TypeCheckedIn}, f.outbox.types())

	// A closed entry for the same day is still accepted.
	out := "2024-03-04 08:00:00"
	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 06:30:00", CheckOut: &out, ActorID: 9})
	require.NoError(t, err)
	assert.Len(t, f.repo.open(1), 1)

	// Once the session is closed an open entry goes through.
	f.clock.Set(at(monday, "12:00"))
	_, err = f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 13:00:00", ActorID: 9})
	require.NoError(t, err)
	assert.Len(t, f.repo.open(1), 1)
}

func TestManualEntry_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	same := "2024-03-04 08:00:00"
	_, err := f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 08:00:00", CheckOut: &same})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "check_out must be after check_in", verrs.ToMap()["check_out"])

	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "04/03/2024 08:00"})
	assert.ErrorAs(t, err, &verrs)

	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 42, CheckIn: "2024-03-04 08:00:00"})
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	shiftID := int64(7)
	_, err = f.svc.ManualEntry(ctx, attendance.ManualEntryRequest{UserID: 1, CheckIn: "2024-03-04 08:00:00", ShiftID: &shiftID})
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)

	assert.Empty(t, f.repo.rows)
}

func TestAutoCloseStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	f.clock.Set(at(monday, "20:00"))
	n, err := f.svc.AutoCloseStale(ctx, 16*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(at(tuesday, "03:00"))
	n, err = f.svc.AutoCloseStale(ctx, 16*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row := f.repo.rows[0]
	require.NotNil(t, row.CheckOutTime)
	assert.True(t, at(monday, "17:00").Equal(*row.CheckOutTime))
	assertDecimal(t, "8", row.WorkHours)
	assert.Contains(t, f.outbox.types(), event.TypeAutoClosed)
}

func TestListAndToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	f.clock.Set(at(monday, "12:00"))
	_, err = f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)
	f.clock.Set(at(monday, "13:00"))
	_, err = f.svc.SubmitPresence(ctx, badge("CARD-1"))
	require.NoError(t, err)

	today, err := f.svc.Today(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, today, 2)

	status := "closed"
	start := monday
	list, err := f.svc.List(ctx, attendance.AttendanceFilter{Status: &status, StartDate: &start, EndDate: &start})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)
	assert.Equal(t, 1, list.TotalPages)
	assert.Equal(t, 20, list.Limit)

	bad := "pending"
	_, err = f.svc.List(ctx, attendance.AttendanceFilter{Status: &bad})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	got, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)

	_, err = f.svc.Get(ctx, 99)
	assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)
}
