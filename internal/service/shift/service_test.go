package shift

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineTx struct{}

func (inlineTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memoryShiftRepo struct {
	mu         sync.Mutex
	shifts     map[int64]shift.Shift
	nextID     int64
	referenced map[int64]bool
	listCalls  int
	takenCodes map[string]bool
	// onList runs after List has taken its snapshot.
	onList func()
}

func newMemoryShiftRepo(seed ...shift.Shift) *memoryShiftRepo {
	r := &memoryShiftRepo{shifts: map[int64]shift.Shift{}, referenced: map[int64]bool{}, takenCodes: map[string]bool{}}
	for _, s := range seed {
		r.shifts[s.ID] = s
		if s.ID > r.nextID {
			r.nextID = s.ID
		}
	}
	return r
}

func (r *memoryShiftRepo) List(ctx context.Context) ([]shift.Shift, error) {
	r.mu.Lock()
	r.listCalls++
	out := make([]shift.Shift, 0, len(r.shifts))
	for _, s := range r.shifts {
		out = append(out, s)
	}
	hook := r.onList
	r.onList = nil
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *memoryShiftRepo) GetByID(ctx context.Context, id int64) (shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	return s, nil
}

func (r *memoryShiftRepo) FindByDefinition(ctx context.Context, name string, start, end shift.TimeOfDay) (*shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shifts {
		if s.Name == name && s.StartTime == start && s.EndTime == end {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryShiftRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenCodes["*"] {
		return true, nil
	}
	for _, s := range r.shifts {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryShiftRepo) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.shifts[s.ID] = s
	return s, nil
}

func (r *memoryShiftRepo) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shifts[s.ID] = s
	return s, nil
}

func (r *memoryShiftRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shifts, id)
	return nil
}

func (r *memoryShiftRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.referenced[id], nil
}

func (r *memoryShiftRepo) LockRegistry(ctx context.Context) error { return nil }

func tod(t *testing.T, s string) shift.TimeOfDay {
	t.Helper()
	v, err := shift.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func seededShifts(t *testing.T) []shift.Shift {
	return []shift.Shift{
		{ID: 1, Name: "Morning", Code: "MORNING1", StartTime: tod(t, "06:00"), EndTime: tod(t, "14:00"), Radius: 100},
		{ID: 2, Name: "Afternoon", Code: "AFTERNO1", StartTime: tod(t, "14:00"), EndTime: tod(t, "22:00"), Radius: 100},
		{ID: 3, Name: "Night", Code: "NIGHT001", StartTime: tod(t, "22:00"), EndTime: tod(t, "06:00"), Radius: 100},
	}
}

func TestDetectByTime(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	cases := []struct {
		clock string
		want  int64
	}{
		{"07:30", 1},
		{"14:00", 1}, // boundary shared by Morning and Afternoon: lowest id wins
		{"15:00", 2},
		{"23:15", 3},
		{"03:00", 3},
		{"06:00", 1},
	}
	for _, c := range cases {
		got, err := svc.DetectByTime(ctx, tod(t, c.clock))
		require.NoError(t, err, c.clock)
		assert.Equal(t, c.want, got.ID, c.clock)
	}
}

func TestDetectByTime_FallsBackToDefault(t *testing.T) {
	repo := newMemoryShiftRepo(shift.Shift{ID: 5, Name: "Office", StartTime: tod(t, "08:00"), EndTime: tod(t, "17:00")})
	ctx := context.Background()

	svc := NewShiftService(inlineTx{}, repo, 5, fixedClock(time.Now()))
	got, err := svc.DetectByTime(ctx, tod(t, "20:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)

	svc = NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	_, err = svc.DetectByTime(ctx, tod(t, "20:00"))
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)

	svc = NewShiftService(inlineTx{}, repo, 99, fixedClock(time.Now()))
	_, err = svc.DetectByTime(ctx, tod(t, "20:00"))
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestDetectByTime_CachesRegistry(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewShiftService(inlineTx{}, repo, 0, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.DetectByTime(ctx, tod(t, "09:00"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.listCalls)

	now = now.Add(cacheTTL + time.Second)
	_, err := svc.DetectByTime(ctx, tod(t, "09:00"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestDetectByTime_DropsLoadRacingAWrite(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	// The registry changes after the load read it but before the load stored it.
	repo.onList = func() {
		end := "13:00"
		_, err := svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, EndTime: &end})
		require.NoError(t, err)
	}

	got, err := svc.DetectByTime(ctx, tod(t, "13:30"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = svc.DetectByTime(ctx, tod(t, "13:30"))
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestValidateOverlap_IsSymmetric(t *testing.T) {
	windows := [][2]string{
		{"08:00", "17:00"},
		{"22:00", "06:00"},
		{"05:00", "07:00"},
		{"17:00", "22:00"},
		{"23:00", "01:00"},
		{"12:00", "13:00"},
	}
	for _, a := range windows {
		for _, b := range windows {
			ab := shift.WindowsOverlap(tod(t, a[0]), tod(t, a[1]), tod(t, b[0]), tod(t, b[1]))
			ba := shift.WindowsOverlap(tod(t, b[0]), tod(t, b[1]), tod(t, a[0]), tod(t, a[1]))
			assert.Equal(t, ab, ba, "%v vs %v", a, b)
		}
	}
}

func TestValidateOverlap(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)[2]) // Night 22:00-06:00
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	conflict, err := svc.ValidateOverlap(ctx, tod(t, "05:00"), tod(t, "07:00"), nil)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "Night", conflict.Conflict.Name)
	assert.Contains(t, conflict.Error(), "22:00-06:00")

	conflict, err = svc.ValidateOverlap(ctx, tod(t, "06:00"), tod(t, "22:00"), nil)
	require.NoError(t, err)
	assert.Nil(t, conflict, "touching windows do not overlap")

	id := int64(3)
	conflict, err = svc.ValidateOverlap(ctx, tod(t, "21:00"), tod(t, "05:00"), &id)
	require.NoError(t, err)
	assert.Nil(t, conflict, "a shift does not conflict with itself")
}

func TestCreate(t *testing.T) {
	repo := newMemoryShiftRepo()
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	created, ok, err := svc.Create(ctx, shift.CreateShiftRequest{Name: "Office", StartTime: "08:00", EndTime: "17:00"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, created.Code, codeLength)
	assert.Equal(t, shift.DefaultRadius, created.Radius)

	again, ok, err := svc.Create(ctx, shift.CreateShiftRequest{Name: "Office", StartTime: "08:00:00", EndTime: "17:00"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, created.ID, again.ID)

	_, _, err = svc.Create(ctx, shift.CreateShiftRequest{Name: "Overlap", StartTime: "16:00", EndTime: "20:00"})
	var overlap *shift.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.ErrorIs(t, err, shift.ErrShiftOverlap)
	assert.Equal(t, created.ID, overlap.Conflict.ID)

	_, ok, err = svc.Create(ctx, shift.CreateShiftRequest{Name: "Evening", StartTime: "17:00", EndTime: "22:00"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreate_RejectsInvalidRequests(t *testing.T) {
	svc := NewShiftService(inlineTx{}, newMemoryShiftRepo(), 0, fixedClock(time.Now()))
	ctx := context.Background()

	lat := 10.0
	reqs := []shift.CreateShiftRequest{
		{Name: "", StartTime: "08:00", EndTime: "17:00"},
		{Name: "Same", StartTime: "08:00", EndTime: "08:00"},
		{Name: "Bad", StartTime: "8am", EndTime: "17:00"},
		{Name: "Half geofence", StartTime: "08:00", EndTime: "17:00", Latitude: &lat},
	}
	for _, req := range reqs {
		_, _, err := svc.Create(ctx, req)
		var verrs validator.ValidationErrors
		assert.True(t, errors.As(err, &verrs), "%+v", req)
	}
}

func TestCreate_CodeExhausted(t *testing.T) {
	repo := newMemoryShiftRepo()
	repo.takenCodes["*"] = true
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))

	_, _, err := svc.Create(context.Background(), shift.CreateShiftRequest{Name: "Office", StartTime: "08:00", EndTime: "17:00"})
	assert.ErrorIs(t, err, shift.ErrCodeExhausted)
}

func TestUpdate(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	name := "Early"
	updated, err := svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Early", updated.Name)
	assert.Equal(t, tod(t, "06:00"), updated.StartTime)

	end := "15:00"
	_, err = svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, EndTime: &end})
	assert.ErrorIs(t, err, shift.ErrShiftOverlap)

	same := "06:00"
	_, err = svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, EndTime: &same})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.Update(ctx, shift.UpdateShiftRequest{ID: 42, Name: &name})
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestUpdate_Geofence(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	lat, lon := 10.7769, 106.7009
	fenced, err := svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.True(t, fenced.HasGeofence())

	name := "Morning"
	kept, err := svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, Name: &name})
	require.NoError(t, err)
	assert.True(t, kept.HasGeofence())

	cleared, err := svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, ClearGeofence: true})
	require.NoError(t, err)
	assert.False(t, cleared.HasGeofence())
	assert.Nil(t, cleared.Latitude)
	assert.Nil(t, cleared.Longitude)

	_, err = svc.Update(ctx, shift.UpdateShiftRequest{ID: 1, Latitude: &lat, Longitude: &lon, ClearGeofence: true})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "clear_geofence")
}

func TestDelete(t *testing.T) {
	repo := newMemoryShiftRepo(seededShifts(t)...)
	repo.referenced[2] = true
	svc := NewShiftService(inlineTx{}, repo, 0, fixedClock(time.Now()))
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, 2), shift.ErrShiftInUse)
	require.NoError(t, svc.Delete(ctx, 1))
	assert.ErrorIs(t, svc.Delete(ctx, 1), shift.ErrShiftNotFound)

	got, err := svc.DetectByTime(ctx, tod(t, "07:00"))
	assert.ErrorIs(t, err, shift.ErrShiftNotFound, "deleted shift must not be detected: %+v", got)
}
