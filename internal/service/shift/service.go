package shift

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"golang.org/x/sync/singleflight"
)

const (
	codeLength   = 8
	codeAttempts = 5
	cacheTTL     = 30 * time.Second
)

type shiftServiceImpl struct {
	tx             database.Transactor
	shiftRepo      shift.ShiftRepository
	defaultShiftID int64
	now            func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	cache    []shift.Shift
	cachedAt time.Time
	// gen is bumped on every invalidation; a load started under an older
	// generation is returned to its callers but never cached.
	gen uint64
}

// DetectByTime implements shift.ShiftService.
func (s *shiftServiceImpl) DetectByTime(ctx context.Context, t shift.TimeOfDay) (shift.Shift, error) {
	shifts, err := s.snapshot(ctx)
	if err != nil {
		return shift.Shift{}, err
	}

	for _, sh := range shifts {
		if sh.Covers(t) {
			return sh, nil
		}
	}

	if s.defaultShiftID > 0 {
		for _, sh := range shifts {
			if sh.ID == s.defaultShiftID {
				return sh, nil
			}
		}
	}
	return shift.Shift{}, shift.ErrShiftNotFound
}

// ValidateOverlap implements shift.ShiftService.
func (s *shiftServiceImpl) ValidateOverlap(ctx context.Context, start, end shift.TimeOfDay, excludeID *int64) (*shift.OverlapError, error) {
	shifts, err := s.shiftRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return firstOverlap(shifts, start, end, excludeID), nil
}

// Create implements shift.ShiftService.
func (s *shiftServiceImpl) Create(ctx context.Context, req shift.CreateShiftRequest) (shift.Shift, bool, error) {
	if err := req.Validate(); err != nil {
		return shift.Shift{}, false, err
	}
	start, end := req.Window()

	var (
		result  shift.Shift
		created bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.shiftRepo.LockRegistry(ctx); err != nil {
			return fmt.Errorf("failed to lock shift registry: %w", err)
		}

		existing, err := s.shiftRepo.FindByDefinition(ctx, req.Name, start, end)
		if err != nil {
			return fmt.Errorf("failed to look up shift definition: %w", err)
		}
		if existing != nil {
			result = *existing
			return nil
		}

		conflict, err := s.ValidateOverlap(ctx, start, end, nil)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}

		code, err := s.generateCode(ctx)
		if err != nil {
			return err
		}

		radius := shift.DefaultRadius
		if req.Radius != nil {
			radius = *req.Radius
		}
		result, err = s.shiftRepo.Create(ctx, shift.Shift{
			Name:      req.Name,
			Code:      code,
			StartTime: start,
			EndTime:   end,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Radius:    radius,
		})
		if err != nil {
			return fmt.Errorf("failed to create shift: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return shift.Shift{}, false, err
	}

	if created {
		s.invalidate()
	}
	return result, created, nil
}

// Update implements shift.ShiftService.
func (s *shiftServiceImpl) Update(ctx context.Context, req shift.UpdateShiftRequest) (shift.Shift, error) {
	if err := req.Validate(); err != nil {
		return shift.Shift{}, err
	}

	var result shift.Shift
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.shiftRepo.LockRegistry(ctx); err != nil {
			return fmt.Errorf("failed to lock shift registry: %w", err)
		}

		current, err := s.shiftRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			current.Name = *req.Name
		}
		if req.StartTime != nil {
			current.StartTime, _ = shift.ParseTimeOfDay(*req.StartTime)
		}
		if req.EndTime != nil {
			current.EndTime, _ = shift.ParseTimeOfDay(*req.EndTime)
		}
		if req.Latitude != nil {
			current.Latitude, current.Longitude = req.Latitude, req.Longitude
		}
		if req.ClearGeofence {
			current.Latitude, current.Longitude = nil, nil
		}
		if req.Radius != nil {
			current.Radius = *req.Radius
		}

		if current.StartTime == current.EndTime {
			return errStartEqualsEnd
		}

		conflict, err := s.ValidateOverlap(ctx, current.StartTime, current.EndTime, &current.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}

		result, err = s.shiftRepo.Update(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to update shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return shift.Shift{}, err
	}

	s.invalidate()
	return result, nil
}

// Delete implements shift.ShiftService.
func (s *shiftServiceImpl) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.shiftRepo.LockRegistry(ctx); err != nil {
			return fmt.Errorf("failed to lock shift registry: %w", err)
		}
		if _, err := s.shiftRepo.GetByID(ctx, id); err != nil {
			return err
		}

		inUse, err := s.shiftRepo.IsReferenced(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check shift references: %w", err)
		}
		if inUse {
			return shift.ErrShiftInUse
		}
		return s.shiftRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate()
	return nil
}

// Get implements shift.ShiftService.
func (s *shiftServiceImpl) Get(ctx context.Context, id int64) (shift.Shift, error) {
	return s.shiftRepo.GetByID(ctx, id)
}

// List implements shift.ShiftService.
func (s *shiftServiceImpl) List(ctx context.Context) ([]shift.Shift, error) {
	shifts, err := s.shiftRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

var errStartEqualsEnd = validator.ValidationErrors{{Field: "end_time", Message: "end_time must differ from start_time"}}

func (s *shiftServiceImpl) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := utils.RandomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate shift code: %w", err)
		}
		exists, err := s.shiftRepo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check shift code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", shift.ErrCodeExhausted
}

// snapshot returns the id-ordered registry, reloading it at most once per
// cacheTTL no matter how many callers miss concurrently.
func (s *shiftServiceImpl) snapshot(ctx context.Context) ([]shift.Shift, error) {
	s.mu.RLock()
	if s.cache != nil && s.now().Sub(s.cachedAt) < cacheTTL {
		cached := s.cache
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("shifts", func() (interface{}, error) {
		s.mu.RLock()
		gen := s.gen
		s.mu.RUnlock()

		shifts, err := s.shiftRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load shifts: %w", err)
		}
		sort.Slice(shifts, func(i, j int) bool { return shifts[i].ID < shifts[j].ID })
		if shifts == nil {
			shifts = []shift.Shift{}
		}

		s.mu.Lock()
		if s.gen == gen {
			s.cache, s.cachedAt = shifts, s.now()
		}
		s.mu.Unlock()
		return shifts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]shift.Shift), nil
}

func (s *shiftServiceImpl) invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.gen++
	s.mu.Unlock()
	s.group.Forget("shifts")
}

func firstOverlap(shifts []shift.Shift, start, end shift.TimeOfDay, excludeID *int64) *shift.OverlapError {
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].ID < shifts[j].ID })
	for _, sh := range shifts {
		if excludeID != nil && sh.ID == *excludeID {
			continue
		}
		if shift.WindowsOverlap(start, end, sh.StartTime, sh.EndTime) {
			return &shift.OverlapError{Conflict: sh}
		}
	}
	return nil
}

func NewShiftService(tx database.Transactor, shiftRepo shift.ShiftRepository, defaultShiftID int64, now func() time.Time) shift.ShiftService {
	if now == nil {
		now = time.Now
	}
	return &shiftServiceImpl{
		tx:             tx,
		shiftRepo:      shiftRepo,
		defaultShiftID: defaultShiftID,
		now:            now,
	}
}
