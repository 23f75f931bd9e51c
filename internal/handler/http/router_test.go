package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/export"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/rbac"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	routerTestSecret     = "router-test-secret"
	routerTestKioskToken = "kiosk-secret"
)

// ========================================
// STUB SERVICES
// ========================================

type stubAttendanceService struct {
	attendance.AttendanceService

	submitted   []attendance.SubmitPresenceRequest
	result      attendance.PresenceResult
	listFilters []attendance.AttendanceFilter
	record      attendance.AttendanceResponse
}

func (s *stubAttendanceService) SubmitPresence(_ context.Context, req attendance.SubmitPresenceRequest) (attendance.PresenceResult, error) {
	s.submitted = append(s.submitted, req)
	return s.result, nil
}

func (s *stubAttendanceService) List(_ context.Context, f attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	s.listFilters = append(s.listFilters, f)
	return attendance.ListAttendanceResponse{Page: 1, Limit: 20}, nil
}

func (s *stubAttendanceService) Get(context.Context, int64) (attendance.AttendanceResponse, error) {
	return s.record, nil
}

func (s *stubAttendanceService) ManualEntry(context.Context, attendance.ManualEntryRequest) (attendance.AttendanceResponse, error) {
	return attendance.AttendanceResponse{}, attendance.ErrOpenAttendanceExists
}

type stubShiftService struct {
	shift.ShiftService

	existing map[string]shift.Shift
	err      error
}

func (s *stubShiftService) Create(_ context.Context, req shift.CreateShiftRequest) (shift.Shift, bool, error) {
	if s.err != nil {
		return shift.Shift{}, false, s.err
	}
	if found, ok := s.existing[req.Name]; ok {
		return found, false, nil
	}
	created := shift.Shift{ID: int64(len(s.existing) + 1), Name: req.Name, Code: "SH-NEW"}
	s.existing[req.Name] = created
	return created, true, nil
}

type stubKioskService struct {
	kiosk.KioskService

	kioskIDs []string
}

func (s *stubKioskService) CreateSession(_ context.Context, kioskID string, _ map[string]any, _ *int64) (kiosk.Session, error) {
	s.kioskIDs = append(s.kioskIDs, kioskID)
	return kiosk.Session{KioskID: kioskID, Code: "ABC123"}, nil
}

type stubReportService struct {
	report.ReportService
}

func (stubReportService) ExportPayroll(_ context.Context, req report.ExportPayrollRequest, _ report.Scope) (report.ExportFile, error) {
	if req.Format != report.FormatXLSX && req.Format != report.FormatPDF {
		return report.ExportFile{}, report.ErrUnsupportedFormat
	}
	return report.ExportFile{FileName: "payroll.xlsx", ContentType: export.ContentTypeXLSX, Data: []byte("xlsx")}, nil
}

func (stubReportService) SystemStatus(context.Context) (report.SystemStatus, error) {
	return report.SystemStatus{Status: "online", TotalEmployees: 12, TodayAttendances: 5, Timezone: "Asia/Ho_Chi_Minh"}, nil
}

type stubIdentityService struct {
	identity.IdentityService
}

func (stubIdentityService) RegisterNFCUID(_ context.Context, req identity.RegisterNFCUIDRequest) (identity.NFCUIDResponse, error) {
	if req.NFCUID == "TAKEN" {
		return identity.NFCUIDResponse{}, identity.ErrNFCUIDTaken
	}
	return identity.NFCUIDResponse{EmployeeID: req.EmployeeID, NewNFCUID: req.NFCUID}, nil
}

type stubHub struct {
	topics []string
	events chan sse.Event
}

func (h *stubHub) Subscribe(topic string) (chan sse.Event, func()) {
	h.topics = append(h.topics, topic)
	return h.events, func() {}
}

func (h *stubHub) SubscriberCount(topic string) int {
	if topic == sse.KioskTopic("lobby") {
		return 2
	}
	return 0
}

// ========================================
// HARNESS
// ========================================

type routerFixture struct {
	router     http.Handler
	jwt        *jwt.JWTService
	attendance *stubAttendanceService
	shifts     *stubShiftService
	kiosks     *stubKioskService
	hub        *stubHub
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	jwtSvc, err := jwt.NewJWTService(routerTestSecret, "1h")
	require.NoError(t, err)
	enforcer, err := rbac.NewEnforcer()
	require.NoError(t, err)

	f := &routerFixture{
		jwt:        jwtSvc,
		attendance: &stubAttendanceService{},
		shifts:     &stubShiftService{existing: map[string]shift.Shift{}},
		kiosks:     &stubKioskService{},
		hub:        &stubHub{events: make(chan sse.Event, 4)},
	}
	f.router = NewRouter(RouterOptions{
		Env:            "test",
		AllowedOrigins: []string{"*"},
		KioskToken:     routerTestKioskToken,
		JWTService:     jwtSvc,
		Enforcer:       enforcer,
		RateLimiter:    middleware.NewKeyedRateLimiter(1000, 1000),
	}, Handlers{
		Attendance: NewAttendanceHandler(f.attendance),
		Shift:      NewShiftHandler(f.shifts),
		Kiosk:      NewKioskHandler(f.kiosks, stubReportService{}, jwtSvc, f.hub),
		Employee:   NewEmployeeHandler(stubIdentityService{}),
		Report:     NewReportHandler(stubReportService{}),
	})
	return f
}

func (f *routerFixture) token(t *testing.T, userID int64, role employee.Role, dept *int64) string {
	t.Helper()
	tok, _, err := f.jwt.GenerateAccessToken(jwt.Claims{UserID: userID, Role: role, DepartmentID: dept})
	require.NoError(t, err)
	return tok
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// ========================================
// TESTS
// ========================================

func TestPresence_KioskCheckIn(t *testing.T) {
	f := newRouterFixture(t)
	f.attendance.result = attendance.PresenceResult{Type: attendance.PresenceCheckIn, AttendanceID: 9}

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/presence", map[string]interface{}{
		"credential": map[string]string{"type": "nfc", "value": "04:A1:B2"},
	})
	req.Header.Set(middleware.HeaderKioskToken, routerTestKioskToken)
	req.Header.Set(middleware.HeaderKioskID, "lobby")

	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.attendance.submitted, 1)
	assert.Equal(t, "kiosk:lobby", f.attendance.submitted[0].DeviceInfo)
	assert.Zero(t, f.attendance.submitted[0].Credential.UserID)
}

func TestPresence_KioskRejectsSessionCredential(t *testing.T) {
	f := newRouterFixture(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/presence", map[string]interface{}{
		"credential": map[string]string{"type": "session"},
	})
	req.Header.Set(middleware.HeaderKioskToken, routerTestKioskToken)

	rec := f.do(req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
	assert.Empty(t, f.attendance.submitted)
}

func TestPresence_EmployeeQRCheckOut(t *testing.T) {
	f := newRouterFixture(t)
	f.attendance.result = attendance.PresenceResult{Type: attendance.PresenceCheckOut}

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/presence", map[string]interface{}{
		"credential": map[string]string{"type": "qr", "code": "ABC123"},
	})
	req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, nil))

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.attendance.submitted, 1)
	assert.Equal(t, int64(7), f.attendance.submitted[0].Credential.UserID)
}

func TestPresence_Unauthenticated(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("no credentials", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/presence", map[string]interface{}{})
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("wrong kiosk token", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/presence", map[string]interface{}{})
		req.Header.Set(middleware.HeaderKioskToken, "nope")
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})
}

func TestAttendanceList_ScopedByRole(t *testing.T) {
	f := newRouterFixture(t)
	dept := int64(3)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance?employee_id=99", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, &dept))
	require.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/attendance?department_id=8", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, 2, employee.RoleManager, &dept))
	require.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/attendance?department_id=8", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, 1, employee.RoleAdmin, nil))
	require.Equal(t, http.StatusOK, f.do(req).Code)

	require.Len(t, f.attendance.listFilters, 3)
	assert.Equal(t, int64(7), *f.attendance.listFilters[0].EmployeeID)
	assert.Equal(t, int64(3), *f.attendance.listFilters[1].DepartmentID)
	assert.Equal(t, int64(8), *f.attendance.listFilters[2].DepartmentID)
}

func TestAttendanceGet_StaffCannotSeeOthers(t *testing.T) {
	f := newRouterFixture(t)
	f.attendance.record = attendance.AttendanceResponse{ID: 5, EmployeeID: 42}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/5", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, nil))

	assert.Equal(t, http.StatusNotFound, f.do(req).Code)
}

func TestManualEntry_StaffForbidden(t *testing.T) {
	f := newRouterFixture(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/manual", map[string]interface{}{"user_id": 7})
	req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, nil))

	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestManualEntry_OpenAttendanceConflict(t *testing.T) {
	f := newRouterFixture(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/manual", map[string]interface{}{
		"user_id": 7, "check_in": "2024-03-04 10:00:00",
	})
	req.Header.Set("Authorization", "Bearer "+f.token(t, 2, employee.RoleManager, nil))

	rec := f.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ATTENDANCE_OPEN", env.Error.Code)
}

func TestShiftCreate_ReusesExistingDefinition(t *testing.T) {
	f := newRouterFixture(t)
	auth := "Bearer " + f.token(t, 2, employee.RoleManager, nil)
	body := map[string]string{"name": "Morning", "start_time": "08:00", "end_time": "16:00"}

	req := jsonRequest(t, http.MethodPost, "/api/v1/shifts", body)
	req.Header.Set("Authorization", auth)
	assert.Equal(t, http.StatusCreated, f.do(req).Code)

	req = jsonRequest(t, http.MethodPost, "/api/v1/shifts", body)
	req.Header.Set("Authorization", auth)
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestShiftCreate_OverlapConflict(t *testing.T) {
	f := newRouterFixture(t)
	f.shifts.err = &shift.OverlapError{Conflict: shift.Shift{ID: 4, Name: "Night", StartTime: 22 * 3600, EndTime: 6 * 3600}}

	req := jsonRequest(t, http.MethodPost, "/api/v1/shifts", map[string]string{"name": "Late", "start_time": "23:00", "end_time": "02:00"})
	req.Header.Set("Authorization", "Bearer "+f.token(t, 1, employee.RoleAdmin, nil))

	rec := f.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "SHIFT_OVERLAP", env.Error.Code)
	assert.Equal(t, "Night", env.Error.Details["conflict_shift_name"])
}

func TestShiftDetect_RejectsMalformedTime(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts/detect?time=25:99", nil)
	req.Header.Set(middleware.HeaderKioskToken, routerTestKioskToken)

	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}

func TestKioskSession_KioskActsForItself(t *testing.T) {
	f := newRouterFixture(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/kiosk/qr-sessions", map[string]string{"kiosk_id": "somewhere-else"})
	req.Header.Set(middleware.HeaderKioskToken, routerTestKioskToken)
	req.Header.Set(middleware.HeaderKioskID, "lobby")

	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"lobby"}, f.kiosks.kioskIDs)
}

func TestKioskStatus(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("kiosk sees its connected displays", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/status", nil)
		req.Header.Set(middleware.HeaderKioskToken, routerTestKioskToken)
		req.Header.Set(middleware.HeaderKioskID, "lobby")

		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
		assert.Equal(t, "online", data["status"])
		assert.Equal(t, 12.0, data["total_employees"])
		assert.Equal(t, 5.0, data["today_attendances"])
		assert.Equal(t, 2.0, data["connected_displays"])
	})

	t.Run("employee gets the summary only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/status", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, nil))

		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code)

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
		assert.NotContains(t, data, "connected_displays")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/status", nil)
		req.Header.Set(middleware.HeaderKioskToken, "nope")
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})
}

func TestEmployeeRegisterNFCUID(t *testing.T) {
	f := newRouterFixture(t)
	admin := "Bearer " + f.token(t, 1, employee.RoleAdmin, nil)

	req := jsonRequest(t, http.MethodPut, "/api/v1/employees/7/nfc", map[string]string{"nfc_uid": "04A1B2"})
	req.Header.Set("Authorization", admin)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data identity.NFCUIDResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, int64(7), data.EmployeeID)
	assert.Equal(t, "04A1B2", data.NewNFCUID)

	req = jsonRequest(t, http.MethodPut, "/api/v1/employees/7/nfc", map[string]string{"nfc_uid": "TAKEN"})
	req.Header.Set("Authorization", admin)
	assert.Equal(t, http.StatusConflict, f.do(req).Code)

	req = jsonRequest(t, http.MethodPut, "/api/v1/employees/7/nfc", map[string]string{"nfc_uid": "04A1B2"})
	req.Header.Set("Authorization", "Bearer "+f.token(t, 2, employee.RoleManager, nil))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestKioskStream(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("token bound to another kiosk", func(t *testing.T) {
		tok, _, err := f.jwt.GenerateSSEToken("gate")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/lobby/events?token="+tok, nil)
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("delivers rotated codes", func(t *testing.T) {
		tok, _, err := f.jwt.GenerateSSEToken("lobby")
		require.NoError(t, err)

		f.hub.events <- sse.Event{Event: "qr_session", Data: map[string]string{"code": "XYZ789"}}
		close(f.hub.events)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/lobby/events?token="+tok, nil)
		rec := f.do(req)

		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.True(t, strings.Contains(body, "event: connected"))
		assert.True(t, strings.Contains(body, "event: qr_session\ndata: {\"code\":\"XYZ789\"}"))
		assert.Equal(t, []string{sse.KioskTopic("lobby")}, f.hub.topics)
	})
}

func TestReportExport(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("staff forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/payroll/export", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 7, employee.RoleStaff, nil))
		assert.Equal(t, http.StatusForbidden, f.do(req).Code)
	})

	t.Run("defaults to xlsx", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/payroll/export", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 1, employee.RoleAdmin, nil))

		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, export.ContentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll.xlsx")
	})

	t.Run("unsupported format", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/payroll/export?format=csv", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 1, employee.RoleAdmin, nil))
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})

	t.Run("non-numeric period", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/payroll/export?year=abc", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 1, employee.RoleAdmin, nil))
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})
}
