package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

var errInvalidID = errors.New("invalid id")

// decodeJSON reads a bounded JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request format", nil)
		return false
	}
	return true
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// queryInt returns 0 when the parameter is absent.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func queryInt64Ptr(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}

func queryStringPtr(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

// employeePrincipal returns the calling employee, rejecting kiosks.
func employeePrincipal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.IsKiosk {
		response.Unauthorized(w, "Employee authentication required")
		return middleware.Principal{}, false
	}
	return p, true
}

func reportScope(p middleware.Principal) report.Scope {
	return report.Scope{
		UserID:       p.Claims.UserID,
		Role:         p.Claims.Role,
		DepartmentID: p.Claims.DepartmentID,
	}
}

func isStaff(p middleware.Principal) bool {
	return p.Claims.Role != employee.RoleAdmin && p.Claims.Role != employee.RoleManager
}

// periodFromQuery reads period, year, month, week and quarter.
func periodFromQuery(r *http.Request) (report.PeriodRequest, bool) {
	var (
		req report.PeriodRequest
		ok  bool
	)
	req.Period = report.PeriodKind(r.URL.Query().Get("period"))
	if req.Year, ok = queryInt(r, "year"); !ok {
		return req, false
	}
	if req.Month, ok = queryInt(r, "month"); !ok {
		return req, false
	}
	if req.Week, ok = queryInt(r, "week"); !ok {
		return req, false
	}
	if req.Quarter, ok = queryInt(r, "quarter"); !ok {
		return req, false
	}
	return req, true
}
