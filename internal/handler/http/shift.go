package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type ShiftHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Detect(w http.ResponseWriter, r *http.Request)
}

type shiftHandlerImpl struct {
	shiftService shift.ShiftService
}

func NewShiftHandler(shiftService shift.ShiftService) ShiftHandler {
	return &shiftHandlerImpl{
		shiftService: shiftService,
	}
}

func shiftResponses(shifts []shift.Shift) []shift.ShiftResponse {
	out := make([]shift.ShiftResponse, 0, len(shifts))
	for _, s := range shifts {
		out = append(out, shift.NewShiftResponse(s))
	}
	return out
}

// List implements ShiftHandler.
func (h *shiftHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.shiftService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, shiftResponses(shifts))
}

// Create implements ShiftHandler. Re-posting an existing definition returns it with 200.
func (h *shiftHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req shift.CreateShiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, created, err := h.shiftService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if created {
		response.Created(w, "Shift created", shift.NewShiftResponse(s))
		return
	}
	response.SuccessWithMessage(w, "Shift already exists", shift.NewShiftResponse(s))
}

// Get implements ShiftHandler.
func (h *shiftHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid shift ID", nil)
		return
	}

	s, err := h.shiftService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, shift.NewShiftResponse(s))
}

// Update implements ShiftHandler.
func (h *shiftHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid shift ID", nil)
		return
	}

	var req shift.UpdateShiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id

	s, err := h.shiftService.Update(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Shift updated", shift.NewShiftResponse(s))
}

// Delete implements ShiftHandler.
func (h *shiftHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid shift ID", nil)
		return
	}

	if err := h.shiftService.Delete(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Shift deleted", nil)
}

// Detect implements ShiftHandler. It answers which shift a time of day falls in.
func (h *shiftHandlerImpl) Detect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("time")
	if raw == "" {
		response.BadRequest(w, "time is required", nil)
		return
	}
	t, err := shift.ParseTimeOfDay(raw)
	if err != nil {
		response.BadRequest(w, "time must be HH:MM or HH:MM:SS", nil)
		return
	}

	s, err := h.shiftService.DetectByTime(r.Context(), t)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, shift.NewShiftResponse(s))
}
