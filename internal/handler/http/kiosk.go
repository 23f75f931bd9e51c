package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

const sseKeepalive = 30 * time.Second

// Subscriber hands out kiosk feeds.
type Subscriber interface {
	Subscribe(topic string) (chan sse.Event, func())
	SubscriberCount(topic string) int
}

type KioskHandler interface {
	CreateSession(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request)
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
}

type kioskHandlerImpl struct {
	kioskService  kiosk.KioskService
	reportService report.ReportService
	jwtService    jwt.Service
	hub           Subscriber
	now           func() time.Time
}

func NewKioskHandler(kioskService kiosk.KioskService, reportService report.ReportService, jwtService jwt.Service, hub Subscriber) KioskHandler {
	return &kioskHandlerImpl{
		kioskService:  kioskService,
		reportService: reportService,
		jwtService:    jwtService,
		hub:           hub,
		now:           time.Now,
	}
}

type kioskStatusResponse struct {
	report.SystemStatus
	// ConnectedDisplays is only reported to the kiosk asking.
	ConnectedDisplays *int `json:"connected_displays,omitempty"`
}

type sseTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// CreateSession implements KioskHandler. A kiosk always acts for itself;
// managers name the kiosk in the body.
func (h *kioskHandlerImpl) CreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req kiosk.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if p.IsKiosk {
		req.KioskID = p.KioskID
	} else {
		req.CreatedBy = &p.Claims.UserID
	}

	var (
		session kiosk.Session
		created = true
		err     error
	)
	if req.Reuse {
		session, created, err = h.kioskService.GetOrCreateSession(r.Context(), req.KioskID, req.Meta, req.CreatedBy)
	} else {
		session, err = h.kioskService.CreateSession(r.Context(), req.KioskID, req.Meta, req.CreatedBy)
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp := kiosk.NewSessionResponse(session, h.now())
	if created {
		response.Created(w, "QR session created", resp)
		return
	}
	response.Success(w, resp)
}

// GetSession implements KioskHandler.
func (h *kioskHandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.kioskService.FindActiveByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, kiosk.NewSessionResponse(session, h.now()))
}

// Status implements KioskHandler.
func (h *kioskHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.reportService.SystemStatus(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp := kioskStatusResponse{SystemStatus: status}
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && p.IsKiosk {
		n := h.hub.SubscriberCount(sse.KioskTopic(kiosk.NormalizeKioskID(p.KioskID)))
		resp.ConnectedDisplays = &n
	}
	response.Success(w, resp)
}

// StreamToken implements KioskHandler.
func (h *kioskHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	kioskID := kiosk.NormalizeKioskID(chi.URLParam(r, "kioskID"))
	if p.IsKiosk && kiosk.NormalizeKioskID(p.KioskID) != kioskID {
		response.Forbidden(w, "Kiosks may only subscribe to their own feed")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(kioskID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}
	response.Success(w, sseTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream handles the SSE feed a kiosk display uses to pick up rotated codes.
func (h *kioskHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// EventSource cannot send headers, so the token travels in the query
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	kioskID, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil || kioskID != kiosk.NormalizeKioskID(chi.URLParam(r, "kioskID")) {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(sse.KioskTopic(kioskID))
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"kiosk_id\":%q}\n\n", kioskID)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Warn("failed to encode kiosk event", "kiosk_id", kioskID, "event", event.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
