package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

// EmployeeHandler manages the credentials an employee presents at a kiosk.
type EmployeeHandler interface {
	IssueNFCPayload(w http.ResponseWriter, r *http.Request)
	RegisterBiometric(w http.ResponseWriter, r *http.Request)
	RegisterNFCUID(w http.ResponseWriter, r *http.Request)
}

type employeeHandlerImpl struct {
	identityService identity.IdentityService
}

func NewEmployeeHandler(identityService identity.IdentityService) EmployeeHandler {
	return &employeeHandlerImpl{
		identityService: identityService,
	}
}

// IssueNFCPayload implements EmployeeHandler. The payload is shown once and
// written to the card; only its hash is kept.
func (h *employeeHandlerImpl) IssueNFCPayload(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}

	var req identity.IssueNFCPayloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.EmployeeID = id

	payload, err := h.identityService.IssueNFCPayload(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "NFC payload issued", payload)
}

// RegisterBiometric implements EmployeeHandler.
func (h *employeeHandlerImpl) RegisterBiometric(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}

	var req identity.RegisterBiometricRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.EmployeeID = id

	if err := h.identityService.RegisterBiometric(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Biometric registered", nil)
}

// RegisterNFCUID implements EmployeeHandler.
func (h *employeeHandlerImpl) RegisterNFCUID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}

	var req identity.RegisterNFCUIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.EmployeeID = id

	resp, err := h.identityService.RegisterNFCUID(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "NFC card registered", resp)
}
