/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates everything else to the leave package.

ENDPOINTS:
  Enrollment (token-verified, no member record yet):
    POST   /api/enroll/admin           Create organization + founding admin
    POST   /api/enroll/redeem          Join via invitation code

  Organization:
    GET    /api/organization               Get profile + working days
    PUT    /api/organization/profile       Update name/website/logo (admin)
    PUT    /api/organization/working-days  Replace working day set (admin)

  Holidays:
    GET    /api/holidays               List
    POST   /api/holidays               Create (admin)
    PUT    /api/holidays/{id}          Update (admin)
    DELETE /api/holidays/{id}          Delete (admin)

  Members:
    GET    /api/members                List (admin)
    GET    /api/members/me             Caller's own record
    PUT    /api/members/{id}/allowance Override balance (admin)
    GET    /api/members/{id}/ledger    Allowance audit trail

  Requests:
    POST   /api/requests               Submit
    GET    /api/requests               Organization-wide list (admin)
    GET    /api/requests/mine          Caller's own requests
    GET    /api/requests/{id}          Get one
    POST   /api/requests/{id}/approve  Approve + debit (admin)
    POST   /api/requests/{id}/reject   Reject (admin)

  Invitations:
    POST   /api/invitations            Issue a code (admin)
    GET    /api/invitations            List codes (admin)

REQUEST FLOW:
  1. Middleware resolves the caller (see middleware.go)
  2. Decode and validate the body
  3. Call the engine with the caller's Identity
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  The engine's error taxonomy maps one-to-one onto HTTP statuses:
  - 400: validation errors, malformed input
  - 401: missing/invalid token, unknown or consumed invitation code
  - 403: role or tenant boundary violations
  - 404: resource not found
  - 409: illegal state transition, blocked overlap
  - 503: storage unavailable

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Identity resolution
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Requests    *leave.RequestService
	Invitations *leave.InvitationService
	Admin       *leave.AdminService
	Ledger      *leave.AllowanceLedger

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler wires the engine services behind HTTP.
func NewHandler(store leave.Store, cfg leave.Config, log zerolog.Logger) *Handler {
	return &Handler{
		Requests:    leave.NewRequestService(store, cfg),
		Invitations: leave.NewInvitationService(store, cfg),
		Admin:       leave.NewAdminService(store, cfg),
		Ledger:      leave.NewAllowanceLedger(store),
		validate:    validator.New(),
		log:         log,
	}
}

// =============================================================================
// ENROLLMENT
// =============================================================================

func (h *Handler) EnrollAdmin(w http.ResponseWriter, r *http.Request) {
	var req EnrollAdminRequest
	if !h.decode(w, r, &req) {
		return
	}

	org, member, err := h.Invitations.EnrollAdmin(r.Context(), leave.EnrollAdminInput{
		ExternalID:  SubjectFromContext(r.Context()),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		CompanyName: req.CompanyName,
		Website:     req.Website,
		Logo:        req.Logo,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, EnrollmentDTO{
		Organization: toOrganizationDTO(org),
		Member:       toMemberDTO(member),
	})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	member, err := h.Invitations.Redeem(r.Context(), leave.RedeemInput{
		Code:       req.Code,
		ExternalID: SubjectFromContext(r.Context()),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Department: req.Department,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toMemberDTO(member))
}

// =============================================================================
// ORGANIZATION
// =============================================================================

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.Admin.GetOrganization(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrganizationDTO(org))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	org, err := h.Admin.UpdateProfile(r.Context(), IdentityFromContext(r.Context()), leave.ProfileInput{
		Name:    req.Name,
		Website: req.Website,
		Logo:    req.Logo,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrganizationDTO(org))
}

func (h *Handler) UpdateWorkingDays(w http.ResponseWriter, r *http.Request) {
	var req WorkingDaysRequest
	if !h.decode(w, r, &req) {
		return
	}

	days := make(leave.WorkingDays, len(req.WorkingDays))
	for i, d := range req.WorkingDays {
		days[i] = time.Weekday(d)
	}

	org, err := h.Admin.UpdateWorkingDays(r.Context(), IdentityFromContext(r.Context()), days)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrganizationDTO(org))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Admin.ListHolidays(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toHolidayDTOs(holidays))
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeHoliday(w, r)
	if !ok {
		return
	}

	holiday, err := h.Admin.AddHoliday(r.Context(), IdentityFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

func (h *Handler) UpdateHoliday(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeHoliday(w, r)
	if !ok {
		return
	}

	id := leave.HolidayID(chi.URLParam(r, "id"))
	holiday, err := h.Admin.UpdateHoliday(r.Context(), IdentityFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toHolidayDTO(holiday))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := leave.HolidayID(chi.URLParam(r, "id"))
	if err := h.Admin.DeleteHoliday(r.Context(), IdentityFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeHoliday(w http.ResponseWriter, r *http.Request) (leave.HolidayInput, bool) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return leave.HolidayInput{}, false
	}
	date, err := leave.ParseDate(req.Date)
	if err != nil {
		writeError(w, &leave.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
		return leave.HolidayInput{}, false
	}
	return leave.HolidayInput{Name: req.Name, Date: date, Recurring: req.Recurring}, true
}

// =============================================================================
// MEMBERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Admin.ListMembers(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberDTOs(members))
}

func (h *Handler) GetSelf(w http.ResponseWriter, r *http.Request) {
	actor := IdentityFromContext(r.Context())
	member, err := h.Requests.Member(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberDTO(member))
}

func (h *Handler) OverrideAllowance(w http.ResponseWriter, r *http.Request) {
	var req AllowanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := leave.MemberID(chi.URLParam(r, "id"))
	member, err := h.Admin.OverrideAllowance(r.Context(), IdentityFromContext(r.Context()), id, req.AllowanceDays)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberDTO(member))
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	entries, err := h.Ledger.History(r.Context(), IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toEntryDTO(&entries[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, &leave.ValidationError{Field: "start_date", Message: "date must be YYYY-MM-DD"})
		return
	}
	end, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, &leave.ValidationError{Field: "end_date", Message: "date must be YYYY-MM-DD"})
		return
	}
	custom := make([]leave.Date, 0, len(req.CustomExcludedDates))
	for _, raw := range req.CustomExcludedDates {
		d, err := leave.ParseDate(raw)
		if err != nil {
			writeError(w, &leave.ValidationError{Field: "custom_excluded_dates", Message: "dates must be YYYY-MM-DD"})
			return
		}
		custom = append(custom, d)
	}

	result, err := h.Requests.Submit(r.Context(), IdentityFromContext(r.Context()), leave.SubmitInput{
		StartDate:             start,
		EndDate:               end,
		Type:                  leave.LeaveType(req.Type),
		Reason:                req.Reason,
		ExcludeNonWorkingDays: req.ExcludeNonWorkingDays,
		ExcludeHolidays:       req.ExcludeHolidays,
		CustomExcludedDates:   custom,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toSubmitResponseDTO(result))
}

func (h *Handler) ListOrgRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Requests.ListForOrganization(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) ListOwnRequests(w http.ResponseWriter, r *http.Request) {
	actor := IdentityFromContext(r.Context())
	requests, err := h.Requests.ListForMember(r.Context(), actor, actor.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	request, err := h.Requests.Get(r.Context(), IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRequestDTO(request))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusApproved)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusRejected)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, status leave.RequestStatus) {
	// Notes body is optional on both transitions.
	var body TransitionBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, &leave.ValidationError{Field: "body", Message: "invalid JSON"})
			return
		}
	}

	id := leave.RequestID(chi.URLParam(r, "id"))
	request, err := h.Requests.Transition(r.Context(), IdentityFromContext(r.Context()), id, status, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRequestDTO(request))
}

// =============================================================================
// INVITATIONS
// =============================================================================

func (h *Handler) IssueCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.Invitations.Issue(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCodeDTO(code))
}

func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Invitations.ListCodes(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]CodeDTO, len(codes))
	for i := range codes {
		dtos[i] = toCodeDTO(&codes[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode unmarshals and validates a JSON body, writing the error response
// itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, &leave.ValidationError{Field: "body", Message: "invalid JSON"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			writeError(w, &leave.ValidationError{
				Field:   invalid[0].Field(),
				Message: "failed validation rule " + invalid[0].Tag(),
			})
			return false
		}
		writeError(w, &leave.ValidationError{Field: "body", Message: err.Error()})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	var conflict *leave.ConflictError
	if errors.As(err, &conflict) {
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
		return
	}

	switch {
	case errors.Is(err, leave.ErrAuthentication), errors.Is(err, leave.ErrInvalidCode):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, leave.ErrAuthorization):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, leave.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, leave.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, leave.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, leave.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}

	respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
