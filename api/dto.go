/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All calendar dates cross the wire as "YYYY-MM-DD" strings; timestamps as
  RFC 3339. Parsing happens in handlers, before the engine sees anything.

VALIDATION:
  Struct tags drive go-playground/validator; handlers run it on every
  decoded body before touching the engine. Domain rules (date ordering,
  code format, transition legality) stay in the leave package.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EnrollAdminRequest creates an organization and its founding admin.
type EnrollAdminRequest struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	CompanyName string `json:"company_name" validate:"required"`
	Website     string `json:"website" validate:"omitempty,url"`
	Logo        string `json:"logo"`
}

// RedeemRequest joins an existing organization via invitation code.
type RedeemRequest struct {
	Code       string `json:"code" validate:"required,len=6,numeric"`
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department"`
}

// SubmitLeaveRequest is a candidate leave request.
type SubmitLeaveRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Reason    string `json:"reason"`

	ExcludeNonWorkingDays bool     `json:"exclude_non_working_days"`
	ExcludeHolidays       bool     `json:"exclude_holidays"`
	CustomExcludedDates   []string `json:"custom_excluded_dates"`
}

// TransitionBody carries the approver's optional notes.
type TransitionBody struct {
	Notes string `json:"notes"`
}

// ProfileRequest updates the organization profile.
type ProfileRequest struct {
	Name    string `json:"name" validate:"required"`
	Website string `json:"website" validate:"omitempty,url"`
	Logo    string `json:"logo"`
}

// WorkingDaysRequest replaces the working day set. Days use time.Weekday
// numbering, Sunday = 0.
type WorkingDaysRequest struct {
	WorkingDays []int `json:"working_days" validate:"required,min=1,max=7,dive,gte=0,lte=6"`
}

// HolidayRequest defines an organization holiday.
type HolidayRequest struct {
	Name      string `json:"name" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Recurring bool   `json:"recurring"`
}

// AllowanceRequest overrides a member's allowance balance. Negative targets
// are allowed; disputed corrections can leave a member owing days.
type AllowanceRequest struct {
	AllowanceDays int `json:"allowance_days"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// OrganizationDTO represents an organization in API responses.
type OrganizationDTO struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Website              string `json:"website,omitempty"`
	Logo                 string `json:"logo,omitempty"`
	WorkingDays          []int  `json:"working_days"`
	DefaultAllowanceDays int    `json:"default_allowance_days"`
	CreatedAt            string `json:"created_at,omitempty"`
}

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	Department    string `json:"department,omitempty"`
	AllowanceDays int    `json:"allowance_days"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// HolidayDTO represents a holiday in API responses.
type HolidayDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Recurring bool   `json:"recurring"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID             string `json:"id"`
	MemberID       string `json:"member_id"`
	ApproverID     string `json:"approver_id,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	ChargeableDays int    `json:"chargeable_days"`
	Reason         string `json:"reason,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// ExcludedDateDTO is one removed day with its label.
type ExcludedDateDTO struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// SubmitResponseDTO is the response after submitting a request. Conflict is
// advisory; the request was created regardless.
type SubmitResponseDTO struct {
	Request  RequestDTO        `json:"request"`
	Conflict *RequestDTO       `json:"conflict,omitempty"`
	Excluded []ExcludedDateDTO `json:"excluded_dates"`
	Total    int               `json:"total_days"`
}

// CodeDTO represents an invitation code.
type CodeDTO struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Used      bool   `json:"used"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EntryDTO represents one allowance ledger entry.
type EntryDTO struct {
	ID          string `json:"id"`
	Delta       string `json:"delta"`
	Kind        string `json:"kind"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// EnrollmentDTO is the response after either enrollment path.
type EnrollmentDTO struct {
	Organization OrganizationDTO `json:"organization"`
	Member       MemberDTO       `json:"member"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toOrganizationDTO(org *leave.Organization) OrganizationDTO {
	days := make([]int, len(org.WorkingDays))
	for i, d := range org.WorkingDays {
		days[i] = int(d)
	}
	return OrganizationDTO{
		ID:                   string(org.ID),
		Name:                 org.Name,
		Website:              org.Website,
		Logo:                 org.Logo,
		WorkingDays:          days,
		DefaultAllowanceDays: org.DefaultAllowanceDays,
		CreatedAt:            org.CreatedAt.Format(time.RFC3339),
	}
}

func toMemberDTO(m *leave.Member) MemberDTO {
	return MemberDTO{
		ID:            string(m.ID),
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		Email:         m.Email,
		Role:          string(m.Role),
		Department:    m.Department,
		AllowanceDays: m.AllowanceDays,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}

func toMemberDTOs(members []leave.Member) []MemberDTO {
	dtos := make([]MemberDTO, len(members))
	for i := range members {
		dtos[i] = toMemberDTO(&members[i])
	}
	return dtos
}

func toHolidayDTO(h *leave.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        string(h.ID),
		Name:      h.Name,
		Date:      h.Date.String(),
		Recurring: h.Recurring,
	}
}

func toHolidayDTOs(holidays []leave.Holiday) []HolidayDTO {
	dtos := make([]HolidayDTO, len(holidays))
	for i := range holidays {
		dtos[i] = toHolidayDTO(&holidays[i])
	}
	return dtos
}

func toRequestDTO(r *leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:             string(r.ID),
		MemberID:       string(r.MemberID),
		ApproverID:     string(r.ApproverID),
		StartDate:      r.StartDate.String(),
		EndDate:        r.EndDate.String(),
		Type:           string(r.Type),
		Status:         string(r.Status),
		ChargeableDays: r.ChargeableDays,
		Reason:         r.Reason,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(requests []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i := range requests {
		dtos[i] = toRequestDTO(&requests[i])
	}
	return dtos
}

func toCodeDTO(c *leave.InvitationCode) CodeDTO {
	return CodeDTO{
		ID:        string(c.ID),
		Code:      c.Code,
		Used:      c.Used,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e *leave.AllowanceEntry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		Delta:       e.Delta.String(),
		Kind:        string(e.Kind),
		ReferenceID: e.ReferenceID,
		Reason:      e.Reason,
		ActorID:     string(e.ActorID),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toSubmitResponseDTO(res *leave.SubmitResult) SubmitResponseDTO {
	out := SubmitResponseDTO{
		Request:  toRequestDTO(res.Request),
		Excluded: make([]ExcludedDateDTO, 0, len(res.Resolution.Excluded)),
		Total:    res.Resolution.TotalDays,
	}
	if res.Conflict != nil {
		dto := toRequestDTO(res.Conflict)
		out.Conflict = &dto
	}
	for _, ex := range res.Resolution.Excluded {
		out.Excluded = append(out.Excluded, ExcludedDateDTO{
			Date:   ex.Date.String(),
			Reason: string(ex.Reason),
		})
	}
	return out
}
