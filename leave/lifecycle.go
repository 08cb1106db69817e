/*
lifecycle.go - Request lifecycle: submission and the approval state machine

PURPOSE:
  Validates and creates leave requests (invoking the exclusion resolver and
  conflict detector), and drives PENDING -> APPROVED/REJECTED transitions,
  including the one-time balance debit.

STATE MACHINE:
  PENDING -> APPROVED  (terminal; debits the requester's balance once)
  PENDING -> REJECTED  (terminal)
  Nothing transitions out of a terminal state. The service checks status
  before calling the store, and the store's compare-and-set is the
  correctness backstop under concurrency: of two racing approvals, exactly
  one commits and the other observes ErrInvalidState.

OVERLAP POLICY:
  Submission runs a conflict pre-flight against the member's non-REJECTED
  requests. By default an overlap is advisory: the request is still created
  and the conflicting request is returned alongside it. Set
  Config.BlockOnConflict to refuse submission instead.

SEE ALSO:
  - calendar.go: chargeable day computation, done once at submission
  - conflict.go: overlap detection
  - store.go:    TransitionRequest atomicity contract
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config carries engine-level policy knobs shared by the services.
type Config struct {
	// DefaultAllowanceDays seeds new members when their organization has no
	// default of its own.
	DefaultAllowanceDays int

	// BlockOnConflict turns the overlap warning into a hard rejection.
	BlockOnConflict bool

	// CodeAttempts bounds the invitation code generation retry loop.
	CodeAttempts int

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DefaultAllowanceDays <= 0 {
		c.DefaultAllowanceDays = 25
	}
	if c.CodeAttempts <= 0 {
		c.CodeAttempts = 10
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// RequestService is the lifecycle manager.
type RequestService struct {
	store Store
	cfg   Config
}

func NewRequestService(store Store, cfg Config) *RequestService {
	return &RequestService{store: store, cfg: cfg.withDefaults()}
}

// SubmitInput is a candidate leave request.
type SubmitInput struct {
	StartDate Date
	EndDate   Date
	Type      LeaveType
	Reason    string

	ExcludeNonWorkingDays bool
	ExcludeHolidays       bool
	CustomExcludedDates   []Date
}

// SubmitResult carries the created request plus the advisory conflict, if
// any, and the resolution breakdown for display.
type SubmitResult struct {
	Request    *LeaveRequest
	Conflict   *LeaveRequest
	Resolution Resolution
}

// Submit validates and persists a new PENDING request for the calling
// member. The chargeable day count is computed here, from the exclusion
// rules in effect now, and is immutable thereafter. Never mutates balance.
func (s *RequestService) Submit(ctx context.Context, actor Identity, in SubmitInput) (*SubmitResult, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	member, err := s.store.GetMember(ctx, actor.MemberID)
	if err != nil {
		return nil, err
	}

	if err := ValidateLeaveType(in.Type); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if in.StartDate.After(in.EndDate) {
		return nil, &ValidationError{Field: "end_date", Message: "start date must not be after end date"}
	}
	if in.EndDate.Before(DateOf(s.cfg.Now())) {
		return nil, &ValidationError{Field: "end_date", Message: "end date must be today or in the future"}
	}

	org, err := s.store.GetOrganization(ctx, member.OrganizationID)
	if err != nil {
		return nil, err
	}
	holidays, err := s.store.ListHolidays(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	resolution, err := ResolveExclusions(in.StartDate, in.EndDate, ExclusionOptions{
		ExcludeNonWorkingDays: in.ExcludeNonWorkingDays,
		ExcludeHolidays:       in.ExcludeHolidays,
		CustomExcludedDates:   in.CustomExcludedDates,
		WorkingDays:           org.WorkingDays,
	}, holidays)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListRequestsByMember(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	conflict := DetectConflict(in.StartDate, in.EndDate, FilterBlocking(existing))
	if conflict.Overlaps && s.cfg.BlockOnConflict {
		return nil, &ConflictError{Conflicting: conflict.Conflicting}
	}

	req := &LeaveRequest{
		ID:             RequestID(uuid.NewString()),
		MemberID:       member.ID,
		OrganizationID: member.OrganizationID,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Type:           in.Type,
		Status:         StatusPending,
		ChargeableDays: resolution.ChargeableDays,
		Reason:         in.Reason,
		CreatedAt:      s.cfg.Now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	return &SubmitResult{Request: req, Conflict: conflict.Conflicting, Resolution: resolution}, nil
}

// Transition drives a PENDING request to APPROVED or REJECTED. On approval
// the requester's balance is debited by the request's chargeable days as
// part of the same atomic unit of work; both commit or neither does.
func (s *RequestService) Transition(ctx context.Context, actor Identity, id RequestID, newStatus RequestStatus, notes string) (*LeaveRequest, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	if !actor.IsAdmin() {
		return nil, ErrAuthorization
	}
	if newStatus != StatusApproved && newStatus != StatusRejected {
		return nil, &ValidationError{Field: "status", Message: "transition target must be APPROVED or REJECTED"}
	}

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != actor.OrganizationID {
		return nil, ErrAuthorization
	}
	if !req.Status.CanTransitionTo(newStatus) {
		return nil, &StateError{RequestID: req.ID, Status: req.Status}
	}

	var debit *AllowanceEntry
	if newStatus == StatusApproved {
		entry := DebitEntry(req, actor.MemberID, s.cfg.Now().UTC())
		debit = &entry
	}

	return s.store.TransitionRequest(ctx, id, actor.MemberID, newStatus, notes, debit)
}

// Member returns the caller's own record, including the live allowance
// balance.
func (s *RequestService) Member(ctx context.Context, actor Identity) (*Member, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	return s.store.GetMember(ctx, actor.MemberID)
}

// Get returns a single request, tenant-scoped. Members read their own;
// admins read any request in their organization.
func (s *RequestService) Get(ctx context.Context, actor Identity, id RequestID) (*LeaveRequest, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != actor.OrganizationID {
		return nil, ErrAuthorization
	}
	if req.MemberID != actor.MemberID && !actor.IsAdmin() {
		return nil, ErrAuthorization
	}
	return req, nil
}

// ListForMember returns a member's requests ascending by start date. Members
// list their own; admins may list any member of their organization.
func (s *RequestService) ListForMember(ctx context.Context, actor Identity, memberID MemberID) ([]LeaveRequest, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	if actor.MemberID != memberID {
		if !actor.IsAdmin() {
			return nil, ErrAuthorization
		}
		member, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member.OrganizationID != actor.OrganizationID {
			return nil, ErrAuthorization
		}
	}
	return s.store.ListRequestsByMember(ctx, memberID)
}

// ListForOrganization returns the organization's requests descending by
// creation time. Admin only.
func (s *RequestService) ListForOrganization(ctx context.Context, actor Identity) ([]LeaveRequest, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	if !actor.IsAdmin() {
		return nil, ErrAuthorization
	}
	return s.store.ListRequestsByOrganization(ctx, actor.OrganizationID)
}
