/*
store.go - Persistence contracts for the leave engine

PURPOSE:
  Defines the interface between the engine and the database. The engine is
  invoked by independent concurrent callers; the store is the only shared
  mutable resource, so the two operations that must not double-apply are
  expressed as single store calls with compare-and-set semantics:

    TransitionRequest: status CAS keyed on PENDING, plus the balance debit
                       and ledger entry when approving - all-or-nothing.
    RedeemCode:        used-flag CAS keyed on used=false, plus member
                       creation and the grant entry - all-or-nothing.

UNIQUENESS:
  InsertCode relies on a store-level unique constraint over the code value
  (system-wide, not per organization) and reports collisions as ErrCodeTaken.
  The issuer's bounded retry loop handles the rare rejection; a plain
  check-then-insert is a race and is never used.

ERROR MAPPING:
  Missing rows map to NotFoundError (or ErrInvalidCode for codes), CAS
  misses to StateError / ErrInvalidCode, and infrastructure failures to
  UnavailableError. Implementations never retry on their own.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL, SQL transactions)
  - leave/store:  in-memory, for tests and development
*/
package leave

import "context"

// =============================================================================
// PER-ENTITY CONTRACTS
// =============================================================================

type OrganizationStore interface {
	GetOrganization(ctx context.Context, id OrgID) (*Organization, error)
	UpdateOrganization(ctx context.Context, org *Organization) error

	// BootstrapOrganization atomically creates an organization, its first
	// ADMIN member and the member's initial grant entry.
	BootstrapOrganization(ctx context.Context, org *Organization, admin *Member, grant AllowanceEntry) error
}

type MemberStore interface {
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	GetMemberByExternalID(ctx context.Context, externalID string) (*Member, error)
	ListMembers(ctx context.Context, orgID OrgID) ([]Member, error)

	// OverrideAllowance atomically sets the balance and appends the
	// adjustment entry. The only direct-set path; admin override only.
	OverrideAllowance(ctx context.Context, id MemberID, days int, entry AllowanceEntry) error
}

type HolidayStore interface {
	CreateHoliday(ctx context.Context, h *Holiday) error
	GetHoliday(ctx context.Context, id HolidayID) (*Holiday, error)
	UpdateHoliday(ctx context.Context, h *Holiday) error
	DeleteHoliday(ctx context.Context, id HolidayID) error
	ListHolidays(ctx context.Context, orgID OrgID) ([]Holiday, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r *LeaveRequest) error
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// ListRequestsByMember orders ascending by start date (upcoming view).
	ListRequestsByMember(ctx context.Context, memberID MemberID) ([]LeaveRequest, error)

	// ListRequestsByOrganization orders descending by creation time.
	ListRequestsByOrganization(ctx context.Context, orgID OrgID) ([]LeaveRequest, error)

	// TransitionRequest applies a status transition keyed on the request
	// currently being PENDING. When debit is non-nil (approval), the
	// requester's balance decrement and the entry append commit with the
	// status change or not at all. A CAS miss returns StateError, so the
	// loser of two concurrent approvals observes ErrInvalidState.
	TransitionRequest(ctx context.Context, id RequestID, approver MemberID, status RequestStatus, notes string, debit *AllowanceEntry) (*LeaveRequest, error)
}

type InvitationStore interface {
	// InsertCode persists an unused code. A system-wide uniqueness violation
	// on the code value returns ErrCodeTaken.
	InsertCode(ctx context.Context, c *InvitationCode) error

	// GetCodeByValue returns the code matching the literal string, used or
	// not; ErrInvalidCode if none exists.
	GetCodeByValue(ctx context.Context, code string) (*InvitationCode, error)

	ListCodes(ctx context.Context, orgID OrgID) ([]InvitationCode, error)

	// RedeemCode atomically flips used false->true, creates the member and
	// appends the grant entry. If the code is unknown or the CAS misses
	// (already used, possibly by a concurrent redeem), returns ErrInvalidCode
	// and creates nothing.
	RedeemCode(ctx context.Context, code string, member *Member, grant AllowanceEntry) (*Member, error)
}

type LedgerStore interface {
	// ListAllowanceEntries returns a member's entries in append order.
	ListAllowanceEntries(ctx context.Context, memberID MemberID) ([]AllowanceEntry, error)
}

// Store is the full persistence contract the engine runs against.
type Store interface {
	OrganizationStore
	MemberStore
	HolidayStore
	RequestStore
	InvitationStore
	LedgerStore
}
