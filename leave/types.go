/*
Package leave implements the time-off scheduling and allowance engine.

PURPOSE:
  This package contains the tenant-scoped domain model and algorithms for
  managing employee leave: turning a raw date range into a count of
  chargeable working days, detecting conflicts between requests, driving
  requests through the approval state machine, and issuing single-use
  invitation codes during enrollment.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day (time-of-day ignored, always UTC)
  - Organization / Member / Holiday / LeaveRequest / InvitationCode:
    the tenant-scoped entities
  - Identity: the caller's resolved identity, passed explicitly into every
    engine operation (never read from ambient state)

DESIGN PRINCIPLES:
  1. Purity: the resolver and conflict detector are pure functions
  2. Explicit identity: authorization is testable without a real session
  3. Closed state machine: request status transitions are one-way and
     terminal, enforced by a transition function plus a store-level
     compare-and-set
  4. Tenant scoping: every entity belongs to exactly one Organization

SEE ALSO:
  - calendar.go:  exclusion resolution (chargeable day counting)
  - conflict.go:  overlap detection between date ranges
  - lifecycle.go: request submission and approval state machine
  - invitation.go: invitation code issuance and redemption
  - ledger.go:    allowance balance audit trail
  - store.go:     persistence contracts
*/
package leave

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgID string
type MemberID string
type HolidayID string
type RequestID string
type CodeID string
type EntryID string

// =============================================================================
// DATE - Calendar day, time-of-day ignored
// =============================================================================

// Date is a calendar day. All engine date arithmetic happens at day
// granularity in UTC; callers are responsible for localizing display.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) Before(o Date) bool    { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool     { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool     { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.normalize().Weekday() }

// SameMonthDay reports whether two dates share month and day, ignoring the
// year. Recurring holidays compare this way.
func (d Date) SameMonthDay(o Date) bool {
	return d.Month() == o.Month() && d.Day() == o.Day()
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD: " + s}
	}
	return DateOf(t), nil
}

// DaysInclusive counts the calendar days in [from, to], boundaries included.
func DaysInclusive(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours()/24) + 1
}

// =============================================================================
// WORKING DAYS
// =============================================================================

// WorkingDays is the set of weekdays an organization works. Days outside the
// set are treated as the "weekend" by the exclusion resolver.
type WorkingDays []time.Weekday

// DefaultWorkingDays is Monday through Friday.
func DefaultWorkingDays() WorkingDays {
	return WorkingDays{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

func (w WorkingDays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// Validate rejects an empty set or duplicate entries.
func (w WorkingDays) Validate() error {
	if len(w) == 0 {
		return &ValidationError{Field: "working_days", Message: "at least one working day is required"}
	}
	seen := make(map[time.Weekday]bool, len(w))
	for _, d := range w {
		if d < time.Sunday || d > time.Saturday {
			return &ValidationError{Field: "working_days", Message: "unknown weekday"}
		}
		if seen[d] {
			return &ValidationError{Field: "working_days", Message: "duplicate weekday"}
		}
		seen[d] = true
	}
	return nil
}

// =============================================================================
// ROLES AND ENUMS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

type LeaveType string

const (
	LeaveVacation LeaveType = "VACATION"
	LeaveSick     LeaveType = "SICK"
	LeavePersonal LeaveType = "PERSONAL"
	LeaveOther    LeaveType = "OTHER"
)

// ValidateLeaveType rejects values outside the closed set.
func ValidateLeaveType(t LeaveType) error {
	switch t {
	case LeaveVacation, LeaveSick, LeavePersonal, LeaveOther:
		return nil
	}
	return &ValidationError{Field: "type", Message: "unknown leave type: " + string(t)}
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// Terminal reports whether a status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo is the closed state machine: PENDING may move to APPROVED
// or REJECTED, nothing else moves anywhere.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// =============================================================================
// ENTITIES
// =============================================================================

// Organization is the tenant. All other entities belong to exactly one.
type Organization struct {
	ID          OrgID
	Name        string
	Website     string
	Logo        string
	WorkingDays WorkingDays

	// DefaultAllowanceDays seeds new members enrolled via invitation code.
	// Zero means "use the engine configuration default".
	DefaultAllowanceDays int

	CreatedAt time.Time
}

// Member is an enrolled person. The balance is mutated only by the lifecycle
// manager's approval path and the explicit admin override; it may go negative
// after disputed corrections but is never constructed negative.
type Member struct {
	ID             MemberID
	OrganizationID OrgID
	ExternalID     string // opaque identity-provider key
	FirstName      string
	LastName       string
	Email          string
	Role           Role
	Department     string
	AllowanceDays  int
	CreatedAt      time.Time
}

// Holiday is an organization-managed exclusion day. Recurring holidays are
// observed every year on their month/day regardless of the stored year.
type Holiday struct {
	ID             HolidayID
	OrganizationID OrgID
	Name           string
	Date           Date
	Recurring      bool
	CreatedAt      time.Time
}

// LeaveRequest is a dated leave request. ChargeableDays is computed once at
// creation from the exclusion rules in effect at that time and never
// recomputed. Status transitions are one-way and terminal; only notes and
// the approver may be written, at the moment of transition.
type LeaveRequest struct {
	ID             RequestID
	MemberID       MemberID
	OrganizationID OrgID
	ApproverID     MemberID // empty until a transition
	StartDate      Date
	EndDate        Date
	Type           LeaveType
	Status         RequestStatus
	ChargeableDays int
	Reason         string // set by the requester
	Notes          string // set by the approver
	CreatedAt      time.Time
}

// InvitationCode is a single-use, system-wide unique 6-digit enrollment code
// scoped to one organization. Used flips false->true exactly once.
type InvitationCode struct {
	ID             CodeID
	OrganizationID OrgID
	Code           string
	Used           bool
	CreatedAt      time.Time
}

// =============================================================================
// IDENTITY - Explicit caller context
// =============================================================================

// Identity is the resolved caller. The adapter layer resolves an external
// identity key to this value and passes it into every engine operation; a
// zero Identity means "no resolvable identity" and fails authentication.
type Identity struct {
	MemberID       MemberID
	OrganizationID OrgID
	Role           Role
}

func (id Identity) IsZero() bool  { return id.MemberID == "" }
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// IdentityOf builds the Identity for a member record.
func IdentityOf(m *Member) Identity {
	return Identity{MemberID: m.ID, OrganizationID: m.OrganizationID, Role: m.Role}
}
