// Package store provides an in-memory leave.Store implementation for tests
// and development. A single mutex serializes mutations, so the same
// compare-and-set guarantees the SQLite store gets from transactions hold
// here under concurrent callers.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	orgs     map[leave.OrgID]leave.Organization
	members  map[leave.MemberID]leave.Member
	holidays map[leave.HolidayID]leave.Holiday
	requests map[leave.RequestID]leave.LeaveRequest
	codes    map[string]leave.InvitationCode // keyed by code value (unique)
	entries  []leave.AllowanceEntry
}

func NewMemory() *Memory {
	return &Memory{
		orgs:     make(map[leave.OrgID]leave.Organization),
		members:  make(map[leave.MemberID]leave.Member),
		holidays: make(map[leave.HolidayID]leave.Holiday),
		requests: make(map[leave.RequestID]leave.LeaveRequest),
		codes:    make(map[string]leave.InvitationCode),
	}
}

var _ leave.Store = (*Memory)(nil)

// =============================================================================
// ORGANIZATIONS
// =============================================================================

func (m *Memory) GetOrganization(_ context.Context, id leave.OrgID) (*leave.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	org, ok := m.orgs[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "organization", ID: string(id)}
	}
	return &org, nil
}

func (m *Memory) UpdateOrganization(_ context.Context, org *leave.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[org.ID]; !ok {
		return &leave.NotFoundError{Kind: "organization", ID: string(org.ID)}
	}
	m.orgs[org.ID] = *org
	return nil
}

func (m *Memory) BootstrapOrganization(_ context.Context, org *leave.Organization, admin *leave.Member, grant leave.AllowanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.externalIDTaken(admin.ExternalID) {
		return errExternalIDTaken
	}
	m.orgs[org.ID] = *org
	m.members[admin.ID] = *admin
	m.entries = append(m.entries, grant)
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

func (m *Memory) GetMember(_ context.Context, id leave.MemberID) (*leave.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	member, ok := m.members[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "member", ID: string(id)}
	}
	return &member, nil
}

// errExternalIDTaken mirrors the SQLite unique index on members.external_id.
var errExternalIDTaken = &leave.ValidationError{Field: "external_id", Message: "identity is already enrolled"}

// externalIDTaken must be called with the lock held.
func (m *Memory) externalIDTaken(externalID string) bool {
	for _, member := range m.members {
		if member.ExternalID == externalID {
			return true
		}
	}
	return false
}

func (m *Memory) GetMemberByExternalID(_ context.Context, externalID string) (*leave.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, member := range m.members {
		if member.ExternalID == externalID {
			out := member
			return &out, nil
		}
	}
	return nil, &leave.NotFoundError{Kind: "member", ID: externalID}
}

func (m *Memory) ListMembers(_ context.Context, orgID leave.OrgID) ([]leave.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Member
	for _, member := range m.members {
		if member.OrganizationID == orgID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) OverrideAllowance(_ context.Context, id leave.MemberID, days int, entry leave.AllowanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[id]
	if !ok {
		return &leave.NotFoundError{Kind: "member", ID: string(id)}
	}
	member.AllowanceDays = days
	m.members[id] = member
	m.entries = append(m.entries, entry)
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) CreateHoliday(_ context.Context, h *leave.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.holidays[h.ID] = *h
	return nil
}

func (m *Memory) GetHoliday(_ context.Context, id leave.HolidayID) (*leave.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.holidays[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "holiday", ID: string(id)}
	}
	return &h, nil
}

func (m *Memory) UpdateHoliday(_ context.Context, h *leave.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holidays[h.ID]; !ok {
		return &leave.NotFoundError{Kind: "holiday", ID: string(h.ID)}
	}
	m.holidays[h.ID] = *h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id leave.HolidayID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holidays[id]; !ok {
		return &leave.NotFoundError{Kind: "holiday", ID: string(id)}
	}
	delete(m.holidays, id)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context, orgID leave.OrgID) ([]leave.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Holiday
	for _, h := range m.holidays {
		if h.OrganizationID == orgID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	return &r, nil
}

func (m *Memory) ListRequestsByMember(_ context.Context, memberID leave.MemberID) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	// Upcoming view: ascending by start date.
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) ListRequestsByOrganization(_ context.Context, orgID leave.OrgID) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	// Organization-wide view: most recent submission first.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// TransitionRequest applies the status CAS and, on approval, the balance
// debit and ledger append under the same lock - the in-memory equivalent of
// the SQLite transaction.
func (m *Memory) TransitionRequest(_ context.Context, id leave.RequestID, approver leave.MemberID, status leave.RequestStatus, notes string, debit *leave.AllowanceEntry) (*leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if r.Status != leave.StatusPending {
		return nil, &leave.StateError{RequestID: id, Status: r.Status}
	}

	r.Status = status
	r.Notes = notes
	r.ApproverID = approver

	if debit != nil {
		member, ok := m.members[r.MemberID]
		if !ok {
			return nil, &leave.NotFoundError{Kind: "member", ID: string(r.MemberID)}
		}
		member.AllowanceDays -= r.ChargeableDays
		m.members[r.MemberID] = member
		m.entries = append(m.entries, *debit)
	}

	m.requests[id] = r
	return &r, nil
}

// =============================================================================
// INVITATION CODES
// =============================================================================

func (m *Memory) InsertCode(_ context.Context, c *leave.InvitationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.codes[c.Code]; exists {
		return leave.ErrCodeTaken
	}
	m.codes[c.Code] = *c
	return nil
}

func (m *Memory) GetCodeByValue(_ context.Context, code string) (*leave.InvitationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.codes[code]
	if !ok {
		return nil, leave.ErrInvalidCode
	}
	return &c, nil
}

func (m *Memory) ListCodes(_ context.Context, orgID leave.OrgID) ([]leave.InvitationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.InvitationCode
	for _, c := range m.codes {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// RedeemCode is the test-and-set on used=false plus member creation, under
// one lock so concurrent redemptions of the same code see exactly one
// winner.
func (m *Memory) RedeemCode(_ context.Context, code string, member *leave.Member, grant leave.AllowanceEntry) (*leave.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.codes[code]
	if !ok || c.Used {
		return nil, leave.ErrInvalidCode
	}
	if m.externalIDTaken(member.ExternalID) {
		return nil, errExternalIDTaken
	}

	c.Used = true
	m.codes[code] = c
	m.members[member.ID] = *member
	m.entries = append(m.entries, grant)

	out := *member
	return &out, nil
}

// =============================================================================
// ALLOWANCE ENTRIES
// =============================================================================

func (m *Memory) ListAllowanceEntries(_ context.Context, memberID leave.MemberID) ([]leave.AllowanceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.AllowanceEntry
	for _, e := range m.entries {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	return out, nil
}
