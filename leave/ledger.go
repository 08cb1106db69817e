/*
ledger.go - Allowance balance audit trail

PURPOSE:
  The remaining balance lives on the Member row and is mutated in exactly
  two places: the approval debit inside the lifecycle manager's transition,
  and the explicit administrative override. Every mutation also appends an
  immutable AllowanceEntry in the same store transaction, so the balance is
  always reconstructible by replay.

INVARIANT:
  For any member, the initial grant plus the sum of subsequent entry deltas
  equals the stored balance. Entries are never modified or deleted.

PRECISION:
  Entry deltas are decimal to keep replay arithmetic exact; request debits
  are whole days, administrative corrections need not be.

SEE ALSO:
  - lifecycle.go: creates debit entries on approval
  - admin.go: creates adjustment entries on override
  - invitation.go: creates the initial grant entry at enrollment
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY - Immutable balance change record
// =============================================================================

type EntryKind string

const (
	EntryGrant      EntryKind = "grant"      // initial allowance at enrollment
	EntryDebit      EntryKind = "debit"      // approved leave request
	EntryAdjustment EntryKind = "adjustment" // explicit admin override
)

// AllowanceEntry records one balance change. ReferenceID points at the
// originating record (a request ID for debits, a code ID for grants).
type AllowanceEntry struct {
	ID             EntryID
	MemberID       MemberID
	OrganizationID OrgID
	Delta          decimal.Decimal
	Kind           EntryKind
	ReferenceID    string
	Reason         string
	ActorID        MemberID // who caused the change; empty for self-enrollment
	CreatedAt      time.Time
}

// GrantEntry builds the initial-allowance entry written when a member is
// created.
func GrantEntry(m *Member, days int, reference string, at time.Time) AllowanceEntry {
	return AllowanceEntry{
		ID:             EntryID(uuid.NewString()),
		MemberID:       m.ID,
		OrganizationID: m.OrganizationID,
		Delta:          decimal.NewFromInt(int64(days)),
		Kind:           EntryGrant,
		ReferenceID:    reference,
		Reason:         "initial allowance",
		CreatedAt:      at,
	}
}

// DebitEntry builds the approval debit for a request's chargeable days.
func DebitEntry(r *LeaveRequest, approver MemberID, at time.Time) AllowanceEntry {
	return AllowanceEntry{
		ID:             EntryID(uuid.NewString()),
		MemberID:       r.MemberID,
		OrganizationID: r.OrganizationID,
		Delta:          decimal.NewFromInt(int64(r.ChargeableDays)).Neg(),
		Kind:           EntryDebit,
		ReferenceID:    string(r.ID),
		Reason:         "approved leave request",
		ActorID:        approver,
		CreatedAt:      at,
	}
}

// AdjustmentEntry builds the delta for an administrative override from the
// old balance to the new one.
func AdjustmentEntry(m *Member, newDays int, actor MemberID, at time.Time) AllowanceEntry {
	delta := decimal.NewFromInt(int64(newDays)).Sub(decimal.NewFromInt(int64(m.AllowanceDays)))
	return AllowanceEntry{
		ID:             EntryID(uuid.NewString()),
		MemberID:       m.ID,
		OrganizationID: m.OrganizationID,
		Delta:          delta,
		Kind:           EntryAdjustment,
		ReferenceID:    string(m.ID),
		Reason:         "administrative override",
		ActorID:        actor,
		CreatedAt:      at,
	}
}

// Replay sums entry deltas. With a complete history this equals the stored
// balance.
func Replay(entries []AllowanceEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Delta)
	}
	return total
}

// =============================================================================
// LEDGER SERVICE - Read-only history projection
// =============================================================================

// AllowanceLedger exposes the audit trail. It has no write operations; all
// entries are appended inside the store's atomic mutations.
type AllowanceLedger struct {
	store Store
}

func NewAllowanceLedger(store Store) *AllowanceLedger {
	return &AllowanceLedger{store: store}
}

// History returns a member's entries in append order. Members may read their
// own history; admins may read any member of their organization.
func (l *AllowanceLedger) History(ctx context.Context, actor Identity, memberID MemberID) ([]AllowanceEntry, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	member, err := l.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.OrganizationID != actor.OrganizationID {
		return nil, ErrAuthorization
	}
	if actor.MemberID != memberID && !actor.IsAdmin() {
		return nil, ErrAuthorization
	}
	return l.store.ListAllowanceEntries(ctx, memberID)
}
