package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ENTRY CONSTRUCTORS
// =============================================================================

func TestDebitEntry_NegatesChargeableDays(t *testing.T) {
	req := &leave.LeaveRequest{
		ID:             "req-1",
		MemberID:       "emp-1",
		OrganizationID: "org-1",
		ChargeableDays: 5,
	}

	entry := leave.DebitEntry(req, "adm-1", testNow)

	assert.Equal(t, "-5", entry.Delta.String())
	assert.Equal(t, leave.EntryDebit, entry.Kind)
	assert.Equal(t, "req-1", entry.ReferenceID)
	assert.Equal(t, leave.MemberID("adm-1"), entry.ActorID)
}

func TestAdjustmentEntry_SignedDelta(t *testing.T) {
	member := &leave.Member{ID: "emp-1", OrganizationID: "org-1", AllowanceDays: 20}

	up := leave.AdjustmentEntry(member, 28, "adm-1", testNow)
	assert.Equal(t, "8", up.Delta.String())

	down := leave.AdjustmentEntry(member, 15, "adm-1", testNow)
	assert.Equal(t, "-5", down.Delta.String())
}

// =============================================================================
// REPLAY
// =============================================================================

func TestReplay_SumsDeltas(t *testing.T) {
	member := &leave.Member{ID: "emp-1", OrganizationID: "org-1", AllowanceDays: 25}
	req := &leave.LeaveRequest{ID: "req-1", MemberID: "emp-1", OrganizationID: "org-1", ChargeableDays: 5}

	entries := []leave.AllowanceEntry{
		leave.GrantEntry(member, 25, "enrollment", testNow),
		leave.DebitEntry(req, "adm-1", testNow),
	}

	assert.True(t, leave.Replay(entries).Equal(decimal.NewFromInt(20)))
}

func TestReplay_Empty_IsZero(t *testing.T) {
	assert.True(t, leave.Replay(nil).IsZero())
}

func TestReplay_MatchesStoredBalance(t *testing.T) {
	// GIVEN: A member whose balance moved through grant, debit and
	//        adjustment
	// THEN: Replaying the ledger reproduces the stored balance exactly

	f := newFixture(t, leave.Config{})
	ctx := context.Background()
	admin := leave.NewAdminService(f.store, leave.Config{Now: func() time.Time { return testNow }})

	req := f.submit(t, date(2024, time.April, 1), date(2024, time.April, 5))
	_, err := f.requests.Transition(ctx, f.admin, req.ID, leave.StatusApproved, "")
	require.NoError(t, err)

	_, err = admin.OverrideAllowance(ctx, f.admin, f.employee.MemberID, 30)
	require.NoError(t, err)

	entries, err := f.store.ListAllowanceEntries(ctx, f.employee.MemberID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	balance := f.balance(t, f.employee.MemberID)
	assert.True(t, leave.Replay(entries).Equal(decimal.NewFromInt(int64(balance))),
		"replayed %s, stored %d", leave.Replay(entries), balance)
}

// =============================================================================
// HISTORY ACCESS
// =============================================================================

func TestHistory_SelfAlwaysAllowed(t *testing.T) {
	f := newFixture(t, leave.Config{})
	ledger := leave.NewAllowanceLedger(f.store)

	entries, err := ledger.History(context.Background(), f.employee, f.employee.MemberID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.EntryGrant, entries[0].Kind)
}

func TestHistory_AdminReadsAnyMemberInOrg(t *testing.T) {
	f := newFixture(t, leave.Config{})
	ledger := leave.NewAllowanceLedger(f.store)

	_, err := ledger.History(context.Background(), f.admin, f.employee.MemberID)
	assert.NoError(t, err)
}

func TestHistory_EmployeeCannotReadOthers(t *testing.T) {
	f := newFixture(t, leave.Config{})
	ledger := leave.NewAllowanceLedger(f.store)

	_, err := ledger.History(context.Background(), f.employee, f.admin.MemberID)
	assert.ErrorIs(t, err, leave.ErrAuthorization)
}

func TestHistory_CrossTenant_Forbidden(t *testing.T) {
	f := newFixture(t, leave.Config{})
	ledger := leave.NewAllowanceLedger(f.store)

	outsider := leave.Identity{MemberID: "adm-x", OrganizationID: "org-x", Role: leave.RoleAdmin}
	_, err := ledger.History(context.Background(), outsider, f.employee.MemberID)
	assert.ErrorIs(t, err, leave.ErrAuthorization)
}
