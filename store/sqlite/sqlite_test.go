package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedOrg(t *testing.T, store *sqlite.Store) (*leave.Organization, *leave.Member) {
	t.Helper()
	org := &leave.Organization{
		ID:          "org-1",
		Name:        "Acme",
		WorkingDays: leave.DefaultWorkingDays(),
		CreatedAt:   testNow,
	}
	admin := &leave.Member{
		ID:             "adm-1",
		OrganizationID: org.ID,
		ExternalID:     "ext-admin",
		FirstName:      "Ada",
		LastName:       "Admin",
		Role:           leave.RoleAdmin,
		AllowanceDays:  25,
		CreatedAt:      testNow,
	}
	grant := leave.GrantEntry(admin, 25, "enrollment", testNow)
	require.NoError(t, store.BootstrapOrganization(context.Background(), org, admin, grant))
	return org, admin
}

func seedRequest(t *testing.T, store *sqlite.Store, id string, days int) *leave.LeaveRequest {
	t.Helper()
	req := &leave.LeaveRequest{
		ID:             leave.RequestID(id),
		MemberID:       "adm-1",
		OrganizationID: "org-1",
		StartDate:      leave.NewDate(2024, time.April, 1),
		EndDate:        leave.NewDate(2024, time.April, 7),
		Type:           leave.LeaveVacation,
		Status:         leave.StatusPending,
		ChargeableDays: days,
		CreatedAt:      testNow,
	}
	require.NoError(t, store.CreateRequest(context.Background(), req))
	return req
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestBootstrap_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	org, admin := seedOrg(t, store)

	gotOrg, err := store.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Name, gotOrg.Name)
	assert.Equal(t, leave.DefaultWorkingDays(), gotOrg.WorkingDays)

	gotMember, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ExternalID, gotMember.ExternalID)
	assert.Equal(t, 25, gotMember.AllowanceDays)

	byExt, err := store.GetMemberByExternalID(ctx, "ext-admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byExt.ID)

	entries, err := store.ListAllowanceEntries(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "25", entries[0].Delta.String())
}

func TestGetOrganization_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrganization(context.Background(), "nope")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestUpdateOrganization_PersistsWorkingDays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	org, _ := seedOrg(t, store)

	org.WorkingDays = leave.WorkingDays{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	org.DefaultAllowanceDays = 30
	require.NoError(t, store.UpdateOrganization(ctx, org))

	got, err := store.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.WorkingDays, got.WorkingDays)
	assert.Equal(t, 30, got.DefaultAllowanceDays)
}

func TestHolidays_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	h := &leave.Holiday{
		ID:             "hol-1",
		OrganizationID: "org-1",
		Name:           "founders day",
		Date:           leave.NewDate(2024, time.July, 4),
		CreatedAt:      testNow,
	}
	require.NoError(t, store.CreateHoliday(ctx, h))

	h.Recurring = true
	require.NoError(t, store.UpdateHoliday(ctx, h))

	got, err := store.GetHoliday(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, got.Recurring)
	assert.Equal(t, leave.NewDate(2024, time.July, 4), got.Date)

	require.NoError(t, store.DeleteHoliday(ctx, h.ID))
	_, err = store.GetHoliday(ctx, h.ID)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// REQUEST ORDERING
// =============================================================================

func TestListRequestsByMember_AscendingByStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	seedRequest(t, store, "req-1", 3) // starts April 1
	require.NoError(t, store.CreateRequest(ctx, &leave.LeaveRequest{
		ID: "req-2", MemberID: "adm-1", OrganizationID: "org-1",
		StartDate: leave.NewDate(2024, time.March, 10), EndDate: leave.NewDate(2024, time.March, 12),
		Type: leave.LeaveVacation, Status: leave.StatusPending, ChargeableDays: 3, CreatedAt: testNow,
	}))

	requests, err := store.ListRequestsByMember(ctx, "adm-1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, leave.RequestID("req-2"), requests[0].ID)
	assert.Equal(t, leave.RequestID("req-1"), requests[1].ID)
}

func TestListRequestsByOrganization_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	seedRequest(t, store, "req-1", 3)
	require.NoError(t, store.CreateRequest(ctx, &leave.LeaveRequest{
		ID: "req-2", MemberID: "adm-1", OrganizationID: "org-1",
		StartDate: leave.NewDate(2024, time.June, 1), EndDate: leave.NewDate(2024, time.June, 2),
		Type: leave.LeaveVacation, Status: leave.StatusPending, ChargeableDays: 2,
		CreatedAt: testNow.Add(time.Hour),
	}))

	requests, err := store.ListRequestsByOrganization(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, leave.RequestID("req-2"), requests[0].ID)
}

// =============================================================================
// TRANSITION ATOMICITY
// =============================================================================

func TestTransitionRequest_ApproveDebitsInSameTransaction(t *testing.T) {
	// GIVEN: A pending five-day request and a 25-day balance
	// WHEN: Transitioning to APPROVED with a debit entry
	// THEN: Status, balance and ledger all move together

	store := newTestStore(t)
	ctx := context.Background()
	_, admin := seedOrg(t, store)
	req := seedRequest(t, store, "req-1", 5)

	debit := leave.DebitEntry(req, admin.ID, testNow)
	updated, err := store.TransitionRequest(ctx, req.ID, admin.ID, leave.StatusApproved, "ok", &debit)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, updated.Status)
	assert.Equal(t, admin.ID, updated.ApproverID)

	member, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, member.AllowanceDays)

	entries, err := store.ListAllowanceEntries(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, leave.EntryDebit, entries[1].Kind)
}

func TestTransitionRequest_SecondTransition_StateError(t *testing.T) {
	// GIVEN: An approved request
	// WHEN: Transitioning again
	// THEN: StateError; the balance is not debited twice

	store := newTestStore(t)
	ctx := context.Background()
	_, admin := seedOrg(t, store)
	req := seedRequest(t, store, "req-1", 5)

	debit := leave.DebitEntry(req, admin.ID, testNow)
	_, err := store.TransitionRequest(ctx, req.ID, admin.ID, leave.StatusApproved, "", &debit)
	require.NoError(t, err)

	again := leave.DebitEntry(req, admin.ID, testNow)
	_, err = store.TransitionRequest(ctx, req.ID, admin.ID, leave.StatusApproved, "", &again)

	var state *leave.StateError
	require.ErrorAs(t, err, &state)
	assert.Equal(t, leave.StatusApproved, state.Status)

	member, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, member.AllowanceDays)
}

func TestTransitionRequest_ConcurrentApprove_OneWinner(t *testing.T) {
	// GIVEN: A pending five-day request
	// WHEN: Eight goroutines race the approval compare-and-set
	// THEN: Exactly one commits; the balance is debited exactly once

	store := newTestStore(t)
	ctx := context.Background()
	_, admin := seedOrg(t, store)
	req := seedRequest(t, store, "req-1", 5)

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			debit := leave.DebitEntry(req, admin.ID, testNow)
			_, err := store.TransitionRequest(ctx, req.ID, admin.ID, leave.StatusApproved, "", &debit)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, leave.ErrInvalidState)
	}
	assert.Equal(t, 1, wins)

	member, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, member.AllowanceDays)

	entries, err := store.ListAllowanceEntries(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestTransitionRequest_RejectWithoutDebit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, admin := seedOrg(t, store)
	req := seedRequest(t, store, "req-1", 5)

	updated, err := store.TransitionRequest(ctx, req.ID, admin.ID, leave.StatusRejected, "no", nil)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, updated.Status)

	member, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, member.AllowanceDays)
}

func TestTransitionRequest_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)
	seedOrg(t, store)

	_, err := store.TransitionRequest(context.Background(), "nope", "adm-1", leave.StatusApproved, "", nil)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// INVITATION CODES
// =============================================================================

func TestInsertCode_DuplicateValue_CodeTaken(t *testing.T) {
	// GIVEN: A persisted code value
	// WHEN: Inserting the same value again, even for another organization
	// THEN: ErrCodeTaken from the unique index

	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	require.NoError(t, store.InsertCode(ctx, &leave.InvitationCode{
		ID: "code-1", OrganizationID: "org-1", Code: "123456", CreatedAt: testNow,
	}))

	err := store.InsertCode(ctx, &leave.InvitationCode{
		ID: "code-2", OrganizationID: "org-2", Code: "123456", CreatedAt: testNow,
	})
	assert.ErrorIs(t, err, leave.ErrCodeTaken)
}

func TestGetCodeByValue_Missing_InvalidCode(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCodeByValue(context.Background(), "999999")
	assert.ErrorIs(t, err, leave.ErrInvalidCode)
}

func TestRedeemCode_ConsumesOnce(t *testing.T) {
	// GIVEN: An unused code
	// WHEN: Redeeming twice with different members
	// THEN: The first wins; the second sees ErrInvalidCode and creates
	//       nothing

	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	require.NoError(t, store.InsertCode(ctx, &leave.InvitationCode{
		ID: "code-1", OrganizationID: "org-1", Code: "123456", CreatedAt: testNow,
	}))

	first := &leave.Member{
		ID: "emp-1", OrganizationID: "org-1", ExternalID: "ext-1",
		FirstName: "A", LastName: "One", Role: leave.RoleEmployee,
		AllowanceDays: 25, CreatedAt: testNow,
	}
	_, err := store.RedeemCode(ctx, "123456", first, leave.GrantEntry(first, 25, "code-1", testNow))
	require.NoError(t, err)

	second := &leave.Member{
		ID: "emp-2", OrganizationID: "org-1", ExternalID: "ext-2",
		FirstName: "B", LastName: "Two", Role: leave.RoleEmployee,
		AllowanceDays: 25, CreatedAt: testNow,
	}
	_, err = store.RedeemCode(ctx, "123456", second, leave.GrantEntry(second, 25, "code-1", testNow))
	assert.ErrorIs(t, err, leave.ErrInvalidCode)

	_, err = store.GetMember(ctx, "emp-2")
	assert.ErrorIs(t, err, leave.ErrNotFound)

	code, err := store.GetCodeByValue(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, code.Used)
}

func TestRedeemCode_DuplicateExternalID_ValidationError(t *testing.T) {
	// GIVEN: An already enrolled external identity
	// WHEN: Redeeming a fresh code with the same identity
	// THEN: Validation error; the transaction rolls back and the code
	//       stays unused

	store := newTestStore(t)
	ctx := context.Background()
	seedOrg(t, store)

	require.NoError(t, store.InsertCode(ctx, &leave.InvitationCode{
		ID: "code-1", OrganizationID: "org-1", Code: "123456", CreatedAt: testNow,
	}))

	duplicate := &leave.Member{
		ID: "emp-1", OrganizationID: "org-1", ExternalID: "ext-admin",
		FirstName: "A", LastName: "One", Role: leave.RoleEmployee,
		AllowanceDays: 25, CreatedAt: testNow,
	}
	_, err := store.RedeemCode(ctx, "123456", duplicate, leave.GrantEntry(duplicate, 25, "code-1", testNow))
	assert.ErrorIs(t, err, leave.ErrValidation)

	_, err = store.GetMember(ctx, "emp-1")
	assert.ErrorIs(t, err, leave.ErrNotFound)

	code, err := store.GetCodeByValue(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, code.Used)
}

// =============================================================================
// ALLOWANCE OVERRIDE
// =============================================================================

func TestOverrideAllowance_BalanceAndEntryTogether(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, admin := seedOrg(t, store)

	entry := leave.AdjustmentEntry(admin, 30, admin.ID, testNow)
	require.NoError(t, store.OverrideAllowance(ctx, admin.ID, 30, entry))

	member, err := store.GetMember(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, member.AllowanceDays)

	entries, err := store.ListAllowanceEntries(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "5", entries[1].Delta.String())
}

func TestOverrideAllowance_MissingMember_NotFound(t *testing.T) {
	store := newTestStore(t)
	seedOrg(t, store)

	member := &leave.Member{ID: "nobody", OrganizationID: "org-1", AllowanceDays: 0}
	err := store.OverrideAllowance(context.Background(), "nobody", 10,
		leave.AdjustmentEntry(member, 10, "adm-1", testNow))
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// ROW CORRUPTION
// =============================================================================

func TestGetMember_CorruptTimestamp_Unavailable(t *testing.T) {
	// GIVEN: A member row whose created_at no longer parses
	// WHEN: Reading it back
	// THEN: A store failure, not a silent zero timestamp

	path := filepath.Join(t.TempDir(), "leave.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	_, admin := seedOrg(t, store)

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	_, err = raw.ExecContext(ctx, `UPDATE members SET created_at = 'garbage' WHERE id = ?`, string(admin.ID))
	require.NoError(t, err)

	_, err = store.GetMember(ctx, admin.ID)
	assert.ErrorIs(t, err, leave.ErrUnavailable)
}
