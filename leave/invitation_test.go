package leave_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

func newInvitationService(t *testing.T, cfg leave.Config) (*leave.InvitationService, *fixture) {
	t.Helper()
	f := newFixture(t, cfg)
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	return leave.NewInvitationService(f.store, cfg), f
}

// =============================================================================
// ISSUANCE
// =============================================================================

func TestIssue_SixNumericDigits(t *testing.T) {
	svc, f := newInvitationService(t, leave.Config{})

	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	assert.Len(t, code.Code, 6)
	for _, r := range code.Code {
		assert.True(t, r >= '0' && r <= '9')
	}
	assert.False(t, code.Used)
	assert.Equal(t, f.org, code.OrganizationID)
}

func TestIssue_RetriesOnCollision(t *testing.T) {
	// GIVEN: A randomness source that repeats a taken value twice before
	//        producing a fresh one
	// WHEN: Issuing
	// THEN: The fresh value is persisted; the collisions are invisible

	svc, f := newInvitationService(t, leave.Config{})

	// "123456" is already taken by the fixture's redeemed code.
	draws := []string{"123456", "123456", "654321"}
	i := 0
	svc.WithCodeSource(func() string {
		code := draws[i]
		i++
		return code
	})

	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Equal(t, "654321", code.Code)
}

func TestIssue_ExhaustedAttempts_Unavailable(t *testing.T) {
	// GIVEN: A randomness source that always collides
	// WHEN: Issuing
	// THEN: The bounded retry loop gives up with a retryable error

	svc, f := newInvitationService(t, leave.Config{CodeAttempts: 3})
	svc.WithCodeSource(func() string { return "123456" })

	_, err := svc.Issue(context.Background(), f.admin)

	assert.ErrorIs(t, err, leave.ErrUnavailable)
	assert.True(t, leave.IsRetryable(err))
}

func TestIssue_NonAdmin_Forbidden(t *testing.T) {
	svc, f := newInvitationService(t, leave.Config{})

	_, err := svc.Issue(context.Background(), f.employee)

	assert.ErrorIs(t, err, leave.ErrAuthorization)
}

func TestIssue_Concurrent_AllUnique(t *testing.T) {
	// GIVEN: Many goroutines issuing codes at once
	// THEN: Every persisted code value is distinct

	svc, f := newInvitationService(t, leave.Config{})

	const n = 50
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := svc.Issue(context.Background(), f.admin)
			if err == nil {
				results[i] = code.Code
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, code := range results {
		if code == "" {
			continue
		}
		assert.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true
	}
}

// =============================================================================
// REDEMPTION
// =============================================================================

func TestRedeem_CreatesEmployee_ConsumesCode(t *testing.T) {
	// GIVEN: An unused code
	// WHEN: Redeeming with valid profile data
	// THEN: An EMPLOYEE member exists with the default allowance and the
	//       code is permanently consumed

	svc, f := newInvitationService(t, leave.Config{})
	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	member, err := svc.Redeem(context.Background(), leave.RedeemInput{
		Code:       code.Code,
		ExternalID: "ext-new",
		FirstName:  "Nia",
		LastName:   "Newhire",
		Department: "ops",
	})
	require.NoError(t, err)

	assert.Equal(t, leave.RoleEmployee, member.Role)
	assert.Equal(t, f.org, member.OrganizationID)
	assert.Equal(t, 25, member.AllowanceDays)

	stored, err := f.store.GetCodeByValue(context.Background(), code.Code)
	require.NoError(t, err)
	assert.True(t, stored.Used)
}

func TestRedeem_OrganizationDefault_Overrides(t *testing.T) {
	// GIVEN: The organization sets its own default allowance
	// WHEN: Redeeming
	// THEN: The organization's value wins over the engine default

	svc, f := newInvitationService(t, leave.Config{})

	org, err := f.store.GetOrganization(context.Background(), f.org)
	require.NoError(t, err)
	org.DefaultAllowanceDays = 30
	require.NoError(t, f.store.UpdateOrganization(context.Background(), org))

	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	member, err := svc.Redeem(context.Background(), leave.RedeemInput{
		Code:       code.Code,
		ExternalID: "ext-new",
		FirstName:  "Nia",
		LastName:   "Newhire",
	})
	require.NoError(t, err)
	assert.Equal(t, 30, member.AllowanceDays)
}

func TestRedeem_GrantRecorded(t *testing.T) {
	// GIVEN: A successful redemption
	// THEN: The member's ledger opens with one grant entry matching the
	//       starting allowance

	svc, f := newInvitationService(t, leave.Config{})
	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	member, err := svc.Redeem(context.Background(), leave.RedeemInput{
		Code: code.Code, ExternalID: "ext-new", FirstName: "Nia", LastName: "Newhire",
	})
	require.NoError(t, err)

	entries, err := f.store.ListAllowanceEntries(context.Background(), member.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.EntryGrant, entries[0].Kind)
	assert.Equal(t, "25", entries[0].Delta.String())
}

func TestRedeem_AlreadyEnrolledIdentity_Rejected(t *testing.T) {
	// GIVEN: An external identity that already has a member record
	// WHEN: Redeeming a fresh code with the same identity
	// THEN: Validation error; no duplicate member, the code stays unused

	svc, f := newInvitationService(t, leave.Config{})
	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), leave.RedeemInput{
		Code:       code.Code,
		ExternalID: "ext-emp", // the fixture employee
		FirstName:  "Evan",
		LastName:   "Again",
	})
	assert.ErrorIs(t, err, leave.ErrValidation)

	members, err := f.store.ListMembers(context.Background(), f.org)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	stored, err := f.store.GetCodeByValue(context.Background(), code.Code)
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestRedeem_UnknownCode_Unauthorized(t *testing.T) {
	svc, _ := newInvitationService(t, leave.Config{})

	_, err := svc.Redeem(context.Background(), leave.RedeemInput{
		Code: "999999", ExternalID: "ext-new", FirstName: "Nia", LastName: "Newhire",
	})

	assert.ErrorIs(t, err, leave.ErrInvalidCode)
}

func TestRedeem_UsedCode_Unauthorized(t *testing.T) {
	svc, f := newInvitationService(t, leave.Config{})
	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), leave.RedeemInput{
		Code: code.Code, ExternalID: "ext-a", FirstName: "A", LastName: "One",
	})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), leave.RedeemInput{
		Code: code.Code, ExternalID: "ext-b", FirstName: "B", LastName: "Two",
	})
	assert.ErrorIs(t, err, leave.ErrInvalidCode)
}

func TestRedeem_MalformedCode_Validation(t *testing.T) {
	svc, _ := newInvitationService(t, leave.Config{})

	for _, code := range []string{"", "12345", "1234567", "12345a"} {
		_, err := svc.Redeem(context.Background(), leave.RedeemInput{
			Code: code, ExternalID: "ext-new", FirstName: "Nia", LastName: "Newhire",
		})
		assert.ErrorIs(t, err, leave.ErrValidation, "code %q", code)
	}
}

func TestRedeem_Concurrent_ExactlyOneWinner(t *testing.T) {
	// GIVEN: Many goroutines racing the same code
	// THEN: Exactly one member is created

	svc, f := newInvitationService(t, leave.Config{})
	code, err := svc.Issue(context.Background(), f.admin)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	wins := make(chan leave.MemberID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			member, err := svc.Redeem(context.Background(), leave.RedeemInput{
				Code:       code.Code,
				ExternalID: fmt.Sprintf("ext-race-%d", i),
				FirstName:  "Race",
				LastName:   fmt.Sprintf("Runner%d", i),
			})
			if err == nil {
				wins <- member.ID
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

// =============================================================================
// ADMIN ENROLLMENT
// =============================================================================

func TestEnrollAdmin_BootstrapsTenant(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Enrolling an admin with a company name
	// THEN: Organization with Monday-Friday working days, ADMIN member
	//       with the default allowance, and an opening grant entry

	mem := store.NewMemory()
	svc := leave.NewInvitationService(mem, leave.Config{Now: func() time.Time { return testNow }})

	org, member, err := svc.EnrollAdmin(context.Background(), leave.EnrollAdminInput{
		ExternalID:  "ext-founder",
		FirstName:   "Fay",
		LastName:    "Founder",
		CompanyName: "Initech",
	})
	require.NoError(t, err)

	assert.Equal(t, "Initech", org.Name)
	assert.Equal(t, leave.DefaultWorkingDays(), org.WorkingDays)
	assert.Equal(t, leave.RoleAdmin, member.Role)
	assert.Equal(t, 25, member.AllowanceDays)

	entries, err := mem.ListAllowanceEntries(context.Background(), member.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.EntryGrant, entries[0].Kind)
}

func TestEnrollAdmin_MissingCompany_Validation(t *testing.T) {
	mem := store.NewMemory()
	svc := leave.NewInvitationService(mem, leave.Config{})

	_, _, err := svc.EnrollAdmin(context.Background(), leave.EnrollAdminInput{
		ExternalID: "ext-founder", FirstName: "Fay", LastName: "Founder",
	})

	assert.ErrorIs(t, err, leave.ErrValidation)
}
