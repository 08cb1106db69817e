/*
invitation.go - Invitation code issuance, redemption, and enrollment

PURPOSE:
  Admins mint 6-digit numeric codes scoped to their organization; an
  unauthenticated-but-invited person redeems one exactly once to become an
  EMPLOYEE member with a starting allowance. Admin enrollment creates the
  organization itself together with its first ADMIN member.

UNIQUENESS UNDER CONCURRENCY:
  Codes are unique across the whole system, not just the organization. The
  generate-and-retry loop here is bounded and only handles the rare
  collision; the store's unique constraint is the actual correctness
  backstop, so two concurrent Issue calls can never persist the same code.

SINGLE-USE GUARANTEE:
  Redemption is a store-level test-and-set on used=false combined with
  member creation in one unit of work. Two racing redemptions of one code
  produce exactly one member; the loser gets ErrInvalidCode.

STARTING ALLOWANCE:
  The organization-level default wins; the engine configuration default is
  the fallback. Never hard-coded here.

SEE ALSO:
  - store.go: InsertCode / RedeemCode / BootstrapOrganization contracts
  - ledger.go: the initial grant entry written at enrollment
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

const codeLength = 6

// InvitationService issues and redeems invitation codes and handles
// enrollment.
type InvitationService struct {
	store Store
	cfg   Config

	// randCode is the injected randomness source; tests replace it to force
	// collisions deterministically.
	randCode func() string
}

func NewInvitationService(store Store, cfg Config) *InvitationService {
	return &InvitationService{
		store:    store,
		cfg:      cfg.withDefaults(),
		randCode: randomCode,
	}
}

// WithCodeSource replaces the randomness source. For tests.
func (s *InvitationService) WithCodeSource(fn func() string) *InvitationService {
	s.randCode = fn
	return s
}

// randomCode draws uniformly from the 900,000-value keyspace [100000, 999999].
func randomCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// =============================================================================
// ISSUANCE
// =============================================================================

// Issue mints a new unused code for the caller's organization. Retries on
// collision up to Config.CodeAttempts times, then reports the store
// unavailable rather than looping forever.
func (s *InvitationService) Issue(ctx context.Context, actor Identity) (*InvitationCode, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	if !actor.IsAdmin() {
		return nil, ErrAuthorization
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		code := &InvitationCode{
			ID:             CodeID(uuid.NewString()),
			OrganizationID: actor.OrganizationID,
			Code:           s.randCode(),
			Used:           false,
			CreatedAt:      s.cfg.Now().UTC(),
		}
		err := s.store.InsertCode(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return nil, err
		}
		lastErr = err
	}
	return nil, &UnavailableError{Op: "issue invitation code", Cause: lastErr}
}

// ListCodes returns the caller organization's codes, used and unused.
func (s *InvitationService) ListCodes(ctx context.Context, actor Identity) ([]InvitationCode, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	if !actor.IsAdmin() {
		return nil, ErrAuthorization
	}
	return s.store.ListCodes(ctx, actor.OrganizationID)
}

// =============================================================================
// REDEMPTION
// =============================================================================

// RedeemInput materializes a new employee from an invitation code.
type RedeemInput struct {
	Code       string
	ExternalID string // identity-provider key of the redeeming person
	FirstName  string
	LastName   string
	Email      string
	Department string
}

func (in RedeemInput) validate() error {
	if len(in.Code) != codeLength {
		return &ValidationError{Field: "code", Message: "invitation code must be 6 characters long"}
	}
	for _, r := range in.Code {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "code", Message: "invitation code must be numeric"}
		}
	}
	if in.ExternalID == "" {
		return &ValidationError{Field: "external_id", Message: "identity reference is required"}
	}
	if in.FirstName == "" || in.LastName == "" {
		return &ValidationError{Field: "name", Message: "first and last name are required"}
	}
	return nil
}

// Redeem consumes an unused code exactly once, creating an EMPLOYEE member
// in the code's organization with the starting allowance. Safe against
// concurrent redemption of the same code.
func (s *InvitationService) Redeem(ctx context.Context, in RedeemInput) (*Member, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	code, err := s.store.GetCodeByValue(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if code.Used {
		return nil, ErrInvalidCode
	}

	org, err := s.store.GetOrganization(ctx, code.OrganizationID)
	if err != nil {
		return nil, err
	}
	allowance := org.DefaultAllowanceDays
	if allowance <= 0 {
		allowance = s.cfg.DefaultAllowanceDays
	}

	now := s.cfg.Now().UTC()
	member := &Member{
		ID:             MemberID(uuid.NewString()),
		OrganizationID: code.OrganizationID,
		ExternalID:     in.ExternalID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Role:           RoleEmployee,
		Department:     in.Department,
		AllowanceDays:  allowance,
		CreatedAt:      now,
	}
	grant := GrantEntry(member, allowance, string(code.ID), now)

	// The store re-checks used=false inside its transaction; the read above
	// only produces a friendlier early error.
	return s.store.RedeemCode(ctx, in.Code, member, grant)
}

// =============================================================================
// ADMIN ENROLLMENT
// =============================================================================

// EnrollAdminInput creates an organization and its first ADMIN member.
type EnrollAdminInput struct {
	ExternalID  string
	FirstName   string
	LastName    string
	Email       string
	CompanyName string
	Website     string
	Logo        string
}

func (in EnrollAdminInput) validate() error {
	if in.ExternalID == "" {
		return &ValidationError{Field: "external_id", Message: "identity reference is required"}
	}
	if in.FirstName == "" || in.LastName == "" {
		return &ValidationError{Field: "name", Message: "first and last name are required"}
	}
	if in.CompanyName == "" {
		return &ValidationError{Field: "company_name", Message: "company name is required"}
	}
	return nil
}

// EnrollAdmin bootstraps a new tenant: organization with Monday-Friday
// working days, plus the founding ADMIN member and their initial grant,
// atomically.
func (s *InvitationService) EnrollAdmin(ctx context.Context, in EnrollAdminInput) (*Organization, *Member, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	now := s.cfg.Now().UTC()
	org := &Organization{
		ID:                   OrgID(uuid.NewString()),
		Name:                 in.CompanyName,
		Website:              in.Website,
		Logo:                 in.Logo,
		WorkingDays:          DefaultWorkingDays(),
		DefaultAllowanceDays: s.cfg.DefaultAllowanceDays,
		CreatedAt:            now,
	}
	admin := &Member{
		ID:             MemberID(uuid.NewString()),
		OrganizationID: org.ID,
		ExternalID:     in.ExternalID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Role:           RoleAdmin,
		AllowanceDays:  s.cfg.DefaultAllowanceDays,
		CreatedAt:      now,
	}
	grant := GrantEntry(admin, admin.AllowanceDays, string(org.ID), now)

	if err := s.store.BootstrapOrganization(ctx, org, admin, grant); err != nil {
		return nil, nil, err
	}
	return org, admin, nil
}
