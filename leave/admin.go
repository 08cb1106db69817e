/*
admin.go - Organization settings, holiday management, allowance override

PURPOSE:
  Admin-only mutations that sit beside the request lifecycle: company
  profile and working-day settings, holiday CRUD, and the explicit
  administrative balance override. Every operation is tenant-scoped; a
  cross-tenant target fails authorization, never "not found".

ALLOWANCE OVERRIDE:
  The only direct-set path for a member's balance, deliberately separate
  from the approval debit. The override records an adjustment entry with
  the signed delta from the old balance, so history replay stays exact.
  A correction may drive a balance negative.

SEE ALSO:
  - calendar.go: consumes the working-day set and holidays managed here
  - ledger.go:   AdjustmentEntry
*/
package leave

import (
	"context"

	"github.com/google/uuid"
)

// AdminService carries the admin-only settings operations.
type AdminService struct {
	store Store
	cfg   Config
}

func NewAdminService(store Store, cfg Config) *AdminService {
	return &AdminService{store: store, cfg: cfg.withDefaults()}
}

func (s *AdminService) requireAdmin(actor Identity) error {
	if actor.IsZero() {
		return ErrAuthentication
	}
	if !actor.IsAdmin() {
		return ErrAuthorization
	}
	return nil
}

// =============================================================================
// ORGANIZATION SETTINGS
// =============================================================================

// ProfileInput updates the organization's display profile.
type ProfileInput struct {
	Name    string
	Website string
	Logo    string
}

// UpdateProfile replaces the organization's name, website and logo.
func (s *AdminService) UpdateProfile(ctx context.Context, actor Identity, in ProfileInput) (*Organization, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "company name is required"}
	}
	org, err := s.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	org.Name = in.Name
	org.Website = in.Website
	org.Logo = in.Logo
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateWorkingDays replaces the organization's working-day set, which the
// exclusion resolver uses for subsequent submissions. Existing requests keep
// their already-computed chargeable counts.
func (s *AdminService) UpdateWorkingDays(ctx context.Context, actor Identity, days WorkingDays) (*Organization, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := days.Validate(); err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	org.WorkingDays = days
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganization returns the caller's organization. Any member may read it.
func (s *AdminService) GetOrganization(ctx context.Context, actor Identity) (*Organization, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	return s.store.GetOrganization(ctx, actor.OrganizationID)
}

// =============================================================================
// HOLIDAY MANAGEMENT
// =============================================================================

// HolidayInput is an organization holiday definition.
type HolidayInput struct {
	Name      string
	Date      Date
	Recurring bool
}

func (in HolidayInput) validate() error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "holiday name is required"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "holiday date is required"}
	}
	return nil
}

// AddHoliday creates a holiday in the caller's organization.
func (s *AdminService) AddHoliday(ctx context.Context, actor Identity, in HolidayInput) (*Holiday, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	h := &Holiday{
		ID:             HolidayID(uuid.NewString()),
		OrganizationID: actor.OrganizationID,
		Name:           in.Name,
		Date:           in.Date,
		Recurring:      in.Recurring,
		CreatedAt:      s.cfg.Now().UTC(),
	}
	if err := s.store.CreateHoliday(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateHoliday rewrites a holiday's definition. Cross-tenant targets fail
// authorization.
func (s *AdminService) UpdateHoliday(ctx context.Context, actor Identity, id HolidayID, in HolidayInput) (*Holiday, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	h, err := s.store.GetHoliday(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.OrganizationID != actor.OrganizationID {
		return nil, ErrAuthorization
	}
	h.Name = in.Name
	h.Date = in.Date
	h.Recurring = in.Recurring
	if err := s.store.UpdateHoliday(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// DeleteHoliday removes a holiday from the caller's organization.
func (s *AdminService) DeleteHoliday(ctx context.Context, actor Identity, id HolidayID) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	h, err := s.store.GetHoliday(ctx, id)
	if err != nil {
		return err
	}
	if h.OrganizationID != actor.OrganizationID {
		return ErrAuthorization
	}
	return s.store.DeleteHoliday(ctx, id)
}

// ListHolidays returns the caller organization's holidays. Any member may
// read them; the submission form needs the list.
func (s *AdminService) ListHolidays(ctx context.Context, actor Identity) ([]Holiday, error) {
	if actor.IsZero() {
		return nil, ErrAuthentication
	}
	return s.store.ListHolidays(ctx, actor.OrganizationID)
}

// =============================================================================
// MEMBERS AND ALLOWANCE OVERRIDE
// =============================================================================

// ListMembers returns the caller organization's members. Admin only.
func (s *AdminService) ListMembers(ctx context.Context, actor Identity) ([]Member, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, actor.OrganizationID)
}

// OverrideAllowance sets a member's remaining balance outright and records
// the adjustment. Negative targets are allowed; the ledger keeps the
// correction auditable.
func (s *AdminService) OverrideAllowance(ctx context.Context, actor Identity, memberID MemberID, days int) (*Member, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.OrganizationID != actor.OrganizationID {
		return nil, ErrAuthorization
	}

	entry := AdjustmentEntry(member, days, actor.MemberID, s.cfg.Now().UTC())
	if err := s.store.OverrideAllowance(ctx, memberID, days, entry); err != nil {
		return nil, err
	}
	member.AllowanceDays = days
	return member, nil
}
