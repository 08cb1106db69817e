/*
Package sqlite provides the SQLite-backed implementation of leave.Store.

PURPOSE:
  Implements the persistence contract using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

ATOMIC PAIRS:
  The two operations that must never double-apply run inside SQL
  transactions with compare-and-set WHERE clauses:
  - TransitionRequest: UPDATE ... WHERE id = ? AND status = 'PENDING'.
    Zero rows affected means another caller won the race; reported as a
    StateError. On approval the member debit and the ledger entry are
    written in the same transaction.
  - RedeemCode: UPDATE ... WHERE code = ? AND used = 0. Zero rows affected
    is ErrInvalidCode. Member creation and the grant entry follow in the
    same transaction.

UNIQUENESS:
  idx_codes_unique enforces system-wide invitation code uniqueness. The
  constraint rejection surfaces as ErrCodeTaken, which the issuer's retry
  loop handles; check-then-insert is never relied on.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewRequestService(store, leave.Config{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions and error mapping rules
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		website TEXT,
		logo TEXT,
		working_days TEXT NOT NULL,
		default_allowance_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		department TEXT,
		allowance_days INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_org ON members(organization_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_members_external ON members(external_id);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_org_date ON holidays(organization_id, date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		approver_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		chargeable_days INTEGER NOT NULL,
		reason TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_member_start ON leave_requests(member_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_requests_org_created ON leave_requests(organization_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS invitation_codes (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		code TEXT NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Codes are unique across the whole system, not per tenant. This
	-- constraint, not the issuer's retry loop, is what guarantees two
	-- concurrent issuances never persist the same code.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_codes_unique ON invitation_codes(code);
	CREATE INDEX IF NOT EXISTS idx_codes_org ON invitation_codes(organization_id);

	CREATE TABLE IF NOT EXISTS allowance_entries (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		delta TEXT NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		actor_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_member ON allowance_entries(member_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORGANIZATIONS
// =============================================================================

func (s *Store) GetOrganization(ctx context.Context, id leave.OrgID) (*leave.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, logo, working_days, default_allowance_days, created_at
		 FROM organizations WHERE id = ?`, id)
	return scanOrganization(row, string(id))
}

func (s *Store) UpdateOrganization(ctx context.Context, org *leave.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workingDays, err := encodeWorkingDays(org.WorkingDays)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations
		 SET name = ?, website = ?, logo = ?, working_days = ?, default_allowance_days = ?
		 WHERE id = ?`,
		org.Name, org.Website, org.Logo, workingDays, org.DefaultAllowanceDays, org.ID)
	if err != nil {
		return &leave.UnavailableError{Op: "update organization", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "organization", ID: string(org.ID)}
	}
	return nil
}

func (s *Store) BootstrapOrganization(ctx context.Context, org *leave.Organization, admin *leave.Member, grant leave.AllowanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workingDays, err := encodeWorkingDays(org.WorkingDays)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.UnavailableError{Op: "bootstrap organization", Cause: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organizations (id, name, website, logo, working_days, default_allowance_days, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Website, org.Logo, workingDays, org.DefaultAllowanceDays,
		org.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &leave.UnavailableError{Op: "bootstrap organization", Cause: err}
	}

	if err := insertMember(ctx, tx, admin); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, grant); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &leave.UnavailableError{Op: "bootstrap organization", Cause: err}
	}
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = `id, organization_id, external_id, first_name, last_name, email, role, department, allowance_days, created_at`

func insertMember(ctx context.Context, db execer, m *leave.Member) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrganizationID, m.ExternalID, m.FirstName, m.LastName,
		nullString(m.Email), m.Role, nullString(m.Department), m.AllowanceDays,
		m.CreatedAt.UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		// idx_members_external: one member record per external identity.
		return &leave.ValidationError{Field: "external_id", Message: "identity is already enrolled"}
	}
	if err != nil {
		return &leave.UnavailableError{Op: "insert member", Cause: err}
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, id leave.MemberID) (*leave.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row, string(id))
}

func (s *Store) GetMemberByExternalID(ctx context.Context, externalID string) (*leave.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE external_id = ?`, externalID)
	return scanMember(row, externalID)
}

func (s *Store) ListMembers(ctx context.Context, orgID leave.OrgID) ([]leave.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE organization_id = ? ORDER BY created_at ASC, id ASC`, orgID)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "list members", Cause: err}
	}
	defer rows.Close()

	var members []leave.Member
	for rows.Next() {
		m, err := scanMember(rows, "")
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *Store) OverrideAllowance(ctx context.Context, id leave.MemberID, days int, entry leave.AllowanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.UnavailableError{Op: "override allowance", Cause: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE members SET allowance_days = ? WHERE id = ?`, days, id)
	if err != nil {
		return &leave.UnavailableError{Op: "override allowance", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "member", ID: string(id)}
	}

	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &leave.UnavailableError{Op: "override allowance", Cause: err}
	}
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) CreateHoliday(ctx context.Context, h *leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holidays (id, organization_id, name, date, recurring, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.OrganizationID, h.Name, h.Date.String(), h.Recurring,
		h.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &leave.UnavailableError{Op: "create holiday", Cause: err}
	}
	return nil
}

func (s *Store) GetHoliday(ctx context.Context, id leave.HolidayID) (*leave.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, date, recurring, created_at
		 FROM holidays WHERE id = ?`, id)
	return scanHoliday(row, string(id))
}

func (s *Store) UpdateHoliday(ctx context.Context, h *leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE holidays SET name = ?, date = ?, recurring = ? WHERE id = ?`,
		h.Name, h.Date.String(), h.Recurring, h.ID)
	if err != nil {
		return &leave.UnavailableError{Op: "update holiday", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "holiday", ID: string(h.ID)}
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id leave.HolidayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return &leave.UnavailableError{Op: "delete holiday", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "holiday", ID: string(id)}
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, orgID leave.OrgID) ([]leave.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name, date, recurring, created_at
		 FROM holidays WHERE organization_id = ? ORDER BY date ASC`, orgID)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "list holidays", Cause: err}
	}
	defer rows.Close()

	var holidays []leave.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows, "")
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, *h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, member_id, organization_id, approver_id, start_date, end_date, type, status, chargeable_days, reason, notes, created_at`

func (s *Store) CreateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leave_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MemberID, r.OrganizationID, nullString(string(r.ApproverID)),
		r.StartDate.String(), r.EndDate.String(), r.Type, r.Status,
		r.ChargeableDays, nullString(r.Reason), nullString(r.Notes),
		r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &leave.UnavailableError{Op: "create request", Cause: err}
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, db queryer, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	return scanRequest(row, string(id))
}

func (s *Store) ListRequestsByMember(ctx context.Context, memberID leave.MemberID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE member_id = ? ORDER BY start_date ASC, created_at ASC`,
		memberID)
}

func (s *Store) ListRequestsByOrganization(ctx context.Context, orgID leave.OrgID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE organization_id = ? ORDER BY created_at DESC, id DESC`,
		orgID)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "query requests", Cause: err}
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows, "")
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// TransitionRequest performs the status compare-and-set keyed on PENDING,
// plus the member debit and ledger entry when approving, in one transaction.
func (s *Store) TransitionRequest(ctx context.Context, id leave.RequestID, approver leave.MemberID, status leave.RequestStatus, notes string, debit *leave.AllowanceEntry) (*leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "transition request", Cause: err}
	}
	defer tx.Rollback()

	current, err := getRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE leave_requests SET status = ?, notes = ?, approver_id = ?
		 WHERE id = ? AND status = ?`,
		status, nullString(notes), approver, id, leave.StatusPending)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "transition request", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race, or the request was already terminal.
		return nil, &leave.StateError{RequestID: id, Status: current.Status}
	}

	if debit != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE members SET allowance_days = allowance_days - ? WHERE id = ?`,
			current.ChargeableDays, current.MemberID)
		if err != nil {
			return nil, &leave.UnavailableError{Op: "debit allowance", Cause: err}
		}
		if err := insertEntry(ctx, tx, *debit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &leave.UnavailableError{Op: "transition request", Cause: err}
	}

	current.Status = status
	current.Notes = notes
	current.ApproverID = approver
	return current, nil
}

// =============================================================================
// INVITATION CODES
// =============================================================================

func (s *Store) InsertCode(ctx context.Context, c *leave.InvitationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitation_codes (id, organization_id, code, used, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OrganizationID, c.Code, c.Used, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return leave.ErrCodeTaken
		}
		return &leave.UnavailableError{Op: "insert code", Cause: err}
	}
	return nil
}

func (s *Store) GetCodeByValue(ctx context.Context, code string) (*leave.InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c         leave.InvitationCode
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, code, used, created_at
		 FROM invitation_codes WHERE code = ?`, code).
		Scan(&c.ID, &c.OrganizationID, &c.Code, &c.Used, &createdAt)
	if err == sql.ErrNoRows {
		return nil, leave.ErrInvalidCode
	}
	if err != nil {
		return nil, &leave.UnavailableError{Op: "get code", Cause: err}
	}
	if c.CreatedAt, err = parseTimestamp("get code", createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCodes(ctx context.Context, orgID leave.OrgID) ([]leave.InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, code, used, created_at
		 FROM invitation_codes WHERE organization_id = ? ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "list codes", Cause: err}
	}
	defer rows.Close()

	var codes []leave.InvitationCode
	for rows.Next() {
		var (
			c         leave.InvitationCode
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Code, &c.Used, &createdAt); err != nil {
			return nil, &leave.UnavailableError{Op: "list codes", Cause: err}
		}
		if c.CreatedAt, err = parseTimestamp("list codes", createdAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// RedeemCode performs the test-and-set on used = 0, then the member insert
// and grant entry, in one transaction. Exactly one of two racing
// redemptions commits.
func (s *Store) RedeemCode(ctx context.Context, code string, member *leave.Member, grant leave.AllowanceEntry) (*leave.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "redeem code", Cause: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE invitation_codes SET used = 1 WHERE code = ? AND used = 0`, code)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "redeem code", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, leave.ErrInvalidCode
	}

	if err := insertMember(ctx, tx, member); err != nil {
		return nil, err
	}
	if err := insertEntry(ctx, tx, grant); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &leave.UnavailableError{Op: "redeem code", Cause: err}
	}

	out := *member
	return &out, nil
}

// =============================================================================
// ALLOWANCE ENTRIES
// =============================================================================

func insertEntry(ctx context.Context, db execer, e leave.AllowanceEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO allowance_entries (id, member_id, organization_id, delta, kind, reference_id, reason, actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MemberID, e.OrganizationID, e.Delta.String(), e.Kind,
		nullString(e.ReferenceID), nullString(e.Reason), nullString(string(e.ActorID)),
		e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &leave.UnavailableError{Op: "insert allowance entry", Cause: err}
	}
	return nil
}

func (s *Store) ListAllowanceEntries(ctx context.Context, memberID leave.MemberID) ([]leave.AllowanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, organization_id, delta, kind, reference_id, reason, actor_id, created_at
		 FROM allowance_entries WHERE member_id = ? ORDER BY created_at ASC, id ASC`, memberID)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "list allowance entries", Cause: err}
	}
	defer rows.Close()

	var entries []leave.AllowanceEntry
	for rows.Next() {
		var (
			e           leave.AllowanceEntry
			delta       string
			referenceID sql.NullString
			reason      sql.NullString
			actorID     sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &e.MemberID, &e.OrganizationID, &delta, &e.Kind,
			&referenceID, &reason, &actorID, &createdAt); err != nil {
			return nil, &leave.UnavailableError{Op: "list allowance entries", Cause: err}
		}
		e.Delta, err = decimal.NewFromString(delta)
		if err != nil {
			return nil, &leave.UnavailableError{Op: "list allowance entries", Cause: err}
		}
		e.ReferenceID = referenceID.String
		e.Reason = reason.String
		e.ActorID = leave.MemberID(actorID.String)
		if e.CreatedAt, err = parseTimestamp("list allowance entries", createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner, id string) (*leave.Organization, error) {
	var (
		org         leave.Organization
		website     sql.NullString
		logo        sql.NullString
		workingDays string
		createdAt   string
	)
	err := row.Scan(&org.ID, &org.Name, &website, &logo, &workingDays, &org.DefaultAllowanceDays, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "organization", ID: id}
	}
	if err != nil {
		return nil, &leave.UnavailableError{Op: "scan organization", Cause: err}
	}
	org.Website = website.String
	org.Logo = logo.String
	org.WorkingDays = decodeWorkingDays(workingDays)
	if org.CreatedAt, err = parseTimestamp("scan organization", createdAt); err != nil {
		return nil, err
	}
	return &org, nil
}

func scanMember(row rowScanner, id string) (*leave.Member, error) {
	var (
		m          leave.Member
		email      sql.NullString
		department sql.NullString
		createdAt  string
	)
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ExternalID, &m.FirstName, &m.LastName,
		&email, &m.Role, &department, &m.AllowanceDays, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "member", ID: id}
	}
	if err != nil {
		return nil, &leave.UnavailableError{Op: "scan member", Cause: err}
	}
	m.Email = email.String
	m.Department = department.String
	if m.CreatedAt, err = parseTimestamp("scan member", createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanHoliday(row rowScanner, id string) (*leave.Holiday, error) {
	var (
		h         leave.Holiday
		date      string
		createdAt string
	)
	err := row.Scan(&h.ID, &h.OrganizationID, &h.Name, &date, &h.Recurring, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "holiday", ID: id}
	}
	if err != nil {
		return nil, &leave.UnavailableError{Op: "scan holiday", Cause: err}
	}
	h.Date, err = leave.ParseDate(date)
	if err != nil {
		return nil, &leave.UnavailableError{Op: "scan holiday", Cause: err}
	}
	if h.CreatedAt, err = parseTimestamp("scan holiday", createdAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func scanRequest(row rowScanner, id string) (*leave.LeaveRequest, error) {
	var (
		r          leave.LeaveRequest
		approverID sql.NullString
		startDate  string
		endDate    string
		reason     sql.NullString
		notes      sql.NullString
		createdAt  string
	)
	err := row.Scan(&r.ID, &r.MemberID, &r.OrganizationID, &approverID, &startDate, &endDate,
		&r.Type, &r.Status, &r.ChargeableDays, &reason, &notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "request", ID: id}
	}
	if err != nil {
		return nil, &leave.UnavailableError{Op: "scan request", Cause: err}
	}
	r.ApproverID = leave.MemberID(approverID.String)
	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, &leave.UnavailableError{Op: "scan request", Cause: err}
	}
	if r.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, &leave.UnavailableError{Op: "scan request", Cause: err}
	}
	r.Reason = reason.String
	r.Notes = notes.String
	if r.CreatedAt, err = parseTimestamp("scan request", createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func encodeWorkingDays(w leave.WorkingDays) (string, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return "", &leave.UnavailableError{Op: "encode working days", Cause: err}
	}
	return string(b), nil
}

func decodeWorkingDays(raw string) leave.WorkingDays {
	var w leave.WorkingDays
	if err := json.Unmarshal([]byte(raw), &w); err != nil || len(w) == 0 {
		return leave.DefaultWorkingDays()
	}
	return w
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp decodes a stored RFC3339 timestamp. A row that fails to
// parse is corrupt and surfaces as a store failure, same as the date columns.
func parseTimestamp(op, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &leave.UnavailableError{Op: op, Cause: err}
	}
	return t, nil
}
