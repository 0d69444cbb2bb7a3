package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/collections-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cases (
	id           TEXT PRIMARY KEY,
	customer     TEXT NOT NULL,
	amount       REAL NOT NULL,
	currency     TEXT NOT NULL,
	due_date     DATETIME NOT NULL,
	status       TEXT NOT NULL DEFAULT 'New',
	priority     TEXT NOT NULL DEFAULT 'Low',
	sla_due_date DATETIME NOT NULL,
	agency_id    TEXT,
	promise_date TEXT,
	remarks      TEXT,
	phone        TEXT,
	email        TEXT,
	address      TEXT,
	locked       INTEGER NOT NULL DEFAULT 0,
	logs         TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agencies (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	region           TEXT,
	status           TEXT NOT NULL DEFAULT 'Onboarding',
	compliance_score REAL NOT NULL DEFAULT 0,
	recovery_rate    REAL NOT NULL DEFAULT 0,
	active_cases     INTEGER NOT NULL DEFAULT 0,
	contact_email    TEXT,
	last_audit_date  DATETIME
);

CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	case_ids     TEXT NOT NULL,
	submitted_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_agency ON cases(agency_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCase(ctx context.Context, c model.CaseRecord) error {
	logsJSON, err := json.Marshal(c.Logs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal logs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (id, customer, amount, currency, due_date, status, priority,
			sla_due_date, agency_id, promise_date, remarks, phone, email, address,
			locked, logs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CustomerName, c.Amount, c.Currency, c.DueDate, string(c.Status),
		string(c.Priority), c.SLADueDate, nullable(c.AssignedAgencyID), c.PromiseDate,
		c.Remarks, c.Phone, c.Email, c.Address, boolInt(c.Locked), string(logsJSON),
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert case")
}

func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer, amount, currency, due_date, status, priority,
			sla_due_date, agency_id, promise_date, remarks, phone, email, address,
			locked, logs, created_at, updated_at
		 FROM cases WHERE id = ?`, id)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: case %s", id)
		}
		return nil, eris.Wrap(err, "sqlite: get case")
	}
	return c, nil
}

func (s *SQLiteStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.CaseRecord, error) {
	query := `SELECT id, customer, amount, currency, due_date, status, priority,
		sla_due_date, agency_id, promise_date, remarks, phone, email, address,
		locked, logs, created_at, updated_at FROM cases`

	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AgencyID != "" {
		conds = append(conds, "agency_id = ?")
		args = append(args, filter.AgencyID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cases")
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cases rows")
}

func (s *SQLiteStore) UpdateCase(ctx context.Context, c model.CaseRecord) error {
	logsJSON, err := json.Marshal(c.Logs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal logs")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = ?, priority = ?, agency_id = ?, promise_date = ?,
			remarks = ?, locked = ?, logs = ?, updated_at = ?
		 WHERE id = ?`,
		string(c.Status), string(c.Priority), nullable(c.AssignedAgencyID),
		c.PromiseDate, c.Remarks, boolInt(c.Locked), string(logsJSON),
		time.Now().UTC(), c.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update case")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: case %s not found", c.ID)
	}
	return nil
}

func (s *SQLiteStore) UpsertAgency(ctx context.Context, a model.Agency) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agencies (id, name, region, status, compliance_score, recovery_rate,
			active_cases, contact_email, last_audit_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, region = excluded.region, status = excluded.status,
			compliance_score = excluded.compliance_score,
			recovery_rate = excluded.recovery_rate,
			active_cases = excluded.active_cases,
			contact_email = excluded.contact_email,
			last_audit_date = excluded.last_audit_date`,
		a.ID, a.Name, a.Region, string(a.Status), a.ComplianceScore, a.RecoveryRate,
		a.ActiveCases, a.ContactEmail, a.LastAuditDate,
	)
	return eris.Wrap(err, "sqlite: upsert agency")
}

func (s *SQLiteStore) ListAgencies(ctx context.Context) ([]model.Agency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, region, status, compliance_score, recovery_rate,
			active_cases, contact_email, last_audit_date
		 FROM agencies ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agencies")
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		var a model.Agency
		var status string
		var region, email sql.NullString
		var audit sql.NullTime
		if err := rows.Scan(&a.ID, &a.Name, &region, &status, &a.ComplianceScore,
			&a.RecoveryRate, &a.ActiveCases, &email, &audit); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agency")
		}
		a.Status = model.AgencyStatus(status)
		a.Region = region.String
		a.ContactEmail = email.String
		if audit.Valid {
			a.LastAuditDate = audit.Time
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list agencies rows")
}

func (s *SQLiteStore) RecordReceipt(ctx context.Context, receiptID string, caseIDs []string) error {
	ids, err := json.Marshal(caseIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal case ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, case_ids, submitted_at) VALUES (?, ?, ?)`,
		receiptID, string(ids), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record receipt")
}

func (s *SQLiteStore) ReceiptExists(ctx context.Context, receiptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM receipts WHERE id = ?`, receiptID).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: receipt exists")
	}
	return n > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*model.CaseRecord, error) {
	var c model.CaseRecord
	var status, priority, logsJSON string
	var agency, promise, remarks, phone, email, address sql.NullString
	var locked int

	err := row.Scan(&c.ID, &c.CustomerName, &c.Amount, &c.Currency, &c.DueDate,
		&status, &priority, &c.SLADueDate, &agency, &promise, &remarks, &phone,
		&email, &address, &locked, &logsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = model.CaseStatus(status)
	c.Priority = model.Priority(priority)
	c.AssignedAgencyID = agency.String
	c.PromiseDate = promise.String
	c.Remarks = remarks.String
	c.Phone = phone.String
	c.Email = email.String
	c.Address = address.String
	c.Locked = locked != 0
	if err := json.Unmarshal([]byte(logsJSON), &c.Logs); err != nil {
		return nil, eris.Wrap(err, "unmarshal logs")
	}
	return &c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
