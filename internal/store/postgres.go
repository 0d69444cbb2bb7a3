package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/collections-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cases (
	id           TEXT PRIMARY KEY,
	customer     TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	currency     TEXT NOT NULL,
	due_date     TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL DEFAULT 'New',
	priority     TEXT NOT NULL DEFAULT 'Low',
	sla_due_date TIMESTAMPTZ NOT NULL,
	agency_id    TEXT,
	promise_date TEXT,
	remarks      TEXT,
	phone        TEXT,
	email        TEXT,
	address      TEXT,
	locked       BOOLEAN NOT NULL DEFAULT FALSE,
	logs         JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agencies (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	region           TEXT,
	status           TEXT NOT NULL DEFAULT 'Onboarding',
	compliance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	recovery_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	active_cases     INTEGER NOT NULL DEFAULT 0,
	contact_email    TEXT,
	last_audit_date  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	case_ids     JSONB NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_agency ON cases(agency_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const caseColumns = `id, customer, amount, currency, due_date, status, priority,
	sla_due_date, agency_id, promise_date, remarks, phone, email, address,
	locked, logs, created_at, updated_at`

func (s *PostgresStore) CreateCase(ctx context.Context, c model.CaseRecord) error {
	logsJSON, err := json.Marshal(c.Logs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal logs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO cases (`+caseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.CustomerName, c.Amount, c.Currency, c.DueDate, string(c.Status),
		string(c.Priority), c.SLADueDate, nullable(c.AssignedAgencyID), c.PromiseDate,
		c.Remarks, c.Phone, c.Email, c.Address, c.Locked, logsJSON,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert case")
}

func (s *PostgresStore) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)

	c, err := scanPGCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: case %s", id)
		}
		return nil, eris.Wrap(err, "postgres: get case")
	}
	return c, nil
}

func (s *PostgresStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.CaseRecord, error) {
	query := `SELECT ` + caseColumns + ` FROM cases`

	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.AgencyID != "" {
		args = append(args, filter.AgencyID)
		conds = append(conds, "agency_id = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		c, err := scanPGCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list cases rows")
}

func (s *PostgresStore) UpdateCase(ctx context.Context, c model.CaseRecord) error {
	logsJSON, err := json.Marshal(c.Logs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal logs")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET status = $1, priority = $2, agency_id = $3, promise_date = $4,
			remarks = $5, locked = $6, logs = $7, updated_at = now()
		 WHERE id = $8`,
		string(c.Status), string(c.Priority), nullable(c.AssignedAgencyID),
		c.PromiseDate, c.Remarks, c.Locked, logsJSON, c.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update case")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: case %s not found", c.ID)
	}
	return nil
}

func (s *PostgresStore) UpsertAgency(ctx context.Context, a model.Agency) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agencies (id, name, region, status, compliance_score, recovery_rate,
			active_cases, contact_email, last_audit_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, region = EXCLUDED.region, status = EXCLUDED.status,
			compliance_score = EXCLUDED.compliance_score,
			recovery_rate = EXCLUDED.recovery_rate,
			active_cases = EXCLUDED.active_cases,
			contact_email = EXCLUDED.contact_email,
			last_audit_date = EXCLUDED.last_audit_date`,
		a.ID, a.Name, a.Region, string(a.Status), a.ComplianceScore, a.RecoveryRate,
		a.ActiveCases, a.ContactEmail, a.LastAuditDate,
	)
	return eris.Wrap(err, "postgres: upsert agency")
}

func (s *PostgresStore) ListAgencies(ctx context.Context) ([]model.Agency, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, region, status, compliance_score, recovery_rate,
			active_cases, contact_email, last_audit_date
		 FROM agencies ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agencies")
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		var a model.Agency
		var status string
		var region, email *string
		var audit *time.Time
		if err := rows.Scan(&a.ID, &a.Name, &region, &status, &a.ComplianceScore,
			&a.RecoveryRate, &a.ActiveCases, &email, &audit); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agency")
		}
		a.Status = model.AgencyStatus(status)
		if region != nil {
			a.Region = *region
		}
		if email != nil {
			a.ContactEmail = *email
		}
		if audit != nil {
			a.LastAuditDate = *audit
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list agencies rows")
}

func (s *PostgresStore) RecordReceipt(ctx context.Context, receiptID string, caseIDs []string) error {
	ids, err := json.Marshal(caseIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal case ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO receipts (id, case_ids, submitted_at) VALUES ($1, $2, now())`,
		receiptID, ids,
	)
	return eris.Wrap(err, "postgres: record receipt")
}

func (s *PostgresStore) ReceiptExists(ctx context.Context, receiptID string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM receipts WHERE id = $1`, receiptID).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: receipt exists")
	}
	return n > 0, nil
}

func scanPGCase(row pgx.Row) (*model.CaseRecord, error) {
	var c model.CaseRecord
	var status, priority string
	var agency, promise, remarks, phone, email, address *string
	var logsJSON []byte

	err := row.Scan(&c.ID, &c.CustomerName, &c.Amount, &c.Currency, &c.DueDate,
		&status, &priority, &c.SLADueDate, &agency, &promise, &remarks, &phone,
		&email, &address, &c.Locked, &logsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = model.CaseStatus(status)
	c.Priority = model.Priority(priority)
	if agency != nil {
		c.AssignedAgencyID = *agency
	}
	if promise != nil {
		c.PromiseDate = *promise
	}
	if remarks != nil {
		c.Remarks = *remarks
	}
	if phone != nil {
		c.Phone = *phone
	}
	if email != nil {
		c.Email = *email
	}
	if address != nil {
		c.Address = *address
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &c.Logs); err != nil {
			return nil, eris.Wrap(err, "unmarshal logs")
		}
	}
	return &c, nil
}
