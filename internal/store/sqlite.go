package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadimport/internal/model"
)

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite. The database allows
// one open connection, so writers are serialized.
type SQLiteStore struct {
	db *sql.DB
	q  sqlQuerier
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	domain        TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	industry      TEXT NOT NULL DEFAULT '',
	company_size  TEXT NOT NULL DEFAULT '',
	revenue_range TEXT NOT NULL DEFAULT '',
	hq_city       TEXT NOT NULL DEFAULT '',
	hq_country    TEXT NOT NULL DEFAULT '',
	linkedin_url  TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	tier          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	owner_id      TEXT NOT NULL DEFAULT '',
	batch_id      TEXT NOT NULL DEFAULT '',
	import_job_id TEXT NOT NULL DEFAULT '',
	name_key      TEXT NOT NULL DEFAULT '',
	domain_key    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_tenant_domain_key ON companies(tenant_id, domain_key);
CREATE INDEX IF NOT EXISTS idx_companies_tenant_name_key ON companies(tenant_id, name_key);

CREATE TABLE IF NOT EXISTS contacts (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id         TEXT NOT NULL,
	company_id        INTEGER REFERENCES companies(id),
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL DEFAULT '',
	email_address     TEXT NOT NULL DEFAULT '',
	linkedin_url      TEXT NOT NULL DEFAULT '',
	job_title         TEXT NOT NULL DEFAULT '',
	phone_number      TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	department        TEXT NOT NULL DEFAULT '',
	seniority         TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL DEFAULT '',
	enrichment_status TEXT NOT NULL DEFAULT '',
	owner_id          TEXT NOT NULL DEFAULT '',
	batch_id          TEXT NOT NULL DEFAULT '',
	import_job_id     TEXT NOT NULL DEFAULT '',
	first_name_key    TEXT NOT NULL DEFAULT '',
	last_name_key     TEXT NOT NULL DEFAULT '',
	email_key         TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_tenant_email_key ON contacts(tenant_id, email_key);
CREATE INDEX IF NOT EXISTS idx_contacts_tenant_name_key ON contacts(tenant_id, first_name_key, last_name_key);
CREATE INDEX IF NOT EXISTS idx_contacts_company_id ON contacts(company_id);

CREATE TABLE IF NOT EXISTS import_jobs (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	owner_id     TEXT NOT NULL DEFAULT '',
	batch_id     TEXT NOT NULL,
	source       TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	total_rows   INTEGER NOT NULL DEFAULT 0,
	result       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_tenant ON import_jobs(tenant_id, created_at);

CREATE TABLE IF NOT EXISTS import_job_rows (
	job_id         TEXT NOT NULL REFERENCES import_jobs(id) ON DELETE CASCADE,
	row_index      INTEGER NOT NULL,
	action         TEXT NOT NULL,
	match_type     TEXT NOT NULL DEFAULT '',
	contact_id     INTEGER,
	company_id     INTEGER,
	display_name   TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	company_action TEXT NOT NULL DEFAULT '',
	detail         TEXT NOT NULL,
	PRIMARY KEY (job_id, row_index)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTenantTx runs fn in a transaction. The single connection serializes
// imports across tenants.
func (s *SQLiteStore) WithTenantTx(ctx context.Context, tenantID string, fn func(tx Records) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin tx for tenant %s", tenantID)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// --- Companies ---

func (s *SQLiteStore) FindCompanyByDomain(ctx context.Context, tenantID, domain string) (*model.Company, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = ? AND domain_key = ? ORDER BY id LIMIT 1`,
		tenantID, domain,
	)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find company by domain %s", domain)
	}
	return c, nil
}

func (s *SQLiteStore) FindCompanyByName(ctx context.Context, tenantID, lowerName string) (*model.Company, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = ? AND name_key = ? ORDER BY id LIMIT 1`,
		tenantID, lowerName,
	)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find company by name")
	}
	return c, nil
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	nameKey, domainKey := companyKeys(c)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO companies (tenant_id, name, domain, website, industry, company_size, revenue_range,
			hq_city, hq_country, linkedin_url, description, tier, status, owner_id, batch_id, import_job_id,
			created_at, updated_at, name_key, domain_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TenantID, c.Name, c.Domain, c.Website, c.Industry, c.CompanySize, c.RevenueRange,
		c.HQCity, c.HQCountry, c.LinkedInURL, c.Description, c.Tier, c.Status, c.OwnerID,
		c.BatchID, c.ImportJobID, now, now, nameKey, domainKey,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %s", c.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: company id")
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *SQLiteStore) UpdateCompanyFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error {
	return s.updateFields(ctx, "companies", tenantID, id, fields, updatableCompanyColumn, companyKeyColumns)
}

// --- Contacts ---

func (s *SQLiteStore) FindContactByEmail(ctx context.Context, tenantID, lowerEmail string) (*model.Contact, error) {
	row := s.q.QueryRowContext(ctx,
		contactSelect+` WHERE c.tenant_id = ? AND c.email_key = ? ORDER BY c.id LIMIT 1`,
		tenantID, lowerEmail,
	)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact by email")
	}
	return c, nil
}

func (s *SQLiteStore) FindContactByNameAndCompany(ctx context.Context, tenantID, lowerFirst, lowerLast, lowerCompany string) (*model.Contact, error) {
	row := s.q.QueryRowContext(ctx,
		contactSelect+` WHERE c.tenant_id = ? AND c.first_name_key = ? AND c.last_name_key = ?
			AND co.name_key = ? ORDER BY c.id LIMIT 1`,
		tenantID, lowerFirst, lowerLast, lowerCompany,
	)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact by name and company")
	}
	return c, nil
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c *model.Contact) error {
	now := time.Now().UTC()
	firstKey, lastKey, emailKey := contactKeys(c)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO contacts (tenant_id, company_id, first_name, last_name, email_address, linkedin_url,
			job_title, phone_number, location, department, seniority, source, enrichment_status,
			owner_id, batch_id, import_job_id, created_at, updated_at, first_name_key, last_name_key, email_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TenantID, c.CompanyID, c.FirstName, c.LastName, c.EmailAddress, c.LinkedInURL,
		c.JobTitle, c.PhoneNumber, c.Location, c.Department, c.Seniority, c.Source,
		c.EnrichmentStatus, c.OwnerID, c.BatchID, c.ImportJobID, now, now, firstKey, lastKey, emailKey,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert contact %s", c.DisplayName())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: contact id")
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *SQLiteStore) UpdateContactFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error {
	return s.updateFields(ctx, "contacts", tenantID, id, fields, updatableContactColumn, contactKeyColumns)
}

func (s *SQLiteStore) updateFields(ctx context.Context, table, tenantID string, id int64, fields map[string]string, valid func(string) bool, keys map[string]keyColumn) error {
	if len(fields) == 0 {
		return nil
	}
	set, args, err := updateClause(fields, valid, keys, func(int) string { return "?" })
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", table)
	}
	args = append(args, time.Now().UTC(), tenantID, id)

	res, err := s.q.ExecContext(ctx,
		`UPDATE `+table+` SET `+set+`, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %d", table, id)
	}
	return checkRowsAffected(res, table, id)
}

// --- Import jobs ---

func (s *SQLiteStore) CreateImportJob(ctx context.Context, job *model.ImportJob) error {
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = model.JobPending
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO import_jobs (id, tenant_id, owner_id, batch_id, source, strategy, status, total_rows, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TenantID, job.OwnerID, job.BatchID, job.Source, string(job.Strategy),
		string(job.Status), job.TotalRows, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert import job %s", job.ID)
	}
	job.CreatedAt, job.UpdatedAt = now, now
	return nil
}

func (s *SQLiteStore) UpdateImportJob(ctx context.Context, job *model.ImportJob) error {
	resultJSON, err := jobResultJSON(job)
	if err != nil {
		return eris.Wrap(err, "sqlite: update import job")
	}
	var result any
	if resultJSON != nil {
		result = string(resultJSON)
	}
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE import_jobs SET status = ?, result = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		string(job.Status), result, job.Error, job.CompletedAt, now, job.TenantID, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update import job %s", job.ID)
	}
	if err := checkRowsAffected(res, "import job", job.ID); err != nil {
		return err
	}
	job.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetImportJob(ctx context.Context, tenantID, jobID string) (*model.ImportJob, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE tenant_id = ? AND id = ?`,
		tenantID, jobID,
	)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get import job %s", jobID)
	}
	return j, nil
}

func (s *SQLiteStore) SaveImportRows(ctx context.Context, jobID string, rows []model.DedupRow) error {
	values, err := importRowValues(jobID, rows)
	if err != nil {
		return eris.Wrap(err, "sqlite: save import rows")
	}
	for _, v := range values {
		v[len(v)-1] = string(v[len(v)-1].([]byte))
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO import_job_rows (job_id, row_index, action, match_type, contact_id, company_id,
				display_name, reason, company_action, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert import row %v", v[1])
		}
	}
	return nil
}

func (s *SQLiteStore) ListImportRows(ctx context.Context, tenantID, jobID string) ([]model.DedupRow, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.detail FROM import_job_rows r
		JOIN import_jobs j ON j.id = r.job_id
		WHERE j.tenant_id = ? AND r.job_id = ?
		ORDER BY r.row_index`,
		tenantID, jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list import rows for job %s", jobID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.DedupRow{}
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import row")
		}
		r, err := decodeImportRow(detail)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list import rows")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate import rows")
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %v", entity, id)
	}
	return nil
}
