package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/db"
	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/resilience"
)

// PostgresStore implements Store using pgxpool. A PostgresStore bound to a
// transaction is handed to WithTenantTx callbacks.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried on transient errors.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, retry resilience.RetryConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	retry.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id            BIGSERIAL PRIMARY KEY,
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
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE companies ADD COLUMN IF NOT EXISTS name_key TEXT NOT NULL DEFAULT '';
ALTER TABLE companies ADD COLUMN IF NOT EXISTS domain_key TEXT NOT NULL DEFAULT '';

DROP INDEX IF EXISTS idx_companies_tenant_domain;
DROP INDEX IF EXISTS idx_companies_tenant_name;
CREATE INDEX IF NOT EXISTS idx_companies_tenant_domain_key ON companies(tenant_id, domain_key) WHERE domain_key <> '';
CREATE INDEX IF NOT EXISTS idx_companies_tenant_name_key ON companies(tenant_id, name_key);

CREATE TABLE IF NOT EXISTS contacts (
	id                BIGSERIAL PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	company_id        BIGINT REFERENCES companies(id),
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
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE contacts ADD COLUMN IF NOT EXISTS first_name_key TEXT NOT NULL DEFAULT '';
ALTER TABLE contacts ADD COLUMN IF NOT EXISTS last_name_key TEXT NOT NULL DEFAULT '';
ALTER TABLE contacts ADD COLUMN IF NOT EXISTS email_key TEXT NOT NULL DEFAULT '';

DROP INDEX IF EXISTS idx_contacts_tenant_email;
DROP INDEX IF EXISTS idx_contacts_tenant_name;
CREATE INDEX IF NOT EXISTS idx_contacts_tenant_email_key ON contacts(tenant_id, email_key) WHERE email_key <> '';
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
	result       JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_tenant ON import_jobs(tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS import_job_rows (
	job_id         TEXT NOT NULL REFERENCES import_jobs(id) ON DELETE CASCADE,
	row_index      INTEGER NOT NULL,
	action         TEXT NOT NULL,
	match_type     TEXT NOT NULL DEFAULT '',
	contact_id     BIGINT,
	company_id     BIGINT,
	display_name   TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	company_action TEXT NOT NULL DEFAULT '',
	detail         JSONB NOT NULL,
	PRIMARY KEY (job_id, row_index)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

// WithTenantTx runs fn in a transaction holding a transaction-scoped
// advisory lock on the tenant, so concurrent imports for one tenant
// serialize their read-then-write matching.
func (s *PostgresStore) WithTenantTx(ctx context.Context, tenantID string, fn func(tx Records) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID); err != nil {
			return eris.Wrapf(err, "postgres: lock tenant %s", tenantID)
		}
		zap.L().Debug("postgres: tenant import lock acquired", zap.String("tenant_id", tenantID))
		return fn(&PostgresStore{pool: tx})
	})
}

// --- Companies ---

func (s *PostgresStore) FindCompanyByDomain(ctx context.Context, tenantID, domain string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = $1 AND domain_key = $2 ORDER BY id LIMIT 1`,
		tenantID, domain,
	)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find company by domain %s", domain)
	}
	return c, nil
}

func (s *PostgresStore) FindCompanyByName(ctx context.Context, tenantID, lowerName string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = $1 AND name_key = $2 ORDER BY id LIMIT 1`,
		tenantID, lowerName,
	)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find company by name")
	}
	return c, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	nameKey, domainKey := companyKeys(c)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (tenant_id, name, domain, website, industry, company_size, revenue_range,
			hq_city, hq_country, linkedin_url, description, tier, status, owner_id, batch_id, import_job_id,
			created_at, updated_at, name_key, domain_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`,
		c.TenantID, c.Name, c.Domain, c.Website, c.Industry, c.CompanySize, c.RevenueRange,
		c.HQCity, c.HQCountry, c.LinkedInURL, c.Description, c.Tier, c.Status, c.OwnerID,
		c.BatchID, c.ImportJobID, now, now, nameKey, domainKey,
	).Scan(&c.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert company %s", c.Name)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *PostgresStore) UpdateCompanyFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error {
	return s.updateFields(ctx, "companies", tenantID, id, fields, updatableCompanyColumn, companyKeyColumns)
}

// --- Contacts ---

func (s *PostgresStore) FindContactByEmail(ctx context.Context, tenantID, lowerEmail string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		contactSelect+` WHERE c.tenant_id = $1 AND c.email_key = $2 ORDER BY c.id LIMIT 1`,
		tenantID, lowerEmail,
	)
	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find contact by email")
	}
	return c, nil
}

func (s *PostgresStore) FindContactByNameAndCompany(ctx context.Context, tenantID, lowerFirst, lowerLast, lowerCompany string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		contactSelect+` WHERE c.tenant_id = $1 AND c.first_name_key = $2 AND c.last_name_key = $3
			AND co.name_key = $4 ORDER BY c.id LIMIT 1`,
		tenantID, lowerFirst, lowerLast, lowerCompany,
	)
	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find contact by name and company")
	}
	return c, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c *model.Contact) error {
	now := time.Now().UTC()
	firstKey, lastKey, emailKey := contactKeys(c)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contacts (tenant_id, company_id, first_name, last_name, email_address, linkedin_url,
			job_title, phone_number, location, department, seniority, source, enrichment_status,
			owner_id, batch_id, import_job_id, created_at, updated_at, first_name_key, last_name_key, email_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		c.TenantID, c.CompanyID, c.FirstName, c.LastName, c.EmailAddress, c.LinkedInURL,
		c.JobTitle, c.PhoneNumber, c.Location, c.Department, c.Seniority, c.Source,
		c.EnrichmentStatus, c.OwnerID, c.BatchID, c.ImportJobID, now, now, firstKey, lastKey, emailKey,
	).Scan(&c.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert contact %s", c.DisplayName())
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *PostgresStore) UpdateContactFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error {
	return s.updateFields(ctx, "contacts", tenantID, id, fields, updatableContactColumn, contactKeyColumns)
}

func (s *PostgresStore) updateFields(ctx context.Context, table, tenantID string, id int64, fields map[string]string, valid func(string) bool, keys map[string]keyColumn) error {
	if len(fields) == 0 {
		return nil
	}
	set, args, err := updateClause(fields, valid, keys, func(i int) string { return fmt.Sprintf("$%d", i) })
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", table)
	}
	n := len(args)
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = $%d WHERE tenant_id = $%d AND id = $%d`,
		table, set, n+1, n+2, n+3)
	args = append(args, time.Now().UTC(), tenantID, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %d", table, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %d", table, id)
	}
	return nil
}

// --- Import jobs ---

func (s *PostgresStore) CreateImportJob(ctx context.Context, job *model.ImportJob) error {
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = model.JobPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, tenant_id, owner_id, batch_id, source, strategy, status, total_rows, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.TenantID, job.OwnerID, job.BatchID, job.Source, string(job.Strategy),
		string(job.Status), job.TotalRows, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert import job %s", job.ID)
	}
	job.CreatedAt, job.UpdatedAt = now, now
	return nil
}

func (s *PostgresStore) UpdateImportJob(ctx context.Context, job *model.ImportJob) error {
	resultJSON, err := jobResultJSON(job)
	if err != nil {
		return eris.Wrap(err, "postgres: update import job")
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_jobs SET status = $1, result = $2, error = $3, completed_at = $4, updated_at = $5
		WHERE tenant_id = $6 AND id = $7`,
		string(job.Status), resultJSON, job.Error, job.CompletedAt, now, job.TenantID, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update import job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import job not found: %s", job.ID)
	}
	job.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetImportJob(ctx context.Context, tenantID, jobID string) (*model.ImportJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID,
	)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get import job %s", jobID)
	}
	return j, nil
}

// SaveImportRows bulk loads the audit trail with COPY.
func (s *PostgresStore) SaveImportRows(ctx context.Context, jobID string, rows []model.DedupRow) error {
	values, err := importRowValues(jobID, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save import rows")
	}
	if _, err := db.CopyRows(ctx, s.pool, "import_job_rows", importRowColumns, values); err != nil {
		return eris.Wrapf(err, "postgres: save import rows for job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListImportRows(ctx context.Context, tenantID, jobID string) ([]model.DedupRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.detail FROM import_job_rows r
		JOIN import_jobs j ON j.id = r.job_id
		WHERE j.tenant_id = $1 AND r.job_id = $2
		ORDER BY r.row_index`,
		tenantID, jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list import rows for job %s", jobID)
	}
	defer rows.Close()

	out := []model.DedupRow{}
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "postgres: scan import row")
		}
		r, err := decodeImportRow(detail)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list import rows")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate import rows")
}
