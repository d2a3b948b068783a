// Package store persists tenant companies, contacts and import jobs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// Records is the tenant record surface used by the import engine. A Store
// and the transaction handed out by WithTenantTx both implement it.
type Records interface {
	FindCompanyByDomain(ctx context.Context, tenantID, domain string) (*model.Company, error)
	FindCompanyByName(ctx context.Context, tenantID, lowerName string) (*model.Company, error)
	FindContactByEmail(ctx context.Context, tenantID, lowerEmail string) (*model.Contact, error)
	FindContactByNameAndCompany(ctx context.Context, tenantID, lowerFirst, lowerLast, lowerCompany string) (*model.Contact, error)

	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompanyFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error
	CreateContact(ctx context.Context, c *model.Contact) error
	UpdateContactFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error

	// SaveImportRows records the per-row audit trail of a job.
	SaveImportRows(ctx context.Context, jobID string, rows []model.DedupRow) error
}

// Store defines the persistence interface for lead imports.
type Store interface {
	Records

	// Import jobs
	CreateImportJob(ctx context.Context, job *model.ImportJob) error
	UpdateImportJob(ctx context.Context, job *model.ImportJob) error
	GetImportJob(ctx context.Context, tenantID, jobID string) (*model.ImportJob, error)
	ListImportRows(ctx context.Context, tenantID, jobID string) ([]model.DedupRow, error)

	// WithTenantTx runs fn in a single transaction that holds the tenant's
	// import lock. fn's error rolls the transaction back.
	WithTenantTx(ctx context.Context, tenantID string, fn func(tx Records) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const companyColumns = `id, tenant_id, name, domain, website, industry, company_size, revenue_range,
	hq_city, hq_country, linkedin_url, description, tier, status, owner_id, batch_id, import_job_id,
	created_at, updated_at`

// contactSelect reads contacts joined with their company name. Columns are
// qualified with the "c" and "co" aliases.
const contactSelect = `SELECT c.id, c.tenant_id, c.company_id, COALESCE(co.name, ''), c.first_name,
	c.last_name, c.email_address, c.linkedin_url, c.job_title, c.phone_number, c.location,
	c.department, c.seniority, c.source, c.enrichment_status, c.owner_id, c.batch_id,
	c.import_job_id, c.created_at, c.updated_at
FROM contacts c
LEFT JOIN companies co ON co.id = c.company_id AND co.tenant_id = c.tenant_id`

const jobColumns = `id, tenant_id, owner_id, batch_id, source, strategy, status, total_rows,
	result, error, created_at, updated_at, completed_at`

// importRowColumns are the columns of import_job_rows, in insert order.
var importRowColumns = []string{
	"job_id", "row_index", "action", "match_type", "contact_id", "company_id",
	"display_name", "reason", "company_action", "detail",
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Domain, &c.Website, &c.Industry,
		&c.CompanySize, &c.RevenueRange, &c.HQCity, &c.HQCountry, &c.LinkedInURL,
		&c.Description, &c.Tier, &c.Status, &c.OwnerID, &c.BatchID, &c.ImportJobID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.CompanyName, &c.FirstName,
		&c.LastName, &c.EmailAddress, &c.LinkedInURL, &c.JobTitle, &c.PhoneNumber,
		&c.Location, &c.Department, &c.Seniority, &c.Source, &c.EnrichmentStatus,
		&c.OwnerID, &c.BatchID, &c.ImportJobID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanJob(row scannable) (*model.ImportJob, error) {
	var j model.ImportJob
	var resultJSON []byte
	err := row.Scan(&j.ID, &j.TenantID, &j.OwnerID, &j.BatchID, &j.Source, &j.Strategy,
		&j.Status, &j.TotalRows, &resultJSON, &j.Error, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(resultJSON) > 0 {
		j.Result = &model.ImportResult{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal import result")
		}
	}
	return &j, nil
}

// jobResultJSON encodes the job's counts without the audit trail, which
// lives in import_job_rows.
func jobResultJSON(j *model.ImportJob) ([]byte, error) {
	if j.Result == nil {
		return nil, nil
	}
	b, err := json.Marshal(j.Summary().Result)
	if err != nil {
		return nil, eris.Wrap(err, "marshal import result")
	}
	return b, nil
}

// importRowValues flattens audit rows into import_job_rows values.
func importRowValues(jobID string, rows []model.DedupRow) ([][]any, error) {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		detail, err := json.Marshal(r)
		if err != nil {
			return nil, eris.Wrapf(err, "marshal import row %d", r.Row)
		}
		out = append(out, []any{
			jobID, r.Row, string(r.Action), string(r.MatchType), nullID(r.ContactID),
			nullID(r.CompanyID), r.DisplayName, r.Reason, string(r.CompanyAction), detail,
		})
	}
	return out, nil
}

func decodeImportRow(detail []byte) (model.DedupRow, error) {
	var r model.DedupRow
	if err := json.Unmarshal(detail, &r); err != nil {
		return r, eris.Wrap(err, "unmarshal import row")
	}
	return r, nil
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// keyColumn is a match key stored next to the column it derives from.
// Lookups compare keys with plain equality, so matching never depends on
// the database's LOWER, which only folds ASCII in SQLite and follows the
// collation locale in Postgres.
type keyColumn struct {
	name string
	key  func(string) string
}

var companyKeyColumns = map[string]keyColumn{
	model.FieldCompanyName: {name: "name_key", key: normalize.Lower},
	model.FieldDomain:      {name: "domain_key", key: normalize.Domain},
}

var contactKeyColumns = map[string]keyColumn{
	model.FieldFirstName:    {name: "first_name_key", key: normalize.Lower},
	model.FieldLastName:     {name: "last_name_key", key: normalize.Lower},
	model.FieldEmailAddress: {name: "email_key", key: normalize.Email},
}

func companyKeys(c *model.Company) (nameKey, domainKey string) {
	return normalize.Lower(c.Name), normalize.Domain(c.Domain)
}

func contactKeys(c *model.Contact) (firstKey, lastKey, emailKey string) {
	return normalize.Lower(c.FirstName), normalize.Lower(c.LastName), normalize.Email(c.EmailAddress)
}

// updateClause builds "col = <p1>, col2 = <p2>" for the given fields in
// column order. Every name must be accepted by valid. A field with a match
// key also rewrites the key column.
func updateClause(fields map[string]string, valid func(string) bool, keys map[string]keyColumn, placeholder func(int) string) (string, []any, error) {
	values := make(map[string]string, len(fields))
	for name, v := range fields {
		if !valid(name) {
			return "", nil, eris.Errorf("unknown column %q", name)
		}
		values[name] = v
		if k, ok := keys[name]; ok {
			values[k.name] = k.key(v)
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = %s", name, placeholder(i+1)))
		args = append(args, values[name])
	}
	return strings.Join(sets, ", "), args, nil
}

// Import may not write identity or downstream-owned columns.
func updatableContactColumn(name string) bool {
	if name == model.FieldFirstName || name == model.FieldEnrichmentStatus {
		return false
	}
	_, ok := (&model.Contact{}).FieldValue(name)
	return ok
}

func updatableCompanyColumn(name string) bool {
	if name == model.FieldCompanyName || name == model.FieldTier || name == model.FieldStatus {
		return false
	}
	_, ok := (&model.Company{}).FieldValue(name)
	return ok
}
