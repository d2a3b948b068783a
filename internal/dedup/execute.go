package dedup

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// Batch-level errors. Execute returns them before touching the datastore.
var (
	ErrMissingTenant   = errors.New("dedup: tenant_id is required")
	ErrInvalidStrategy = errors.New("dedup: invalid strategy")
)

// Writer is the write side of the tenant datastore. Create methods assign
// the record ID. Update methods persist only the named columns.
type Writer interface {
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompanyFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error
	CreateContact(ctx context.Context, c *model.Contact) error
	UpdateContactFields(ctx context.Context, tenantID string, id int64, fields map[string]string) error
}

// ReadWriter is the datastore view the executor needs.
type ReadWriter interface {
	Reader
	Writer
}

// ExecuteParams identifies the batch being imported.
type ExecuteParams struct {
	TenantID    string
	BatchID     string
	OwnerID     string
	ImportJobID string
	Source      string
	Strategy    model.Strategy
}

// Executor applies import decisions row by row.
type Executor struct {
	store   ReadWriter
	matcher *Matcher
	opts    Options
}

// NewExecutor creates an executor. Empty whitelists fall back to the defaults.
func NewExecutor(store ReadWriter, opts Options) *Executor {
	return &Executor{
		store:   store,
		matcher: NewMatcher(store),
		opts:    opts.WithDefaults(),
	}
}

// run holds the state of one Execute call.
type run struct {
	params    ExecuteParams
	result    *model.ImportResult
	companies map[string]*model.Company
	created   map[int64]bool
}

// Execute imports rows in input order. Companies are resolved or created
// before the contacts that reference them. Rows without a name are recorded
// as errors and do not stop the batch. A datastore error aborts the batch;
// callers run Execute inside a transaction so nothing partial is committed.
func (e *Executor) Execute(ctx context.Context, p ExecuteParams, rows []model.ImportRow) (*model.ImportResult, error) {
	if p.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if !p.Strategy.Valid() {
		return nil, ErrInvalidStrategy
	}

	r := &run{
		params: p,
		result: &model.ImportResult{
			DedupRows: make([]model.DedupRow, 0, len(rows)),
		},
		companies: make(map[string]*model.Company),
		created:   make(map[int64]bool),
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := e.executeRow(ctx, r, i, row)
		if err != nil {
			return nil, eris.Wrapf(err, "dedup: import row %d", i)
		}
		r.result.DedupRows = append(r.result.DedupRows, entry)
	}

	res := r.result
	zap.L().Info("dedup: import complete",
		zap.String("tenant_id", p.TenantID),
		zap.String("batch_id", p.BatchID),
		zap.String("strategy", string(p.Strategy)),
		zap.Int("rows", len(rows)),
		zap.Int("contacts_created", res.ContactsCreated),
		zap.Int("contacts_updated", res.ContactsUpdated),
		zap.Int("contacts_skipped", res.ContactsSkipped),
		zap.Int("contacts_errored", res.ContactsErrored),
		zap.Int("companies_created", res.CompaniesCreated),
		zap.Int("companies_linked", res.CompaniesLinked),
	)
	return res, nil
}

func (e *Executor) executeRow(ctx context.Context, r *run, i int, row model.ImportRow) (model.DedupRow, error) {
	contact := row.Contact.Prepare()
	companyIn := row.Company.Prepare()

	entry := model.DedupRow{
		Row:           i,
		FieldsUpdated: []string{},
		Conflicts:     []model.Conflict{},
		CompanyAction: model.CompanyActionNone,
	}

	if !contact.HasName() {
		entry.Action = model.ActionError
		entry.Reason = model.ReasonNoName
		entry.DisplayName = contact.EmailAddress
		r.result.ContactsErrored++
		zap.L().Debug("dedup: row has no name", zap.Int("row", i))
		return entry, nil
	}

	company, err := e.resolveCompany(ctx, r, companyIn, &entry)
	if err != nil {
		return entry, err
	}

	companyName := companyIn.Name
	var companyID *int64
	if company != nil {
		companyName = company.Name
		id := company.ID
		companyID = &id
		entry.CompanyID = company.ID
	}

	existing, mt, err := e.matcher.FindExistingContact(ctx, r.params.TenantID,
		contact.EmailAddress, contact.FirstName, contact.LastName, companyName)
	if err != nil {
		return entry, err
	}
	if existing != nil && r.created[existing.ID] {
		mt = intraMatchType(mt)
	}
	entry.MatchType = mt

	if existing == nil || r.params.Strategy == model.StrategyCreateNew {
		c := e.newContact(r.params, contact, companyID, companyName)
		if err := e.store.CreateContact(ctx, c); err != nil {
			return entry, eris.Wrap(err, "dedup: create contact")
		}
		r.created[c.ID] = true
		r.result.ContactsCreated++
		entry.Action = model.ActionCreated
		entry.ContactID = c.ID
		entry.DisplayName = c.DisplayName()
		return entry, nil
	}

	entry.ContactID = existing.ID
	entry.DisplayName = existing.DisplayName()

	if r.params.Strategy == model.StrategySkip {
		r.result.ContactsSkipped++
		entry.Action = model.ActionSkipped
		return entry, nil
	}

	updated, conflicts := UpdateEmptyFields(existing, contact.Fields(), e.opts.ContactFields)
	if len(updated) > 0 {
		if err := e.store.UpdateContactFields(ctx, r.params.TenantID, existing.ID, pick(existing, updated)); err != nil {
			return entry, eris.Wrap(err, "dedup: update contact")
		}
	}
	r.result.ContactsUpdated++
	entry.Action = model.ActionUpdated
	entry.FieldsUpdated = updated
	entry.Conflicts = conflicts
	return entry, nil
}

// resolveCompany links the row to a company resolved earlier in this run,
// then to a stored company, and creates one otherwise. It returns nil when
// the row carries no company.
func (e *Executor) resolveCompany(ctx context.Context, r *run, in model.CompanyInput, entry *model.DedupRow) (*model.Company, error) {
	if in.IsEmpty() {
		return nil, nil
	}

	key := in.Key()
	company, ok := r.companies[key]
	if ok {
		entry.CompanyMatchType = matchTypeFor(company, in)
	} else {
		existing, mt, err := e.matcher.FindExistingCompany(ctx, r.params.TenantID, in.Name, in.Domain)
		if err != nil {
			return nil, err
		}
		company = existing
		entry.CompanyMatchType = mt
	}

	if company == nil {
		company = e.newCompany(r.params, in)
		if err := e.store.CreateCompany(ctx, company); err != nil {
			return nil, eris.Wrap(err, "dedup: create company")
		}
		r.companies[key] = company
		r.result.CompaniesCreated++
		entry.CompanyAction = model.CompanyActionCreated
		zap.L().Debug("dedup: created company",
			zap.String("tenant_id", r.params.TenantID),
			zap.String("name", company.Name),
			zap.Int64("company_id", company.ID),
		)
		return company, nil
	}

	r.companies[key] = company
	r.result.CompaniesLinked++
	entry.CompanyAction = model.CompanyActionLinked

	if r.params.Strategy == model.StrategyUpdate {
		updated, conflicts := UpdateEmptyFields(company, in.Fields(), e.opts.CompanyFields)
		if len(updated) > 0 {
			if err := e.store.UpdateCompanyFields(ctx, r.params.TenantID, company.ID, pick(company, updated)); err != nil {
				return nil, eris.Wrap(err, "dedup: update company")
			}
		}
		entry.CompanyFieldsUpdated = updated
		entry.CompanyConflicts = conflicts
	}
	return company, nil
}

func (e *Executor) newCompany(p ExecuteParams, in model.CompanyInput) *model.Company {
	c := &model.Company{
		TenantID:    p.TenantID,
		OwnerID:     p.OwnerID,
		BatchID:     p.BatchID,
		ImportJobID: p.ImportJobID,
	}
	for field, v := range in.Fields() {
		c.SetField(field, v)
	}
	if c.Name == "" {
		c.Name = c.Domain
	}
	return c
}

func (e *Executor) newContact(p ExecuteParams, in model.ContactInput, companyID *int64, companyName string) *model.Contact {
	c := &model.Contact{
		TenantID:    p.TenantID,
		CompanyID:   companyID,
		CompanyName: companyName,
		Source:      p.Source,
		OwnerID:     p.OwnerID,
		BatchID:     p.BatchID,
		ImportJobID: p.ImportJobID,
	}
	for field, v := range in.Fields() {
		c.SetField(field, v)
	}
	return c
}

// matchTypeFor reports which rule links in to a company cached by key.
func matchTypeFor(c *model.Company, in model.CompanyInput) model.MatchType {
	if in.Domain != "" && normalize.Domain(c.Domain) == in.Domain {
		return model.MatchDomain
	}
	return model.MatchName
}

// pick returns the current values of the named fields.
func pick(rec Fielder, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, _ := rec.FieldValue(f)
		out[f] = v
	}
	return out
}
