package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadimport/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Companies ---

func TestSQLite_CreateAndFindCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{TenantID: "t1", Name: "Acme Corp", Domain: "acme.com", Industry: "Software"}
	require.NoError(t, st.CreateCompany(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := st.FindCompanyByDomain(ctx, "t1", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Software", got.Industry)
	assert.False(t, got.CreatedAt.IsZero())

	got, err = st.FindCompanyByName(ctx, "t1", "acme corp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
}

func TestSQLite_FindCompany_TenantScoped(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateCompany(ctx, &model.Company{TenantID: "t2", Name: "Acme Corp", Domain: "acme.com"}))

	got, err := st.FindCompanyByDomain(ctx, "t1", "acme.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = st.FindCompanyByName(ctx, "t1", "acme corp")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_FindCompany_OldestWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.Company{TenantID: "t1", Name: "Acme"}
	require.NoError(t, st.CreateCompany(ctx, first))
	require.NoError(t, st.CreateCompany(ctx, &model.Company{TenantID: "t1", Name: "ACME"}))

	got, err := st.FindCompanyByName(ctx, "t1", "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestSQLite_FindCompany_NonASCIIName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{TenantID: "t1", Name: "ÉCOLE  Inc"}
	require.NoError(t, st.CreateCompany(ctx, c))

	got, err := st.FindCompanyByName(ctx, "t1", "école inc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "ÉCOLE  Inc", got.Name)
}

func TestSQLite_UpdateCompanyFields_RefreshesDomainKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{TenantID: "t1", Name: "Beta", Domain: "old.io"}
	require.NoError(t, st.CreateCompany(ctx, c))
	require.NoError(t, st.UpdateCompanyFields(ctx, "t1", c.ID, map[string]string{"domain": "https://WWW.Beta.IO/"}))

	got, err := st.FindCompanyByDomain(ctx, "t1", "beta.io")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	got, err = st.FindCompanyByDomain(ctx, "t1", "old.io")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpdateCompanyFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{TenantID: "t1", Name: "Acme", Domain: "acme.com"}
	require.NoError(t, st.CreateCompany(ctx, c))

	require.NoError(t, st.UpdateCompanyFields(ctx, "t1", c.ID, map[string]string{
		"industry": "Fintech",
		"hq_city":  "Austin",
	}))

	got, err := st.FindCompanyByDomain(ctx, "t1", "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Fintech", got.Industry)
	assert.Equal(t, "Austin", got.HQCity)

	err = st.UpdateCompanyFields(ctx, "t2", c.ID, map[string]string{"industry": "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = st.UpdateCompanyFields(ctx, "t1", c.ID, map[string]string{"tier": "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

// --- Contacts ---

func TestSQLite_CreateAndFindContact(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	co := &model.Company{TenantID: "t1", Name: "Acme Corp"}
	require.NoError(t, st.CreateCompany(ctx, co))

	c := &model.Contact{TenantID: "t1", CompanyID: &co.ID, FirstName: "John", LastName: "Smith",
		EmailAddress: "John@Acme.com", JobTitle: "CEO", Source: model.SourceCSV}
	require.NoError(t, st.CreateContact(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := st.FindContactByEmail(ctx, "t1", "john@acme.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Acme Corp", got.CompanyName)
	require.NotNil(t, got.CompanyID)
	assert.Equal(t, co.ID, *got.CompanyID)

	got, err = st.FindContactByNameAndCompany(ctx, "t1", "john", "smith", "acme corp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	got, err = st.FindContactByNameAndCompany(ctx, "t1", "john", "smith", "globex")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ContactWithoutCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Contact{TenantID: "t1", FirstName: "Solo", EmailAddress: "solo@gmail.com"}
	require.NoError(t, st.CreateContact(ctx, c))

	got, err := st.FindContactByEmail(ctx, "t1", "solo@gmail.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.CompanyID)
	assert.Empty(t, got.CompanyName)

	got, err = st.FindContactByNameAndCompany(ctx, "t1", "solo", "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_FindContact_NonASCII(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	co := &model.Company{TenantID: "t1", Name: "ÉCOLE Inc"}
	require.NoError(t, st.CreateCompany(ctx, co))
	c := &model.Contact{TenantID: "t1", CompanyID: &co.ID, FirstName: "Émile", LastName: "ZOLA",
		EmailAddress: "ÉMILE@École.fr"}
	require.NoError(t, st.CreateContact(ctx, c))

	got, err := st.FindContactByNameAndCompany(ctx, "t1", "émile", "zola", "école inc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	got, err = st.FindContactByEmail(ctx, "t1", "émile@école.fr")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
}

func TestSQLite_UpdateContactFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Contact{TenantID: "t1", FirstName: "John", EmailAddress: "john@acme.com"}
	require.NoError(t, st.CreateContact(ctx, c))

	require.NoError(t, st.UpdateContactFields(ctx, "t1", c.ID, map[string]string{"job_title": "CRO"}))

	got, err := st.FindContactByEmail(ctx, "t1", "john@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "CRO", got.JobTitle)

	err = st.UpdateContactFields(ctx, "t1", c.ID, map[string]string{"enrichment_status": "done"})
	require.Error(t, err)
}

// --- Import jobs ---

func TestSQLite_ImportJobLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := &model.ImportJob{ID: "job-1", TenantID: "t1", BatchID: "b1", Source: model.SourceCSV,
		Strategy: model.StrategySkip, Status: model.JobRunning, TotalRows: 2}
	require.NoError(t, st.CreateImportJob(ctx, job))

	got, err := st.GetImportJob(ctx, "t1", "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobRunning, got.Status)
	assert.Equal(t, model.StrategySkip, got.Strategy)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.CompletedAt)

	done := time.Now().UTC()
	job.Status = model.JobCompleted
	job.CompletedAt = &done
	job.Result = &model.ImportResult{
		ContactsCreated: 1,
		ContactsErrored: 1,
		DedupRows: []model.DedupRow{
			{Row: 0, Action: model.ActionCreated, ContactID: 5, FieldsUpdated: []string{}, Conflicts: []model.Conflict{}},
			{Row: 1, Action: model.ActionError, Reason: model.ReasonNoName, FieldsUpdated: []string{}, Conflicts: []model.Conflict{}},
		},
	}
	require.NoError(t, st.UpdateImportJob(ctx, job))
	require.NoError(t, st.SaveImportRows(ctx, job.ID, job.Result.DedupRows))

	got, err = st.GetImportJob(ctx, "t1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.ContactsCreated)
	assert.Nil(t, got.Result.DedupRows)
	require.NotNil(t, got.CompletedAt)

	rows, err := st.ListImportRows(ctx, "t1", "job-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.ActionCreated, rows[0].Action)
	assert.Equal(t, int64(5), rows[0].ContactID)
	assert.Equal(t, model.ReasonNoName, rows[1].Reason)

	rows, err = st.ListImportRows(ctx, "t2", "job-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLite_GetImportJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetImportJob(context.Background(), "t1", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpdateImportJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateImportJob(context.Background(), &model.ImportJob{ID: "missing", TenantID: "t1", Status: model.JobFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import job not found")
}

// --- Transactions ---

func TestSQLite_WithTenantTx_Commit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.WithTenantTx(ctx, "t1", func(tx Records) error {
		return tx.CreateCompany(ctx, &model.Company{TenantID: "t1", Name: "Acme"})
	})
	require.NoError(t, err)

	got, err := st.FindCompanyByName(ctx, "t1", "acme")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLite_WithTenantTx_Rollback(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTenantTx(ctx, "t1", func(tx Records) error {
		if err := tx.CreateCompany(ctx, &model.Company{TenantID: "t1", Name: "Acme"}); err != nil {
			return err
		}
		found, err := tx.FindCompanyByName(ctx, "t1", "acme")
		if err != nil {
			return err
		}
		assert.NotNil(t, found)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := st.FindCompanyByName(ctx, "t1", "acme")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
