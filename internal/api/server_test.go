package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadimport/internal/dedup"
	"github.com/sells-group/leadimport/internal/importjob"
	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/store"
)

type fakeImporter struct {
	previewReq importjob.PreviewRequest
	executeReq importjob.ExecuteRequest
	job        *model.ImportJob
	rows       []model.DedupRow
	err        error
}

func (f *fakeImporter) Preview(_ context.Context, req importjob.PreviewRequest) ([]model.DedupDecision, error) {
	f.previewReq = req
	if f.err != nil {
		return nil, f.err
	}
	return []model.DedupDecision{{Row: 0, ContactStatus: model.ContactNew, CompanyStatus: model.CompanyNone}}, nil
}

func (f *fakeImporter) Execute(_ context.Context, req importjob.ExecuteRequest) (*model.ImportJob, error) {
	f.executeReq = req
	return f.job, f.err
}

func (f *fakeImporter) Job(_ context.Context, _, _ string) (*model.ImportJob, error) {
	return f.job, f.err
}

func (f *fakeImporter) JobRows(_ context.Context, _, _ string) ([]model.DedupRow, error) {
	return f.rows, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{Pinger: func(context.Context) error { return errors.New("conn refused") }})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{})
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPreview_PassesTenantAndRows(t *testing.T) {
	f := &fakeImporter{}
	h := NewRouter(f, Config{})

	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview",
		`{"rows":[{"contact":{"first_name":"Ada"},"company":{}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", f.previewReq.TenantID)
	require.Len(t, f.previewReq.Rows, 1)
	assert.Equal(t, "Ada", f.previewReq.Rows[0].Contact.FirstName)

	var resp previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Decisions, 1)
}

func TestPreview_BadBody(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{})
	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview", `{"rows":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview", `{"rowz":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecute_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid strategy", dedup.ErrInvalidStrategy, http.StatusBadRequest},
		{"missing tenant", dedup.ErrMissingTenant, http.StatusBadRequest},
		{"invalid request", importjob.ErrInvalidRequest, http.StatusBadRequest},
		{"datastore", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&fakeImporter{err: tt.err}, Config{})
			rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports", `{"strategy":"skip","rows":[]}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestExecute_FailedJobIncluded(t *testing.T) {
	job := &model.ImportJob{ID: "job-1", Status: model.JobFailed, Error: "disk full"}
	h := NewRouter(&fakeImporter{job: job, err: errors.New("disk full")}, Config{})

	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports", `{"rows":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "disk full", resp.Error)
	require.NotNil(t, resp.Job)
	assert.Equal(t, "job-1", resp.Job.ID)
}

func TestExtensionLeads_DefaultsToSkip(t *testing.T) {
	f := &fakeImporter{job: &model.ImportJob{ID: "job-1"}}
	h := NewRouter(f, Config{})

	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/extension/leads?owner_id=u9",
		`{"full_name":"Ada Lovelace","company":{"name":"Acme"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StrategySkip, f.executeReq.Strategy)
	assert.Equal(t, model.SourceExtension, f.executeReq.Source)
	assert.Equal(t, "u9", f.executeReq.OwnerID)
	require.Len(t, f.executeReq.Rows, 1)
	assert.Equal(t, "Acme", f.executeReq.Rows[0].Company.Name)
}

func TestExtensionLeads_BadBody(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{})
	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/extension/leads", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	h := NewRouter(&fakeImporter{err: importjob.ErrJobNotFound}, Config{})
	rec := do(t, h, http.MethodGet, "/v1/tenants/t1/imports/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/tenants/t1/imports/nope/rows", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{RateLimitRPS: 0.001, RateBurst: 1})
	body := `{"rows":[]}`

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview", body).Code)
	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other tenants have their own bucket.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/tenants/t2/imports/preview", body).Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(&fakeImporter{}, Config{AllowedOrigins: []string{"https://app.example.com"}})
	req := httptest.NewRequest(http.MethodOptions, "/v1/tenants/t1/imports", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndToEnd_SQLite(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	svc, err := importjob.New(st, importjob.Config{})
	require.NoError(t, err)
	h := NewRouter(svc, Config{Pinger: st.Ping})

	rows := `[{"contact":{"first_name":"Ada","last_name":"Lovelace","email_address":"ada@acme.com"},"company":{"name":"Acme","domain":"acme.com"}},
		{"contact":{"email_address":"nobody@acme.com"},"company":{"name":"Acme"}}]`

	rec := do(t, h, http.MethodPost, "/v1/tenants/t1/imports", `{"strategy":"skip","source":"csv","rows":`+rows+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var job model.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.ContactsCreated)
	assert.Equal(t, 1, job.Result.ContactsErrored)

	rec = do(t, h, http.MethodGet, "/v1/tenants/t1/imports/"+job.ID+"/rows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rr rowsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rr))
	require.Len(t, rr.Rows, 2)
	assert.Equal(t, model.ActionError, rr.Rows[1].Action)
	assert.Equal(t, model.ReasonNoName, rr.Rows[1].Reason)

	rec = do(t, h, http.MethodPost, "/v1/tenants/t1/imports/preview", `{"rows":`+rows+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var pr previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pr))
	require.Len(t, pr.Decisions, 2)
	assert.Equal(t, model.ContactDuplicate, pr.Decisions[0].ContactStatus)
	assert.Equal(t, model.CompanyExisting, pr.Decisions[0].CompanyStatus)

	rec = do(t, h, http.MethodGet, "/v1/tenants/t2/imports/"+job.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}
