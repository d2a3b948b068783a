package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadimport/internal/config"
	"github.com/sells-group/leadimport/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "leads.db"),
		},
		Import: config.ImportConfig{DefaultStrategy: "skip"},
		Retry:  config.RetryConfig{MaxAttempts: 2, InitialBackoffMs: 1, MaxBackoffMs: 5},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs c's RunE with the given context and returns what it printed.
func execute(t *testing.T, c *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetContext(context.TODO())
	})
	err := c.RunE(c, nil)
	return out.String(), err
}

func resetImportFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		importTenant, importFile, importSheet = "", "", ""
		importStrategy, importOwner, importBatch = "", "", ""
		mailboxPath, mailboxOwner, mailboxIgnore, mailboxPreview = "", "", nil, false
		jobsTenant, jobsRows = "", false
	})
}

const leadsCSV = "First Name,Last Name,Email,Company,Website\n" +
	"Ada,Lovelace,ada@acme.com,Acme,https://acme.com\n" +
	"Alan,Turing,alan@acme.com,ACME Inc,www.acme.com\n" +
	"Ada,Lovelace,ADA@acme.com,Acme,acme.com\n"

func TestImportPreview_PrintsDecisions(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	importFile = writeFile(t, "leads.csv", leadsCSV)

	out, err := execute(t, importPreviewCmd)
	require.NoError(t, err)

	var decisions []model.DedupDecision
	require.NoError(t, json.Unmarshal([]byte(out), &decisions))
	require.Len(t, decisions, 3)
	assert.Equal(t, model.ContactNew, decisions[0].ContactStatus)
	assert.Equal(t, model.CompanyNew, decisions[0].CompanyStatus)
	assert.Equal(t, model.ContactDuplicate, decisions[2].ContactStatus)
	assert.Equal(t, model.MatchEmailIntra, decisions[2].ContactMatchType)
}

func TestImportRun_ThenShowJob(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	importOwner = "u1"
	importFile = writeFile(t, "leads.csv", leadsCSV)

	out, err := execute(t, importRunCmd)
	require.NoError(t, err)

	var job model.ImportJob
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, model.SourceCSV, job.Source)
	assert.Equal(t, model.StrategySkip, job.Strategy)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.ContactsCreated)
	assert.Equal(t, 1, job.Result.ContactsSkipped)
	assert.Equal(t, 1, job.Result.CompaniesCreated)
	assert.Empty(t, job.Result.DedupRows)

	jobsTenant = "t1"
	jobsRows = true
	var rowsOut bytes.Buffer
	jobsShowCmd.SetOut(&rowsOut)
	jobsShowCmd.SetContext(context.Background())
	t.Cleanup(func() { jobsShowCmd.SetOut(nil) })
	require.NoError(t, jobsShowCmd.RunE(jobsShowCmd, []string{job.ID}))

	var rows []model.DedupRow
	require.NoError(t, json.Unmarshal(rowsOut.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, model.ActionCreated, rows[0].Action)
	assert.Equal(t, model.ActionSkipped, rows[2].Action)
}

func TestImportRun_InvalidStrategy(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	importStrategy = "merge"
	importFile = writeFile(t, "leads.csv", leadsCSV)

	_, err := execute(t, importRunCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
}

func TestImportRun_MissingFile(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	importFile = filepath.Join(t.TempDir(), "missing.csv")

	_, err := execute(t, importRunCmd)
	require.Error(t, err)
}

func TestImportRun_BadConfig(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	cfg.Store.Driver = "mysql"
	importTenant = "t1"
	importFile = writeFile(t, "leads.csv", leadsCSV)

	_, err := execute(t, importRunCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

const testMbox = "From ada@acme.com Mon Jan  1 00:00:00 2024\n" +
	"From: Ada <ada@acme.com>\n" +
	"To: me@mycorp.com\n" +
	"Subject: hello\n" +
	"\n" +
	"body\n" +
	"From grace@navy.mil Tue Jan  2 00:00:00 2024\n" +
	"From: grace@navy.mil\n" +
	"To: me@mycorp.com\n" +
	"Cc: Alan <alan@bletchley.org>, info@bletchley.org\n" +
	"\n" +
	"body\n"

func TestImportMailbox_Run(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	mailboxPath = writeFile(t, "inbox.mbox", testMbox)
	mailboxOwner = "me@mycorp.com"
	mailboxIgnore = []string{"navy.mil"}

	out, err := execute(t, importMailboxCmd)
	require.NoError(t, err)

	var job model.ImportJob
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, model.SourceMailbox, job.Source)
	assert.Equal(t, 2, job.TotalRows)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.ContactsCreated)
	assert.Equal(t, 2, job.Result.CompaniesCreated)
}

func TestImportMailbox_Preview(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	importTenant = "t1"
	mailboxPath = writeFile(t, "inbox.mbox", testMbox)
	mailboxOwner = "me@mycorp.com"
	mailboxPreview = true

	out, err := execute(t, importMailboxCmd)
	require.NoError(t, err)

	var decisions []model.DedupDecision
	require.NoError(t, json.Unmarshal([]byte(out), &decisions))
	assert.Len(t, decisions, 3)
}

func TestJobsShow_NotFound(t *testing.T) {
	resetImportFlags(t)
	cfg = testConfig(t)
	jobsTenant = "t1"

	jobsShowCmd.SetContext(context.Background())
	err := jobsShowCmd.RunE(jobsShowCmd, []string{"does-not-exist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMigrate_SQLite(t *testing.T) {
	cfg = testConfig(t)

	_, err := execute(t, migrateCmd)
	require.NoError(t, err)
	assert.FileExists(t, cfg.Store.SQLitePath)
}
