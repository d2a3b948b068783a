package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy Strategy
		want     bool
	}{
		{StrategySkip, true},
		{StrategyUpdate, true},
		{StrategyCreateNew, true},
		{"", false},
		{"merge", false},
		{"SKIP", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.strategy), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.strategy.Valid())
		})
	}
}

func TestMatchType_IsIntra(t *testing.T) {
	assert.True(t, MatchEmailIntra.IsIntra())
	assert.True(t, MatchNameCompanyIntra.IsIntra())
	assert.False(t, MatchEmail.IsIntra())
	assert.False(t, MatchNone.IsIntra())
}

func TestContactFieldAccess(t *testing.T) {
	c := &Contact{FirstName: "John", JobTitle: "CEO"}

	v, ok := c.FieldValue(FieldJobTitle)
	require.True(t, ok)
	assert.Equal(t, "CEO", v)

	assert.True(t, c.SetField(FieldPhoneNumber, "+1 555 0100"))
	assert.Equal(t, "+1 555 0100", c.PhoneNumber)

	_, ok = c.FieldValue("tenant_id")
	assert.False(t, ok)
	assert.False(t, c.SetField("id", "7"))
}

func TestCompanyFieldAccess(t *testing.T) {
	c := &Company{Name: "Acme"}

	assert.True(t, c.SetField(FieldIndustry, "Software"))
	v, ok := c.FieldValue(FieldIndustry)
	require.True(t, ok)
	assert.Equal(t, "Software", v)

	assert.False(t, c.SetField("owner_id", "u1"))
}

func TestContactDisplayName(t *testing.T) {
	assert.Equal(t, "John Smith", (&Contact{FirstName: "John", LastName: "Smith"}).DisplayName())
	assert.Equal(t, "John", (&Contact{FirstName: "John"}).DisplayName())
	assert.Equal(t, "j@acme.com", (&Contact{EmailAddress: "j@acme.com"}).DisplayName())
}

func TestContactInputPrepare(t *testing.T) {
	in := ContactInput{
		FullName:     "  Jane   Doe ",
		EmailAddress: " Jane@ACME.com ",
		JobTitle:     " VP  Sales ",
	}
	out := in.Prepare()
	assert.Equal(t, "Jane", out.FirstName)
	assert.Equal(t, "Doe", out.LastName)
	assert.Equal(t, "jane@acme.com", out.EmailAddress)
	assert.Equal(t, "VP Sales", out.JobTitle)
}

func TestContactInputPrepare_PromotesLastName(t *testing.T) {
	out := ContactInput{LastName: "Prince"}.Prepare()
	assert.Equal(t, "Prince", out.FirstName)
	assert.Empty(t, out.LastName)
}

func TestContactInputHasName(t *testing.T) {
	assert.True(t, ContactInput{FirstName: "A"}.HasName())
	assert.True(t, ContactInput{LastName: "B"}.HasName())
	assert.True(t, ContactInput{FullName: "A B"}.HasName())
	assert.False(t, ContactInput{EmailAddress: "a@b.com"}.HasName())
	assert.False(t, ContactInput{FirstName: "   "}.HasName())
}

func TestContactInputFields_OmitsEmpty(t *testing.T) {
	fields := ContactInput{FirstName: "John", JobTitle: "CRO", Location: " "}.Fields()
	assert.Equal(t, map[string]string{FieldFirstName: "John", FieldJobTitle: "CRO"}, fields)
}

func TestCompanyInputPrepare(t *testing.T) {
	out := CompanyInput{Name: " Acme  Corp ", Website: "https://www.acme.com/about"}.Prepare()
	assert.Equal(t, "Acme Corp", out.Name)
	assert.Equal(t, "acme.com", out.Domain)
	assert.Equal(t, "domain:acme.com", out.Key())

	out = CompanyInput{Name: "Acme", Domain: "HTTP://Acme.io/"}.Prepare()
	assert.Equal(t, "acme.io", out.Domain)
}

func TestCompanyInputMatchKeys(t *testing.T) {
	assert.Equal(t, []string{"domain:acme.com", "name:acme corp"},
		CompanyInput{Name: "ACME Corp", Website: "www.acme.com"}.MatchKeys())
	assert.Equal(t, []string{"name:acme"}, CompanyInput{Name: "Acme"}.MatchKeys())
	assert.Empty(t, CompanyInput{}.MatchKeys())
}

func TestCompanyInputIsEmpty(t *testing.T) {
	assert.True(t, CompanyInput{}.IsEmpty())
	assert.True(t, CompanyInput{Industry: "Software"}.IsEmpty())
	assert.False(t, CompanyInput{Website: "acme.com"}.IsEmpty())
	assert.False(t, CompanyInput{Name: "Acme"}.IsEmpty())
}

func TestImportJobSummary(t *testing.T) {
	job := &ImportJob{
		ID: "job-1",
		Result: &ImportResult{
			ContactsCreated: 2,
			DedupRows:       []DedupRow{{Row: 0}, {Row: 1}},
		},
	}
	s := job.Summary()
	assert.Nil(t, s.Result.DedupRows)
	assert.Equal(t, 2, s.Result.ContactsCreated)
	assert.Len(t, job.Result.DedupRows, 2)
}
