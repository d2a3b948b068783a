package model

import (
	"strings"

	"github.com/sells-group/leadimport/internal/normalize"
)

// ImportRow is one parsed input record: a contact and the company it works for.
type ImportRow struct {
	Contact ContactInput `json:"contact"`
	Company CompanyInput `json:"company"`
}

// ContactInput carries incoming contact fields. Empty strings are absent values.
type ContactInput struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	JobTitle     string `json:"job_title,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Location     string `json:"location,omitempty"`
	Department   string `json:"department,omitempty"`
	Seniority    string `json:"seniority,omitempty"`
}

// CompanyInput carries incoming company fields. Empty strings are absent values.
type CompanyInput struct {
	Name         string `json:"name,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Website      string `json:"website,omitempty"`
	Industry     string `json:"industry,omitempty"`
	CompanySize  string `json:"company_size,omitempty"`
	RevenueRange string `json:"revenue_range,omitempty"`
	HQCity       string `json:"hq_city,omitempty"`
	HQCountry    string `json:"hq_country,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Prepare returns a trimmed copy of the input. A full name fills missing
// first/last names, and a lone last name is promoted to the first name.
func (c ContactInput) Prepare() ContactInput {
	out := ContactInput{
		FirstName:    normalize.Collapse(c.FirstName),
		LastName:     normalize.Collapse(c.LastName),
		FullName:     normalize.Collapse(c.FullName),
		EmailAddress: normalize.Email(c.EmailAddress),
		JobTitle:     normalize.Collapse(c.JobTitle),
		LinkedInURL:  strings.TrimSpace(c.LinkedInURL),
		PhoneNumber:  strings.TrimSpace(c.PhoneNumber),
		Location:     normalize.Collapse(c.Location),
		Department:   normalize.Collapse(c.Department),
		Seniority:    normalize.Collapse(c.Seniority),
	}
	if out.FirstName == "" && out.LastName == "" && out.FullName != "" {
		out.FirstName, out.LastName = normalize.SplitFullName(out.FullName)
	}
	if out.FirstName == "" && out.LastName != "" {
		out.FirstName, out.LastName = out.LastName, ""
	}
	return out
}

// HasName reports whether the contact carries a usable name token.
func (c ContactInput) HasName() bool {
	return strings.TrimSpace(c.FirstName) != "" || strings.TrimSpace(c.LastName) != "" ||
		strings.TrimSpace(c.FullName) != ""
}

// Fields returns the non-empty fields keyed by contact field name.
func (c ContactInput) Fields() map[string]string {
	return nonEmpty(map[string]string{
		FieldFirstName:    c.FirstName,
		FieldLastName:     c.LastName,
		FieldEmailAddress: c.EmailAddress,
		FieldJobTitle:     c.JobTitle,
		FieldLinkedInURL:  c.LinkedInURL,
		FieldPhoneNumber:  c.PhoneNumber,
		FieldLocation:     c.Location,
		FieldDepartment:   c.Department,
		FieldSeniority:    c.Seniority,
	})
}

// Prepare returns a trimmed copy with the domain normalized. A missing
// domain is derived from the website.
func (c CompanyInput) Prepare() CompanyInput {
	out := CompanyInput{
		Name:         normalize.Collapse(c.Name),
		Domain:       normalize.Domain(c.Domain),
		Website:      strings.TrimSpace(c.Website),
		Industry:     normalize.Collapse(c.Industry),
		CompanySize:  normalize.Collapse(c.CompanySize),
		RevenueRange: normalize.Collapse(c.RevenueRange),
		HQCity:       normalize.Collapse(c.HQCity),
		HQCountry:    normalize.Collapse(c.HQCountry),
		LinkedInURL:  strings.TrimSpace(c.LinkedInURL),
		Description:  strings.TrimSpace(c.Description),
	}
	if out.Domain == "" {
		out.Domain = normalize.Domain(out.Website)
	}
	return out
}

// IsEmpty reports whether the input identifies no company at all.
func (c CompanyInput) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" && normalize.Domain(c.Domain) == "" &&
		normalize.Domain(c.Website) == ""
}

// Key is the in-batch identity of the company.
func (c CompanyInput) Key() string {
	d := c.Domain
	if d == "" {
		d = c.Website
	}
	return normalize.CompanyKey(c.Name, d)
}

// MatchKeys returns the company's domain key then its name key, skipping
// absent ones, in the order the matcher tries them.
func (c CompanyInput) MatchKeys() []string {
	d := c.Domain
	if d == "" {
		d = c.Website
	}
	var keys []string
	for _, k := range []string{normalize.CompanyDomainKey(d), normalize.CompanyNameKey(c.Name)} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Fields returns the non-empty fields keyed by company field name.
func (c CompanyInput) Fields() map[string]string {
	return nonEmpty(map[string]string{
		FieldCompanyName:  c.Name,
		FieldDomain:       c.Domain,
		FieldWebsite:      c.Website,
		FieldIndustry:     c.Industry,
		FieldCompanySize:  c.CompanySize,
		FieldRevenueRange: c.RevenueRange,
		FieldHQCity:       c.HQCity,
		FieldHQCountry:    c.HQCountry,
		FieldLinkedInURL:  c.LinkedInURL,
		FieldDescription:  c.Description,
	})
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			delete(m, k)
		}
	}
	return m
}
