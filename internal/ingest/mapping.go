// Package ingest turns spreadsheets, browser-extension payloads and mailbox
// headers into import rows.
package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadimport/internal/model"
)

// Column targets. Contact targets are prefixed "contact.", company targets
// "company.".
const (
	TargetFirstName     = "contact.first_name"
	TargetLastName      = "contact.last_name"
	TargetFullName      = "contact.full_name"
	TargetEmail         = "contact.email_address"
	TargetJobTitle      = "contact.job_title"
	TargetContactLinked = "contact.linkedin_url"
	TargetPhone         = "contact.phone_number"
	TargetLocation      = "contact.location"
	TargetDepartment    = "contact.department"
	TargetSeniority     = "contact.seniority"
	TargetCompanyName   = "company.name"
	TargetDomain        = "company.domain"
	TargetWebsite       = "company.website"
	TargetIndustry      = "company.industry"
	TargetCompanySize   = "company.company_size"
	TargetRevenueRange  = "company.revenue_range"
	TargetHQCity        = "company.hq_city"
	TargetHQCountry     = "company.hq_country"
	TargetCompanyLinked = "company.linkedin_url"
	TargetDescription   = "company.description"
)

// Aliases maps a normalized header to a column target.
type Aliases map[string]string

// DefaultAliases returns the built-in header aliases.
func DefaultAliases() Aliases {
	return Aliases{
		"first name": TargetFirstName, "firstname": TargetFirstName, "fname": TargetFirstName,
		"given name": TargetFirstName,
		"last name": TargetLastName, "lastname": TargetLastName, "lname": TargetLastName,
		"surname": TargetLastName, "family name": TargetLastName,
		"name": TargetFullName, "full name": TargetFullName, "fullname": TargetFullName,
		"contact name": TargetFullName,
		"email": TargetEmail, "e-mail": TargetEmail, "email address": TargetEmail,
		"work email": TargetEmail, "e-mail address": TargetEmail,
		"title": TargetJobTitle, "job title": TargetJobTitle, "position": TargetJobTitle,
		"role": TargetJobTitle,
		"linkedin": TargetContactLinked, "linkedin url": TargetContactLinked,
		"linkedin profile": TargetContactLinked, "person linkedin url": TargetContactLinked,
		"phone": TargetPhone, "phone number": TargetPhone, "mobile": TargetPhone,
		"mobile phone": TargetPhone, "direct phone": TargetPhone,
		"location": TargetLocation, "city": TargetLocation,
		"department": TargetDepartment,
		"seniority": TargetSeniority,
		"company": TargetCompanyName, "company name": TargetCompanyName,
		"organization": TargetCompanyName, "organisation": TargetCompanyName,
		"account": TargetCompanyName, "account name": TargetCompanyName,
		"domain": TargetDomain, "company domain": TargetDomain, "email domain": TargetDomain,
		"website": TargetWebsite, "company website": TargetWebsite, "url": TargetWebsite,
		"web site": TargetWebsite,
		"industry": TargetIndustry,
		"company size": TargetCompanySize, "employees": TargetCompanySize,
		"# employees": TargetCompanySize, "headcount": TargetCompanySize,
		"revenue": TargetRevenueRange, "annual revenue": TargetRevenueRange,
		"revenue range": TargetRevenueRange,
		"hq city": TargetHQCity, "company city": TargetHQCity,
		"hq country": TargetHQCountry, "company country": TargetHQCountry, "country": TargetHQCountry,
		"company linkedin": TargetCompanyLinked, "company linkedin url": TargetCompanyLinked,
		"description": TargetDescription, "company description": TargetDescription,
	}
}

// LoadAliases reads a YAML file of header aliases and merges it over the
// defaults. The file maps a target to the headers that name it:
//
//	contact.first_name: [vorname, prenom]
//	company.name: [firma]
func LoadAliases(path string) (Aliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read aliases %s", path)
	}
	var byTarget map[string][]string
	if err := yaml.Unmarshal(data, &byTarget); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse aliases %s", path)
	}
	for target, headers := range byTarget {
		if !validTarget(target) {
			return nil, eris.Errorf("ingest: unknown alias target %q", target)
		}
		for _, h := range headers {
			aliases[normalizeHeader(h)] = target
		}
	}
	return aliases, nil
}

// Mapping assigns column indexes to targets.
type Mapping struct {
	columns map[int]string
}

// NewMapping resolves headers through aliases. Unknown headers are ignored,
// and the first column naming a target wins.
func NewMapping(headers []string, aliases Aliases) Mapping {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	m := Mapping{columns: make(map[int]string)}
	taken := make(map[string]bool)
	for i, h := range headers {
		target, ok := aliases[normalizeHeader(h)]
		if !ok || taken[target] {
			continue
		}
		taken[target] = true
		m.columns[i] = target
	}
	return m
}

// Len reports how many columns are mapped.
func (m Mapping) Len() int { return len(m.columns) }

// Targets returns the mapped targets by column index.
func (m Mapping) Targets() map[int]string {
	out := make(map[int]string, len(m.columns))
	for i, t := range m.columns {
		out[i] = t
	}
	return out
}

// Row builds an import row from a record. Missing trailing cells are absent
// values.
func (m Mapping) Row(record []string) model.ImportRow {
	var row model.ImportRow
	for i, target := range m.columns {
		if i >= len(record) {
			continue
		}
		setTarget(&row, target, strings.TrimSpace(record[i]))
	}
	return row
}

// IsBlank reports whether a record has no non-space cells.
func IsBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "\t", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func validTarget(target string) bool {
	var row model.ImportRow
	return setTarget(&row, target, "x")
}

func setTarget(row *model.ImportRow, target, v string) bool {
	c, co := &row.Contact, &row.Company
	switch target {
	case TargetFirstName:
		c.FirstName = v
	case TargetLastName:
		c.LastName = v
	case TargetFullName:
		c.FullName = v
	case TargetEmail:
		c.EmailAddress = v
	case TargetJobTitle:
		c.JobTitle = v
	case TargetContactLinked:
		c.LinkedInURL = v
	case TargetPhone:
		c.PhoneNumber = v
	case TargetLocation:
		c.Location = v
	case TargetDepartment:
		c.Department = v
	case TargetSeniority:
		c.Seniority = v
	case TargetCompanyName:
		co.Name = v
	case TargetDomain:
		co.Domain = v
	case TargetWebsite:
		co.Website = v
	case TargetIndustry:
		co.Industry = v
	case TargetCompanySize:
		co.CompanySize = v
	case TargetRevenueRange:
		co.RevenueRange = v
	case TargetHQCity:
		co.HQCity = v
	case TargetHQCountry:
		co.HQCountry = v
	case TargetCompanyLinked:
		co.LinkedInURL = v
	case TargetDescription:
		co.Description = v
	default:
		return false
	}
	return true
}
