package model

import (
	"strings"
	"time"
)

// Company is a tenant-scoped organization record.
type Company struct {
	ID           int64  `json:"id" db:"id"`
	TenantID     string `json:"tenant_id" db:"tenant_id"`
	Name         string `json:"name" db:"name"`
	Domain       string `json:"domain,omitempty" db:"domain"`
	Website      string `json:"website,omitempty" db:"website"`
	Industry     string `json:"industry,omitempty" db:"industry"`
	CompanySize  string `json:"company_size,omitempty" db:"company_size"`
	RevenueRange string `json:"revenue_range,omitempty" db:"revenue_range"`
	HQCity       string `json:"hq_city,omitempty" db:"hq_city"`
	HQCountry    string `json:"hq_country,omitempty" db:"hq_country"`
	LinkedInURL  string `json:"linkedin_url,omitempty" db:"linkedin_url"`
	Description  string `json:"description,omitempty" db:"description"`

	// Owned by triage and enrichment stages.
	Tier   string `json:"tier,omitempty" db:"tier"`
	Status string `json:"status,omitempty" db:"status"`

	OwnerID     string    `json:"owner_id,omitempty" db:"owner_id"`
	BatchID     string    `json:"batch_id,omitempty" db:"batch_id"`
	ImportJobID string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Company field names, as used in update whitelists and column names.
const (
	FieldCompanyName  = "name"
	FieldDomain       = "domain"
	FieldWebsite      = "website"
	FieldIndustry     = "industry"
	FieldCompanySize  = "company_size"
	FieldRevenueRange = "revenue_range"
	FieldHQCity       = "hq_city"
	FieldHQCountry    = "hq_country"
	FieldDescription  = "description"
	FieldTier         = "tier"
	FieldStatus       = "status"
)

// FieldValue returns the value of a named company field.
func (c *Company) FieldValue(name string) (string, bool) {
	p := c.field(name)
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetField assigns a named company field. It reports false for unknown names.
func (c *Company) SetField(name, value string) bool {
	p := c.field(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (c *Company) field(name string) *string {
	switch name {
	case FieldCompanyName:
		return &c.Name
	case FieldDomain:
		return &c.Domain
	case FieldWebsite:
		return &c.Website
	case FieldIndustry:
		return &c.Industry
	case FieldCompanySize:
		return &c.CompanySize
	case FieldRevenueRange:
		return &c.RevenueRange
	case FieldHQCity:
		return &c.HQCity
	case FieldHQCountry:
		return &c.HQCountry
	case FieldLinkedInURL:
		return &c.LinkedInURL
	case FieldDescription:
		return &c.Description
	case FieldTier:
		return &c.Tier
	case FieldStatus:
		return &c.Status
	default:
		return nil
	}
}

// Contact is a tenant-scoped person record, optionally linked to a Company.
type Contact struct {
	ID        int64  `json:"id" db:"id"`
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	CompanyID *int64 `json:"company_id,omitempty" db:"company_id"`

	// CompanyName is joined from the linked company on reads.
	CompanyName string `json:"company_name,omitempty" db:"-"`

	FirstName    string `json:"first_name" db:"first_name"`
	LastName     string `json:"last_name,omitempty" db:"last_name"`
	EmailAddress string `json:"email_address,omitempty" db:"email_address"`
	LinkedInURL  string `json:"linkedin_url,omitempty" db:"linkedin_url"`
	JobTitle     string `json:"job_title,omitempty" db:"job_title"`
	PhoneNumber  string `json:"phone_number,omitempty" db:"phone_number"`
	Location     string `json:"location,omitempty" db:"location"`
	Department   string `json:"department,omitempty" db:"department"`
	Seniority    string `json:"seniority,omitempty" db:"seniority"`
	Source       string `json:"source,omitempty" db:"source"`

	// Owned by the enrichment pipeline.
	EnrichmentStatus string `json:"enrichment_status,omitempty" db:"enrichment_status"`

	OwnerID     string    `json:"owner_id,omitempty" db:"owner_id"`
	BatchID     string    `json:"batch_id,omitempty" db:"batch_id"`
	ImportJobID string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Contact field names, as used in update whitelists and column names.
const (
	FieldFirstName        = "first_name"
	FieldLastName         = "last_name"
	FieldEmailAddress     = "email_address"
	FieldLinkedInURL      = "linkedin_url"
	FieldJobTitle         = "job_title"
	FieldPhoneNumber      = "phone_number"
	FieldLocation         = "location"
	FieldDepartment       = "department"
	FieldSeniority        = "seniority"
	FieldEnrichmentStatus = "enrichment_status"
)

// DisplayName is "First Last", falling back to the email address.
func (c *Contact) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	return c.EmailAddress
}

// FieldValue returns the value of a named contact field.
func (c *Contact) FieldValue(name string) (string, bool) {
	p := c.field(name)
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetField assigns a named contact field. It reports false for unknown names.
func (c *Contact) SetField(name, value string) bool {
	p := c.field(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (c *Contact) field(name string) *string {
	switch name {
	case FieldFirstName:
		return &c.FirstName
	case FieldLastName:
		return &c.LastName
	case FieldEmailAddress:
		return &c.EmailAddress
	case FieldLinkedInURL:
		return &c.LinkedInURL
	case FieldJobTitle:
		return &c.JobTitle
	case FieldPhoneNumber:
		return &c.PhoneNumber
	case FieldLocation:
		return &c.Location
	case FieldDepartment:
		return &c.Department
	case FieldSeniority:
		return &c.Seniority
	case FieldEnrichmentStatus:
		return &c.EnrichmentStatus
	default:
		return nil
	}
}
