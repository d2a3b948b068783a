// Package dedup resolves incoming contact and company rows against a
// tenant's existing records and applies import decisions.
//
// Matching is rule based and deterministic: domain before name for
// companies, email before name+company for contacts, first hit wins.
package dedup

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/model"
)

// DefaultContactFields are the contact fields an import may fill when empty.
var DefaultContactFields = []string{
	model.FieldLastName,
	model.FieldEmailAddress,
	model.FieldLinkedInURL,
	model.FieldJobTitle,
	model.FieldPhoneNumber,
	model.FieldLocation,
	model.FieldDepartment,
	model.FieldSeniority,
}

// DefaultCompanyFields are the company fields an import may fill when empty.
var DefaultCompanyFields = []string{
	model.FieldDomain,
	model.FieldWebsite,
	model.FieldIndustry,
	model.FieldCompanySize,
	model.FieldRevenueRange,
	model.FieldHQCity,
	model.FieldHQCountry,
	model.FieldLinkedInURL,
	model.FieldDescription,
}

// Identity fields and fields owned by later pipeline stages never appear in
// an update whitelist.
var (
	protectedContactFields = map[string]bool{
		"id": true, "tenant_id": true, "company_id": true,
		model.FieldFirstName: true, model.FieldEnrichmentStatus: true,
	}
	protectedCompanyFields = map[string]bool{
		"id": true, "tenant_id": true,
		model.FieldCompanyName: true, model.FieldTier: true, model.FieldStatus: true,
	}
)

// Options holds the update whitelists used by the conflict resolver.
type Options struct {
	ContactFields []string
	CompanyFields []string
}

// DefaultOptions returns the default whitelists.
func DefaultOptions() Options {
	return Options{
		ContactFields: append([]string(nil), DefaultContactFields...),
		CompanyFields: append([]string(nil), DefaultCompanyFields...),
	}
}

// WithDefaults fills empty whitelists with the defaults.
func (o Options) WithDefaults() Options {
	if len(o.ContactFields) == 0 {
		o.ContactFields = append([]string(nil), DefaultContactFields...)
	}
	if len(o.CompanyFields) == 0 {
		o.CompanyFields = append([]string(nil), DefaultCompanyFields...)
	}
	return o
}

// Validate rejects unknown and protected field names.
func (o Options) Validate() error {
	probeContact := &model.Contact{}
	for _, f := range o.ContactFields {
		if protectedContactFields[f] {
			return eris.Errorf("dedup: contact field %q cannot be updated by import", f)
		}
		if _, ok := probeContact.FieldValue(f); !ok {
			return eris.Errorf("dedup: unknown contact field %q", f)
		}
	}
	probeCompany := &model.Company{}
	for _, f := range o.CompanyFields {
		if protectedCompanyFields[f] {
			return eris.Errorf("dedup: company field %q cannot be updated by import", f)
		}
		if _, ok := probeCompany.FieldValue(f); !ok {
			return eris.Errorf("dedup: unknown company field %q", f)
		}
	}
	return nil
}
