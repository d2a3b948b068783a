package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// Reader is the read side of the tenant datastore used for matching.
// Arguments are already normalized with the normalize package; implementations
// compare them against key columns derived the same way and return the oldest
// match, or nil when none.
type Reader interface {
	FindCompanyByDomain(ctx context.Context, tenantID, domain string) (*model.Company, error)
	FindCompanyByName(ctx context.Context, tenantID, lowerName string) (*model.Company, error)
	FindContactByEmail(ctx context.Context, tenantID, lowerEmail string) (*model.Contact, error)
	FindContactByNameAndCompany(ctx context.Context, tenantID, lowerFirst, lowerLast, lowerCompany string) (*model.Contact, error)
}

// Matcher looks up existing tenant records using ordered, exact match rules.
type Matcher struct {
	store Reader
}

// NewMatcher creates a matcher over the given reader.
func NewMatcher(store Reader) *Matcher {
	return &Matcher{store: store}
}

// FindExistingCompany matches on normalized domain, then on case-insensitive
// name. The first rule that hits wins.
func (m *Matcher) FindExistingCompany(ctx context.Context, tenantID, name, domain string) (*model.Company, model.MatchType, error) {
	if d := normalize.Domain(domain); d != "" {
		existing, err := m.store.FindCompanyByDomain(ctx, tenantID, d)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "dedup: find company by domain")
		}
		if existing != nil {
			zap.L().Debug("match: company by domain",
				zap.String("tenant_id", tenantID),
				zap.String("domain", d),
				zap.Int64("company_id", existing.ID),
			)
			return existing, model.MatchDomain, nil
		}
	}

	if n := normalize.Lower(name); n != "" {
		existing, err := m.store.FindCompanyByName(ctx, tenantID, n)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "dedup: find company by name")
		}
		if existing != nil {
			zap.L().Debug("match: company by name",
				zap.String("tenant_id", tenantID),
				zap.String("name", n),
				zap.Int64("company_id", existing.ID),
			)
			return existing, model.MatchName, nil
		}
	}

	return nil, model.MatchNone, nil
}

// FindExistingContact matches on case-insensitive email, then on first and
// last name together with the linked company's name. The name rule needs a
// first name and a company name; a missing last name compares as empty.
func (m *Matcher) FindExistingContact(ctx context.Context, tenantID, email, first, last, companyName string) (*model.Contact, model.MatchType, error) {
	if e := normalize.Email(email); e != "" {
		existing, err := m.store.FindContactByEmail(ctx, tenantID, e)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "dedup: find contact by email")
		}
		if existing != nil {
			zap.L().Debug("match: contact by email",
				zap.String("tenant_id", tenantID),
				zap.String("email", e),
				zap.Int64("contact_id", existing.ID),
			)
			return existing, model.MatchEmail, nil
		}
	}

	f, c := normalize.Lower(first), normalize.Lower(companyName)
	if f == "" || c == "" {
		return nil, model.MatchNone, nil
	}
	existing, err := m.store.FindContactByNameAndCompany(ctx, tenantID, f, normalize.Lower(last), c)
	if err != nil {
		return nil, model.MatchNone, eris.Wrap(err, "dedup: find contact by name and company")
	}
	if existing == nil {
		return nil, model.MatchNone, nil
	}
	zap.L().Debug("match: contact by name and company",
		zap.String("tenant_id", tenantID),
		zap.Int64("contact_id", existing.ID),
	)
	return existing, model.MatchNameCompany, nil
}
