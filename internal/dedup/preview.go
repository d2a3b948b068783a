package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// Preview classifies every row against the tenant's stored records and
// against earlier rows of the same batch, without writing anything.
// A stored match always takes precedence over an in-batch collision.
func Preview(ctx context.Context, r Reader, tenantID string, rows []model.ImportRow) ([]model.DedupDecision, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	m := NewMatcher(r)
	seen := NewSeenKeys()
	out := make([]model.DedupDecision, 0, len(rows))

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := previewRow(ctx, m, seen, tenantID, rows, i)
		if err != nil {
			return nil, eris.Wrapf(err, "dedup: preview row %d", i)
		}
		out = append(out, d)
	}

	zap.L().Debug("dedup: preview complete",
		zap.String("tenant_id", tenantID),
		zap.Int("rows", len(rows)),
		zap.Int("keys_seen", seen.Len()),
	)
	return out, nil
}

func previewRow(ctx context.Context, m *Matcher, seen *SeenKeys, tenantID string, rows []model.ImportRow, i int) (model.DedupDecision, error) {
	row := rows[i]
	contact := row.Contact.Prepare()
	company := row.Company.Prepare()
	named := contact.HasName()

	d := model.DedupDecision{
		Row:           i,
		ContactStatus: model.ContactNew,
		CompanyStatus: model.CompanyNone,
	}

	companyName := company.Name
	if !company.IsEmpty() {
		existing, mt, err := m.FindExistingCompany(ctx, tenantID, company.Name, company.Domain)
		if err != nil {
			return d, err
		}
		switch {
		case existing != nil:
			d.CompanyStatus = model.CompanyExisting
			d.CompanyMatchType = mt
			d.CompanyMatchID = existing.ID
			companyName = existing.Name
		default:
			d.CompanyStatus = model.CompanyNew
			keys := company.MatchKeys()
			if first, ok := firstSeenCompany(seen, keys); ok {
				// Execute links this row to the company the first row created.
				d.CompanyIntraRow = intPtr(first)
				companyName = rows[first].Company.Prepare().Name
			} else if named {
				for _, k := range keys {
					seen.AddCompany(k, i)
				}
			}
		}
	}

	if !named {
		d.Reason = model.ReasonNoName
		return d, nil
	}

	existing, mt, err := m.FindExistingContact(ctx, tenantID, contact.EmailAddress,
		contact.FirstName, contact.LastName, companyName)
	if err != nil {
		return d, err
	}
	if existing != nil {
		d.ContactStatus = model.ContactDuplicate
		d.ContactMatchType = mt
		d.ContactMatchID = existing.ID
		d.ContactMatchName = existing.DisplayName()
		return d, nil
	}

	emailKey := normalize.EmailKey(contact.EmailAddress)
	nameKey := normalize.NameKey(contact.FirstName, contact.LastName, companyName)
	for _, k := range []struct {
		key string
		mt  model.MatchType
	}{
		{emailKey, model.MatchEmailIntra},
		{nameKey, model.MatchNameCompanyIntra},
	} {
		if first, ok := seen.Contact(k.key); ok {
			d.ContactStatus = model.ContactDuplicate
			d.ContactMatchType = k.mt
			d.IntraRow = intPtr(first)
			return d, nil
		}
	}
	seen.AddContact(emailKey, i)
	seen.AddContact(nameKey, i)
	return d, nil
}

func firstSeenCompany(seen *SeenKeys, keys []string) (int, bool) {
	for _, k := range keys {
		if first, ok := seen.Company(k); ok {
			return first, true
		}
	}
	return 0, false
}

// intraMatchType relabels a stored match on a contact created earlier in
// the same batch.
func intraMatchType(mt model.MatchType) model.MatchType {
	switch mt {
	case model.MatchEmail:
		return model.MatchEmailIntra
	case model.MatchNameCompany:
		return model.MatchNameCompanyIntra
	default:
		return mt
	}
}

func intPtr(v int) *int {
	return &v
}
