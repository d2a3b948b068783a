package dedup

import (
	"strings"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// Fielder exposes named string fields of a record.
type Fielder interface {
	FieldValue(name string) (string, bool)
	SetField(name, value string) bool
}

// UpdateEmptyFields fills whitelisted fields of existing that are empty with
// the incoming values. A non-empty existing value is never overwritten: an
// incoming value that differs from it (ignoring case) is reported as a
// conflict. Fields are visited in whitelist order.
func UpdateEmptyFields(existing Fielder, incoming map[string]string, whitelist []string) ([]string, []model.Conflict) {
	updated := []string{}
	conflicts := []model.Conflict{}

	for _, field := range whitelist {
		in := strings.TrimSpace(incoming[field])
		if in == "" {
			continue
		}
		cur, ok := existing.FieldValue(field)
		if !ok {
			continue
		}
		switch {
		case strings.TrimSpace(cur) == "":
			existing.SetField(field, in)
			updated = append(updated, field)
		case normalize.EqualFold(cur, in):
		default:
			conflicts = append(conflicts, model.Conflict{
				Field:    field,
				Existing: cur,
				Incoming: in,
			})
		}
	}

	return updated, conflicts
}
