package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/model"
)

// LoadOptions configures LoadFile.
type LoadOptions struct {
	Aliases   Aliases
	Sheet     string
	Delimiter rune
}

// LoadFile reads import rows from a .csv, .tsv, .xlsx or .json file and
// reports the import source it represents.
func LoadFile(ctx context.Context, path string, opts LoadOptions) ([]model.ImportRow, string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, "", eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		delim := opts.Delimiter
		if delim == 0 && ext == ".tsv" {
			delim = '\t'
		}
		rows, err := ReadCSV(ctx, f, CSVOptions{Delimiter: delim, LazyQuotes: true, Aliases: opts.Aliases})
		return rows, model.SourceCSV, err
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{SheetName: opts.Sheet, Aliases: opts.Aliases})
		return rows, model.SourceXLSX, err
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, "", eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err := DecodeExtensionLeads(f)
		return rows, model.SourceExtension, err
	default:
		return nil, "", eris.Errorf("ingest: unsupported file type %q", ext)
	}
}
