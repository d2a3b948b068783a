package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadimport/internal/model"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	Aliases    Aliases
}

// ReadXLSX maps the first row of a sheet as headers and the remaining rows
// to import rows.
func ReadXLSX(path string, opts XLSXOptions) ([]model.ImportRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	mapping := NewMapping(rowToStrings(sheet.Rows[0]), opts.Aliases)
	if mapping.Len() == 0 {
		return nil, eris.Errorf("ingest: no recognised columns in sheet %q", sheet.Name)
	}

	var rows []model.ImportRow
	for _, r := range sheet.Rows[1:] {
		cells := rowToStrings(r)
		if IsBlank(cells) {
			continue
		}
		rows = append(rows, mapping.Row(cells))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
