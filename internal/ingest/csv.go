package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	Aliases    Aliases
}

// StreamCSV reads CSV records and sends them to a channel, header included.
// Cells are trimmed. Errors are sent on the error channel. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow ragged rows

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV maps a CSV file with a header row to import rows. Blank lines are
// dropped. It fails when no header maps to a known column.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.ImportRow, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var (
		mapping *Mapping
		rows    []model.ImportRow
	)
	for record := range rowCh {
		if mapping == nil {
			m := NewMapping(record, opts.Aliases)
			if m.Len() == 0 {
				// Drain so the producer goroutine exits.
				for range rowCh {
				}
				return nil, eris.Errorf("ingest: no recognised columns in header %q", strings.Join(record, ","))
			}
			mapping = &m
			continue
		}
		if IsBlank(record) {
			continue
		}
		rows = append(rows, mapping.Row(record))
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}
	return rows, nil
}
