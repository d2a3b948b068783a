package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyRows bulk-inserts rows with the COPY protocol. The table may be
// schema-qualified ("audit.import_job_rows").
func CopyRows(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	if n != int64(len(rows)) {
		return n, eris.Errorf("db: COPY INTO %s: wrote %d of %d rows", table, n, len(rows))
	}
	return n, nil
}

func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}
