package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// maxParamsPerStatement caps the total placeholder count of one multi-row
// INSERT. Postgres rejects statements past 65535 bind parameters; staying
// well under keeps plan and parse time flat.
const maxParamsPerStatement = 30_000

// tableSpec describes how rows for one table are inserted: column list,
// optional per-column cast (jsonb, text[]), the conflict clause, and the
// per-statement row cap.
type tableSpec struct {
	name     string
	columns  []string
	casts    []string // aligned with columns; "" means no cast
	conflict string
	maxRows  int
}

// chunkRows returns the largest row count per statement that respects both
// the table's row cap and the global parameter cap.
func (s tableSpec) chunkRows() int {
	n := s.maxRows
	if n <= 0 {
		n = 5000
	}
	if byParams := maxParamsPerStatement / len(s.columns); byParams < n {
		n = byParams
	}
	if n < 1 {
		n = 1
	}
	return n
}

// insertSQL builds the multi-row INSERT statement for n rows.
func (s tableSpec) insertSQL(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.name)
	b.WriteString(" (")
	b.WriteString(strings.Join(s.columns, ", "))
	b.WriteString(") VALUES ")

	p := 1
	for row := 0; row < n; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := range s.columns {
			if col > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(p))
			if s.casts[col] != "" {
				b.WriteString("::")
				b.WriteString(s.casts[col])
			}
			p++
		}
		b.WriteByte(')')
	}

	if s.conflict != "" {
		b.WriteByte(' ')
		b.WriteString(s.conflict)
	}
	return b.String()
}

// insertRows writes all rows through tx in parameter-capped chunks and
// returns the number of rows sent.
func insertRows(ctx context.Context, tx pgx.Tx, spec tableSpec, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	chunk := spec.chunkRows()
	for off := 0; off < len(rows); off += chunk {
		end := off + chunk
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[off:end]

		args := make([]any, 0, len(part)*len(spec.columns))
		for _, row := range part {
			if len(row) != len(spec.columns) {
				return 0, fmt.Errorf("%s: row has %d values, want %d", spec.name, len(row), len(spec.columns))
			}
			args = append(args, row...)
		}
		if _, err := tx.Exec(ctx, spec.insertSQL(len(part)), args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", spec.name, err)
		}
	}
	return len(rows), nil
}
