package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxParams bounds the bind parameters of one generated statement; larger
// batches are split across statements in the same transaction.
const maxParams = 4096

// Writer issues statements inside one transaction.
type Writer struct {
	tx *sql.Tx
}

// Exec runs a statement in the transaction.
func (w *Writer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.tx.ExecContext(ctx, query, args...)
}

// Upsert inserts rows into table, updating every non-key column when a row
// with the same conflict key exists. Rows repeating a key within the batch
// collapse to the last one. It returns the number of rows written.
func (w *Writer) Upsert(ctx context.Context, table string, cols []string, rows [][]any, conflict ...string) (int64, error) {
	return w.write(ctx, table, cols, rows, conflict, true)
}

// InsertIgnore inserts rows into table, skipping rows whose conflict key
// already exists. Within the batch the first row for a key wins. It
// returns the number of rows inserted.
func (w *Writer) InsertIgnore(ctx context.Context, table string, cols []string, rows [][]any, conflict ...string) (int64, error) {
	return w.write(ctx, table, cols, rows, conflict, false)
}

func (w *Writer) write(ctx context.Context, table string, cols []string, rows [][]any, conflict []string, update bool) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	keyIdx, err := checkShape(cols, rows, conflict)
	if err != nil {
		return 0, err
	}
	rows = dedupe(rows, keyIdx, update)

	per := maxParams / len(cols)
	if per < 1 {
		per = 1
	}
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]

		stmt, err := buildInsert(table, cols, len(chunk), conflict, update)
		if err != nil {
			return total, err
		}
		args := make([]any, 0, len(chunk)*len(cols))
		for _, r := range chunk {
			args = append(args, r...)
		}
		res, err := w.tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("write %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func checkShape(cols []string, rows [][]any, conflict []string) ([]int, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrIdentifier)
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("%w: no conflict columns", ErrIdentifier)
	}
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c] = i
	}
	keyIdx := make([]int, len(conflict))
	for i, k := range conflict {
		p, ok := pos[k]
		if !ok {
			return nil, fmt.Errorf("%w: conflict column %q not in column list", ErrIdentifier, k)
		}
		keyIdx[i] = p
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(cols))
		}
	}
	return keyIdx, nil
}

// dedupe collapses rows sharing a key, keeping the position of the first
// occurrence. lastWins selects which row's values survive.
func dedupe(rows [][]any, keyIdx []int, lastWins bool) [][]any {
	seen := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, r := range rows {
		b.Reset()
		for _, i := range keyIdx {
			fmt.Fprintf(&b, "%v\x00", r[i])
		}
		k := b.String()
		if at, ok := seen[k]; ok {
			if lastWins {
				out[at] = r
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}
	return out
}

// buildInsert renders a parameterized multi-row insert for n rows. Every
// identifier is validated before it reaches the statement text.
func buildInsert(table string, cols []string, n int, conflict []string, update bool) (string, error) {
	qt, err := QuoteTable(table)
	if err != nil {
		return "", err
	}
	qc, err := quoteIdents(cols)
	if err != nil {
		return "", err
	}
	qk, err := quoteIdents(conflict)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if update {
		b.WriteString("INSERT INTO ")
	} else {
		b.WriteString("INSERT OR IGNORE INTO ")
	}
	b.WriteString(qt)
	b.WriteString(" (")
	b.WriteString(strings.Join(qc, ", "))
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	if !update {
		return b.String(), nil
	}

	isKey := make(map[string]bool, len(conflict))
	for _, k := range conflict {
		isKey[k] = true
	}
	var sets []string
	for i, c := range cols {
		if !isKey[c] {
			sets = append(sets, qc[i]+" = EXCLUDED."+qc[i])
		}
	}
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(qk, ", "))
	b.WriteString(")")
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return b.String(), nil
}
