package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

// techRow mirrors the scraper's technologies table. Every column but id
// may be NULL.
type techRow struct {
	ID          string         `db:"id"`
	University  sql.NullString `db:"university"`
	Title       sql.NullString `db:"title"`
	Description sql.NullString `db:"description"`
	URL         sql.NullString `db:"url"`
	RawData     sql.NullString `db:"raw_data"`
}

func openSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func loadSQLite(ctx context.Context, path string, opts Options) ([]record.Record, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cols, err := tableColumns(ctx, db, "technologies")
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite %s: no technologies table", path)
	}

	university := "university"
	if !cols["university"] {
		university = "NULL AS university"
	}
	query := "SELECT id, " + university + ", title, description, url, raw_data FROM technologies"
	var args []any
	if opts.University != "" && cols["university"] {
		query += " WHERE university = ?"
		args = append(args, opts.University)
	}
	query += " ORDER BY rowid"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []techRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query technologies: %w", err)
	}

	records := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		r := record.Record{
			ID:          row.ID,
			University:  row.University.String,
			Title:       row.Title.String,
			Description: row.Description.String,
			URL:         row.URL.String,
		}
		if row.RawData.Valid && row.RawData.String != "" {
			if err := json.Unmarshal([]byte(row.RawData.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("technology %s: decode raw_data: %w", row.ID, err)
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func tableColumns(ctx context.Context, db *sqlx.DB, table string) (map[string]bool, error) {
	var cols []struct {
		Name string `db:"name"`
	}
	if err := db.SelectContext(ctx, &cols, "SELECT name FROM pragma_table_info(?)", table); err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c.Name] = true
	}
	return out, nil
}
