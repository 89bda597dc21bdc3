/*
Copyright © 2018 the datatools authors.
This file is part of datatools.

datatools is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

datatools is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with datatools.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package store saves time series tables to SQLite databases and Excel
// workbooks.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spatialmodel/datatools/remotesensing"
)

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SaveTable writes t to the table name in the SQLite database at dbPath,
// replacing any existing table of that name. Timestamps are stored as
// RFC 3339 text in the date_time column and missing values as NULL.
func SaveTable(dbPath, name string, t *remotesensing.Table) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("store: opening database: %w", err)
	}
	defer db.Close()

	cols := []string{quote(remotesensing.TimeColumn) + " TEXT NOT NULL"}
	for _, c := range t.Columns {
		cols = append(cols, quote(c)+" REAL")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DROP TABLE IF EXISTS " + quote(name)); err != nil {
		return fmt.Errorf("store: dropping table %s: %w", name, err)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(cols, ", "))
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("store: creating table %s: %w", name, err)
	}
	stmt = fmt.Sprintf("CREATE INDEX %s ON %s(%s)",
		quote("idx_"+name+"_time"), quote(name), quote(remotesensing.TimeColumn))
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("store: indexing table %s: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)+1), ", ")
	insert, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(name), placeholders))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer insert.Close()
	args := make([]interface{}, len(t.Columns)+1)
	for i, r := range t.Rows {
		args[0] = r.Time.UTC().Format(time.RFC3339Nano)
		for j, v := range r.Values {
			args[j+1] = sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
		}
		if _, err := insert.Exec(args...); err != nil {
			return fmt.Errorf("store: inserting row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadTable reads a table written by SaveTable.
func LoadTable(dbPath, name string) (*remotesensing.Table, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT * FROM " + quote(name) + " ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("store: reading table %s: %w", name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if len(cols) == 0 || cols[0] != remotesensing.TimeColumn {
		return nil, fmt.Errorf("store: table %s has no %s column", name, remotesensing.TimeColumn)
	}
	t := remotesensing.NewTable(cols[1:]...)
	var ts string
	vals := make([]sql.NullFloat64, len(cols)-1)
	dest := make([]interface{}, len(cols))
	dest[0] = &ts
	for j := range vals {
		dest[j+1] = &vals[j]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		tm, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		v := make([]float64, len(vals))
		for j, n := range vals {
			if n.Valid {
				v[j] = n.Float64
			} else {
				v[j] = math.NaN()
			}
		}
		t.Rows = append(t.Rows, remotesensing.Row{Time: tm, Values: v})
	}
	return t, rows.Err()
}
