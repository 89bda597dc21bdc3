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

package store

import (
	"fmt"
	"math"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/spatialmodel/datatools/remotesensing"
)

// SaveXLSX writes t to a new workbook at path with a single sheet. The
// first row holds the column names; missing values are left blank.
func SaveXLSX(path, sheet string, t *remotesensing.Table) error {
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	if err != nil {
		return fmt.Errorf("store: adding sheet %s: %w", sheet, err)
	}
	header := s.AddRow()
	header.AddCell().SetString(remotesensing.TimeColumn)
	for _, c := range t.Columns {
		header.AddCell().SetString(c)
	}
	for _, r := range t.Rows {
		row := s.AddRow()
		row.AddCell().SetString(r.Time.UTC().Format(time.RFC3339Nano))
		for _, v := range r.Values {
			c := row.AddCell()
			if !math.IsNaN(v) {
				c.SetFloat(v)
			}
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("store: saving workbook: %w", err)
	}
	return nil
}
