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

package remotesensing

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"

	"github.com/spatialmodel/datatools/internal/textio"
)

// AltitudesKey is the scan parameter listing the WindCube measurement
// heights, tab separated.
const AltitudesKey = "Altitudes(m)"

// WindCubeOptions holds the layout of WindCube files that have no header.
type WindCubeOptions struct {
	// Columns names every whitespace separated field of a data row,
	// starting with "date" and "time".
	Columns []string
	// Altitudes are the measurement heights [m] of the um<i> and vm<i>
	// columns.
	Altitudes []float64
}

// WindCubeV1 reads a WindCube v1 lidar file. The result has one row per
// time and height with columns height, speed and direction, ordered by
// time and then height. The scan parameters from the file header are
// returned in file order; they are empty for files without a header.
func WindCubeV1(path string, opts WindCubeOptions) (*Table, *orderedmap.OrderedMap, error) {
	f, err := textio.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	t, info, err := decodeWindCube(textio.NewLines(f), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return t, info, nil
}

func decodeWindCube(l *textio.Lines, opts WindCubeOptions) (*Table, *orderedmap.OrderedMap, error) {
	info := orderedmap.New()
	columns, altitudes := opts.Columns, opts.Altitudes
	first, err := l.MustNext()
	if err != nil {
		return nil, nil, fmt.Errorf("remotesensing: windcube: %w", err)
	}
	var pending []string
	if strings.Contains(first, "=") {
		kv := strings.Split(first, "=")
		n, err := strconv.Atoi(strings.TrimSpace(kv[len(kv)-1]))
		if err != nil {
			return nil, nil, fmt.Errorf("remotesensing: windcube: header length: %w", err)
		}
		for i := 0; i < n; i++ {
			line, err := l.MustNext()
			if err != nil {
				return nil, nil, fmt.Errorf("remotesensing: windcube: header: %w", err)
			}
			if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
				info.Set(k, scanValue(v))
			}
		}
		line, err := l.MustNext()
		if err != nil {
			return nil, nil, fmt.Errorf("remotesensing: windcube: column names: %w", err)
		}
		names := strings.Fields(line)
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("remotesensing: windcube: empty column name line")
		}
		columns = append([]string{"date", "time"}, names[1:]...)
		a, ok := info.Get(AltitudesKey)
		if !ok {
			return nil, nil, fmt.Errorf("remotesensing: windcube: header has no %s", AltitudesKey)
		}
		if altitudes, err = parseAltitudes(fmt.Sprint(a)); err != nil {
			return nil, nil, err
		}
	} else {
		pending = []string{first}
	}
	if len(columns) < 2 || len(altitudes) == 0 {
		return nil, nil, fmt.Errorf("remotesensing: windcube: no header and no default columns and altitudes")
	}

	um := make([]int, len(altitudes))
	vm := make([]int, len(altitudes))
	for i := range altitudes {
		um[i], vm[i] = index(columns, fmt.Sprintf("um%d", i+1)), index(columns, fmt.Sprintf("vm%d", i+1))
		if um[i] < 0 || vm[i] < 0 {
			return nil, nil, fmt.Errorf("remotesensing: windcube: no um%d/vm%d columns for altitude %g", i+1, i+1, altitudes[i])
		}
	}

	t := NewTable("height", "speed", "direction")
	next := func() (string, error) {
		if len(pending) > 0 {
			s := pending[0]
			pending = pending[1:]
			return s, nil
		}
		return l.Next()
	}
	for {
		line, err := next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, err
		}
		tok := strings.Fields(line)
		if len(tok) == 0 {
			continue
		}
		if len(tok) != len(columns) {
			return nil, nil, fmt.Errorf("remotesensing: windcube: line %d has %d fields, want %d", l.Line(), len(tok), len(columns))
		}
		tm, err := parseDayFirst(tok[0] + " " + tok[1])
		if err != nil {
			return nil, nil, fmt.Errorf("remotesensing: windcube: line %d: %w", l.Line(), err)
		}
		for i, h := range altitudes {
			u, err := strconv.ParseFloat(tok[um[i]], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("remotesensing: windcube: line %d: %w", l.Line(), err)
			}
			v, err := strconv.ParseFloat(tok[vm[i]], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("remotesensing: windcube: line %d: %w", l.Line(), err)
			}
			t.Rows = append(t.Rows, Row{Time: tm, Values: []float64{h, WindSpeed(u, v), WindDirection(u, v)}})
		}
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		if !t.Rows[i].Time.Equal(t.Rows[j].Time) {
			return t.Rows[i].Time.Before(t.Rows[j].Time)
		}
		return t.Rows[i].Values[0] < t.Rows[j].Values[0]
	})
	return t, info, nil
}

// scanValue converts a header value to an int or float64 where possible.
func scanValue(s string) interface{} {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseAltitudes(s string) ([]float64, error) {
	var a []float64
	for _, f := range strings.Split(strings.TrimSpace(s), "\t") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		h, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("remotesensing: windcube: altitude %q: %w", f, err)
		}
		a = append(a, h)
	}
	return a, nil
}

var dayFirstLayouts = []string{
	"02/01/2006 15:04:05",
	"02-01-2006 15:04:05",
	"02.01.2006 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
}

// parseDayFirst parses a date and time, reading ambiguous dates as
// day/month/year.
func parseDayFirst(s string) (time.Time, error) {
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func index(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
