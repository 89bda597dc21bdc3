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
	"strconv"
	"strings"
	"time"

	"github.com/spatialmodel/datatools/internal/textio"
)

// ESRLOptions configures ESRLWindProfiler.
type ESRLOptions struct {
	// HeightConversion scales the HT column to meters. Zero means 1000,
	// for heights reported in km.
	HeightConversion float64
	// BadValues are the sentinels marking missing speeds and directions.
	// Nil means 999999.
	BadValues []float64
	// Blocks is the number of data blocks in each file. Zero means 2.
	Blocks int
}

func (o ESRLOptions) withDefaults() ESRLOptions {
	if o.HeightConversion == 0 {
		o.HeightConversion = 1000
	}
	if o.BadValues == nil {
		o.BadValues = []float64{999999}
	}
	if o.Blocks == 0 {
		o.Blocks = 2
	}
	return o
}

// ESRLWindProfiler reads a 915 MHz wind profiler consensus file from the
// Earth System Research Laboratory. Each data block's columns are taken
// from its header line, and every row is stamped with the block time.
// Sentinel values in the SPD and DIR columns are replaced with NaN
// independently of each other.
func ESRLWindProfiler(path string, opts ESRLOptions) (*Table, error) {
	opts = opts.withDefaults()
	f, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l := textio.NewLines(f)
	var t *Table
	for i := 0; i < opts.Blocks; i++ {
		b, err := readWindsBlock(l)
		if err != nil {
			return nil, fmt.Errorf("%w (file %s, block %d)", err, path, i+1)
		}
		if t == nil {
			t = b
		} else if err := t.Concat(b); err != nil {
			return nil, fmt.Errorf("%w (file %s, block %d)", err, path, i+1)
		}
	}
	if j := t.Index("HT"); j >= 0 {
		for _, r := range t.Rows {
			r.Values[j] *= opts.HeightConversion
		}
	}
	for _, c := range []string{"SPD", "DIR"} {
		if t.Index(c) < 0 {
			return nil, fmt.Errorf("remotesensing: esrl: no %s column (file %s)", c, path)
		}
		if err := t.SetMissing(c, opts.BadValues...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// readWindsBlock reads one consensus data block: a 10 line preamble, a
// column header and rows up to a "$" line.
func readWindsBlock(l *textio.Lines) (*Table, error) {
	line, err := l.MustNext()
	if err != nil {
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	if strings.TrimSpace(line) != "" {
		return nil, fmt.Errorf("remotesensing: esrl: line %d: block doesn't start with a blank line", l.Line())
	}
	if err := l.Skip(1); err != nil { // station name
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	if line, err = l.MustNext(); err != nil {
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	if tok := strings.Fields(line); len(tok) == 0 || tok[0] != "WINDS" {
		return nil, fmt.Errorf("remotesensing: esrl: line %d: want WINDS, got %q", l.Line(), line)
	}
	if err := l.Skip(1); err != nil { // latitude, longitude, elevation
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	if line, err = l.MustNext(); err != nil {
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	tm, err := parseESRLTime(line)
	if err != nil {
		return nil, fmt.Errorf("remotesensing: esrl: line %d: %w", l.Line(), err)
	}
	if err := l.Skip(5); err != nil { // averaging time and beam information
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	if line, err = l.MustNext(); err != nil {
		return nil, fmt.Errorf("remotesensing: esrl: %w", err)
	}
	t := NewTable(strings.Fields(line)...)
	for {
		line, err := l.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "$" {
			break
		}
		v, err := parseFloats(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("remotesensing: esrl: line %d: %w", l.Line(), err)
		}
		if err := t.Append(tm, v...); err != nil {
			return nil, fmt.Errorf("line %d: %w", l.Line(), err)
		}
	}
	return t, nil
}

// parseESRLTime parses "YY MM DD HH MM SS tz". Two digit years are in the
// 2000s.
func parseESRLTime(line string) (time.Time, error) {
	tok := strings.Fields(line)
	if len(tok) != 7 {
		return time.Time{}, fmt.Errorf("want YY MM DD HH MM SS tz, got %q", line)
	}
	var v [6]int
	for i := range v {
		n, err := strconv.Atoi(tok[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("date field %q: %w", tok[i], err)
		}
		v[i] = n
	}
	return time.Date(2000+v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, time.UTC), nil
}

func parseFloats(tok []string) ([]float64, error) {
	v := make([]float64, len(tok))
	for i, s := range tok {
		var err error
		if v[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil, err
		}
	}
	return v, nil
}
