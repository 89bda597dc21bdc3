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

// PCSodarColumns are the columns of a PCSodar data block.
var PCSodarColumns = []string{
	"height_m", "windspeed_ms", "winddirection_deg", "reliability",
	"w_speed_ms", "w_reliability", "w_count", "w_stdev_ms", "w_amplitude", "w_noise", "w_SNR", "w_valid_count",
	"v_speed_ms", "v_reliability", "v_count", "v_stdev_ms", "v_amplitude", "v_noise", "v_SNR", "v_valid_count",
	"u_speed_ms", "u_reliability", "u_count", "u_stdev_ms", "u_amplitude", "u_noise", "u_SNR", "u_valid_count",
}

// ARLOptions configures ARLWindProfiler.
type ARLOptions struct {
	// RangeGates are the measurement heights [m] of every block.
	RangeGates []float64
	// BadSpeed marks missing wind speeds. Zero means -99.9.
	BadSpeed float64
	// BadDirection marks missing wind directions. Zero means 999.
	BadDirection float64
}

// ARLWindProfiler reads a sodar file in PCSodar format from the Air
// Resources Laboratory. Every block must hold one row per range gate, at
// the gate heights.
func ARLWindProfiler(path string, opts ARLOptions) (*Table, error) {
	if len(opts.RangeGates) == 0 {
		return nil, fmt.Errorf("remotesensing: arl: no range gates")
	}
	if opts.BadSpeed == 0 {
		opts.BadSpeed = -99.9
	}
	if opts.BadDirection == 0 {
		opts.BadDirection = 999
	}
	f, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := decodeARL(textio.NewLines(f), opts)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	if err := t.SetMissing("windspeed_ms", opts.BadSpeed); err != nil {
		return nil, err
	}
	if err := t.SetMissing("winddirection_deg", opts.BadDirection); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeARL(l *textio.Lines, opts ARLOptions) (*Table, error) {
	t := NewTable(PCSodarColumns...)
	for {
		line, err := l.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		tm, err := parseARLTime(line)
		if err != nil {
			return nil, fmt.Errorf("remotesensing: arl: line %d: %w", l.Line(), err)
		}
		if err := l.Skip(1); err != nil { // operating parameters
			return nil, fmt.Errorf("remotesensing: arl: %w", err)
		}
		for _, gate := range opts.RangeGates {
			line, err := l.MustNext()
			if err != nil {
				return nil, fmt.Errorf("remotesensing: arl: block at %v: %w", tm, err)
			}
			v, err := parseFloats(strings.Split(strings.TrimSpace(line), ","))
			if err != nil {
				return nil, fmt.Errorf("remotesensing: arl: line %d: %w", l.Line(), err)
			}
			if len(v) != len(PCSodarColumns) {
				return nil, fmt.Errorf("remotesensing: arl: line %d has %d values, want %d", l.Line(), len(v), len(PCSodarColumns))
			}
			if v[0] != gate {
				return nil, fmt.Errorf("remotesensing: arl: line %d: height %g doesn't match range gate %g", l.Line(), v[0], gate)
			}
			t.Rows = append(t.Rows, Row{Time: tm, Values: v})
		}
	}
	return t, nil
}

// parseARLTime parses a block header of the form
// `name,YYYY,MM,DD,"HH:MM:SS",name`.
func parseARLTime(line string) (time.Time, error) {
	tok := strings.Split(strings.ReplaceAll(line, `"`, ""), ",")
	if len(tok) != 6 {
		return time.Time{}, fmt.Errorf("block header has %d fields, want 6: %q", len(tok), line)
	}
	hm := strings.TrimSpace(tok[4])
	if len(hm) < 5 {
		return time.Time{}, fmt.Errorf("invalid block time %q", tok[4])
	}
	s := fmt.Sprintf("%s-%s-%s %s", strings.TrimSpace(tok[1]), pad2(tok[2]), pad2(tok[3]), hm[:5])
	return time.Parse("2006-01-02 15:04", s)
}

func pad2(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ScintecOptions configures ScintecProfiler.
type ScintecOptions struct {
	// BadSpeed marks missing wind speeds. Zero means 99.99.
	BadSpeed float64
	// BadDirection marks missing wind directions. Zero means 999.9.
	BadDirection float64
}

// ScintecProfiler reads a Scintec MFAS flat array sodar file in the APRun
// format. Column names are taken from the variable definitions in the
// file header.
func ScintecProfiler(path string, opts ScintecOptions) (*Table, error) {
	if opts.BadSpeed == 0 {
		opts.BadSpeed = 99.99
	}
	if opts.BadDirection == 0 {
		opts.BadDirection = 999.9
	}
	f, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := decodeScintec(textio.NewLines(f))
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	if err := t.SetMissing("wind speed", opts.BadSpeed); err != nil {
		return nil, err
	}
	if err := t.SetMissing("wind direction", opts.BadDirection); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeScintec(l *textio.Lines) (*Table, error) {
	fail := func(err error) (*Table, error) {
		return nil, fmt.Errorf("remotesensing: scintec: line %d: %w", l.Line(), err)
	}
	if err := l.Skip(1); err != nil { // FORMAT-1
		return fail(err)
	}
	line, err := l.MustNext()
	if err != nil {
		return fail(err)
	}
	tok := strings.Fields(line)
	if len(tok) < 2 {
		return fail(fmt.Errorf("want date and time, got %q", line))
	}
	tm, err := time.Parse("2006-01-02 15:04:05", tok[0]+" "+tok[1])
	if err != nil {
		return fail(err)
	}
	if err := l.Skip(1); err != nil { // instrument type
		return fail(err)
	}
	if line, err = l.MustNext(); err != nil {
		return fail(err)
	}
	var n [3]int
	if tok = strings.Fields(line); len(tok) != 3 {
		return fail(fmt.Errorf("want comment, variable and level counts, got %q", line))
	}
	for i := range n {
		if n[i], err = strconv.Atoi(tok[i]); err != nil {
			return fail(err)
		}
	}
	nComments, nVar := n[0], n[1]
	// Blank line, file information, comments and file type.
	if err := l.Skip(1 + 3 + nComments + 3); err != nil {
		return fail(err)
	}
	if line, err = l.MustNext(); err != nil {
		return fail(err)
	}
	if strings.TrimSpace(line) != "Main Data" {
		return fail(fmt.Errorf("want Main Data, got %q", line))
	}
	if err := l.Skip(3); err != nil {
		return fail(err)
	}
	columns := make([]string, nVar+1)
	for i := range columns {
		if line, err = l.MustNext(); err != nil {
			return fail(err)
		}
		// name # symbol # unit # type # mask # bad value
		name, _, _ := strings.Cut(line, "#")
		columns[i] = strings.TrimSpace(name)
	}
	// Start of the data block and the time stamp of the end of the
	// measurement period.
	if err := l.Skip(3 + 2); err != nil {
		return fail(err)
	}
	t := NewTable(columns...)
	for {
		line, err := l.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		tok := strings.Fields(line)
		if len(tok) == 0 {
			continue
		}
		v, err := parseFloats(tok)
		if err != nil {
			return fail(err)
		}
		if err := t.Append(tm, v...); err != nil {
			return fail(err)
		}
	}
	return t, nil
}
