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

// Package sowfa reads the planar-averaged output of SOWFA precursor runs,
// derives turbulence statistics from it and writes the forcing tables
// used to drive mesoscale-coupled simulations.
package sowfa

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/datatools/internal/textio"
)

// HeightsFile is the name of the cell-height file in every output time
// directory.
const HeightsFile = "hLevelsCell"

// Log receives progress and warning messages.
var Log logrus.FieldLogger = logrus.StandardLogger()

// DefaultVars are the variables ReadAverages loads when none are given.
var DefaultVars = []string{"U_mean", "V_mean", "W_mean", "T_mean"}

// OutputTimes returns the names of the subdirectories of dir that are
// numbers and contain a heights file, sorted by their numeric value.
func OutputTimes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sowfa: %w", err)
	}
	type timeDir struct {
		name string
		t    float64
	}
	var dirs []timeDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := strconv.ParseFloat(e.Name(), 64)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), HeightsFile)); err != nil {
			continue
		}
		dirs = append(dirs, timeDir{name: e.Name(), t: t})
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("sowfa: no output time directories in %s", dir)
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].t < dirs[j].t })
	names := make([]string, len(dirs))
	for i, d := range dirs {
		names[i] = d.name
	}
	return names, nil
}

// Series is a planar-averaged quantity over time.
type Series struct {
	Heights []float64
	Times   []float64
	Dts     []float64
	// Values has one row per time and one column per height.
	Values *mat.Dense
}

// ReadPlanarAverage reads varName from every output time directory in dir
// and joins the blocks into one series. Each block other than the last is
// cut at the first row at or after the start time of the next block, so
// restarts don't produce duplicate or out-of-order times.
func ReadPlanarAverage(dir, varName string) (*Series, error) {
	times, err := OutputTimes(dir)
	if err != nil {
		return nil, err
	}
	z, err := readHeights(filepath.Join(dir, times[0], HeightsFile))
	if err != nil {
		return nil, err
	}
	return readSeries(dir, times, z, varName)
}

func readSeries(dir string, times []string, z []float64, varName string) (*Series, error) {
	s := &Series{Heights: z}
	var values []float64
	for i, td := range times {
		t, dt, v, err := readBlock(filepath.Join(dir, td, varName), len(z))
		if err != nil {
			return nil, err
		}
		n := len(t)
		if i < len(times)-1 {
			tNext, _ := strconv.ParseFloat(times[i+1], 64)
			n = cutIndex(t, tNext)
		}
		s.Times = append(s.Times, t[:n]...)
		s.Dts = append(s.Dts, dt[:n]...)
		values = append(values, v[:n*len(z)]...)
	}
	if len(s.Times) == 0 {
		return nil, fmt.Errorf("sowfa: no %s data in %s", varName, dir)
	}
	s.Values = mat.NewDense(len(s.Times), len(z), values)
	return s, nil
}

// cutIndex returns the index of the first time at or after next, or
// len(t) when every time is earlier.
func cutIndex(t []float64, next float64) int {
	for i, v := range t {
		if v >= next {
			return i
		}
	}
	return len(t)
}

func readHeights(path string) ([]float64, error) {
	f, err := textio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sowfa: %w", err)
	}
	defer f.Close()
	l := textio.NewLines(f)
	var z []float64
	for {
		line, err := l.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("sowfa: %s: %w", path, err)
		}
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("sowfa: %s line %d: %w", path, l.Line(), err)
			}
			z = append(z, v)
		}
	}
	if len(z) == 0 {
		return nil, fmt.Errorf("sowfa: no heights in %s", path)
	}
	return z, nil
}

// readBlock reads rows of (time, dt, value at each of nz heights).
func readBlock(path string, nz int) (t, dt, v []float64, err error) {
	f, err := textio.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sowfa: %w", err)
	}
	defer f.Close()
	l := textio.NewLines(f)
	for {
		line, err := l.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, nil, fmt.Errorf("sowfa: %s: %w", path, err)
		}
		tok := strings.Fields(line)
		if len(tok) == 0 {
			continue
		}
		if len(tok) != nz+2 {
			return nil, nil, nil, fmt.Errorf("sowfa: %s line %d has %d values, want %d for %d heights",
				path, l.Line(), len(tok), nz+2, nz)
		}
		row := make([]float64, len(tok))
		for i, s := range tok {
			if row[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, nil, nil, fmt.Errorf("sowfa: %s line %d: %w", path, l.Line(), err)
			}
		}
		t = append(t, row[0])
		dt = append(dt, row[1])
		v = append(v, row[2:]...)
	}
	return t, dt, v, nil
}

// Averages holds several planar-averaged variables on a shared time axis.
type Averages struct {
	Heights []float64
	Times   []float64
	Dts     []float64
	// StartTimes are the (re)start times of the output directories.
	StartTimes []float64
	// Vars maps variable names such as "U_mean" to time by height values.
	Vars map[string]*mat.Dense
}

// ReadAverages reads the named variables, or DefaultVars when none are
// given, from the output time directories in dir. When the variables have
// different numbers of times, as happens while a run is still writing,
// every series is trimmed to the shortest one.
func ReadAverages(dir string, vars ...string) (*Averages, error) {
	if len(vars) == 0 {
		vars = DefaultVars
	}
	times, err := OutputTimes(dir)
	if err != nil {
		return nil, err
	}
	z, err := readHeights(filepath.Join(dir, times[0], HeightsFile))
	if err != nil {
		return nil, err
	}
	a := &Averages{Heights: z, Vars: make(map[string]*mat.Dense)}
	for _, td := range times {
		t, _ := strconv.ParseFloat(td, 64)
		a.StartTimes = append(a.StartTimes, t)
	}
	nt := -1
	for _, v := range vars {
		s, err := readSeries(dir, times, z, v)
		if err != nil {
			return nil, err
		}
		a.Vars[v] = s.Values
		if nt < 0 || len(s.Times) < nt {
			nt = len(s.Times)
			a.Times, a.Dts = s.Times, s.Dts
		}
	}
	trimmed := false
	for name, v := range a.Vars {
		if r, _ := v.Dims(); r > nt {
			a.Vars[name] = v.Slice(0, nt, 0, len(z)).(*mat.Dense)
			trimmed = true
		}
	}
	if trimmed {
		Log.WithFields(logrus.Fields{"dir": dir, "n": nt}).
			Warn("sowfa: inconsistent averaging field lengths; truncated histories")
	}
	Log.WithFields(logrus.Fields{"dir": dir, "vars": len(vars), "times": nt}).Info("sowfa: read averages")
	return a, nil
}

// Var returns the named variable or an error if it wasn't read.
func (a *Averages) Var(name string) (*mat.Dense, error) {
	v, ok := a.Vars[name]
	if !ok {
		return nil, fmt.Errorf("sowfa: variable %s not read", name)
	}
	return v, nil
}

func (a *Averages) String() string {
	return fmt.Sprintf("SOWFA planar averages: %d times [%g, %g], %d heights [%g, %g]",
		len(a.Times), a.Times[0], a.Times[len(a.Times)-1],
		len(a.Heights), a.Heights[0], a.Heights[len(a.Heights)-1])
}
