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

package dtutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/spatialmodel/datatools/wrf"
)

// WRFConfig returns the dataset options from the configuration.
func WRFConfig() wrf.Config {
	return wrf.Config{
		Ds:         Cfg.GetFloat64("WRF.Ds"),
		TimeLayout: Cfg.GetString("WRF.TimeLayout"),
		Log:        logrus.StandardLogger(),
	}
}

// WRFRegion returns the averaging region from the WRF.Region option, or
// the whole domain of d when the option is empty.
func WRFRegion(d *wrf.Dataset) (wrf.Region, error) {
	v := Cfg.Get("WRF.Region")
	if v == nil {
		return d.Domain(), nil
	}
	r, err := cast.ToIntSliceE(v)
	if err != nil {
		return wrf.Region{}, fmt.Errorf("datatools: reading 'WRF.Region': %w", err)
	}
	switch len(r) {
	case 0:
		return d.Domain(), nil
	case 4:
		return wrf.Region{XMin: r[0], XMax: r[1], YMin: r[2], YMax: r[3]}, nil
	default:
		return wrf.Region{}, fmt.Errorf("datatools: WRF.Region needs 4 values (xmin,xmax,ymin,ymax), got %v", r)
	}
}

// wrfSelection opens the dataset and returns the selection given by the
// configuration.
func wrfSelection(args []string) (*wrf.Dataset, wrf.Selection, error) {
	d, err := wrf.Open(WRFConfig(), args...)
	if err != nil {
		return nil, wrf.Selection{}, err
	}
	logrus.Info(d.String())
	f, err := wrf.ParseField(Cfg.GetString("WRF.Field"))
	if err != nil {
		return nil, wrf.Selection{}, err
	}
	r, err := WRFRegion(d)
	if err != nil {
		return nil, wrf.Selection{}, err
	}
	return d, wrf.Selection{
		Time:   Cfg.GetInt("WRF.Time"),
		Field:  f,
		Level:  Cfg.GetInt("WRF.Level"),
		Region: r,
	}, nil
}

// savePlot saves p to OutputFile, or to def when OutputFile is empty.
func savePlot(cmd *cobra.Command, p *plot.Plot, def string) error {
	path := os.ExpandEnv(Cfg.GetString("OutputFile"))
	if path == "" {
		path = def
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("datatools: saving figure: %w", err)
	}
	cmd.Println(path)
	return nil
}

var wrfCmd = &cobra.Command{
	Use:   "wrf",
	Short: "Process WRF output",
	Long: `wrf reads the WRF output files given as arguments (files or glob
patterns; the current directory by default), skipping files that aren't
netCDF, and joins them along time.`,
	DisableAutoGenTag: true,
}

var wrfSliceCmd = &cobra.Command{
	Use:   "slice [files...]",
	Short: "Plot a horizontal slice",
	Long: `slice plots WRF.Field on level WRF.Level at time WRF.Time, outlining
WRF.Region.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, sel, err := wrfSelection(args)
		if err != nil {
			return err
		}
		p, err := d.PlotSlice(sel)
		if err != nil {
			return err
		}
		return savePlot(cmd, p, fmt.Sprintf("%v_%d_%d.png", sel.Field, sel.Time, sel.Level))
	},
	DisableAutoGenTag: true,
}

var wrfProfileCmd = &cobra.Command{
	Use:   "profile [files...]",
	Short: "Plot or save region-mean profiles",
	Long: `profile plots the mean profile of WRF.Field over WRF.Region at time
WRF.Time, or at every time when WRF.Time is negative. When OutputFile ends in
".nc" the mean profiles of every field are written as netCDF instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, sel, err := wrfSelection(args)
		if err != nil {
			return err
		}
		if out := os.ExpandEnv(Cfg.GetString("OutputFile")); strings.HasSuffix(out, ".nc") {
			if err := d.WriteProfiles(out, sel.Region); err != nil {
				return err
			}
			cmd.Println(out)
			return nil
		}
		var p *plot.Plot
		if sel.Time < 0 {
			p, err = d.PlotMeanProfilesOverTime(sel.Field, sel.Region)
		} else {
			p, err = d.PlotMeanProfile(sel)
		}
		if err != nil {
			return err
		}
		return savePlot(cmd, p, fmt.Sprintf("%v_profile.png", sel.Field))
	},
	DisableAutoGenTag: true,
}

var wrfTimeHeightCmd = &cobra.Command{
	Use:   "timeheight [files...]",
	Short: "Plot a time-height diagram",
	Long:  "timeheight plots the mean profiles of WRF.Field over WRF.Region against time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, sel, err := wrfSelection(args)
		if err != nil {
			return err
		}
		p, err := d.PlotTimeHeight(sel.Field, sel.Region)
		if err != nil {
			return err
		}
		return savePlot(cmd, p, fmt.Sprintf("%v_timeheight.png", sel.Field))
	},
	DisableAutoGenTag: true,
}

var wrfForcingCmd = &cobra.Command{
	Use:   "forcing [files...]",
	Short: "Write a SOWFA forcing table",
	Long: `forcing writes the mean U, V, W and T profiles over WRF.Region at
every time as a SOWFA forcing table, interpolated onto WRF.ForcingHeights.
The table is written to OutputFile (default "forcingTable") with a CSV copy
next to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, sel, err := wrfSelection(args)
		if err != nil {
			return err
		}
		z, err := floatSlice("WRF.ForcingHeights")
		if err != nil {
			return err
		}
		out := os.ExpandEnv(Cfg.GetString("OutputFile"))
		if out == "" {
			out = "forcingTable"
		}
		if err := d.SaveForcingTable(sel.Region, z, filepath.Dir(out), filepath.Base(out)); err != nil {
			return err
		}
		cmd.Println(out)
		return nil
	},
	DisableAutoGenTag: true,
}
