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

// Package dtutil implements the datatools command-line interface.
package dtutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/datatools"
	"github.com/spatialmodel/datatools/remotesensing"
	"github.com/spatialmodel/datatools/sowfa"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	tableCmds := []*pflag.FlagSet{lidarCmd.Flags(), radarCmd.Flags(), arlCmd.Flags(), scintecCmd.Flags()}
	wrfCmds := []*pflag.FlagSet{wrfCmd.PersistentFlags()}

	// options are the configuration options available to datatools.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel is the minimum level of logged messages: debug,
              info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile, if set, receives a copy of the log. The file is
              rotated when it grows large.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is where results are written. Tables are written
              to standard output when it is empty, and as Excel workbooks
              when it ends in ".xlsx". Figures are written in the format
              given by the file extension.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SQLite",
			usage: `
              SQLite, if set, is a database file that instrument tables
              are also saved into, replacing any table of the same name.`,
			defaultVal: "",
			flagsets:   tableCmds,
		},
		{
			name: "Derive",
			usage: `
              Derive adds columns to instrument tables. Each entry has
              the form name=expression, for example
              "u=-[wind speed]*sin(direction*3.14159/180)". Column names
              with spaces are written in brackets.`,
			defaultVal: []string{},
			flagsets:   tableCmds,
		},
		{
			name: "Workers",
			usage: `
              Workers is the maximum number of input files read at once.`,
			defaultVal: 4,
			flagsets:   tableCmds,
		},
		{
			name: "Lidar.Columns",
			usage: `
              Lidar.Columns names the whitespace separated fields of
              each data row, starting with date and time.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{lidarCmd.Flags()},
		},
		{
			name: "Lidar.Altitudes",
			usage: `
              Lidar.Altitudes are the measurement heights [m]. They are
              read from the file header when empty.`,
			defaultVal: []float64{},
			flagsets:   []*pflag.FlagSet{lidarCmd.Flags()},
		},
		{
			name: "Radar.HeightConversion",
			usage: `
              Radar.HeightConversion scales profiler heights to meters.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{radarCmd.Flags()},
		},
		{
			name: "Radar.BadValues",
			usage: `
              Radar.BadValues are the sentinels marking missing speeds
              and directions.`,
			defaultVal: []float64{999999},
			flagsets:   []*pflag.FlagSet{radarCmd.Flags()},
		},
		{
			name: "Sodar.RangeGates",
			usage: `
              Sodar.RangeGates are the measurement heights [m] of the
              ARL sodar.`,
			defaultVal: []float64{},
			flagsets:   []*pflag.FlagSet{arlCmd.Flags()},
		},
		{
			name: "Sodar.BadSpeed",
			usage: `
              Sodar.BadSpeed marks missing wind speeds. Zero selects the
              instrument default.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{arlCmd.Flags(), scintecCmd.Flags()},
		},
		{
			name: "Sodar.BadDirection",
			usage: `
              Sodar.BadDirection marks missing wind directions. Zero
              selects the instrument default.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{arlCmd.Flags(), scintecCmd.Flags()},
		},
		{
			name: "Planar.Var",
			usage: `
              Planar.Var lists the planar-averaged variables to read.`,
			defaultVal: []string{"U_mean", "V_mean", "W_mean", "T_mean"},
			flagsets:   []*pflag.FlagSet{planarCmd.Flags()},
		},
		{
			name: "TI.Heights",
			usage: `
              TI.Heights are the heights [m] of the turbulence intensity
              histories.`,
			defaultVal: []float64{90},
			flagsets:   []*pflag.FlagSet{tiCmd.Flags()},
		},
		{
			name: "TI.Window",
			usage: `
              TI.Window is the length [s] of the moving average window.`,
			defaultVal: 600.0,
			flagsets:   []*pflag.FlagSet{tiCmd.Flags()},
		},
		{
			name: "TI.Dt",
			usage: `
              TI.Dt is the spacing [s] of the resampled time axis.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{tiCmd.Flags()},
		},
		{
			name: "TI.SFS",
			usage: `
              TI.SFS specifies whether to add the modeled sub-filter
              scale stresses to the resolved ones.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{tiCmd.Flags()},
		},
		{
			name: "WRF.Ds",
			usage: `
              WRF.Ds is the horizontal grid spacing [m].`,
			defaultVal: 1.0,
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.TimeLayout",
			usage: `
              WRF.TimeLayout, if set, is the Go time layout used to read
              the time of each file from its name, for example
              "wrfout_d01_2006-01-02_15:04:05".`,
			defaultVal: "",
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.Time",
			usage: `
              WRF.Time is the time index of slices and profiles. A
              negative value plots the profiles at every time.`,
			defaultVal: 0,
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.Level",
			usage: `
              WRF.Level is the vertical index of slices.`,
			defaultVal: 0,
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.Field",
			usage: `
              WRF.Field is the field to plot: U, V, W or T.`,
			defaultVal: "U",
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.Region",
			usage: `
              WRF.Region is the horizontal index range xmin,xmax,ymin,ymax
              (inclusive) that profiles are averaged over. The whole
              domain is used when it is empty.`,
			defaultVal: []int{},
			flagsets:   wrfCmds,
		},
		{
			name: "WRF.ForcingHeights",
			usage: `
              WRF.ForcingHeights are the heights [m] the forcing table is
              interpolated onto. The region-mean heights are kept when it
              is empty.`,
			defaultVal: []float64{},
			flagsets:   wrfCmds,
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DATATOOLS")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []float64:
				set.Float64SliceP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(vtkCmd)
	Root.AddCommand(ensightCmd)
	Root.AddCommand(planarCmd)
	Root.AddCommand(tiCmd)
	Root.AddCommand(lidarCmd)
	Root.AddCommand(radarCmd)
	Root.AddCommand(sodarCmd)
	sodarCmd.AddCommand(arlCmd)
	sodarCmd.AddCommand(scintecCmd)
	Root.AddCommand(wrfCmd)
	wrfCmd.AddCommand(wrfSliceCmd)
	wrfCmd.AddCommand(wrfProfileCmd)
	wrfCmd.AddCommand(wrfTimeHeightCmd)
	wrfCmd.AddCommand(wrfForcingCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("datatools: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// setLogging configures the standard logger from the loglevel and LogFile
// options.
func setLogging(stderr io.Writer) error {
	level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("datatools: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	out := stderr
	if f := os.ExpandEnv(Cfg.GetString("LogFile")); f != "" {
		out = io.MultiWriter(stderr, &lumberjack.Logger{
			Filename:   f,
			MaxSize:    32, // MB
			MaxBackups: 3,
		})
	}
	logrus.SetOutput(out)
	return nil
}

// floatSlice reads a configuration option as a slice of float64. Flag and
// environment values arrive as comma separated strings, optionally in
// brackets.
func floatSlice(name string) ([]float64, error) {
	v := Cfg.Get(name)
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		s = strings.Trim(strings.TrimSpace(s), "[]")
		if s == "" {
			return nil, nil
		}
		parts := strings.Split(s, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		v = parts
	}
	f, err := cast.ToFloat64SliceE(v)
	if err != nil {
		return nil, fmt.Errorf("datatools: reading '%s': %w", name, err)
	}
	return f, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "datatools",
	Short: "Tools for atmospheric simulation and measurement data.",
	Long: `datatools reads and converts the outputs of atmospheric flow
simulations (VTK, Ensight, SOWFA planar averages and WRF) and of wind
profiling instruments (lidar, radar and sodar).

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DATATOOLS_var' where 'var'
is the name of the variable to be set, with '.' replaced by '_'.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setConfig(); err != nil {
			return err
		}
		return setLogging(cmd.ErrOrStderr())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of datatools.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("datatools v%s\n", datatools.Version)
	},
	DisableAutoGenTag: true,
}

var vtkCmd = &cobra.Command{
	Use:   "vtk file.vtk",
	Short: "Convert a VTK structured points file",
	Long: `vtk reads a legacy ASCII VTK structured points file, logs its
dimensions and fields, and writes one CSV row per point with the point
coordinates followed by every field component.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOutput(cmd, func(w io.Writer) error { return VTK(w, args[0]) })
	},
	DisableAutoGenTag: true,
}

var ensightCmd = &cobra.Command{
	Use:   "ensight mesh field",
	Short: "Convert an Ensight geometry and field pair",
	Long: `ensight reads an Ensight ASCII geometry file and a matching
scalar, vector or tensor field file and writes one CSV row per point.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOutput(cmd, func(w io.Writer) error { return Ensight(w, args[0], args[1]) })
	},
	DisableAutoGenTag: true,
}

var planarCmd = &cobra.Command{
	Use:   "planar dir",
	Short: "Summarize SOWFA planar averages",
	Long: `planar reads the planar-averaged profiles in the output time
directories under dir, joining restarts, and writes the mean profiles at the
last time as CSV.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := Cfg.GetStringSlice("Planar.Var")
		return withOutput(cmd, func(w io.Writer) error { return Planar(w, args[0], vars) })
	},
	DisableAutoGenTag: true,
}

var tiCmd = &cobra.Command{
	Use:   "ti dir",
	Short: "Turbulence intensity histories from SOWFA planar averages",
	Long: `ti calculates moving-average turbulence intensity and turbulent
kinetic energy histories at the TI.Heights and writes one CSV file per
height, named {OutputFile}_z{height}.csv, and a plot of the histories,
{OutputFile}_hist.png. OutputFile defaults to "TI".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		heights, err := floatSlice("TI.Heights")
		if err != nil {
			return err
		}
		o := sowfa.TIOptions{
			Heights: heights,
			Window:  Cfg.GetFloat64("TI.Window"),
			Dt:      Cfg.GetFloat64("TI.Dt"),
			SFS:     Cfg.GetBool("TI.SFS"),
		}
		prefix := os.ExpandEnv(Cfg.GetString("OutputFile"))
		if prefix == "" {
			prefix = "TI"
		}
		files, err := TI(args[0], prefix, o)
		for _, f := range files {
			cmd.Println(f)
		}
		return err
	},
	DisableAutoGenTag: true,
}

var lidarCmd = &cobra.Command{
	Use:   "lidar files...",
	Short: "Convert WindCube v1 lidar files",
	Long: `lidar reads WindCube v1 lidar files and writes one row per time
and height with the horizontal wind speed and direction.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alt, err := floatSlice("Lidar.Altitudes")
		if err != nil {
			return err
		}
		opts := remotesensing.WindCubeOptions{
			Columns:   Cfg.GetStringSlice("Lidar.Columns"),
			Altitudes: alt,
		}
		return convertTables(cmd, "lidar", args, func(f string) (*remotesensing.Table, error) {
			t, _, err := remotesensing.WindCubeV1(f, opts)
			return t, err
		})
	},
	DisableAutoGenTag: true,
}

var radarCmd = &cobra.Command{
	Use:   "radar files...",
	Short: "Convert NOAA ESRL radar wind profiler files",
	Long: `radar reads NOAA ESRL radar wind profiler files and writes the
consensus winds of the first two blocks of each file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bad, err := floatSlice("Radar.BadValues")
		if err != nil {
			return err
		}
		opts := remotesensing.ESRLOptions{
			HeightConversion: Cfg.GetFloat64("Radar.HeightConversion"),
			BadValues:        bad,
		}
		return convertTables(cmd, "radar", args, func(f string) (*remotesensing.Table, error) {
			return remotesensing.ESRLWindProfiler(f, opts)
		})
	},
	DisableAutoGenTag: true,
}

var sodarCmd = &cobra.Command{
	Use:               "sodar",
	Short:             "Convert sodar files",
	Long:              "sodar converts the files of the supported sodar instruments.",
	DisableAutoGenTag: true,
}

var arlCmd = &cobra.Command{
	Use:   "arl files...",
	Short: "Convert ARL sodar files",
	Long: `arl reads comma separated ARL sodar files. The range gates of the
instrument are given by Sodar.RangeGates.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gates, err := floatSlice("Sodar.RangeGates")
		if err != nil {
			return err
		}
		opts := remotesensing.ARLOptions{
			RangeGates:   gates,
			BadSpeed:     Cfg.GetFloat64("Sodar.BadSpeed"),
			BadDirection: Cfg.GetFloat64("Sodar.BadDirection"),
		}
		return convertTables(cmd, "sodar_arl", args, func(f string) (*remotesensing.Table, error) {
			return remotesensing.ARLWindProfiler(f, opts)
		})
	},
	DisableAutoGenTag: true,
}

var scintecCmd = &cobra.Command{
	Use:   "scintec files...",
	Short: "Convert Scintec sodar files",
	Long:  "scintec reads Scintec MFAS sodar files.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := remotesensing.ScintecOptions{
			BadSpeed:     Cfg.GetFloat64("Sodar.BadSpeed"),
			BadDirection: Cfg.GetFloat64("Sodar.BadDirection"),
		}
		return convertTables(cmd, "sodar_scintec", args, func(f string) (*remotesensing.Table, error) {
			return remotesensing.ScintecProfiler(f, opts)
		})
	},
	DisableAutoGenTag: true,
}
