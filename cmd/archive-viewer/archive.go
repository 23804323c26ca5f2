// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/archive"
	"github.com/meop-target/archive-viewer/pkg/util"
)

// MaxPVs is how many PVs one query may combine.
const MaxPVs = 4

var (
	ErrNoData = errors.New("no data found for the selected PVs in the specified time range")

	timeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		archive.DateLayout,
	}
)

func archiveFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "archive",
		Aliases: []string{"a"},
		Usage:   "Archive `DIR`, defaults to viewer.toml, then the archiver in the IOC settings, then ./data",
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "since",
			Usage: "Look back `DURATION` from now, e.g. 90m, 24h, 7d",
			Value: "24h",
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "Start `TIME` (YYYY-MM-DD[ HH:MM[:SS]]), overrides --since",
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "End `TIME` (YYYY-MM-DD[ HH:MM[:SS]]), defaults to now",
		},
	}
}

func archiveCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:     "archive",
			Usage:    "Inspect the CSV archive written by the archiver device",
			Category: "Archive",
			Commands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "List archived PVs",
					Action: listPVs,
					Flags:  []cli.Flag{archiveFlag(), jsonFlag()},
				},
				{
					Name:      "stats",
					Usage:     "Show statistics for PVs over a time range",
					ArgsUsage: "PV [PV...]",
					Action:    showStats,
					Flags:     append([]cli.Flag{archiveFlag(), jsonFlag()}, rangeFlags()...),
				},
				{
					Name:      "export",
					Usage:     "Export PVs over a time range to one CSV file",
					ArgsUsage: "PV [PV...]",
					Action:    exportPVs,
					Flags: append([]cli.Flag{
						archiveFlag(),
						&cli.StringFlag{
							Name:    "out",
							Aliases: []string{"o"},
							Usage:   "Output `FILE`, - for stdout (default: " + archive.ExportFileTemplate + ")",
						},
					}, rangeFlags()...),
				},
			},
		},
	}
}

func openArchive(cmd *cli.Command) (*archive.Archive, error) {
	p, err := loadProject(cmd)
	if err != nil {
		return nil, err
	}
	path := p.ArchivePath(cmd)
	logger.Debugw("using archive", "path", path)
	return archive.Open(path)
}

func listPVs(ctx context.Context, cmd *cli.Command) error {
	a, err := openArchive(cmd)
	if err != nil {
		return err
	}
	pvs, err := a.ListPVs()
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		if pvs == nil {
			pvs = []string{}
		}
		return util.PrintJSON(out, pvs)
	}
	if len(pvs) == 0 {
		return fmt.Errorf("no archived PVs found in %s", a.Dir)
	}
	fmt.Fprintln(out, util.FormHeaderStyle.Render(fmt.Sprintf("Available PVs (%d)", len(pvs))))
	for _, pv := range pvs {
		fmt.Fprintln(out, pv)
	}
	return nil
}

// loadSeries loads the PVs named on the command line over the selected
// range, dropping PVs without data.
func loadSeries(cmd *cli.Command, now time.Time) ([]*archive.Series, error) {
	pvs := cmd.Args().Slice()
	if len(pvs) == 0 {
		return nil, errors.New("at least one PV is required")
	}
	if len(pvs) > MaxPVs {
		logger.Warnw("too many PVs, keeping the first", nil, "max", MaxPVs, "dropped", strings.Join(pvs[MaxPVs:], ","))
		pvs = pvs[:MaxPVs]
	}

	start, end, err := timeRange(cmd, now)
	if err != nil {
		return nil, err
	}
	a, err := openArchive(cmd)
	if err != nil {
		return nil, err
	}

	var series []*archive.Series
	for _, pv := range pvs {
		s, err := a.Load(pv, start, end)
		if err != nil {
			return nil, err
		}
		if s.Empty() {
			logger.Infow("no data for PV", "pv", pv)
			continue
		}
		series = append(series, s)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}

func timeRange(cmd *cli.Command, now time.Time) (time.Time, time.Time, error) {
	end := now
	if v := cmd.String("end"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	var start time.Time
	if v := cmd.String("start"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	} else {
		d, err := parseSince(cmd.String("since"))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = end.Add(-d)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", start.Format(time.DateTime), end.Format(time.DateTime))
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected YYYY-MM-DD[ HH:MM[:SS]]", s)
}

// parseSince accepts Go durations plus a whole number of days, e.g. 7d.
func parseSince(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

type statsView struct {
	PV        string    `json:"pv"`
	Count     int       `json:"count"`
	Mean      *float64  `json:"mean"`
	StdDev    *float64  `json:"std_dev"`
	Min       *float64  `json:"min"`
	Max       *float64  `json:"max"`
	First     *float64  `json:"first"`
	Last      *float64  `json:"last"`
	FirstTime time.Time `json:"first_time"`
	LastTime  time.Time `json:"last_time"`
}

// JSON has no NaN, missing values become null.
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func showStats(ctx context.Context, cmd *cli.Command) error {
	series, err := loadSeries(cmd, time.Now())
	if err != nil {
		return err
	}

	var views []statsView
	for _, s := range series {
		st, ok := s.Stats()
		if !ok {
			logger.Infow("PV has no numeric values", "pv", s.PV)
			continue
		}
		views = append(views, statsView{
			PV:        s.PV,
			Count:     st.Count,
			Mean:      jsonFloat(st.Mean),
			StdDev:    jsonFloat(st.StdDev),
			Min:       jsonFloat(st.Min),
			Max:       jsonFloat(st.Max),
			First:     jsonFloat(st.First),
			Last:      jsonFloat(st.Last),
			FirstTime: st.FirstTime,
			LastTime:  st.LastTime,
		})
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		if views == nil {
			views = []statsView{}
		}
		return util.PrintJSON(out, views)
	}
	for _, v := range views {
		printStats(out, v)
	}
	return nil
}

func printStats(w io.Writer, v statsView) {
	metric := func(f *float64) string {
		if f == nil {
			return "-"
		}
		return strconv.FormatFloat(*f, 'g', 6, 64)
	}
	fmt.Fprintln(w, util.FormHeaderStyle.Render(v.PV))
	rows := [][2]string{
		{"Count", strconv.Itoa(v.Count)},
		{"Mean", metric(v.Mean)},
		{"Std Dev", metric(v.StdDev)},
		{"Min", metric(v.Min)},
		{"Max", metric(v.Max)},
		{"First", metric(v.First)},
		{"Last", metric(v.Last)},
		{"First Time", v.FirstTime.Format(archive.TimestampLayout)},
		{"Last Time", v.LastTime.Format(archive.TimestampLayout)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-10s %s\n", r[0], r[1])
	}
}

func exportPVs(ctx context.Context, cmd *cli.Command) error {
	now := time.Now()
	series, err := loadSeries(cmd, now)
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "-" {
		return archive.WriteCSV(cmd.Root().Writer, series...)
	}
	if out == "" {
		out = archive.ExportFileName(now)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := archive.WriteCSV(f, series...); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	rows := 0
	for _, s := range series {
		rows += len(s.Samples)
	}
	fmt.Fprintf(cmd.Root().Writer, "Exported %d rows to [%s]\n", rows, util.Accented(out))
	return nil
}
