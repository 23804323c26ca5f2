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

// Package archive reads the per-PV, per-day CSV files written by the EPICS
// archiver device. Files are named {safe PV name}_{YYYY-MM-DD}.csv and hold a
// Timestamp,Value header followed by one row per archived update.
package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05.000"
	fileExt         = ".csv"
)

var (
	ErrNoArchive = fmt.Errorf("archive directory not found: %w", fs.ErrNotExist)

	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timestampLayouts = []string{
		TimestampLayout,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999",
		"2006-01-02T15:04:05.999999",
		time.RFC3339Nano,
	}
	safeNameReplacer = strings.NewReplacer(":", "_", "/", "_")
)

// SafeName is the file name form of a PV name.
func SafeName(pv string) string {
	return safeNameReplacer.Replace(pv)
}

// ParseFileName splits an archive file name into its safe PV name and day.
func ParseFileName(name string) (safe string, day time.Time, ok bool) {
	if !strings.HasSuffix(name, fileExt) {
		return "", time.Time{}, false
	}
	stem := strings.TrimSuffix(name, fileExt)
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", time.Time{}, false
	}
	safe, datePart := stem[:i], stem[i+1:]
	if !datePattern.MatchString(datePart) {
		return "", time.Time{}, false
	}
	day, err := time.ParseInLocation(DateLayout, datePart, time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return safe, day, true
}

// PVName recovers a PV name from its safe form. The mapping is lossy: only
// the first underscore, the one after the IOC prefix, turns back into a
// colon.
func PVName(safe string) string {
	return strings.Replace(safe, "_", ":", 1)
}

type Archive struct {
	Dir string
}

func Open(dir string) (*Archive, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoArchive, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoArchive, dir)
	}
	return &Archive{Dir: dir}, nil
}

// ListPVs returns the sorted, de-duplicated PV names with at least one file.
func (a *Archive) ListPVs() ([]string, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list archive %s", a.Dir)
	}
	seen := make(map[string]bool)
	var pvs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		safe, _, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		pv := PVName(safe)
		if !seen[pv] {
			seen[pv] = true
			pvs = append(pvs, pv)
		}
	}
	slices.Sort(pvs)
	return pvs, nil
}

type Sample struct {
	Time time.Time
	// NaN when the archived value is not numeric.
	Value float64
	Raw   string
}

type Series struct {
	PV      string
	Samples []Sample
}

func (s *Series) Empty() bool {
	return len(s.Samples) == 0
}

// Load returns the samples of pv with start <= time <= end, sorted by time.
// Day files outside the range are not opened. Files that cannot be read are
// logged and skipped.
func (a *Archive) Load(pv string, start, end time.Time) (*Series, error) {
	safe := SafeName(pv)
	matches, err := filepath.Glob(filepath.Join(a.Dir, globEscape(safe)+"_*"+fileExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)

	startDay := truncateDay(start)
	endDay := truncateDay(end)

	series := &Series{PV: pv}
	for _, file := range matches {
		fileSafe, day, ok := ParseFileName(filepath.Base(file))
		if !ok || fileSafe != safe {
			continue
		}
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		samples, err := readFile(file)
		if err != nil {
			logger.Warnw("skipping unreadable archive file", err, "file", file)
			continue
		}
		for _, s := range samples {
			if !s.Time.Before(start) && !s.Time.After(end) {
				series.Samples = append(series.Samples, s)
			}
		}
	}

	slices.SortStableFunc(series.Samples, func(a, b Sample) int {
		return a.Time.Compare(b.Time)
	})
	return series, nil
}

func readFile(file string) ([]Sample, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	samples, err := ReadSamples(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", filepath.Base(file))
	}
	return samples, nil
}

// ReadSamples parses one archive file. Rows with an unparseable timestamp
// are dropped.
func ReadSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tsCol, valueCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "Timestamp":
			tsCol = i
		case "Value":
			valueCol = i
		}
	}
	if tsCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("missing Timestamp or Value column in header %v", header)
	}

	var samples []Sample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) <= tsCol || len(record) <= valueCol {
			continue
		}
		ts, ok := parseTimestamp(record[tsCol])
		if !ok {
			continue
		}
		raw := strings.TrimSpace(record[valueCol])
		samples = append(samples, Sample{Time: ts, Value: parseValue(raw), Raw: raw})
	}
	return samples, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
