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

package archive

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/meop-target/archive-viewer/pkg/util"
)

// ExportFileTemplate names exported files after the moment of export.
const ExportFileTemplate = "archive_data_%D.csv"

var exportHeader = []string{"Timestamp", "Value", "PV"}

func ExportFileName(now time.Time) string {
	return util.ExpandTemplate(ExportFileTemplate, now)
}

// WriteCSV writes the samples of every series, one after the other, with
// a PV column naming the series each row came from. Non-numeric values are
// written as empty cells.
func WriteCSV(w io.Writer, series ...*Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return errors.Wrap(err, "could not write export header")
	}
	for _, s := range series {
		for _, sample := range s.Samples {
			record := []string{
				sample.Time.Format(TimestampLayout),
				formatValue(sample.Value),
				s.PV,
			}
			if err := writer.Write(record); err != nil {
				return errors.Wrapf(err, "could not export %s", s.PV)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
