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
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	// First and Last are the values of the first and last samples, which
	// may be NaN when those samples are not numeric.
	First     float64   `json:"first"`
	Last      float64   `json:"last"`
	FirstTime time.Time `json:"first_time"`
	LastTime  time.Time `json:"last_time"`
}

// Stats summarizes the numeric samples of s. It returns false when s holds
// no numeric value. StdDev is the sample standard deviation and is NaN for
// a single value.
func (s *Series) Stats() (*Stats, bool) {
	values := s.Values()
	if len(values) == 0 {
		return nil, false
	}

	mean, std := stat.MeanStdDev(values, nil)
	first, last := s.Samples[0], s.Samples[len(s.Samples)-1]
	return &Stats{
		Count:     len(values),
		Mean:      mean,
		StdDev:    std,
		Min:       floats.Min(values),
		Max:       floats.Max(values),
		First:     first.Value,
		Last:      last.Value,
		FirstTime: first.Time,
		LastTime:  last.Time,
	}, true
}

// Values returns the numeric sample values in time order.
func (s *Series) Values() []float64 {
	values := make([]float64, 0, len(s.Samples))
	for _, sample := range s.Samples {
		if !math.IsNaN(sample.Value) {
			values = append(values, sample.Value)
		}
	}
	return values
}
