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

package util

import (
	"strings"
	"time"
)

// ExpandTemplate replaces %D in a file name template with the date and time
// of now, as in the viewer's download names.
func ExpandTemplate(template string, now time.Time) string {
	return strings.ReplaceAll(template, "%D", now.Format("20060102_150405"))
}
