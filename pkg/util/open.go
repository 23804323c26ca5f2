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
	"fmt"
	"io"

	"github.com/pkg/browser"
)

func init() {
	// keep the browser launcher's own output off the viewer's terminal
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

func OpenInBrowser(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}
