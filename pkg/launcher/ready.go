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

package launcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/livekit/protocol/logger"
)

const (
	probeInterval = 500 * time.Millisecond
	probeTimeout  = 2 * time.Second
)

// WaitReady polls url until it answers 200 OK, timeout elapses or ctx is
// done. Connection errors and 5xx responses are retried.
func WaitReady(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := retryablehttp.NewClient()
	client.RetryMax = int(timeout / probeInterval)
	client.RetryWaitMin = probeInterval
	client.RetryWaitMax = probeInterval
	client.HTTPClient.Timeout = probeTimeout
	client.Logger = probeLogger{}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// probeLogger routes retryablehttp's chatter to debug level; failed
// attempts are expected while the host is starting.
type probeLogger struct{}

func (probeLogger) Error(msg string, keysAndValues ...interface{}) {
	logger.Debugw(msg, keysAndValues...)
}

func (probeLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugw(msg, keysAndValues...)
}

func (probeLogger) Debug(msg string, keysAndValues ...interface{}) {
	logger.Debugw(msg, keysAndValues...)
}

func (probeLogger) Warn(msg string, keysAndValues ...interface{}) {
	logger.Debugw(msg, keysAndValues...)
}
