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
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
)

const (
	HostCommand = "streamlit"

	DefaultEntry                    = "archive_viewer.py"
	DefaultPort                     = 8501
	DefaultAddress                  = "localhost"
	DefaultHeadless                 = true
	DefaultGatherUsageStats         = false
	DefaultPrimaryColor             = "#1f77b4"
	DefaultBackgroundColor          = "#ffffff"
	DefaultSecondaryBackgroundColor = "#f0f2f6"
	DefaultTextColor                = "#262730"
)

var (
	ErrInvalidConfig = errors.New("invalid launch configuration")

	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type Theme struct {
	PrimaryColor             string
	BackgroundColor          string
	SecondaryBackgroundColor string
	TextColor                string
}

// Config is the fixed set of parameters handed to the host process. It is a
// value type; a launch never mutates the Config it was given.
type Config struct {
	Entry            string
	Port             int
	Address          string
	Headless         bool
	GatherUsageStats bool
	Theme            Theme
}

func DefaultConfig() Config {
	return Config{
		Entry:            DefaultEntry,
		Port:             DefaultPort,
		Address:          DefaultAddress,
		Headless:         DefaultHeadless,
		GatherUsageStats: DefaultGatherUsageStats,
		Theme: Theme{
			PrimaryColor:             DefaultPrimaryColor,
			BackgroundColor:          DefaultBackgroundColor,
			SecondaryBackgroundColor: DefaultSecondaryBackgroundColor,
			TextColor:                DefaultTextColor,
		},
	}
}

func (c Config) Validate() error {
	if c.Entry == "" {
		return fmt.Errorf("%w: entry file is empty", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidConfig)
	}
	for name, color := range map[string]string{
		"primary color":              c.Theme.PrimaryColor,
		"background color":           c.Theme.BackgroundColor,
		"secondary background color": c.Theme.SecondaryBackgroundColor,
		"text color":                 c.Theme.TextColor,
	} {
		if !colorPattern.MatchString(color) {
			return fmt.Errorf("%w: %s %q is not #rrggbb", ErrInvalidConfig, name, color)
		}
	}
	return nil
}

// Args renders the host arguments. The order is fixed so that the same
// Config always produces the same argument list.
func (c Config) Args() []string {
	return []string{
		"run",
		c.Entry,
		"--server.port=" + strconv.Itoa(c.Port),
		"--server.address=" + c.Address,
		"--server.headless=" + strconv.FormatBool(c.Headless),
		"--browser.gatherUsageStats=" + strconv.FormatBool(c.GatherUsageStats),
		"--theme.primaryColor=" + c.Theme.PrimaryColor,
		"--theme.backgroundColor=" + c.Theme.BackgroundColor,
		"--theme.secondaryBackgroundColor=" + c.Theme.SecondaryBackgroundColor,
		"--theme.textColor=" + c.Theme.TextColor,
	}
}

// URL is where an operator reaches the viewer.
func (c Config) URL() string {
	return "http://" + net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// HealthURL is the host's readiness endpoint. Wildcard bind addresses are
// probed over loopback.
func (c Config) HealthURL() string {
	host := c.Address
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + "/_stcore/health"
}
