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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/launcher"
	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

const (
	ViewerTOMLFile = "viewer.toml"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration file")
)

// ViewerTOML is the optional per-project override file. Every field is
// optional; unset fields keep the launcher defaults.
type ViewerTOML struct {
	Environment *ViewerTOMLEnvironment `toml:"environment"`
	Server      *ViewerTOMLServer      `toml:"server"`
	Theme       *ViewerTOMLTheme       `toml:"theme"`
	Archive     *ViewerTOMLArchive     `toml:"archive"`
}

type ViewerTOMLEnvironment struct {
	Dir   string `toml:"dir"`
	Entry string `toml:"entry"`
}

type ViewerTOMLServer struct {
	Port    *int   `toml:"port"`
	Address string `toml:"address"`
}

type ViewerTOMLTheme struct {
	PrimaryColor             string `toml:"primary_color"`
	BackgroundColor          string `toml:"background_color"`
	SecondaryBackgroundColor string `toml:"secondary_background_color"`
	TextColor                string `toml:"text_color"`
}

type ViewerTOMLArchive struct {
	Path string `toml:"path"`
}

// LoadViewerTOML reads dir/fileName. A missing file is not an error: the
// returned config is nil and exists is false.
func LoadViewerTOML(dir, fileName string) (*ViewerTOML, bool, error) {
	tomlFile := resolveFile(dir, fileName)
	logger.Debugw(fmt.Sprintf("loading %s file", tomlFile))

	if _, err := os.Stat(tomlFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, true, err
	}

	var config ViewerTOML
	md, err := toml.DecodeFile(tomlFile, &config)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, tomlFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		logger.Warnw("ignoring unknown keys in config file", nil, "file", tomlFile, "keys", fmt.Sprint(undecoded))
	}
	return &config, true, nil
}

// Apply overlays the file's values onto base and validates the result.
func (c *ViewerTOML) Apply(base launcher.Config) (launcher.Config, error) {
	if c == nil {
		return base, nil
	}
	if c.Environment != nil && c.Environment.Entry != "" {
		base.Entry = c.Environment.Entry
	}
	if c.Server != nil {
		if c.Server.Port != nil {
			base.Port = *c.Server.Port
		}
		if c.Server.Address != "" {
			base.Address = c.Server.Address
		}
	}
	if t := c.Theme; t != nil {
		base.Theme.PrimaryColor = util.Coalesce(t.PrimaryColor, base.Theme.PrimaryColor)
		base.Theme.BackgroundColor = util.Coalesce(t.BackgroundColor, base.Theme.BackgroundColor)
		base.Theme.SecondaryBackgroundColor = util.Coalesce(t.SecondaryBackgroundColor, base.Theme.SecondaryBackgroundColor)
		base.Theme.TextColor = util.Coalesce(t.TextColor, base.Theme.TextColor)
	}
	if err := base.Validate(); err != nil {
		return base, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return base, nil
}

func (c *ViewerTOML) EnvDir() string {
	if c == nil || c.Environment == nil {
		return ""
	}
	return c.Environment.Dir
}

func (c *ViewerTOML) ArchivePath() string {
	if c == nil || c.Archive == nil {
		return ""
	}
	return c.Archive.Path
}

// SaveViewerTOML writes c to dir/fileName and returns the path written.
func SaveViewerTOML(dir, fileName string, c *ViewerTOML) (string, error) {
	tomlFile := resolveFile(dir, fileName)
	f, err := os.Create(tomlFile)
	if err != nil {
		return "", err
	}
	defer f.Close()
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("error encoding TOML: %w", err)
	}
	logger.Debugw("saved config file", "file", tomlFile)
	return tomlFile, nil
}

func resolveFile(dir, fileName string) string {
	if fileName == "" {
		fileName = ViewerTOMLFile
	}
	if filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(dir, fileName)
}

// DefaultViewerTOML holds the launcher defaults, for operators to edit. The
// archive table is left out so the archive path keeps following the IOC
// settings.
func DefaultViewerTOML() *ViewerTOML {
	d := launcher.DefaultConfig()
	port := d.Port
	return &ViewerTOML{
		Environment: &ViewerTOMLEnvironment{Dir: venv.DefaultDir, Entry: d.Entry},
		Server:      &ViewerTOMLServer{Port: &port, Address: d.Address},
		Theme: &ViewerTOMLTheme{
			PrimaryColor:             d.Theme.PrimaryColor,
			BackgroundColor:          d.Theme.BackgroundColor,
			SecondaryBackgroundColor: d.Theme.SecondaryBackgroundColor,
			TextColor:                d.Theme.TextColor,
		},
	}
}
