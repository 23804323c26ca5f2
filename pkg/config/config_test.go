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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meop-target/archive-viewer/pkg/launcher"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadViewerTOMLMissing(t *testing.T) {
	c, exists, err := LoadViewerTOML(t.TempDir(), "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, c)

	// a nil file leaves the defaults untouched
	cfg, err := c.Apply(launcher.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, launcher.DefaultConfig(), cfg)
	assert.Empty(t, c.EnvDir())
	assert.Empty(t, c.ArchivePath())
}

func TestLoadViewerTOMLOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ViewerTOMLFile), `
[environment]
dir = ".venv"

[server]
port = 8600
address = "0.0.0.0"

[theme]
primary_color = "#ff0000"

[archive]
path = "/srv/archive"
`)

	c, exists, err := LoadViewerTOML(dir, "")
	require.NoError(t, err)
	require.True(t, exists)

	cfg, err := c.Apply(launcher.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 8600, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, "#ff0000", cfg.Theme.PrimaryColor)
	assert.Equal(t, launcher.DefaultBackgroundColor, cfg.Theme.BackgroundColor)
	assert.Equal(t, launcher.DefaultEntry, cfg.Entry)
	assert.Equal(t, ".venv", c.EnvDir())
	assert.Equal(t, "/srv/archive", c.ArchivePath())
}

func TestViewerTOMLInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		loadErr bool
	}{
		{name: "syntax error", content: "[server\nport = 1", loadErr: true},
		{name: "wrong type", content: "[server]\nport = \"high\"", loadErr: true},
		{name: "port out of range", content: "[server]\nport = 0"},
		{name: "bad color", content: "[theme]\ntext_color = \"black\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ViewerTOMLFile), tt.content)

			c, exists, err := LoadViewerTOML(dir, "")
			assert.True(t, exists)
			if tt.loadErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
			_, err = c.Apply(launcher.DefaultConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.True(t, errors.Is(err, launcher.ErrInvalidConfig))
		})
	}
}

func TestSaveViewerTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file, err := SaveViewerTOML(dir, "", DefaultViewerTOML())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ViewerTOMLFile), file)

	c, exists, err := LoadViewerTOML(dir, "")
	require.NoError(t, err)
	require.True(t, exists)
	// no archive path, so IOC settings still decide where the archive is
	assert.Empty(t, c.ArchivePath())

	cfg, err := c.Apply(launcher.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, launcher.DefaultConfig(), cfg)
}

const iocSettings = `
general:
  prefix: TGT:MEOP
  epics_addr_list: None
lakeshore:
  module: devices.ls336
  delay: 1
archiver:
  module: devices.archiver
  delay: 5
  archive_path: ../archive-data
  deadband: 0.01
`

func TestIOCSettingsArchivePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, SettingsYAMLFile)
	writeFile(t, file, iocSettings)

	settings, err := LoadIOCSettings(file)
	require.NoError(t, err)
	assert.Len(t, settings.Devices, 2)

	p, ok := settings.ArchivePath()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "archive-data"), p)
}

func TestIOCSettingsDefaultArchiverPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, SettingsYAMLFile)
	writeFile(t, file, "general:\n  prefix: X\narch:\n  module: devices.archiver\n")

	settings, err := LoadIOCSettings(file)
	require.NoError(t, err)
	p, ok := settings.ArchivePath()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "archive"), p)
}

func TestIOCSettingsWithoutArchiver(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, SettingsYAMLFile)
	writeFile(t, file, "general:\n  prefix: X\nls:\n  module: devices.ls336\n")

	settings, err := LoadIOCSettings(file)
	require.NoError(t, err)
	_, ok := settings.ArchivePath()
	assert.False(t, ok)
}

func TestResolveArchivePath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "viewer")
	require.NoError(t, os.MkdirAll(root, 0755))

	// nothing configured
	assert.Equal(t, filepath.Join(root, DefaultArchivePath), ResolveArchivePath(root, "", nil))

	// IOC settings in the parent directory
	writeFile(t, filepath.Join(filepath.Dir(root), SettingsYAMLFile), iocSettings)
	assert.Equal(t,
		filepath.Join(filepath.Dir(filepath.Dir(root)), "archive-data"),
		ResolveArchivePath(root, "", nil))

	// viewer.toml beats IOC settings
	viewer := &ViewerTOML{Archive: &ViewerTOMLArchive{Path: "from-toml"}}
	assert.Equal(t, filepath.Join(root, "from-toml"), ResolveArchivePath(root, "", viewer))

	// explicit beats everything
	assert.Equal(t, "/explicit", ResolveArchivePath(root, "/explicit", viewer))
}
