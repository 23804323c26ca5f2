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
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"
)

const (
	SettingsYAMLFile = "settings.yaml"
	// Where the viewer looks when nothing else is configured.
	DefaultArchivePath = "data"
	// Where the archiver device writes when its settings omit archive_path.
	defaultArchiverPath = "archive"
	archiverModule      = "archiver"
)

// IOCSettings is the part of the IOC settings file the viewer cares about:
// one entry per device, keyed by IOC name, plus the "general" section.
type IOCSettings struct {
	Devices map[string]IOCDevice
	// Directory of the settings file, relative paths resolve against it.
	Dir string
}

type IOCDevice struct {
	Module      string `yaml:"module"`
	ArchivePath string `yaml:"archive_path"`
}

func LoadIOCSettings(path string) (*IOCSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	settings := &IOCSettings{
		Devices: make(map[string]IOCDevice),
		Dir:     filepath.Dir(path),
	}
	for name, node := range raw {
		if name == "general" || node.Kind != yaml.MappingNode {
			continue
		}
		var device IOCDevice
		if err := node.Decode(&device); err != nil {
			return nil, fmt.Errorf("%w: %s: device %s: %w", ErrInvalidConfig, path, name, err)
		}
		settings.Devices[name] = device
	}
	return settings, nil
}

// FindIOCSettings returns the first settings file found in the project root
// or its parent, the places the IOC itself is usually started from.
func FindIOCSettings(root string) (string, bool) {
	for _, dir := range []string{root, filepath.Dir(root)} {
		candidate := filepath.Join(dir, SettingsYAMLFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// ArchivePath returns the directory the archiver device writes to. When
// several devices use the archiver module the first by name wins.
func (s *IOCSettings) ArchivePath() (string, bool) {
	names := make([]string, 0, len(s.Devices))
	for name := range s.Devices {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		device := s.Devices[name]
		if !isArchiverModule(device.Module) {
			continue
		}
		path := device.ArchivePath
		if path == "" {
			path = defaultArchiverPath
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.Dir, path)
		}
		return path, true
	}
	return "", false
}

func isArchiverModule(module string) bool {
	return module == archiverModule || strings.HasSuffix(module, "."+archiverModule)
}

// ResolveArchivePath picks the archive directory: an explicit value, then
// viewer.toml, then the archiver entry in the IOC settings, then the
// viewer's own default. Relative results are anchored at root.
func ResolveArchivePath(root, explicit string, viewer *ViewerTOML) string {
	anchor := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	if explicit != "" {
		return anchor(explicit)
	}
	if p := viewer.ArchivePath(); p != "" {
		return anchor(p)
	}
	if file, ok := FindIOCSettings(root); ok {
		settings, err := LoadIOCSettings(file)
		if err != nil {
			logger.Warnw("could not read IOC settings", err, "file", file)
		} else if p, ok := settings.ArchivePath(); ok {
			logger.Debugw("using archive path from IOC settings", "file", file, "path", p)
			return p
		}
	}
	return anchor(DefaultArchivePath)
}
