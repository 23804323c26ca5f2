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

// Package pydeps inspects the Python project files next to the viewer to
// find out how it is managed and which version of a package it declares.
package pydeps

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

type ProjectType string

const (
	ProjectTypePip     ProjectType = "pip"
	ProjectTypeUV      ProjectType = "uv"
	ProjectTypePoetry  ProjectType = "poetry"
	ProjectTypeUnknown ProjectType = "unknown"
)

var ErrUnknownProject = errors.New("expected requirements.txt, pyproject.toml, or lock files")

// InstallCommand returns the command that installs the project's
// dependencies into the environment at envDir.
func (p ProjectType) InstallCommand(envDir string) []string {
	switch p {
	case ProjectTypeUV:
		return []string{"uv", "sync", "--active"}
	case ProjectTypePoetry:
		return []string{"poetry", "install", "--no-root"}
	default:
		env := &venv.Environment{Dir: envDir}
		return []string{env.Pip(), "install", "-r", "requirements.txt"}
	}
}

func DetectProjectType(dir string) (ProjectType, error) {
	if util.FileExists(dir, "uv.lock") {
		return ProjectTypeUV, nil
	}
	if util.FileExists(dir, "poetry.lock") {
		return ProjectTypePoetry, nil
	}
	if util.FileExists(dir, "requirements.txt") {
		return ProjectTypePip, nil
	}
	if util.FileExists(dir, "pyproject.toml") {
		data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
		if err == nil {
			var doc map[string]any
			if err := toml.Unmarshal(data, &doc); err == nil {
				if tool, ok := doc["tool"].(map[string]any); ok {
					if _, hasPoetry := tool["poetry"]; hasPoetry {
						return ProjectTypePoetry, nil
					}
					if _, hasUv := tool["uv"]; hasUv {
						return ProjectTypeUV, nil
					}
				}
			}
		}
		// pip can install from any pyproject.toml
		return ProjectTypePip, nil
	}

	return ProjectTypeUnknown, ErrUnknownProject
}
