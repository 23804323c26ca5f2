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

// Package venv locates an isolated Python environment on disk and produces
// the process environment an activated shell would have.
package venv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultDir = "venv"
)

var (
	ErrNotFound = fmt.Errorf("python environment not found: %w", fs.ErrNotExist)
)

type Environment struct {
	// Absolute path of the environment directory.
	Dir string
}

// Locate resolves name against root and verifies that an activation script
// exists there. It performs no other checks: a present but broken
// environment is reported later by the processes run inside it.
func Locate(root, name string) (*Environment, error) {
	if name == "" {
		name = DefaultDir
	}
	dir := name
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, name)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	env := &Environment{Dir: dir}
	if _, err := os.Stat(env.ActivateScript()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, env.ActivateScript())
		}
		return nil, err
	}
	return env, nil
}

func (e *Environment) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.Dir, "Scripts")
	}
	return filepath.Join(e.Dir, "bin")
}

func (e *Environment) ActivateScript() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.BinDir(), "activate.bat")
	}
	return filepath.Join(e.BinDir(), "activate")
}

func (e *Environment) Python() string {
	return e.executable("python")
}

func (e *Environment) Pip() string {
	return e.executable("pip")
}

func (e *Environment) executable(name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(e.BinDir(), name)
}

// Activate returns a copy of environ with the changes the environment's
// activate script makes: VIRTUAL_ENV set, the bin directory first on PATH
// and PYTHONHOME removed.
func (e *Environment) Activate(environ []string) []string {
	out := make([]string, 0, len(environ)+2)
	path := ""
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		switch {
		case envKeyEqual(key, "PATH"):
			path = value
		case envKeyEqual(key, "VIRTUAL_ENV"), envKeyEqual(key, "PYTHONHOME"):
		default:
			out = append(out, kv)
		}
	}

	if path == "" {
		path = e.BinDir()
	} else {
		path = e.BinDir() + string(os.PathListSeparator) + path
	}
	out = append(out, "VIRTUAL_ENV="+e.Dir, "PATH="+path)
	return out
}

// LookPath finds an executable, preferring the environment's bin directory
// and then falling back to the PATH found in environ.
func (e *Environment) LookPath(name string, environ []string) (string, error) {
	if p := e.executable(name); isExecutable(p) {
		return p, nil
	}
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		if !envKeyEqual(key, "PATH") {
			continue
		}
		for _, dir := range filepath.SplitList(value) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, name)
			if runtime.GOOS == "windows" {
				candidate += ".exe"
			}
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}

func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
