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

package venv

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEnv(t *testing.T, root, name string, executables ...string) {
	t.Helper()
	env := &Environment{Dir: filepath.Join(root, name)}
	require.NoError(t, os.MkdirAll(env.BinDir(), 0755))
	require.NoError(t, os.WriteFile(env.ActivateScript(), []byte("# activate\n"), 0644))
	for _, e := range executables {
		require.NoError(t, os.WriteFile(env.executable(e), []byte("#!/bin/sh\n"), 0755))
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, root string)
		envName string
		wantErr error
	}{
		{
			name:    "default directory",
			setup:   func(t *testing.T, root string) { makeEnv(t, root, DefaultDir) },
			envName: "",
		},
		{
			name:    "custom directory",
			setup:   func(t *testing.T, root string) { makeEnv(t, root, ".venv") },
			envName: ".venv",
		},
		{
			name:    "missing directory",
			setup:   func(t *testing.T, root string) {},
			envName: "venv",
			wantErr: ErrNotFound,
		},
		{
			name: "directory without activate script",
			setup: func(t *testing.T, root string) {
				require.NoError(t, os.MkdirAll(filepath.Join(root, "venv", "bin"), 0755))
			},
			envName: "venv",
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			env, err := Locate(root, tt.envName)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, errors.Is(err, fs.ErrNotExist))
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(env.Dir))
			assert.FileExists(t, env.ActivateScript())
		})
	}
}

func TestLocateAbsolutePath(t *testing.T) {
	root := t.TempDir()
	makeEnv(t, root, "elsewhere")

	env, err := Locate(t.TempDir(), filepath.Join(root, "elsewhere"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "elsewhere"), env.Dir)
}

func TestActivate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix environment layout")
	}
	env := &Environment{Dir: "/opt/viewer/venv"}

	out := env.Activate([]string{
		"HOME=/home/operator",
		"PATH=/usr/bin:/bin",
		"PYTHONHOME=/usr",
		"VIRTUAL_ENV=/old/venv",
	})

	assert.Contains(t, out, "HOME=/home/operator")
	assert.Contains(t, out, "VIRTUAL_ENV=/opt/viewer/venv")
	assert.Contains(t, out, "PATH=/opt/viewer/venv/bin:/usr/bin:/bin")
	for _, kv := range out {
		assert.False(t, strings.HasPrefix(kv, "PYTHONHOME="), "PYTHONHOME should be unset")
		assert.NotEqual(t, "VIRTUAL_ENV=/old/venv", kv)
	}
}

func TestActivateWithoutPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix environment layout")
	}
	env := &Environment{Dir: "/opt/viewer/venv"}
	out := env.Activate(nil)
	assert.Equal(t, []string{"VIRTUAL_ENV=/opt/viewer/venv", "PATH=/opt/viewer/venv/bin"}, out)
}

func TestLookPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix permission bits")
	}
	root := t.TempDir()
	makeEnv(t, root, "venv", "streamlit")
	env, err := Locate(root, "venv")
	require.NoError(t, err)

	p, err := env.LookPath("streamlit", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.BinDir(), "streamlit"), p)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "tool"), []byte("#!/bin/sh\n"), 0755))
	p, err = env.LookPath("tool", []string{"PATH=" + other})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(other, "tool"), p)

	_, err = env.LookPath("missing", []string{"PATH=" + other})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}
