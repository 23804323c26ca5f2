// Copyright 2024 LiveKit, Inc.
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

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meop-target/archive-viewer/pkg/venv"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestHasTask(t *testing.T) {
	root := t.TempDir()
	ok, err := HasTask(root, TaskInstall)
	require.NoError(t, err)
	assert.False(t, ok)

	writeFile(t, filepath.Join(root, TaskFile), `
version: "3"
tasks:
  install:
    cmds:
      - echo installing
  dev:
    cmds:
      - echo dev
`)
	ok, err = HasTask(root, TaskInstall)
	require.NoError(t, err)
	assert.True(t, ok)

	writeFile(t, filepath.Join(root, TaskFile), "version: \"3\"\ntasks:\n  dev:\n    cmds: [\"true\"]\n")
	ok, err = HasTask(root, TaskInstall)
	require.NoError(t, err)
	assert.False(t, ok)

	writeFile(t, filepath.Join(root, TaskFile), "tasks: [\n")
	_, err = HasTask(root, TaskInstall)
	assert.Error(t, err)
}

func TestNewTaskRunsInstall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TaskFile), `
version: "3"
tasks:
  install:
    cmds:
      - echo installed > marker.txt
`)

	var out bytes.Buffer
	run, err := NewTask(context.Background(), root, TaskInstall, false, &out, &out)
	require.NoError(t, err)
	require.NoError(t, run())

	data, err := os.ReadFile(filepath.Join(root, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "installed\n", string(data))
}

func TestInstantiateDotEnv(t *testing.T) {
	root := t.TempDir()
	envDir := filepath.Join(root, venv.DefaultDir)
	writeFile(t, filepath.Join(root, EnvExampleFile), "EPICS_CA_ADDR_LIST=127.0.0.1\nVIEWER_TITLE=Archive\n")
	writeFile(t, filepath.Join(root, "tools", EnvExampleFile), "EPICS_CA_ADDR_LIST=127.0.0.1\n")
	writeFile(t, filepath.Join(root, "tools", ".env"), "EXTRA=kept\n")
	// never entered
	writeFile(t, filepath.Join(envDir, EnvExampleFile), "SHOULD_NOT=prompt\n")
	writeFile(t, filepath.Join(root, ".git", EnvExampleFile), "SHOULD_NOT=prompt\n")

	var prompted []string
	prompt := func(key, value string) (string, error) {
		prompted = append(prompted, key)
		if key == "EPICS_CA_ADDR_LIST" {
			return "10.0.0.255", nil
		}
		return value, nil
	}

	written, err := InstantiateDotEnv(root, []string{envDir}, prompt)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	// each key is prompted once across directories
	assert.Equal(t, []string{"EPICS_CA_ADDR_LIST", "VIEWER_TITLE"}, prompted)

	env, err := godotenv.Read(filepath.Join(root, ".env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"EPICS_CA_ADDR_LIST": "10.0.0.255", "VIEWER_TITLE": "Archive"}, env)

	tools, err := godotenv.Read(filepath.Join(root, "tools", ".env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"EPICS_CA_ADDR_LIST": "10.0.0.255", "EXTRA": "kept"}, tools)

	// a second run keeps the existing values without prompting
	prompted = nil
	_, err = InstantiateDotEnv(root, []string{envDir}, prompt)
	require.NoError(t, err)
	assert.Empty(t, prompted)
}

func TestInstantiateDotEnvPromptError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, EnvExampleFile), "KEY=value\n")
	cancelled := errors.New("cancelled")

	_, err := InstantiateDotEnv(root, nil, func(string, string) (string, error) {
		return "", cancelled
	})
	assert.ErrorIs(t, err, cancelled)
	_, statErr := os.Stat(filepath.Join(root, ".env"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDefaultSteps(t *testing.T) {
	root := t.TempDir()
	env := &venv.Environment{Dir: filepath.Join(root, venv.DefaultDir)}

	// nothing to install, environment missing
	steps := DefaultSteps(root, env)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{PythonCommand, "-m", "venv", env.Dir}, steps[0].Args)
	assert.False(t, steps[0].Activated)

	writeFile(t, filepath.Join(root, "requirements.txt"), "streamlit>=1.28\n")
	steps = DefaultSteps(root, env)
	require.Len(t, steps, 2)
	assert.Equal(t, []string{env.Pip(), "install", "-r", "requirements.txt"}, steps[1].Args)
	assert.True(t, steps[1].Activated)

	// environment already present
	writeFile(t, env.ActivateScript(), "# activate\n")
	steps = DefaultSteps(root, env)
	require.Len(t, steps, 1)
	assert.Equal(t, "install dependencies", steps[0].Name)
}

func TestDefaultStepsPyprojectOnly(t *testing.T) {
	root := t.TempDir()
	env := &venv.Environment{Dir: filepath.Join(root, venv.DefaultDir)}
	writeFile(t, env.ActivateScript(), "# activate\n")
	writeFile(t, filepath.Join(root, "pyproject.toml"), "[project]\nname = \"viewer\"\n")

	steps := DefaultSteps(root, env)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{env.Pip(), "install", "."}, steps[0].Args)
}

func TestRunSteps(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("steps use sh")
	}
	t.Setenv("VIRTUAL_ENV", "")
	root := t.TempDir()
	env := &venv.Environment{Dir: filepath.Join(root, venv.DefaultDir)}

	var out bytes.Buffer
	steps := []Step{
		{Name: "plain", Args: []string{"sh", "-c", "echo ${VIRTUAL_ENV:-none}"}},
		{Name: "activated", Args: []string{"sh", "-c", "echo $VIRTUAL_ENV"}, Activated: true},
	}
	require.NoError(t, RunSteps(context.Background(), root, env, steps, &out, &out))
	assert.Equal(t, "none\n"+env.Dir+"\n", out.String())

	err := RunSteps(context.Background(), root, env, []Step{
		{Name: "failing", Args: []string{"sh", "-c", "exit 2"}},
		{Name: "never", Args: []string{"sh", "-c", "echo never"}},
	}, &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing failed")
	assert.NotContains(t, out.String(), "never")
}
