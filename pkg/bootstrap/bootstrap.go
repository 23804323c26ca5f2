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

// This package prepares a viewer checkout for its first launch: it creates
// the Python environment, installs the project's dependencies, either
// through the project's own taskfile or the default steps, and instantiates
// .env files from their examples.
package bootstrap

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/go-task/task/v3"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/launcher"
)

const (
	EnvExampleFile = ".env.example"
	TaskFile       = "taskfile.yaml"
)

type KnownTask string

const (
	TaskInstall KnownTask = "install"
)

// HasTask reports whether the project's taskfile defines name. A project
// without a taskfile has no tasks.
func HasTask(rootPath string, name KnownTask) (bool, error) {
	file, err := os.ReadFile(filepath.Join(rootPath, TaskFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	var tf struct {
		Tasks map[string]yaml.Node `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(file, &tf); err != nil {
		return false, err
	}
	_, ok := tf.Tasks[string(name)]
	return ok, nil
}

func NewTaskExecutor(dir string, verbose bool, stdout, stderr io.Writer) *task.Executor {
	var o io.Writer = io.Discard
	if verbose {
		o = stdout
	}
	return &task.Executor{
		Dir:       dir,
		Force:     false,
		ForceAll:  false,
		Insecure:  false,
		Download:  false,
		Offline:   false,
		Watch:     false,
		Verbose:   false,
		Silent:    !verbose,
		AssumeYes: false,
		Dry:       false,
		Summary:   false,
		Parallel:  false,
		Color:     true,

		Stdin:  os.Stdin,
		Stdout: o,
		Stderr: stderr,
	}
}

func NewTask(ctx context.Context, dir string, taskName KnownTask, verbose bool, stdout, stderr io.Writer) (func() error, error) {
	exe := NewTaskExecutor(dir, verbose, stdout, stderr)
	err := exe.Setup()
	if err != nil {
		return nil, err
	}

	return func() error {
		return exe.Run(ctx, &task.Call{
			Task: string(taskName),
		})
	}, nil
}

type PromptFunc func(key string, value string) (string, error)

// Recursively walk the project, reading in any .env.example file present in
// a directory, prompting for each value and writing the result to .env in
// that directory. Keys already set in an existing .env keep their value and
// are not prompted for. Directories named in skip are not entered. Returns
// the files written.
func InstantiateDotEnv(rootDir string, skip []string, prompt PromptFunc) ([]string, error) {
	promptedVars := map[string]string{}
	var written []string

	err := filepath.WalkDir(rootDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filePath != rootDir && (slices.Contains(skip, filePath) || isHiddenDir(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != EnvExampleFile {
			return nil
		}

		envMap, err := godotenv.Read(filePath)
		if err != nil {
			return err
		}

		envPath := filepath.Join(filepath.Dir(filePath), launcher.DotEnvFile)
		existing, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		for _, key := range sortedKeys(envMap) {
			if value, ok := existing[key]; ok {
				envMap[key] = value
			} else if alreadyPromptedValue, ok := promptedVars[key]; ok {
				envMap[key] = alreadyPromptedValue
			} else {
				newValue, err := prompt(key, envMap[key])
				if err != nil {
					return err
				}
				envMap[key] = newValue
				promptedVars[key] = newValue
			}
		}
		// keep variables the operator added by hand
		for key, value := range existing {
			if _, ok := envMap[key]; !ok {
				envMap[key] = value
			}
		}

		envContents, err := godotenv.Marshal(envMap)
		if err != nil {
			return err
		}
		if err := os.WriteFile(envPath, []byte(envContents+"\n"), 0600); err != nil {
			return err
		}
		logger.Debugw("wrote env file", "file", envPath, "keys", len(envMap))
		written = append(written, envPath)
		return nil
	})
	return written, err
}

func isHiddenDir(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Determine if `cmd` is a binary in PATH
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
