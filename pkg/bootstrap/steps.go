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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/pydeps"
	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

const PythonCommand = "python3"

var ErrMissingPython = errors.New(PythonCommand + " not found in PATH")

// Step is one command of the default install sequence.
type Step struct {
	Name string
	Args []string
	// Run with the environment activated.
	Activated bool
}

func (s Step) String() string {
	return strings.Join(s.Args, " ")
}

// DefaultSteps returns the install sequence used when the project has no
// install task: create the environment when it is missing, then install the
// project's dependencies into it.
func DefaultSteps(root string, env *venv.Environment) []Step {
	var steps []Step
	if _, err := os.Stat(env.ActivateScript()); err != nil {
		steps = append(steps, Step{
			Name: "create environment",
			Args: []string{PythonCommand, "-m", "venv", env.Dir},
		})
	}

	projectType, err := pydeps.DetectProjectType(root)
	switch {
	case err != nil:
		logger.Debugw("no dependency files found", "root", root)
	case projectType == pydeps.ProjectTypePip && !util.FileExists(root, "requirements.txt"):
		steps = append(steps, Step{
			Name:      "install project",
			Args:      []string{env.Pip(), "install", "."},
			Activated: true,
		})
	default:
		steps = append(steps, Step{
			Name:      "install dependencies",
			Args:      projectType.InstallCommand(env.Dir),
			Activated: true,
		})
	}
	return steps
}

// RunSteps runs steps in order in root, stopping at the first failure.
func RunSteps(ctx context.Context, root string, env *venv.Environment, steps []Step, stdout, stderr io.Writer) error {
	for _, s := range steps {
		if len(s.Args) == 0 {
			continue
		}
		if s.Args[0] == PythonCommand && !CommandExists(PythonCommand) {
			return ErrMissingPython
		}
		logger.Debugw("running setup step", "step", s.Name, "command", s.String())

		environ := os.Environ()
		if s.Activated {
			environ = env.Activate(environ)
		}
		cmd := exec.CommandContext(ctx, s.Args[0], s.Args[1:]...)
		cmd.Dir = root
		cmd.Env = environ
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s failed: %w", s.Name, err)
		}
	}
	return nil
}
