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

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/bootstrap"
	"github.com/meop-target/archive-viewer/pkg/config"
	"github.com/meop-target/archive-viewer/pkg/util"
)

func setupCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:     "setup",
			Usage:    "Create the Python environment and install the viewer's dependencies",
			Category: "Core",
			Action:   setupViewer,
			Flags: []cli.Flag{
				silentFlag(),
				&cli.BoolFlag{
					Name:  "write-config",
					Usage: "Write a " + config.ViewerTOMLFile + " holding the defaults when none exists",
				},
			},
		},
	}
}

func setupViewer(ctx context.Context, cmd *cli.Command) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	verbose := cmd.Bool("verbose")
	silent := cmd.Bool("silent")
	env := p.Environment()

	hasTask, err := bootstrap.HasTask(p.Root, bootstrap.TaskInstall)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", bootstrap.TaskFile, err)
	}

	if hasTask {
		fmt.Fprintf(out, "Running task [%s] from %s\n", util.Accented(string(bootstrap.TaskInstall)), bootstrap.TaskFile)
		var taskOut bytes.Buffer
		stdout, stderr := io.Writer(&taskOut), io.Writer(&taskOut)
		if verbose {
			stdout, stderr = out, cmd.Root().ErrWriter
		}
		install, err := bootstrap.NewTask(ctx, p.Root, bootstrap.TaskInstall, verbose, stdout, stderr)
		if err != nil {
			return err
		}
		if err := runStep(ctx, "Installing...", verbose, install, &taskOut, out); err != nil {
			return err
		}
	} else {
		steps := bootstrap.DefaultSteps(p.Root, env)
		if len(steps) == 0 {
			fmt.Fprintln(out, "Nothing to install")
		} else {
			fmt.Fprintln(out, "Setup will run:")
			for _, s := range steps {
				fmt.Fprintf(out, "  %s\n", util.Dimmed(s.String()))
			}
			ok, err := confirm(ctx, "Continue?", silent)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("setup cancelled")
			}
		}
		for _, s := range steps {
			var stepOut bytes.Buffer
			stdout, stderr := io.Writer(&stepOut), io.Writer(&stepOut)
			if verbose {
				stdout, stderr = out, cmd.Root().ErrWriter
			}
			run := func() error {
				return bootstrap.RunSteps(ctx, p.Root, env, []bootstrap.Step{s}, stdout, stderr)
			}
			if err := runStep(ctx, s.Name+"...", verbose, run, &stepOut, out); err != nil {
				return err
			}
		}
	}

	prompt := func(key, value string) (string, error) {
		if silent || !util.IsInteractive() {
			return value, nil
		}
		if err := huh.NewForm(huh.NewGroup(huh.NewInput().
			Title(key).
			Value(&value))).
			WithTheme(util.Theme).
			RunWithContext(ctx); err != nil {
			return "", err
		}
		return value, nil
	}
	written, err := bootstrap.InstantiateDotEnv(p.Root, []string{env.Dir}, prompt)
	if err != nil {
		return fmt.Errorf("could not write env file: %w", err)
	}
	for _, file := range written {
		fmt.Fprintf(out, "Wrote [%s]\n", util.Accented(file))
	}

	if cmd.Bool("write-config") {
		if _, exists, _ := config.LoadViewerTOML(p.Root, cmd.String("config")); exists {
			logger.Infow("config file exists, leaving it untouched", "file", cmd.String("config"))
		} else {
			file, err := config.SaveViewerTOML(p.Root, cmd.String("config"), config.DefaultViewerTOML())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saving config file [%s]\n", util.Accented(file))
		}
	}

	fmt.Fprintf(out, "Setup complete, run %s to start the viewer\n", util.Accented(appName))
	return nil
}

// runStep runs action behind a spinner. Captured output is printed only
// when the action fails.
func runStep(ctx context.Context, title string, verbose bool, action func() error, captured *bytes.Buffer, out io.Writer) error {
	var err error
	if verbose {
		err = action()
	} else {
		err = util.Await(title, ctx, func(ctx context.Context) error {
			return action()
		})
	}
	if err != nil && captured.Len() > 0 {
		fmt.Fprint(out, captured.String())
	}
	return err
}
