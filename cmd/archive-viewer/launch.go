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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/launcher"
	"github.com/meop-target/archive-viewer/pkg/util"
)

func launchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "`PORT` the viewer listens on",
			Value: launcher.DefaultPort,
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "`ADDRESS` the viewer binds to",
			Value: launcher.DefaultAddress,
		},
		&cli.StringFlag{
			Name:  "entry",
			Usage: "Streamlit `SCRIPT` to run, relative to the project root",
			Value: launcher.DefaultEntry,
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for the viewer's health check and report when it is ready",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "Open the viewer in a browser once it is ready, implies --wait",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the resolved command instead of running it",
		},
	}
}

func launchCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:     "launch",
			Aliases:  []string{"run"},
			Usage:    "Activate the environment and run the viewer, the default action",
			Category: "Core",
			Action:   launchViewer,
		},
	}
}

func launchViewer(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("unexpected argument %q, see --help", cmd.Args().First())
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	cfg, err := p.LaunchConfig(cmd)
	if err != nil {
		return err
	}

	root := cmd.Root()
	params := launcher.Params{
		Root:      p.Root,
		EnvDir:    p.EnvDir,
		Config:    cfg,
		Stdin:     os.Stdin,
		Stdout:    root.Writer,
		Stderr:    root.ErrWriter,
		WaitReady: cmd.Bool("wait") || cmd.Bool("open"),
	}
	if cmd.Bool("open") {
		params.OnReady = func(ctx context.Context, url string) error {
			return util.OpenInBrowser(url)
		}
	}
	l := launcher.New(params)

	if cmd.Bool("dry-run") {
		inv, err := l.Prepare()
		if err != nil {
			return err
		}
		fmt.Fprintln(root.Writer, formatCommand(inv))
		return nil
	}

	err = l.Run(ctx)
	var hostErr *launcher.HostExitError
	if errors.As(err, &hostErr) {
		logger.Debugw("viewer exited with an error", "code", hostErr.Code)
		return cli.Exit(hostErr.Error(), hostErr.Code)
	}
	return err
}

// formatCommand renders inv as a line a shell would run as is.
func formatCommand(inv *launcher.Invocation) string {
	quote := func(s string) string {
		if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$`*?[];&|<>(){}!") && !strings.HasPrefix(s, "#") && !strings.HasPrefix(s, "~") {
			return s
		}
		// nothing expands inside single quotes, a quote is closed, escaped and reopened
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	parts := append([]string{inv.Path}, inv.Args...)
	return fmt.Sprintf("cd %s && %s", quote(inv.Dir), strings.Join(util.MapStrings(parts, quote), " "))
}
