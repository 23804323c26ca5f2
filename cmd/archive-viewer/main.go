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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	archiveviewer "github.com/meop-target/archive-viewer"
)

const appName = "archive-viewer"

func main() {
	app := newApp()

	// Register cleanup hook for SIGINT, SIGTERM, SIGQUIT. Cancelling the
	// context interrupts a running viewer.
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	// A second signal falls through to the default handler.
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	app := &cli.Command{
		Name:                   appName,
		Usage:                  "Launch the EPICS Archive Viewer",
		Description:            "Activates the viewer's Python environment and runs the Streamlit archive viewer in the foreground. Subcommands prepare the environment, check it, and inspect the archive from the terminal.",
		Version:                archiveviewer.Version,
		EnableShellCompletion:  true,
		Suggest:                true,
		HideHelpCommand:        true,
		UseShortOptionHandling: true,
		Flags:                  append(globalFlags(), launchFlags()...),
		Action:                 launchViewer,
		Before:                 initLogger,
	}

	app.Commands = append(app.Commands, launchCommands()...)
	app.Commands = append(app.Commands, setupCommands()...)
	app.Commands = append(app.Commands, doctorCommands()...)
	app.Commands = append(app.Commands, archiveCommands()...)
	return app
}

func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("quiet") {
		logger.SetLogger(logger.LogRLogger(logr.Discard()), appName)
		return nil, nil
	}

	logConfig := &logger.Config{
		Level: "info",
	}
	if cmd.Bool("verbose") {
		logConfig.Level = "debug"
	}
	logger.InitFromConfig(logConfig, appName)

	return nil, nil
}
