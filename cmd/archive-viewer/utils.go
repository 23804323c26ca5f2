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
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/meop-target/archive-viewer/pkg/config"
	"github.com/meop-target/archive-viewer/pkg/launcher"
	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Usage:   "Viewer project `DIR`, defaults to the directory holding this executable",
			Sources: cli.EnvVars("ARCHIVE_VIEWER_ROOT"),
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "Python environment `DIR`, relative to the project root (default: " + venv.DefaultDir + ")",
			Sources: cli.EnvVars("ARCHIVE_VIEWER_ENV"),
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Config `TOML` to use in the project root",
			Value: config.ViewerTOMLFile,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log debug output",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress log output",
		},
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func silentFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "silent",
		Usage: "If set, will not prompt and keeps default values",
	}
}

// project is the viewer checkout a command operates on.
type project struct {
	Root   string
	EnvDir string
	Viewer *config.ViewerTOML
}

func loadProject(cmd *cli.Command) (*project, error) {
	root, err := launcher.ResolveRoot(cmd.String("root"))
	if err != nil {
		return nil, fmt.Errorf("could not resolve project root: %w", err)
	}
	viewer, _, err := config.LoadViewerTOML(root, cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return &project{
		Root:   root,
		EnvDir: util.Coalesce(cmd.String("env"), viewer.EnvDir(), venv.DefaultDir),
		Viewer: viewer,
	}, nil
}

// Environment returns the project's environment whether or not it exists.
func (p *project) Environment() *venv.Environment {
	dir := p.EnvDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Root, dir)
	}
	return &venv.Environment{Dir: dir}
}

// LaunchConfig layers the launch flags over viewer.toml over the defaults.
func (p *project) LaunchConfig(cmd *cli.Command) (launcher.Config, error) {
	cfg, err := p.Viewer.Apply(launcher.DefaultConfig())
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("address") {
		cfg.Address = cmd.String("address")
	}
	if cmd.IsSet("entry") {
		cfg.Entry = cmd.String("entry")
	}
	return cfg, cfg.Validate()
}

func (p *project) ArchivePath(cmd *cli.Command) string {
	return config.ResolveArchivePath(p.Root, cmd.String("archive"), p.Viewer)
}

func confirm(ctx context.Context, title string, silent bool) (bool, error) {
	if silent || !util.IsInteractive() {
		return true, nil
	}
	ok := true
	if err := huh.NewForm(huh.NewGroup(huh.NewConfirm().
		Title(title).
		Value(&ok).
		Inline(false).
		WithTheme(util.Theme))).
		RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}
