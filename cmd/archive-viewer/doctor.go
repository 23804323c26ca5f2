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
	"io"
	"net"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/meop-target/archive-viewer/pkg/archive"
	"github.com/meop-target/archive-viewer/pkg/launcher"
	"github.com/meop-target/archive-viewer/pkg/pydeps"
	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

func doctorCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:     "doctor",
			Usage:    "Check that the viewer is ready to launch",
			Category: "Core",
			Action:   runDoctor,
			Flags: []cli.Flag{
				archiveFlag(),
				jsonFlag(),
			},
		},
	}
}

const maxDetailLength = 100

type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type check struct {
	name string
	run  func() (string, error)
}

func runDoctor(ctx context.Context, cmd *cli.Command) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	cfg, err := p.LaunchConfig(cmd)
	if err != nil {
		return err
	}

	results := runChecks(p, cfg, p.ArchivePath(cmd))
	out := cmd.Root().Writer
	if cmd.Bool("json") {
		if err := util.PrintJSON(out, results); err != nil {
			return err
		}
	} else {
		printResults(out, results)
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

func runChecks(p *project, cfg launcher.Config, archivePath string) []checkResult {
	var env *venv.Environment
	checks := []check{
		{"environment", func() (string, error) {
			var err error
			env, err = venv.Locate(p.Root, p.EnvDir)
			if err != nil {
				return "", err
			}
			return env.Dir, nil
		}},
		{launcher.HostCommand + " executable", func() (string, error) {
			if env == nil {
				return "", errors.New("no environment")
			}
			// only the environment's own bin directory counts
			return env.LookPath(launcher.HostCommand, nil)
		}},
		{"entry file", func() (string, error) {
			if !util.FileExists(p.Root, cfg.Entry) {
				return "", fmt.Errorf("%s not found in %s", cfg.Entry, p.Root)
			}
			return cfg.Entry, nil
		}},
		{launcher.HostCommand + " version", func() (string, error) {
			result, err := pydeps.CheckVersion(p.Root, pydeps.StreamlitPackage, pydeps.StreamlitMinVersion)
			if err != nil {
				return "", err
			}
			if !result.Satisfied {
				return "", fmt.Errorf("%s declares %s, at least %s is required", result.FoundInFile, result.Version, result.MinVersion)
			}
			return fmt.Sprintf("%s in %s", result.Version, result.FoundInFile), nil
		}},
		{"port", func() (string, error) {
			addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return "", fmt.Errorf("%s is not available: %w", addr, err)
			}
			_ = ln.Close()
			return addr + " is free", nil
		}},
		{"archive", func() (string, error) {
			a, err := archive.Open(archivePath)
			if err != nil {
				return "", err
			}
			pvs, err := a.ListPVs()
			if err != nil {
				return "", err
			}
			if len(pvs) == 0 {
				return "", fmt.Errorf("no archived PVs in %s", archivePath)
			}
			return fmt.Sprintf("%d PVs in %s", len(pvs), archivePath), nil
		}},
	}

	results := make([]checkResult, 0, len(checks))
	for _, c := range checks {
		detail, err := c.run()
		r := checkResult{Name: c.name, OK: err == nil, Detail: detail}
		if err != nil {
			r.Detail = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func printResults(w io.Writer, results []checkResult) {
	for _, r := range results {
		mark := util.Passed("✓")
		if !r.OK {
			mark = util.Failed("✗")
		}
		fmt.Fprintf(w, "%s %-22s %s\n", mark, r.Name, util.Dimmed(util.EllipsizeTo(r.Detail, maxDetailLength)))
	}
}
