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

// Package launcher activates the viewer's Python environment and runs the
// Streamlit host process in the foreground.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/frostbyte73/core"
	"github.com/joho/godotenv"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/protocol/logger"

	"github.com/meop-target/archive-viewer/pkg/util"
	"github.com/meop-target/archive-viewer/pkg/venv"
)

const (
	DotEnvFile          = ".env"
	DefaultGracePeriod  = 10 * time.Second
	DefaultReadyTimeout = 60 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("viewer is already running")
	// ErrKilled is returned when an interrupted host outlived the grace period.
	ErrKilled = errors.New("viewer did not stop in time and was killed")
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// HostExitError carries the exit status of a host process that failed.
type HostExitError struct {
	Code int
	Err  error
}

func (e *HostExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", HostCommand, e.Code)
}

func (e *HostExitError) Unwrap() error {
	return e.Err
}

type Params struct {
	// Directory the environment and entry file are resolved against. The
	// host process runs with this as its working directory.
	Root   string
	EnvDir string
	Config Config

	// Base environment for the host, os.Environ() when nil.
	Environ []string
	// Loaded from Root when empty. Missing files are ignored.
	DotEnvFile string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	GracePeriod time.Duration

	WaitReady    bool
	ReadyTimeout time.Duration
	OnReady      func(ctx context.Context, url string) error
}

type Launcher struct {
	params Params

	busy   atomic.Bool
	state  atomic.Int32
	exited *atomic.Pointer[core.Fuse]
}

// Invocation is a fully resolved host command line.
type Invocation struct {
	Env     *venv.Environment
	Path    string
	Args    []string
	Dir     string
	Environ []string
}

func (i *Invocation) String() string {
	return strings.Join(append([]string{i.Path}, i.Args...), " ")
}

func New(params Params) *Launcher {
	if params.Environ == nil {
		params.Environ = os.Environ()
	}
	if params.DotEnvFile == "" {
		params.DotEnvFile = filepath.Join(params.Root, DotEnvFile)
	}
	if params.Stdin == nil {
		params.Stdin = os.Stdin
	}
	if params.Stdout == nil {
		params.Stdout = os.Stdout
	}
	if params.Stderr == nil {
		params.Stderr = os.Stderr
	}
	if params.GracePeriod <= 0 {
		params.GracePeriod = DefaultGracePeriod
	}
	if params.ReadyTimeout <= 0 {
		params.ReadyTimeout = DefaultReadyTimeout
	}
	return &Launcher{
		params: params,
		exited: atomic.NewPointer[core.Fuse](nil),
	}
}

func (l *Launcher) State() State {
	return State(l.state.Load())
}

// Exited is closed once the host process of the current run has exited. It
// returns nil before the first run has started its host.
func (l *Launcher) Exited() <-chan struct{} {
	if f := l.exited.Load(); f != nil {
		return f.Watch()
	}
	return nil
}

// Prepare activates the environment and resolves the host command without
// starting it.
func (l *Launcher) Prepare() (*Invocation, error) {
	inv, err := l.activate()
	if err != nil {
		return nil, err
	}
	if err := l.resolve(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Run performs the launch sequence: activate the environment, print the
// status lines, then run the host until it exits or ctx is cancelled. A
// cancelled ctx interrupts the host and kills it after the grace period.
func (l *Launcher) Run(ctx context.Context) error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.busy.Store(false)

	if err := l.params.Config.Validate(); err != nil {
		return err
	}

	inv, err := l.activate()
	if err != nil {
		return err
	}

	for _, line := range StatusLines(l.params.Config) {
		fmt.Fprintln(l.params.Stdout, line)
	}

	if err := l.resolve(inv); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Environ
	cmd.Stdin = l.params.Stdin
	cmd.Stdout = l.params.Stdout
	cmd.Stderr = l.params.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = l.params.GracePeriod

	fuse := new(core.Fuse)
	l.exited.Store(fuse)

	logger.Debugw("starting host process", "command", inv.String(), "dir", inv.Dir)
	if err := cmd.Start(); err != nil {
		fuse.Break()
		l.state.Store(int32(StateExited))
		return fmt.Errorf("could not start %s: %w", HostCommand, err)
	}
	l.state.Store(int32(StateRunning))

	var waitErr error
	var group errgroup.Group
	group.Go(func() error {
		defer fuse.Break()
		waitErr = cmd.Wait()
		return nil
	})
	if l.params.WaitReady {
		group.Go(func() error {
			l.awaitReady(ctx, fuse)
			return nil
		})
	}
	_ = group.Wait()

	l.state.Store(int32(StateExited))
	logger.Debugw("host process exited", "error", waitErr)
	return hostError(ctx, waitErr, l.params.GracePeriod)
}

func (l *Launcher) activate() (*Invocation, error) {
	env, err := venv.Locate(l.params.Root, l.params.EnvDir)
	if err != nil {
		return nil, err
	}
	environ := env.Activate(l.params.Environ)
	environ, err = mergeDotEnv(l.params.DotEnvFile, environ)
	if err != nil {
		return nil, err
	}
	logger.Debugw("activated python environment", "dir", env.Dir)

	return &Invocation{
		Env:     env,
		Args:    l.params.Config.Args(),
		Dir:     l.params.Root,
		Environ: environ,
	}, nil
}

func (l *Launcher) resolve(inv *Invocation) error {
	path, err := inv.Env.LookPath(HostCommand, inv.Environ)
	if err != nil {
		return fmt.Errorf("could not start %s: %w", HostCommand, err)
	}
	inv.Path = path
	return nil
}

func (l *Launcher) awaitReady(ctx context.Context, fuse *core.Fuse) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-fuse.Watch():
			cancel()
		case <-ctx.Done():
		}
	}()

	url := l.params.Config.HealthURL()
	if err := WaitReady(ctx, url, l.params.ReadyTimeout); err != nil {
		if ctx.Err() == nil {
			logger.Warnw("viewer did not become ready", err, "url", url)
		}
		return
	}
	logger.Infow("viewer is ready", "url", l.params.Config.URL())
	if l.params.OnReady != nil {
		if err := l.params.OnReady(ctx, l.params.Config.URL()); err != nil {
			logger.Warnw("ready hook failed", err)
		}
	}
}

func hostError(ctx context.Context, err error, grace time.Duration) error {
	if err == nil {
		return nil
	}
	interrupted := ctx.Err() != nil
	// An interrupted host that shut down cleanly is a normal stop.
	if interrupted && errors.Is(err, ctx.Err()) {
		return nil
	}
	if interrupted && errors.Is(err, exec.ErrWaitDelay) {
		return fmt.Errorf("%w after %s", ErrKilled, grace)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// -1 means the host was ended by a signal, here the kill that
		// follows the grace period.
		if interrupted && exitErr.ExitCode() == -1 {
			return fmt.Errorf("%w after %s", ErrKilled, grace)
		}
		return &HostExitError{Code: exitErr.ExitCode(), Err: err}
	}
	return err
}

// mergeDotEnv adds the variables from file to environ without overriding
// any that are already set.
func mergeDotEnv(file string, environ []string) ([]string, error) {
	vars, err := godotenv.Read(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return environ, nil
		}
		return nil, fmt.Errorf("could not read %s: %w", file, err)
	}

	set := make(map[string]bool, len(environ))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		set[key] = true
	}
	out := append([]string(nil), environ...)
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		if !set[key] {
			out = append(out, key+"="+vars[key])
		}
	}
	logger.Debugw("loaded env file", "file", file, "count", len(vars))
	return out, nil
}

// ResolveRoot returns root as an absolute path, or the directory holding the
// running executable when root is empty.
func ResolveRoot(root string) (string, error) {
	if root != "" {
		if !util.DirExists(root) {
			return "", fmt.Errorf("project root %s is not a directory", root)
		}
		return filepath.Abs(root)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
