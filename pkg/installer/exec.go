package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// ExecInstaller runs pip as a subprocess: <python> -m pip install --upgrade -r <requirements> --target=<dir>
type ExecInstaller struct {
	python string
	log    *logrus.Logger
}

// NewExecInstaller creates a subprocess-backed installer
func NewExecInstaller(python string, log *logrus.Logger) *ExecInstaller {
	if python == "" {
		python = "python3"
	}
	if log == nil {
		log = logrus.New()
	}
	return &ExecInstaller{python: python, log: log}
}

// Kind implements Installer.Kind
func (i *ExecInstaller) Kind() Kind {
	return KindExec
}

// Args returns the installer arguments for a request (without the interpreter)
func (i *ExecInstaller) Args(req *Request) []string {
	return []string{
		"-m", "pip",
		"install",
		"--upgrade",
		"-r", req.RequirementsFile,
		"--target=" + req.TargetDir,
	}
}

// Install implements Installer.Install
func (i *ExecInstaller) Install(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("install request cannot be nil")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	logger := i.log.WithField("plugin", req.Plugin)
	outWriter := logger.WriterLevel(logrus.DebugLevel)
	defer outWriter.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, i.python, i.Args(req)...)
	cmd.Dir = req.PluginDir
	cmd.Stdout = io.MultiWriter(&stdout, outWriter)
	cmd.Stderr = io.MultiWriter(&stderr, outWriter)
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()

	result := &Result{
		Success:  runErr == nil,
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return result, nil
	}

	err := runErr
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, req.Timeout, runErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) && cmd.ProcessState == nil {
		// the process never started (missing interpreter, bad working directory)
		result.ExitCode = -1
		err = fmt.Errorf("failed to start %s: %w", i.python, runErr)
	}

	return result, &DependencyInstallError{Plugin: req.Plugin, Result: result, Err: err}
}

// Close implements Installer.Close
func (i *ExecInstaller) Close() error {
	return nil
}
