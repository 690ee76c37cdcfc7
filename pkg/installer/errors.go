package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownInstaller is returned for an unsupported installer kind
	ErrUnknownInstaller = errors.New("unknown installer")

	// ErrDockerNotAvailable is returned when Docker is not available
	ErrDockerNotAvailable = errors.New("docker is not available")

	// ErrImagePullFailed is returned when image pull fails
	ErrImagePullFailed = errors.New("failed to pull docker image")

	// ErrTimeout is returned when installation times out
	ErrTimeout = errors.New("installation timeout")
)

// DependencyInstallError is returned when the installer reports failure
type DependencyInstallError struct {
	Plugin string
	Result *Result
	Err    error
}

func (e *DependencyInstallError) Error() string {
	msg := fmt.Sprintf("dependency installation failed for plugin %q", e.Plugin)
	if e.Result != nil && e.Result.ExitCode != 0 {
		msg += fmt.Sprintf(": exit code %d", e.Result.ExitCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Result != nil {
		if stderr := lastLines(e.Result.Stderr, 5); stderr != "" {
			msg += "\n" + stderr
		}
	}
	return msg
}

func (e *DependencyInstallError) Unwrap() error {
	return e.Err
}

// lastLines keeps the tail of installer output for error messages
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
