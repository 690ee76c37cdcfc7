package installer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// New creates the installer backend named by kind
func New(ctx context.Context, kind Kind, opts Options, log *logrus.Logger) (Installer, error) {
	switch kind {
	case KindExec, "":
		return NewExecInstaller(opts.Python, log), nil
	case KindDocker:
		return NewDockerInstaller(ctx, opts.DockerImage, log)
	case KindNone:
		return NoopInstaller{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (must be exec, docker, or none)", ErrUnknownInstaller, kind)
	}
}
