package installer

import "context"

// NoopInstaller skips dependency installation entirely
type NoopInstaller struct{}

// Kind implements Installer.Kind
func (NoopInstaller) Kind() Kind {
	return KindNone
}

// Install implements Installer.Install
func (NoopInstaller) Install(ctx context.Context, req *Request) (*Result, error) {
	return &Result{Success: true}, nil
}

// Close implements Installer.Close
func (NoopInstaller) Close() error {
	return nil
}
