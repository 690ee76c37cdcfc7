// Package watch rebuilds the repository when the plugin source tree changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/platinummonkey/repobuilder/pkg/installer"
	"github.com/sirupsen/logrus"
)

// RebuildFunc runs one build
type RebuildFunc func(ctx context.Context) error

// Watcher debounces source tree changes into rebuilds
type Watcher struct {
	root    string
	delay   time.Duration
	watcher *fsnotify.Watcher
	log     *logrus.Logger
}

// New creates a watcher for every directory under root. Installer output
// (site-packages) and VCS directories are not watched.
func New(root string, delay time.Duration, log *logrus.Logger) (*Watcher, error) {
	if log == nil {
		log = logrus.New()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		delay:   delay,
		watcher: fw,
		log:     log,
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls rebuild once the source tree has been quiet for the configured
// delay after a change. Rebuilds run on the calling goroutine, so they never
// overlap; changes made during a rebuild schedule another one. Rebuild
// errors are logged. Run returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, rebuild RebuildFunc) error {
	timer := time.NewTimer(w.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.log.Infof("Started watching for plugin changes in %s", w.root)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ShouldIgnore(w.root, event.Name) {
				continue
			}
			w.log.Debugf("Modified file: %s (%s)", event.Name, event.Op)

			// Also watch new directories
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.log.Debugf("New directory: %s", event.Name)
					if err := w.addTree(event.Name); err != nil {
						w.log.WithError(err).Warn("Error watching new directory")
					}
				}
			}

			timer.Reset(w.delay)

		case <-timer.C:
			w.log.Info("Source tree changed, rebuilding")
			if err := rebuild(ctx); err != nil {
				w.log.WithError(err).Error("Rebuild failed")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

// addTree recursively adds all directories under root to the watcher
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && ShouldIgnore(w.root, path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// ShouldIgnore reports whether a change at path cannot affect the build
// output: anything inside a plugin's site-packages directory or a VCS
// directory, and editor temp files.
func ShouldIgnore(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, part := range parts {
		// top-level names follow the plugin scan; inside a plugin only the
		// VCS directory itself is skipped, .gitignore and friends are archived
		if (i == 0 && strings.Contains(part, fsutil.VCSMarker)) || part == fsutil.VCSMarker {
			return true
		}
		// <plugin>/site-packages is installer output
		if i == 1 && part == installer.SitePackagesDir {
			return true
		}
	}

	base := parts[len(parts)-1]
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, ".#")
}
