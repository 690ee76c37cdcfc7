package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/repobuilder/pkg/artifacts"
	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/platinummonkey/repobuilder/pkg/installer"
	"github.com/platinummonkey/repobuilder/pkg/observability"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
	"github.com/platinummonkey/repobuilder/pkg/repository"
	"github.com/sirupsen/logrus"
)

var bannerRule = strings.Repeat("-", 77)

// Builder packages plugins and regenerates the repository manifest
type Builder struct {
	opts      Options
	installer installer.Installer
	archiver  *artifacts.Archiver
	validator *plugins.Validator
	manifest  *repository.ManifestBuilder
	metrics   *observability.Metrics
	log       *logrus.Logger
}

// New creates a builder. A nil installer skips dependency installation and
// nil metrics record nothing.
func New(opts Options, inst installer.Installer, metrics *observability.Metrics, log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.New()
	}
	if inst == nil {
		inst = installer.NoopInstaller{}
	}

	return &Builder{
		opts:      opts,
		installer: inst,
		archiver:  artifacts.NewArchiver(log),
		validator: plugins.NewValidator(opts.Strict, log),
		manifest:  repository.NewManifestBuilder(opts.SourceDir, opts.DestDir, log),
		metrics:   metrics,
		log:       log,
	}
}

// Run performs one build. The returned report is never nil; it is partial
// when the build aborts.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	log := b.log.WithField("run_id", report.RunID)
	start := time.Now()

	err := b.run(ctx, log, report)

	report.Duration = time.Since(start)
	b.metrics.RecordBuild(report.Duration, report.ManifestPlugins, err == nil)

	if err != nil {
		log.WithError(err).Errorf("Build failed after %s", report.Duration.Round(time.Millisecond))
		return report, err
	}

	log.Info(bannerRule)
	log.Info("END")
	log.Info(bannerRule)
	return report, nil
}

func (b *Builder) run(ctx context.Context, log *logrus.Entry, report *Report) error {
	log.Info(bannerRule)
	log.Info("START")
	log.Info(bannerRule)

	if err := os.MkdirAll(b.opts.DestDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	names, err := fsutil.ListSubdirs(b.opts.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to list plugin sources: %w", err)
	}

	log.Info(">> Processing Plugins <<")
	var errs []error
	seen := make(map[string]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		result := b.processPlugin(ctx, log, name, seen)
		report.Plugins = append(report.Plugins, result)
		b.metrics.RecordPlugin(string(result.Outcome))

		if result.Err != nil {
			errs = append(errs, result.Err)
			if !b.opts.KeepGoing || ctx.Err() != nil {
				return errors.Join(errs...)
			}
			log.WithError(result.Err).Warnf("Continuing after failure in plugin %s", name)
		}
	}

	log.Info(bannerRule)
	log.Info(">> Processing Repo <<")
	manifest, err := b.manifest.Generate()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	report.ManifestPath = b.manifest.Path()
	report.ManifestPlugins = len(manifest.Plugins)

	return errors.Join(errs...)
}

// processPlugin runs the per-plugin pipeline: load, skip check, install,
// archive, stage
func (b *Builder) processPlugin(ctx context.Context, log *logrus.Entry, name string, seen map[string]string) PluginResult {
	result := PluginResult{Dir: name, Outcome: OutcomeFailed}
	pluginDir := filepath.Join(b.opts.SourceDir, name)

	desc, err := b.validator.Load(pluginDir)
	if err != nil {
		result.Err = err
		return result
	}
	result.ID = desc.ID
	result.Version = desc.Version

	if other, ok := seen[desc.ID]; ok {
		result.Err = fmt.Errorf("%w: %q is declared by both %s and %s", ErrDuplicateID, desc.ID, other, name)
		return result
	}
	seen[desc.ID] = name

	plog := log.WithFields(logrus.Fields{"plugin": desc.ID, "version": desc.Version})
	plog.Info(strings.Repeat("-", 31) + ">")
	plog.Infof("Process plugin: %q", desc.Name)
	plog.Infof("  ID:          %s", desc.ID)
	plog.Infof("  Author:      %s", desc.Author)
	plog.Infof("  Version:     %s", desc.Version)
	plog.Infof("  Tags:        %s", strings.Join(desc.Tags, ", "))
	plog.Infof("  Description: %s", desc.Description)

	destDir := filepath.Join(b.opts.DestDir, desc.ID)
	archivePath := artifacts.ArchivePath(b.opts.DestDir, desc.ID, desc.Version)
	result.Archive = archivePath

	exists, err := fsutil.Exists(archivePath)
	if err != nil {
		result.Err = err
		return result
	}
	if exists {
		b.warnExisting(plog, desc, archivePath)
		result.Outcome = OutcomeSkipped
		return result
	}

	if err := b.installDependencies(ctx, plog, name, pluginDir); err != nil {
		result.Err = err
		return result
	}

	plog.Infof("Compressing %s...", archivePath)
	created, err := b.archiver.Create(ctx, &artifacts.CreateRequest{
		SourceDir:   pluginDir,
		ArchivePath: archivePath,
	})
	if err != nil {
		removeIfEmpty(destDir)
		if errors.Is(err, artifacts.ErrArchiveExists) {
			b.warnExisting(plog, desc, archivePath)
			result.Outcome = OutcomeSkipped
			return result
		}
		result.Err = fmt.Errorf("plugin %s: %w", name, err)
		return result
	}
	result.Entries = len(created.Entries)
	b.metrics.RecordArchive(created.Compressed)

	if err := b.stageAssets(plog, desc, pluginDir, destDir); err != nil {
		// the archive must not outlive a failed publish, or later runs would skip it
		if rmErr := os.Remove(archivePath); rmErr != nil {
			plog.WithError(rmErr).Warn("Failed to remove archive after staging error")
		}
		removeIfEmpty(destDir)
		result.Err = fmt.Errorf("plugin %s: %w", name, err)
		return result
	}

	result.Outcome = OutcomePackaged
	return result
}

func (b *Builder) warnExisting(log *logrus.Entry, desc *plugins.Descriptor, archivePath string) {
	log.Warnf("Repository already contains %s.", filepath.Base(archivePath))
	log.Warn("You will need to either:")
	log.Warnf("    - Remove the current file '%s'", archivePath)
	log.Warn("    OR")
	log.Warn("    - increase the plugin's version number if you wish to overwrite the current version.")
	log.Warnf("Will not process plugin: %q", desc.Name)
}

// installDependencies installs requirements.txt into the plugin's site-packages
func (b *Builder) installDependencies(ctx context.Context, log *logrus.Entry, name, pluginDir string) error {
	log.Info("Installing Python package requirements...")

	req := installer.NewRequest(name, pluginDir, b.opts.InstallTimeout)
	if !fsutil.IsRegularFile(req.RequirementsFile) {
		log.Info("  - no requirements.txt file found")
		return nil
	}

	res, err := b.installer.Install(ctx, req)
	if res != nil {
		b.metrics.RecordInstall(res.Duration)
		log.WithField("installer", b.installer.Kind()).Debugf("Installer finished in %s with exit code %d", res.Duration, res.ExitCode)
	}
	return err
}

// stageAssets publishes info.json and the optional assets into the plugin's
// destination directory. Files are copied into a staging directory first and
// renamed into place with info.json last, so the published descriptor never
// names a version whose assets failed to stage.
func (b *Builder) stageAssets(log *logrus.Entry, desc *plugins.Descriptor, pluginDir, destDir string) error {
	log.Info("Installing plugin metadata to repo...")

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	stagingDir, err := os.MkdirTemp(destDir, ".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	var targets []string
	for _, asset := range Assets {
		matches, err := MatchAsset(pluginDir, asset.Pattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			continue
		}

		src := filepath.Join(pluginDir, matches[0])
		log.Infof("  - Copying: %s >>>> %s", src, filepath.Join(destDir, asset.Target))
		if err := fsutil.CopyFile(src, filepath.Join(stagingDir, asset.Target)); err != nil {
			return err
		}
		targets = append(targets, asset.Target)
		for _, ignored := range matches[1:] {
			log.Debugf("  - Ignoring additional %s match: %s", asset.Target, ignored)
		}
	}

	log.Infof("  - Copying: %s >>>> %s", desc.Path, filepath.Join(destDir, plugins.InfoFile))
	if err := fsutil.CopyFile(desc.Path, filepath.Join(stagingDir, plugins.InfoFile)); err != nil {
		return err
	}
	targets = append(targets, plugins.InfoFile)

	for _, target := range targets {
		if err := os.Rename(filepath.Join(stagingDir, target), filepath.Join(destDir, target)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", target, err)
		}
	}
	return nil
}

// MatchAsset returns the names of the regular files in dir matching pattern,
// in lexicographic order. Hidden files never match.
func MatchAsset(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		if ok && fsutil.IsRegularFile(filepath.Join(dir, name)) {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

// removeIfEmpty deletes dir when nothing was published into it
func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
}
