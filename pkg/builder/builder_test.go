package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/repobuilder/pkg/artifacts"
	"github.com/platinummonkey/repobuilder/pkg/installer"
	"github.com/platinummonkey/repobuilder/pkg/observability"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
	"github.com/platinummonkey/repobuilder/pkg/repository"
)

// stubInstaller stands in for pip: it drops a package into the target directory
type stubInstaller struct {
	requests []*installer.Request
	fail     bool
}

func (s *stubInstaller) Install(ctx context.Context, req *installer.Request) (*installer.Result, error) {
	s.requests = append(s.requests, req)
	if s.fail {
		res := &installer.Result{ExitCode: 1, Stderr: "ERROR: No matching distribution found for nosuchpackage"}
		return res, &installer.DependencyInstallError{Plugin: req.Plugin, Result: res, Err: errors.New("pip reported failure")}
	}

	pkgDir := filepath.Join(req.TargetDir, "requests")
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "__init__.py"), []byte("VERSION = '2.31.0'\n"), 0644); err != nil {
		return nil, err
	}
	return &installer.Result{Success: true, Duration: time.Millisecond}, nil
}

func (s *stubInstaller) Kind() installer.Kind { return "stub" }

func (s *stubInstaller) Close() error { return nil }

type fixture struct {
	root   string
	source string
	dest   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:   root,
		source: filepath.Join(root, "source"),
		dest:   filepath.Join(root, "repo"),
	}
	f.write(t, repository.ManifestFile, `{"repo": {"name": "X", "url": "Y"}}`)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(f.source, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) plugin(t *testing.T, dir, id, version string, files ...string) {
	t.Helper()
	f.write(t, dir+"/info.json", infoJSON(id, version))
	for _, name := range files {
		f.write(t, dir+"/"+name, "content of "+name)
	}
}

func infoJSON(id, version string) string {
	return fmt.Sprintf(`{
    "id": %q,
    "name": "Plugin %s",
    "author": "Jane Doe",
    "version": %q,
    "tags": ["library", "tv"],
    "description": "Does things",
    "platforms": ["linux"]
}
`, id, id, version)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func (f *fixture) builder(inst installer.Installer, opts ...func(*Options)) *Builder {
	o := Options{SourceDir: f.source, DestDir: f.dest}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o, inst, nil, quietLogger())
}

// snapshot maps every destination file to its content and modification time
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		files[rel] = fmt.Sprintf("%s@%d", data, info.ModTime().UnixNano())
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestRun_PackagesPlugin(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py", "icon.svg", "requirements.txt", "changelog.txt", "fanart.jpg")
	inst := &stubInstaller{}

	report, err := f.builder(inst).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Plugins, 1)
	result := report.Plugins[0]
	assert.Equal(t, OutcomePackaged, result.Outcome)
	assert.Equal(t, "plugin-a", result.ID)
	assert.Equal(t, "1.0.0", result.Version)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, filepath.Join(f.dest, "repo.json"), report.ManifestPath)
	assert.Equal(t, 1, report.ManifestPlugins)

	require.Len(t, inst.requests, 1)
	assert.Equal(t, filepath.Join(f.source, "plugin-a", "site-packages"), inst.requests[0].TargetDir)

	archive := filepath.Join(f.dest, "plugin-a", "plugin-a-1.0.0.zip")
	assert.Equal(t, archive, result.Archive)
	entries, err := artifacts.ReadEntries(archive)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"changelog.txt",
		"fanart.jpg",
		"icon.svg",
		"info.json",
		"main.py",
		"requirements.txt",
		"site-packages/requests/__init__.py",
	}, entries)

	destPlugin := filepath.Join(f.dest, "plugin-a")
	assert.FileExists(t, filepath.Join(destPlugin, "info.json"))
	assert.FileExists(t, filepath.Join(destPlugin, "changelog.txt"))
	assert.FileExists(t, filepath.Join(destPlugin, "fanart.jpg"))
	icon, err := os.ReadFile(filepath.Join(destPlugin, "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, "content of icon.svg", string(icon))

	source, err := os.ReadFile(filepath.Join(f.source, "plugin-a", "info.json"))
	require.NoError(t, err)
	staged, err := os.ReadFile(filepath.Join(destPlugin, "info.json"))
	require.NoError(t, err)
	assert.Equal(t, source, staged)

	manifest, err := repository.Load(filepath.Join(f.dest, "repo.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "X", "url": "Y"}`, string(manifest.Repo))
	require.Len(t, manifest.Plugins, 1)
	assert.JSONEq(t, string(source), string(manifest.Plugins[0]))
}

func TestRun_NoRequirements(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py")
	inst := &stubInstaller{}

	report, err := f.builder(inst).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inst.requests)
	assert.Equal(t, 1, report.Count(OutcomePackaged))

	entries, err := artifacts.ReadEntries(filepath.Join(f.dest, "plugin-a", "plugin-a-1.0.0.zip"))
	require.NoError(t, err)
	assert.Equal(t, []string{"info.json", "main.py"}, entries)
	assert.NoFileExists(t, filepath.Join(f.dest, "plugin-a", "icon.png"))
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py", "icon.png")
	f.plugin(t, "plugin-b", "plugin-b", "0.3.1", "main.py", "requirements.txt")

	_, err := f.builder(&stubInstaller{}).Run(context.Background())
	require.NoError(t, err)
	first := snapshot(t, f.dest)

	inst := &stubInstaller{}
	report, err := f.builder(inst).Run(context.Background())
	require.NoError(t, err)
	second := snapshot(t, f.dest)

	assert.Equal(t, 2, report.Count(OutcomeSkipped))
	assert.Empty(t, inst.requests)

	// the manifest is rewritten every run, everything else is untouched
	manifestKey := "repo.json"
	firstManifest := strings.SplitN(first[manifestKey], "@", 2)[0]
	secondManifest := strings.SplitN(second[manifestKey], "@", 2)[0]
	assert.Equal(t, firstManifest, secondManifest)
	delete(first, manifestKey)
	delete(second, manifestKey)
	assert.Equal(t, first, second)
}

func TestRun_VersionBump(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py")

	_, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)

	oldArchive := filepath.Join(f.dest, "plugin-a", "plugin-a-1.0.0.zip")
	before, err := os.Stat(oldArchive)
	require.NoError(t, err)

	f.plugin(t, "plugin-a", "plugin-a", "1.1.0", "main.py")
	report, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomePackaged))

	after, err := os.Stat(oldArchive)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.FileExists(t, filepath.Join(f.dest, "plugin-a", "plugin-a-1.1.0.zip"))

	versions, err := repository.ArchiveVersions(f.dest, "plugin-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)

	manifest, err := repository.Load(filepath.Join(f.dest, "repo.json"))
	require.NoError(t, err)
	require.Len(t, manifest.Plugins, 1)
	assert.Contains(t, string(manifest.Plugins[0]), `"1.1.0"`)
}

func TestRun_MissingRequiredField(t *testing.T) {
	for _, field := range plugins.RequiredFields {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t)

			var doc map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(infoJSON("plugin-a", "1.0.0")), &doc))
			delete(doc, field)
			data, err := json.Marshal(doc)
			require.NoError(t, err)
			f.write(t, "plugin-a/info.json", string(data))
			f.write(t, "plugin-a/main.py", "print()")

			report, err := f.builder(nil).Run(context.Background())
			require.Error(t, err)

			var missing *plugins.MissingFieldError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, field, missing.Field)
			assert.Equal(t, "plugin-a", missing.Plugin)
			assert.Equal(t, 1, report.Count(OutcomeFailed))
			assert.Empty(t, report.ManifestPath)

			assert.NoDirExists(t, filepath.Join(f.dest, "plugin-a"))
			assert.NoFileExists(t, filepath.Join(f.dest, "repo.json"))
		})
	}
}

func TestRun_MalformedDescriptor(t *testing.T) {
	f := newFixture(t)
	f.write(t, "plugin-a/info.json", `{"id": "plugin-a",`)

	_, err := f.builder(nil).Run(context.Background())
	var malformed *plugins.MalformedMetadataError
	require.True(t, errors.As(err, &malformed))

	f = newFixture(t)
	f.write(t, "plugin-b/main.py", "print()")
	_, err = f.builder(nil).Run(context.Background())
	require.True(t, errors.As(err, &malformed))
}

func TestRun_InstallFailure(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py", "requirements.txt")

	report, err := f.builder(&stubInstaller{fail: true}).Run(context.Background())
	require.Error(t, err)

	var installErr *installer.DependencyInstallError
	require.True(t, errors.As(err, &installErr))
	assert.Equal(t, "plugin-a", installErr.Plugin)
	assert.Contains(t, err.Error(), "No matching distribution")
	assert.Equal(t, OutcomeFailed, report.Plugins[0].Outcome)
	assert.NoDirExists(t, filepath.Join(f.dest, "plugin-a"))
}

func TestRun_KeepGoing(t *testing.T) {
	f := newFixture(t)
	f.write(t, "plugin-a/info.json", `{"id": "plugin-a"}`)
	f.plugin(t, "plugin-b", "plugin-b", "2.0.0", "main.py")

	keepGoing := func(o *Options) { o.KeepGoing = true }
	report, err := f.builder(nil, keepGoing).Run(context.Background())
	require.Error(t, err)

	var missing *plugins.MissingFieldError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.Equal(t, 1, report.Count(OutcomePackaged))
	assert.Equal(t, 1, report.ManifestPlugins)
	assert.FileExists(t, filepath.Join(f.dest, "plugin-b", "plugin-b-2.0.0.zip"))
	assert.FileExists(t, filepath.Join(f.dest, "repo.json"))

	// without keep-going the first failure stops the run
	f2 := newFixture(t)
	f2.write(t, "plugin-a/info.json", `{"id": "plugin-a"}`)
	f2.plugin(t, "plugin-b", "plugin-b", "2.0.0", "main.py")
	report, err = f2.builder(nil).Run(context.Background())
	require.Error(t, err)
	assert.Len(t, report.Plugins, 1)
	assert.NoDirExists(t, filepath.Join(f2.dest, "plugin-b"))
}

func TestRun_ArchiveKeyedByID(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "My Plugin Source", "plugin.video.example", "1.0.0", "main.py")

	_, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.dest, "plugin.video.example", "plugin.video.example-1.0.0.zip"))
}

func TestRun_DuplicateID(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "a-copy", "plugin-a", "1.0.0", "main.py")
	f.plugin(t, "b-copy", "plugin-a", "2.0.0", "main.py")

	report, err := f.builder(nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, OutcomePackaged, report.Plugins[0].Outcome)
	assert.Equal(t, OutcomeFailed, report.Plugins[1].Outcome)
}

func TestRun_RejectsIDsThatCollideWithDestination(t *testing.T) {
	for _, id := range []string{"my.github-sync", "repo.json"} {
		t.Run(id, func(t *testing.T) {
			f := newFixture(t)
			f.plugin(t, "colliding", id, "1.0.0", "main.py")
			f.plugin(t, "plugin-b", "plugin-b", "1.0.0", "main.py")

			keepGoing := func(o *Options) { o.KeepGoing = true }
			report, err := f.builder(nil, keepGoing).Run(context.Background())

			var schemaErr *plugins.SchemaError
			require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
			assert.Equal(t, "id", schemaErr.Field)
			assert.Equal(t, OutcomeFailed, report.Plugins[0].Outcome)
			assert.NoDirExists(t, filepath.Join(f.dest, id))

			manifest, err := repository.Load(filepath.Join(f.dest, "repo.json"))
			require.NoError(t, err)
			require.Len(t, manifest.Plugins, 1)
			assert.Equal(t, report.ManifestPlugins, len(manifest.Plugins))
		})
	}
}

func TestRun_StagingFailureKeepsPublishedVersion(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py", "icon.png")

	_, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)

	// a directory in the way of icon.png makes publishing the new icon fail
	destPlugin := filepath.Join(f.dest, "plugin-a")
	require.NoError(t, os.Remove(filepath.Join(destPlugin, "icon.png")))
	require.NoError(t, os.MkdirAll(filepath.Join(destPlugin, "icon.png", "blocked"), 0755))

	f.plugin(t, "plugin-a", "plugin-a", "1.1.0", "main.py", "icon.png")
	keepGoing := func(o *Options) { o.KeepGoing = true }
	report, err := f.builder(nil, keepGoing).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Plugins[0].Outcome)

	assert.NoFileExists(t, filepath.Join(destPlugin, "plugin-a-1.1.0.zip"))
	assert.FileExists(t, filepath.Join(destPlugin, "plugin-a-1.0.0.zip"))

	staged, err := os.ReadFile(filepath.Join(destPlugin, "info.json"))
	require.NoError(t, err)
	assert.Contains(t, string(staged), `"1.0.0"`)

	manifest, err := repository.Load(filepath.Join(f.dest, "repo.json"))
	require.NoError(t, err)
	require.Len(t, manifest.Plugins, 1)
	assert.Contains(t, string(manifest.Plugins[0]), `"1.0.0"`)

	entries, err := os.ReadDir(destPlugin)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".staging-"), "staging directory left behind: %s", entry.Name())
	}
}

func TestRun_SkipsVCSAndFiles(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py")
	f.write(t, ".git/HEAD", "ref: refs/heads/main")
	f.write(t, "README.md", "# plugins")

	report, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Plugins, 1)
	assert.Equal(t, "plugin-a", report.Plugins[0].Dir)
}

func TestRun_MissingRepoKey(t *testing.T) {
	f := newFixture(t)
	f.write(t, repository.ManifestFile, `{"name": "X"}`)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py")

	_, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dest, "repo.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repo": null`)
}

func TestRun_Strict(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "not-a-version", "main.py")

	_, err := f.builder(nil).Run(context.Background())
	require.NoError(t, err, "lenient mode accepts any version string")

	f = newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "not-a-version", "main.py")
	strict := func(o *Options) { o.Strict = true }
	_, err = f.builder(nil, strict).Run(context.Background())
	assert.ErrorIs(t, err, plugins.ErrInvalidDescriptor)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.builder(nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Plugins)
	assert.NoFileExists(t, filepath.Join(f.dest, "repo.json"))
}

func TestRun_Metrics(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "plugin-a", "plugin-a", "1.0.0", "main.py", "requirements.txt")
	f.plugin(t, "plugin-b", "plugin-b", "1.0.0", "main.py")

	metrics := observability.NewMetrics(nil)
	b := New(Options{SourceDir: f.source, DestDir: f.dest}, &stubInstaller{}, metrics, quietLogger())
	_, err := b.Run(context.Background())
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PluginsTotal.WithLabelValues("packaged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PluginsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ManifestPlugins))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LastBuildSuccess))
}
