package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/platinummonkey/repobuilder/pkg/builder"
	"github.com/platinummonkey/repobuilder/pkg/config"
	"github.com/platinummonkey/repobuilder/pkg/installer"
	"github.com/platinummonkey/repobuilder/pkg/observability"
)

// flagValues holds the raw flag values; only flags set on the command line
// override the loaded configuration
type flagValues struct {
	configFile     string
	root           string
	sourceDir      string
	destDir        string
	installer      string
	python         string
	dockerImage    string
	installTimeout string
	keepGoing      bool
	strict         bool
	logLevel       string
	logFormat      string
	metricsFile    string
	delay          string
	schedule       string
}

// app is the state shared by all commands of one invocation
type app struct {
	flags   flagValues
	cfg     *config.Config
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewRootCommand creates the root command. Running it without a subcommand builds the repository.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "repobuilder",
		Short: "repobuilder - plugin repository builder",
		Long: `repobuilder packages a directory of plugins into a distributable repository:
one versioned zip archive per plugin plus a repo.json manifest listing every
published plugin.

Example:
  repobuilder
  repobuilder build --root ./my-repo --installer docker
  repobuilder validate --strict
`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runBuild,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "Path to a YAML config file (default: repobuilder.yaml in the working directory, if present)")
	pf.StringVar(&a.flags.root, "root", "", "Project root holding the source and repo directories")
	pf.StringVar(&a.flags.sourceDir, "source", "", "Plugin source directory (default <root>/source)")
	pf.StringVar(&a.flags.destDir, "dest", "", "Repository output directory (default <root>/repo)")
	pf.StringVar(&a.flags.installer, "installer", "", "Dependency installer: exec, docker or none (default exec)")
	pf.StringVar(&a.flags.python, "python", "", "Python interpreter for the exec installer (default python3)")
	pf.StringVar(&a.flags.dockerImage, "docker-image", "", "Image for the docker installer (default python:3.12-slim)")
	pf.StringVar(&a.flags.installTimeout, "install-timeout", "", "Per-plugin installer timeout, e.g. 10m (0 disables)")
	pf.BoolVar(&a.flags.keepGoing, "keep-going", false, "Continue with the remaining plugins after a failure")
	pf.BoolVar(&a.flags.strict, "strict", false, "Validate descriptors against the schema and require semantic versions")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json (default text)")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each build")

	root.AddCommand(
		a.newBuildCommand(),
		a.newValidateCommand(),
		a.newListCommand(),
		a.newWatchCommand(),
		a.newScheduleCommand(),
	)

	return root
}

// setup loads the configuration and logger before any command runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.flags.configFile
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindFile(wd)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := a.applyFlags(cfg, cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.metrics = observability.NewMetrics(nil)
	if path != "" {
		log.Debugf("Loaded configuration from %s", path)
	}
	return nil
}

// applyFlags overlays the flags set on the command line
func (a *app) applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	set := func(name string, dst *string, value string) {
		if fs.Changed(name) {
			*dst = value
		}
	}
	set("root", &cfg.Root, a.flags.root)
	set("source", &cfg.SourceDir, a.flags.sourceDir)
	set("dest", &cfg.DestDir, a.flags.destDir)
	set("installer", &cfg.Installer, a.flags.installer)
	set("python", &cfg.Python, a.flags.python)
	set("docker-image", &cfg.DockerImage, a.flags.dockerImage)
	set("log-level", &cfg.LogLevel, a.flags.logLevel)
	set("log-format", &cfg.LogFormat, a.flags.logFormat)
	set("metrics-file", &cfg.MetricsFile, a.flags.metricsFile)
	set("cron", &cfg.Schedule, a.flags.schedule)

	if fs.Changed("keep-going") {
		cfg.KeepGoing = a.flags.keepGoing
	}
	if fs.Changed("strict") {
		cfg.Strict = a.flags.strict
	}

	var err error
	if fs.Changed("install-timeout") {
		if cfg.InstallTimeout, err = parseDuration("install-timeout", a.flags.installTimeout); err != nil {
			return err
		}
	}
	if fs.Changed("delay") {
		if cfg.WatchDelay, err = parseDuration("delay", a.flags.delay); err != nil {
			return err
		}
	}

	return nil
}

func (a *app) builderOptions() builder.Options {
	return builder.Options{
		SourceDir:      a.cfg.SourceDir,
		DestDir:        a.cfg.DestDir,
		Strict:         a.cfg.Strict,
		KeepGoing:      a.cfg.KeepGoing,
		InstallTimeout: a.cfg.InstallTimeout,
	}
}

// newInstaller creates the configured installer backend
func (a *app) newInstaller(ctx context.Context) (installer.Installer, error) {
	return installer.New(ctx, installer.Kind(a.cfg.Installer), installer.Options{
		Python:      a.cfg.Python,
		DockerImage: a.cfg.DockerImage,
	}, a.log)
}
