// Package config provides repobuilder configuration.
//
// # Overview
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// REPOBUILDER_* environment variables. Command-line flags are applied on top
// by the CLI. Resolve makes every path absolute and Validate checks the result.
//
// # Environment Variables
//
//	REPOBUILDER_ROOT="."                          # project root
//	REPOBUILDER_SOURCE_DIR="<root>/source"        # plugin sources
//	REPOBUILDER_DEST_DIR="<root>/repo"            # published repository
//	REPOBUILDER_INSTALLER="exec"                  # exec, docker, none
//	REPOBUILDER_PYTHON="python3"
//	REPOBUILDER_DOCKER_IMAGE="python:3.12-slim"
//	REPOBUILDER_INSTALL_TIMEOUT="10m"
//	REPOBUILDER_KEEP_GOING="false"
//	REPOBUILDER_STRICT="false"
//	REPOBUILDER_LOG_LEVEL="info"                  # debug, info, warn, error
//	REPOBUILDER_LOG_FORMAT="text"                 # text, json
//	REPOBUILDER_METRICS_FILE=""                   # node-exporter textfile
//	REPOBUILDER_WATCH_DELAY="2s"
//	REPOBUILDER_SCHEDULE=""                       # cron expression
//
// # Config File
//
//	source_dir: plugins
//	dest_dir: public/repo
//	installer: docker
//	install_timeout: 5m
//	strict: true
//
// Relative source and destination paths are resolved against the root.
package config
