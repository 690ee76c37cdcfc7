// Package cli implements the repobuilder command line.
//
// Commands:
//
//	repobuilder [build]   package every plugin and regenerate repo.json
//	repobuilder validate  check every descriptor without writing anything
//	repobuilder list      show the published manifest
//	repobuilder watch     rebuild when the source tree changes
//	repobuilder schedule  rebuild on a cron schedule
//
// Configuration comes from defaults, an optional YAML file, REPOBUILDER_*
// environment variables and finally flags; see package config.
package cli
