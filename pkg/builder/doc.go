// Package builder turns a source tree of plugins into a published repository.
//
// For every plugin directory (lexicographic order, names containing ".git"
// skipped) the builder loads and validates info.json, skips the plugin when
// its versioned archive already exists, installs requirements.txt into the
// plugin's site-packages directory, writes the archive and finally stages
// info.json plus the optional changelog, icon and fanart files next to it.
// The repository manifest is then regenerated from the destination tree.
//
// A failing plugin aborts the run unless KeepGoing is set, in which case the
// remaining plugins are processed, the manifest is still rebuilt and the
// failures are returned together.
package builder
