// Package repository builds the repository manifest (repo.json) from the
// published plugin directories of a destination tree.
//
// The manifest is always rebuilt from disk: every subdirectory of the
// destination contributes its info.json document verbatim, and the top-level
// "repo" value is copied from the source tree's repo.json. Plugins whose
// source directory has since been removed stay listed.
package repository
