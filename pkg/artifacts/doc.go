// Package artifacts writes versioned plugin archives.
//
// An archive is named "<id>-<version>.zip" and lives in the plugin's
// destination directory. Archives are write-once: Create refuses to replace an
// existing file, which is what makes repeated builds idempotent. Bumping the
// version is the only way to publish new contents.
//
//	archiver := artifacts.NewArchiver(logger)
//	result, err := archiver.Create(ctx, &artifacts.CreateRequest{
//		SourceDir:   "source/hello-world",
//		ArchivePath: artifacts.ArchivePath("repo", "hello-world", "1.0.0"),
//	})
package artifacts
