package artifacts

import "errors"

var (
	// ErrArchiveExists is returned when the target archive is already published
	ErrArchiveExists = errors.New("archive already exists")

	// ErrCompressionFailed is returned when compression fails
	ErrCompressionFailed = errors.New("compression failed")

	// ErrNotADirectory is returned when the archive source is not a directory
	ErrNotADirectory = errors.New("source is not a directory")
)
