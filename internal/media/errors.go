package media

import "errors"

// Classified fetch errors. The retry policy maps these onto recoverable or
// non-recoverable failure classes; everything not wrapped in one of them is
// treated as a transient transport problem.
var (
	// ErrInvalidSource indicates the source URL is malformed or points at
	// something that can never be fetched. Non-recoverable.
	ErrInvalidSource = errors.New("invalid media source")

	// ErrUnsupportedSource indicates the source is syntactically valid but
	// serves content this fetcher cannot process. Non-recoverable.
	ErrUnsupportedSource = errors.New("unsupported media source")

	// ErrTooLarge indicates the remote content exceeds the configured size
	// cap. Non-recoverable: retrying will not shrink the file.
	ErrTooLarge = errors.New("media exceeds maximum file size")
)
