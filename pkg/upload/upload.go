// Package upload ships local run artifacts to remote object storage.
package upload

import "context"

// Uploader uploads benchmark run artifacts to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on
	// misconfiguration.
	Preflight(ctx context.Context) error

	// UploadRun uploads all files in a run's local artifact directory. The
	// directory basename becomes a sub-prefix under the configured remote
	// prefix.
	UploadRun(ctx context.Context, localDir string) error
}
