// Package local implements cleanup.PathDeleter against the local
// filesystem: os.RemoveAll for directories and files alike, which is
// already idempotent-safe on a missing path (the contract the interface
// requires).
package local

import "os"

// Deleter is the default PathDeleter: no extra dependency because a plain
// local filesystem deleter has no third-party library to reach for in the
// corpus (see DESIGN.md).
type Deleter struct{}

// New returns a Deleter.
func New() *Deleter { return &Deleter{} }

// Delete removes path, recursively if it is a directory. Calling it on a
// path that no longer exists is not an error, matching os.RemoveAll.
func (Deleter) Delete(path string) error {
	return os.RemoveAll(path)
}
