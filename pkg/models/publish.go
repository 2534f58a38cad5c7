package models

// PublishMode is an opaque value describing how an output is exported to a
// user-visible location. The core only ever compares it against the fixed
// set of modes that are incompatible with eager deletion; the full
// enumeration belongs to the publishing subsystem, not here.
type PublishMode string

const (
	PublishCopyNoFollow PublishMode = "copy-no-follow"
	PublishRelativeLink PublishMode = "relative-link"
	PublishSymbolicLink PublishMode = "symbolic-link"
)

// IncompatibleWithEagerDeletion reports whether mode is one of the modes
// that invalidate eager deletion of the source: a relative or symbolic link
// left dangling once the source is removed is indistinguishable from data
// loss to a downstream reader, and a copy-no-follow publish copies the link
// itself rather than its target, so it dangles the same way once the source
// is gone.
func (m PublishMode) IncompatibleWithEagerDeletion() bool {
	switch m {
	case PublishCopyNoFollow, PublishRelativeLink, PublishSymbolicLink:
		return true
	default:
		return false
	}
}

// OutputSpec is a single declared output of a task: a name (the process
// output-parameter name), the absolute path it resolves to, whether it is
// file-typed (as opposed to a value output that has no filesystem
// footprint), and whether the publish subsystem is expected to publish it.
type OutputSpec struct {
	Name      string
	Path      string
	FileTyped bool
	Publish   bool
}
