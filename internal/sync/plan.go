package sync

import (
	"errors"

	"github.com/schaermu/portalsync/internal/cms"
	"github.com/schaermu/portalsync/internal/tree"
)

// ErrConflictingOptions is returned when options from the upload-all and
// named-paths modes are combined.
var ErrConflictingOptions = errors.New("conflicting upload options")

// Options selects what a run uploads and deletes
type Options struct {
	// Paths switches to named-paths mode. Each entry is a local path
	// relative to the content root or a path key.
	Paths   []string
	Recurse bool

	IncludeUnchanged bool
	DeleteMissing    bool

	KeepAsDraft bool

	// Layout names the layout for new pages. nil picks the conventional
	// default, an empty string disables it.
	Layout *string

	DryRun bool
}

// NamedPaths reports whether the options select named-paths mode
func (o Options) NamedPaths() bool {
	return len(o.Paths) > 0
}

// Validate checks that the options belong to a single mode
func (o Options) Validate() error {
	if o.NamedPaths() && (o.IncludeUnchanged || o.DeleteMissing) {
		return errors.Join(ErrConflictingOptions,
			errors.New("--include-unchanged and --delete-missing cannot be combined with paths"))
	}
	if o.Recurse && !o.NamedPaths() {
		return errors.Join(ErrConflictingOptions, errors.New("--recurse requires at least one path"))
	}
	return nil
}

// Plan represents the remote operations of one run, in application order
type Plan struct {
	Delete []Op
	Upload []Op

	// SkippedBuiltins lists remote-only keys of built-in objects, which
	// can't be deleted.
	SkippedBuiltins []string

	// Layout is the system name injected into new HTML pages, if any.
	Layout string

	pending tree.Index
	remote  tree.Index
}

// Op represents a single remote operation
type Op struct {
	Key    string
	Object cms.Object
	Source string // local path the content is read from, empty for deletes
	Create bool
}

// Empty reports whether the plan has nothing to apply
func (p *Plan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Upload) == 0
}

// Action describes op for logs
func (op Op) Action() string {
	switch {
	case op.Source == "":
		return "delete"
	case op.Create:
		return "create"
	default:
		return "update"
	}
}
