package cms

import (
	"context"
	"fmt"
	"time"
)

// Lister enumerates the remote content tree.
type Lister interface {
	ListSections(ctx context.Context) ([]Section, error)
	ListFiles(ctx context.Context) ([]File, error)
	ListTemplates(ctx context.Context) ([]Template, error)
}

// ContentReader fetches raw content of remote objects. The boolean result is
// false when the service has no content for the object.
type ContentReader interface {
	FileContent(ctx context.Context, id int64) ([]byte, bool, error)
	TemplateDraft(ctx context.Context, id int64) ([]byte, bool, error)
	TemplatePublished(ctx context.Context, id int64) ([]byte, bool, error)
}

// Writer mutates the remote content tree.
type Writer interface {
	// Save creates obj when it has no identity and updates it otherwise,
	// returning the persisted object. content is the file body or template
	// draft and is ignored for sections.
	Save(ctx context.Context, obj Object, content []byte) (Object, error)
	Publish(ctx context.Context, templateID int64) error
	Delete(ctx context.Context, kind Kind, id int64) error
}

// Remote is the full remote content service.
type Remote interface {
	Lister
	ContentReader
	Writer
}

// Delete removes obj through w. Built-in objects are rejected with
// ErrCannotDeleteBuiltin before any call is made, and objects that were
// never created are a no-op.
func Delete(ctx context.Context, w Writer, obj Object) error {
	if obj.Builtin() {
		return fmt.Errorf("delete %s %d: %w", Variant(obj), obj.Base().ID, ErrCannotDeleteBuiltin)
	}
	if !obj.Base().HasID() {
		return nil
	}
	return w.Delete(ctx, obj.Kind(), obj.Base().ID)
}

// Entry is one item of a local content tree.
type Entry struct {
	// Path is slash separated and rooted at "/". Directory paths end in "/";
	// the content root itself is "/".
	Path    string
	IsDir   bool
	ModTime time.Time
}

// Source is a local content tree.
type Source interface {
	Entries() ([]Entry, error)
	ReadFile(path string) ([]byte, error)
}
