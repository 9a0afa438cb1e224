// Package cms models the content objects of a 3scale developer portal:
// sections, files and the template variants (pages, layouts, partials and
// their built-in counterparts).
//
// The variant set is closed. Every operation that needs to branch on the
// concrete variant does so with an exhaustive type switch over the types in
// this package.
package cms

import "time"

// Kind is the object-kind tag used by the remote service to route
// create, update and delete calls.
type Kind string

const (
	KindSection  Kind = "section"
	KindFile     Kind = "file"
	KindTemplate Kind = "template"
)

// Object is implemented by every content variant in this package.
type Object interface {
	// Kind returns the object-kind tag.
	Kind() Kind
	// Base returns identity and timestamps.
	Base() Meta
	// Builtin reports whether the object was seeded by the service and can
	// therefore never be created or deleted.
	Builtin() bool

	object()
}

// Template is implemented by the page, layout and partial variants.
type Template interface {
	Object
	template()
}

// Meta carries the fields shared by all variants.
type Meta struct {
	// ID is assigned by the remote service. Zero means the object has not
	// been created remotely yet.
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Base returns m. It is promoted to every variant embedding Meta.
func (m Meta) Base() Meta { return m }

// HasID reports whether the object has a remote identity.
func (m Meta) HasID() bool { return m.ID != 0 }

// Section is a hierarchical container, analogous to a folder.
type Section struct {
	Meta
	// ParentID is zero for the root section and for sections not yet
	// attached to a parent.
	ParentID   int64
	SystemName string
	Title      string
	Path       string
	Public     *bool
}

// File is an opaque binary or text asset.
type File struct {
	Meta
	SectionID    int64
	Path         string
	Downloadable *bool
	ContentType  string
}

// Page is an ordinary editable page template.
type Page struct {
	Meta
	SectionID     int64
	Title         string
	Path          string
	ContentType   string
	Layout        string // system name of the layout
	Handler       string
	LiquidEnabled *bool
	Hidden        *bool
}

// Layout is a template referenced by pages.
type Layout struct {
	Meta
	SystemName       string
	Title            string
	ContentType      string
	Handler          string
	LiquidEnabled    *bool
	DraftContent     string
	PublishedContent string
}

// Partial is a reusable template fragment.
type Partial struct {
	Meta
	SystemName    string
	ContentType   string
	Handler       string
	LiquidEnabled *bool
}

// BuiltinPage is a service-seeded page. It can be updated but never created
// or deleted.
type BuiltinPage struct {
	Meta
	SystemName    string
	Title         string
	Path          string
	ContentType   string
	Layout        string
	Handler       string
	LiquidEnabled *bool
	Hidden        *bool
}

// BuiltinPartial is a service-seeded partial.
type BuiltinPartial struct {
	Meta
	SystemName    string
	ContentType   string
	Handler       string
	LiquidEnabled *bool
}

func (Section) Kind() Kind        { return KindSection }
func (File) Kind() Kind           { return KindFile }
func (Page) Kind() Kind           { return KindTemplate }
func (Layout) Kind() Kind         { return KindTemplate }
func (Partial) Kind() Kind        { return KindTemplate }
func (BuiltinPage) Kind() Kind    { return KindTemplate }
func (BuiltinPartial) Kind() Kind { return KindTemplate }

func (Section) Builtin() bool        { return false }
func (File) Builtin() bool           { return false }
func (Page) Builtin() bool           { return false }
func (Layout) Builtin() bool         { return false }
func (Partial) Builtin() bool        { return false }
func (BuiltinPage) Builtin() bool    { return true }
func (BuiltinPartial) Builtin() bool { return true }

func (Section) object()        {}
func (File) object()           {}
func (Page) object()           {}
func (Layout) object()         {}
func (Partial) object()        {}
func (BuiltinPage) object()    {}
func (BuiltinPartial) object() {}

func (Page) template()           {}
func (Layout) template()         {}
func (Partial) template()        {}
func (BuiltinPage) template()    {}
func (BuiltinPartial) template() {}

// Variant returns a short lowercase name for the concrete type of obj,
// suitable for logs and for the remote service's template type field.
func Variant(obj Object) string {
	switch obj.(type) {
	case Section:
		return "section"
	case File:
		return "file"
	case Page:
		return "page"
	case Layout:
		return "layout"
	case Partial:
		return "partial"
	case BuiltinPage:
		return "builtin_page"
	case BuiltinPartial:
		return "builtin_partial"
	default:
		return "unknown"
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// IsTrue reports whether b is set and true.
func IsTrue(b *bool) bool { return b != nil && *b }
