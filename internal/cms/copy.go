package cms

import "fmt"

// WithParentID returns a copy of s attached to the given parent section.
func (s Section) WithParentID(parentID int64) Section {
	s.ParentID = parentID
	return s
}

// WithIDAndParentID returns a copy of s carrying a remote identity and parent.
func (s Section) WithIDAndParentID(id, parentID int64) Section {
	s.ID = id
	s.ParentID = parentID
	return s
}

// WithSectionID returns a copy of f owned by the given section.
func (f File) WithSectionID(sectionID int64) File {
	f.SectionID = sectionID
	return f
}

// WithIDAndSectionID returns a copy of f carrying a remote identity and owner.
func (f File) WithIDAndSectionID(id, sectionID int64) File {
	f.ID = id
	f.SectionID = sectionID
	return f
}

// WithSectionID returns a copy of p owned by the given section.
func (p Page) WithSectionID(sectionID int64) Page {
	p.SectionID = sectionID
	return p
}

// WithIDAndSectionID returns a copy of p carrying a remote identity and owner.
func (p Page) WithIDAndSectionID(id, sectionID int64) Page {
	p.ID = id
	p.SectionID = sectionID
	return p
}

// WithLayout returns a copy of p referencing the named layout.
func (p Page) WithLayout(systemName string) Page {
	p.Layout = systemName
	return p
}

// WithID returns a copy of l carrying a remote identity.
func (l Layout) WithID(id int64) Layout {
	l.ID = id
	return l
}

// WithID returns a copy of p carrying a remote identity.
func (p Partial) WithID(id int64) Partial {
	p.ID = id
	return p
}

// ParentRef returns the parent or owning section id of obj. The boolean is
// false for variants that do not live inside a section.
func ParentRef(obj Object) (int64, bool) {
	switch o := obj.(type) {
	case Section:
		return o.ParentID, true
	case File:
		return o.SectionID, true
	case Page:
		return o.SectionID, true
	default:
		return 0, false
	}
}

// WithParentRef returns a copy of obj attached to the given section. It
// fails for variants that do not live inside a section.
func WithParentRef(obj Object, sectionID int64) (Object, error) {
	switch o := obj.(type) {
	case Section:
		return o.WithParentID(sectionID), nil
	case File:
		return o.WithSectionID(sectionID), nil
	case Page:
		return o.WithSectionID(sectionID), nil
	default:
		return nil, fmt.Errorf("%w: %s has no parent section", ErrUnrecognizedVariant, Variant(obj))
	}
}

// CopyIdentity returns a copy of the local object target carrying the
// identity of the remote object source, and its parent or owning section
// where both variants have one. Only identity is copied; the remaining
// fields are left for the service to reconcile.
//
// Changing the object kind between local and remote is rejected with
// ErrIncompatibleTypeChange.
func CopyIdentity(target, source Object) (Object, error) {
	if target.Kind() != source.Kind() {
		return nil, fmt.Errorf("%w: remote %s, local %s",
			ErrIncompatibleTypeChange, source.Kind(), target.Kind())
	}

	id := source.Base().ID

	switch t := target.(type) {
	case Section:
		s := source.(Section)
		return t.WithIDAndParentID(id, s.ParentID), nil
	case File:
		f := source.(File)
		return t.WithIDAndSectionID(id, f.SectionID), nil
	case Layout:
		return t.WithID(id), nil
	case Page:
		if p, ok := source.(Page); ok {
			return t.WithIDAndSectionID(id, p.SectionID), nil
		}
		return t.WithIDAndSectionID(id, 0), nil
	case Partial:
		return t.WithID(id), nil
	default:
		return nil, fmt.Errorf("%w: cannot copy identity onto %s", ErrUnrecognizedVariant, Variant(target))
	}
}
