package tree

import (
	"cmp"
	"slices"
	"strings"

	"github.com/schaermu/portalsync/internal/cms"
)

// Item is an object paired with its path key.
type Item struct {
	Key    string
	Object cms.Object
}

// Depth is the number of path segments in key. The root key "/" has depth 0.
func Depth(key string) int {
	trimmed := strings.Trim(key, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// UploadOrder returns the comparator used to apply creates and updates.
//
// Sections come first. Sections with an identity precede new ones and are
// ordered by identity; new sections are ordered shallowest first so parents
// exist before their children. When defaultLayout is set the layout with
// that system name precedes every other non-section. All remaining objects
// compare equal, so sorting must be stable.
func UploadOrder(defaultLayout string) func(a, b Item) int {
	return func(a, b Item) int {
		aSection := a.Object.Kind() == cms.KindSection
		bSection := b.Object.Kind() == cms.KindSection

		switch {
		case aSection && bSection:
			return compareSections(a, b)
		case aSection:
			return -1
		case bSection:
			return 1
		}

		if defaultLayout != "" {
			aLayout := isLayout(a.Object, defaultLayout)
			bLayout := isLayout(b.Object, defaultLayout)
			switch {
			case aLayout && !bLayout:
				return -1
			case bLayout && !aLayout:
				return 1
			}
		}
		return 0
	}
}

func compareSections(a, b Item) int {
	aID, bID := a.Object.Base().ID, b.Object.Base().ID
	switch {
	case aID != 0 && bID != 0:
		return cmp.Compare(aID, bID)
	case aID != 0:
		return -1
	case bID != 0:
		return 1
	}
	if c := cmp.Compare(Depth(a.Key), Depth(b.Key)); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}

// DeleteOrder is the comparator used to apply deletions: non-sections first,
// then sections deepest first so no section is removed before its contents.
func DeleteOrder(a, b Item) int {
	aSection := a.Object.Kind() == cms.KindSection
	bSection := b.Object.Kind() == cms.KindSection

	switch {
	case aSection && bSection:
		if c := cmp.Compare(Depth(b.Key), Depth(a.Key)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Object.Base().ID, a.Object.Base().ID); c != 0 {
			return c
		}
		return strings.Compare(b.Key, a.Key)
	case aSection:
		return 1
	case bSection:
		return -1
	}
	return 0
}

// SortForUpload sorts items in place by UploadOrder.
func SortForUpload(items []Item, defaultLayout string) {
	slices.SortStableFunc(items, UploadOrder(defaultLayout))
}

// SortForDelete sorts items in place by DeleteOrder.
func SortForDelete(items []Item) {
	slices.SortStableFunc(items, DeleteOrder)
}

func isLayout(obj cms.Object, systemName string) bool {
	l, ok := obj.(cms.Layout)
	return ok && l.SystemName == systemName
}
