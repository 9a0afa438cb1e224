package tree

import (
	"fmt"
	"strings"

	"github.com/schaermu/portalsync/internal/cms"
	"github.com/schaermu/portalsync/internal/pathkey"
)

// ParentKey returns the key of the section directly containing key, or ""
// for the root.
func ParentKey(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	if trimmed == "" {
		return ""
	}
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}

// ResolveParentID returns the identity of the nearest ancestor section of key
// that has one. At each level pending objects are consulted before remote
// ones.
func ResolveParentID(key string, pending, remote Index) (int64, error) {
	for anc := ParentKey(key); anc != ""; anc = ParentKey(anc) {
		if id, ok := sectionID(pending[anc]); ok {
			return id, nil
		}
		if id, ok := sectionID(remote[anc]); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", cms.ErrNoResolvableAncestor, key)
}

// NearestAncestor returns the key of the closest section above key that is
// known on either side, whether or not it has been created yet.
func NearestAncestor(key string, pending, remote Index) (string, bool) {
	for anc := ParentKey(key); anc != ""; anc = ParentKey(anc) {
		if isSection(pending[anc]) || isSection(remote[anc]) {
			return anc, true
		}
	}
	return "", false
}

// FindLayout returns the layout in idx with the given system name.
func FindLayout(idx Index, systemName string) (cms.Layout, bool) {
	key, err := pathkey.Encode(cms.Layout{SystemName: systemName})
	if err != nil {
		return cms.Layout{}, false
	}
	l, ok := idx[key].(cms.Layout)
	return l, ok
}

func sectionID(obj cms.Object) (int64, bool) {
	if !isSection(obj) || !obj.Base().HasID() {
		return 0, false
	}
	return obj.Base().ID, true
}

func isSection(obj cms.Object) bool {
	return obj != nil && obj.Kind() == cms.KindSection
}
