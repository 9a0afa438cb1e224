// Package tree indexes content trees by path key and diffs them.
package tree

import (
	"fmt"
	"sort"

	"github.com/schaermu/portalsync/internal/cms"
	"github.com/schaermu/portalsync/internal/pathkey"
)

// Index maps path keys to the object they identify.
type Index map[string]cms.Object

// Build indexes objs by path key. A repeated key is an input defect and
// fails with cms.ErrDuplicatePathKey.
func Build(objs []cms.Object) (Index, error) {
	idx := make(Index, len(objs))
	for _, obj := range objs {
		key, err := pathkey.Encode(obj)
		if err != nil {
			return nil, err
		}
		if err := idx.Add(key, obj); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add stores obj under key unless the key is already taken.
func (idx Index) Add(key string, obj cms.Object) error {
	if prev, exists := idx[key]; exists {
		return fmt.Errorf("%w: %s (%s and %s)", cms.ErrDuplicatePathKey, key, cms.Variant(prev), cms.Variant(obj))
	}
	idx[key] = obj
	return nil
}

// Keys returns the keys of idx in lexical order.
func (idx Index) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of idx.
func (idx Index) Clone() Index {
	out := make(Index, len(idx))
	for k, v := range idx {
		out[k] = v
	}
	return out
}
