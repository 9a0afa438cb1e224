package tree

import (
	"sort"
	"time"

	"github.com/schaermu/portalsync/internal/cms"
)

// Comparison is the difference between a local and a remote index. Every
// list is sorted.
type Comparison struct {
	OnlyLocal  []string
	OnlyRemote []string
	LocalNewer []string
}

// Changed returns the keys that need uploading when unchanged objects are
// skipped.
func (c Comparison) Changed() []string {
	keys := make([]string, 0, len(c.OnlyLocal)+len(c.LocalNewer))
	keys = append(keys, c.OnlyLocal...)
	keys = append(keys, c.LocalNewer...)
	sort.Strings(keys)
	return keys
}

// Compare diffs local against remote.
func Compare(local, remote Index) Comparison {
	var c Comparison

	for key, l := range local {
		r, exists := remote[key]
		if !exists {
			c.OnlyLocal = append(c.OnlyLocal, key)
			continue
		}
		if IsNewer(l, r) {
			c.LocalNewer = append(c.LocalNewer, key)
		}
	}
	for key := range remote {
		if _, exists := local[key]; !exists {
			c.OnlyRemote = append(c.OnlyRemote, key)
		}
	}

	sort.Strings(c.OnlyLocal)
	sort.Strings(c.OnlyRemote)
	sort.Strings(c.LocalNewer)
	return c
}

// The service reports whole seconds, local filesystems usually do not.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// IsNewer reports whether local was modified after remote.
func IsNewer(local, remote cms.Object) bool {
	return normalize(local.Base().UpdatedAt).After(normalize(remote.Base().UpdatedAt))
}
