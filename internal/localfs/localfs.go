// Package localfs reads a local content tree through a billy filesystem.
package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/schaermu/portalsync/internal/cms"
)

// Source is a content tree rooted at the root of a billy filesystem.
type Source struct {
	fs billy.Filesystem
}

// NewSource creates a Source over fsys.
func NewSource(fsys billy.Filesystem) *Source {
	return &Source{fs: fsys}
}

// NewOSSource creates a Source over the directory dir.
func NewOSSource(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", dir)
	}
	return NewSource(osfs.New(dir)), nil
}

// Entries walks the tree in lexical order. Hidden files and directories are
// skipped.
func (s *Source) Entries() ([]cms.Entry, error) {
	var entries []cms.Entry

	err := util.Walk(s.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel := toSlash(p)
		if rel != "/" && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() && rel != "/" {
			rel += "/"
		}
		entries = append(entries, cms.Entry{
			Path:    rel,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk content root: %w", err)
	}

	return entries, nil
}

// ReadFile returns the content at the entry path p.
func (s *Source) ReadFile(p string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, strings.TrimPrefix(p, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

func toSlash(p string) string {
	return "/" + strings.Trim(filepath.ToSlash(p), "/")
}
