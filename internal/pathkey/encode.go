// Package pathkey derives the canonical path key of content objects.
//
// A path key names one logical object in both the local tree and the remote
// service. Encode derives it from an object; Classify turns a local path into
// the draft object whose Encode result is that object's key. The two must
// agree, since the key is the join key when diffing the trees.
package pathkey

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/schaermu/portalsync/internal/cms"
)

// Filename markers for templates addressed by system name.
const (
	LayoutPrefix  = "l_"
	PartialPrefix = "_"
)

const (
	htmlSuffix   = ".html"
	liquidSuffix = ".liquid"
	indexName    = "index"
)

var contentTypeExtensions = map[string]string{
	"text/css":        ".css",
	"text/html":       ".html",
	"text/javascript": ".js",
	"text/plain":      ".txt",
}

// Encode returns the path key of obj.
func Encode(obj cms.Object) (string, error) {
	var (
		key string
		err error
	)

	switch o := obj.(type) {
	case cms.Section:
		key = sectionKey(o)
	case cms.File:
		key = o.Path
	case cms.Page:
		key = pageKey(o)
	case cms.BuiltinPage:
		key = builtinPageKey(o)
	case cms.Layout:
		key, err = systemNameKey(o.SystemName, LayoutPrefix)
	case cms.Partial:
		key, err = systemNameKey(o.SystemName, PartialPrefix)
	case cms.BuiltinPartial:
		key, err = systemNameKey(o.SystemName, PartialPrefix)
	default:
		return "", fmt.Errorf("%w: %T", cms.ErrUnrecognizedVariant, obj)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty path key for %s", cms.ErrUnrecognizedVariant, cms.Variant(obj))
	}
	return key, nil
}

func sectionKey(s cms.Section) string {
	if strings.HasSuffix(s.Path, "/") {
		return s.Path
	}
	return s.Path + "/"
}

func pageKey(p cms.Page) string {
	var b strings.Builder
	b.WriteString(p.Path)

	if strings.HasSuffix(p.Path, "/") {
		b.WriteString(indexName)
	}

	contentType := strings.ToLower(strings.TrimSpace(p.ContentType))
	if ext, ok := contentTypeExtensions[contentType]; ok {
		if !strings.HasSuffix(p.Path, ext) {
			b.WriteString(ext)
		}
	} else {
		slog.Warn("unknown file extension for content type", "content_type", p.ContentType, "path", p.Path)
	}

	writeTemplateSuffix(&b, p.Handler, cms.IsTrue(p.LiquidEnabled))
	return b.String()
}

func builtinPageKey(p cms.BuiltinPage) string {
	path := p.Path
	if path == "" {
		path = "/" + p.SystemName
	}

	var b strings.Builder
	b.WriteString(path)
	if strings.HasSuffix(path, "/") {
		b.WriteString(indexName)
	}
	b.WriteString(htmlSuffix)

	writeTemplateSuffix(&b, p.Handler, true)
	return b.String()
}

// systemNameKey maps "a/b/name" to "/a/b/<prefix>name.html.liquid".
func systemNameKey(systemName, prefix string) (string, error) {
	segments := splitNonEmpty(strings.TrimSpace(systemName), "/")
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q", cms.ErrInvalidSystemName, systemName)
	}

	var b strings.Builder
	for _, dir := range segments[:len(segments)-1] {
		b.WriteString("/")
		b.WriteString(dir)
	}
	b.WriteString("/")
	b.WriteString(prefix)
	b.WriteString(segments[len(segments)-1])
	b.WriteString(htmlSuffix)
	b.WriteString(liquidSuffix)
	return b.String(), nil
}

func writeTemplateSuffix(b *strings.Builder, handler string, liquid bool) {
	if strings.TrimSpace(handler) != "" {
		b.WriteString(".")
		b.WriteString(handler)
	}
	if liquid {
		b.WriteString(liquidSuffix)
	}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
