package pathkey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/portalsync/internal/cms"
)

var mtime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		obj  cms.Object
		want string
	}{
		{"root section", cms.Section{Path: ""}, "/"},
		{"section without slash", cms.Section{Path: "/blog"}, "/blog/"},
		{"section with slash", cms.Section{Path: "/blog/"}, "/blog/"},
		{"file", cms.File{Path: "/images/logo.png"}, "/images/logo.png"},
		{"html page", cms.Page{Path: "/about", ContentType: "text/html"}, "/about.html"},
		{"index page", cms.Page{Path: "/blog/", ContentType: "text/html", LiquidEnabled: cms.Bool(true)}, "/blog/index.html.liquid"},
		{"css page keeps extension", cms.Page{Path: "/css/site.css", ContentType: "text/css"}, "/css/site.css"},
		{"js page gets extension", cms.Page{Path: "/js/app", ContentType: "TEXT/JavaScript "}, "/js/app.js"},
		{"markdown handler", cms.Page{Path: "/docs", ContentType: "text/html", Handler: "markdown", LiquidEnabled: cms.Bool(true)}, "/docs.html.markdown.liquid"},
		{"liquid disabled", cms.Page{Path: "/plain", ContentType: "text/plain", LiquidEnabled: cms.Bool(false)}, "/plain.txt"},
		{"unknown content type", cms.Page{Path: "/feed", ContentType: "application/rss+xml"}, "/feed"},
		{"builtin page with path", cms.BuiltinPage{SystemName: "dashboard", Path: "/admin/"}, "/admin/index.html.liquid"},
		{"builtin page without path", cms.BuiltinPage{SystemName: "search"}, "/search.html.liquid"},
		{"builtin page handler", cms.BuiltinPage{SystemName: "docs", Handler: "textile"}, "/docs.html.textile.liquid"},
		{"layout", cms.Layout{SystemName: "main_layout"}, "/l_main_layout.html.liquid"},
		{"nested layout", cms.Layout{SystemName: "themes/dark"}, "/themes/l_dark.html.liquid"},
		{"partial", cms.Partial{SystemName: "shared/menu"}, "/shared/_menu.html.liquid"},
		{"builtin partial", cms.BuiltinPartial{SystemName: "submenu"}, "/_submenu.html.liquid"},
		{"system name with extra slashes", cms.Partial{SystemName: " /a//b/ "}, "/a/_b.html.liquid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.obj)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_InvalidSystemName(t *testing.T) {
	for _, obj := range []cms.Object{
		cms.Layout{SystemName: ""},
		cms.Partial{SystemName: "  "},
		cms.BuiltinPartial{SystemName: "///"},
	} {
		_, err := Encode(obj)
		require.ErrorIs(t, err, cms.ErrInvalidSystemName)
	}
}

func TestEncode_UnrecognizedVariant(t *testing.T) {
	_, err := Encode(nil)
	require.ErrorIs(t, err, cms.ErrUnrecognizedVariant)
}

func TestEncode_SectionsEndInSlash(t *testing.T) {
	for _, p := range []string{"", "/", "/a", "/a/b", "/a/b/", "/deep/er/still"} {
		key, err := Encode(cms.Section{Path: p})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(key, "/"), "key %q for path %q", key, p)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		isDir bool
		want  cms.Object
	}{
		{
			name:  "directory",
			path:  "/blog/",
			isDir: true,
			want:  cms.Section{SystemName: "blog", Title: "blog", Path: "/blog", Public: cms.Bool(true)},
		},
		{
			name:  "root directory",
			path:  "/",
			isDir: true,
			want:  cms.Section{SystemName: "root", Title: "root", Path: "", Public: cms.Bool(true)},
		},
		{
			name: "layout marker",
			path: "/l_main.html.liquid",
			want: cms.Layout{SystemName: "main", Title: "main layout", ContentType: "text/html", LiquidEnabled: cms.Bool(true)},
		},
		{
			name: "layout title already suffixed",
			path: "/l_main_layout.html.liquid",
			want: cms.Layout{SystemName: "main_layout", Title: "main layout", ContentType: "text/html", LiquidEnabled: cms.Bool(true)},
		},
		{
			name: "layouts directory",
			path: "/layouts/error_Layout.html",
			want: cms.Layout{SystemName: "error_Layout", Title: "error Layout", ContentType: "text/html"},
		},
		{
			name: "partial marker",
			path: "/shared/_menu.html.liquid",
			want: cms.Partial{SystemName: "shared/menu", ContentType: "text/html", LiquidEnabled: cms.Bool(true)},
		},
		{
			name: "home page",
			path: "/index.html.liquid",
			want: cms.Page{Title: "Home", Path: "/", ContentType: "text/html", LiquidEnabled: cms.Bool(true)},
		},
		{
			name: "section index page",
			path: "/blog/index.html",
			want: cms.Page{Title: "blog", Path: "/blog/", ContentType: "text/html"},
		},
		{
			name: "markdown page",
			path: "/docs/intro.html.markdown.liquid",
			want: cms.Page{Title: "intro", Path: "/docs/intro", ContentType: "text/html", Handler: "markdown", LiquidEnabled: cms.Bool(true)},
		},
		{
			name: "css page keeps extension",
			path: "/css/site.css",
			want: cms.Page{Title: "site.css", Path: "/css/site.css", ContentType: "text/css"},
		},
		{
			name: "image is a file",
			path: "/images/logo.png",
			want: cms.File{Path: "/images/logo.png"},
		},
		{
			name: "unknown extension is a file",
			path: "/downloads/terms.pdf",
			want: cms.File{Path: "/downloads/terms.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.path, tt.isDir, mtime)

			assert.Equal(t, mtime.UTC(), got.Base().UpdatedAt)
			assert.Equal(t, time.UTC, got.Base().UpdatedAt.Location())
			assert.False(t, got.Base().HasID())

			assert.Equal(t, tt.want, stripMeta(got))
		})
	}
}

func TestClassifyEncodeRoundTrip(t *testing.T) {
	paths := []struct {
		path  string
		isDir bool
	}{
		{"/", true},
		{"/blog/", true},
		{"/index.html.liquid", false},
		{"/blog/index.html", false},
		{"/about.html", false},
		{"/docs/intro.html.markdown.liquid", false},
		{"/docs/notes.txt", false},
		{"/css/site.css", false},
		{"/js/app.js.liquid", false},
		{"/l_main_layout.html.liquid", false},
		{"/themes/l_dark.html.liquid", false},
		{"/shared/_menu.html.liquid", false},
		{"/images/logo.png", false},
	}

	for _, p := range paths {
		t.Run(p.path, func(t *testing.T) {
			key, err := Encode(Classify(p.path, p.isDir, mtime))
			require.NoError(t, err)

			again, err := Encode(Classify(key, p.isDir, mtime))
			require.NoError(t, err)
			assert.Equal(t, key, again)

			if !p.isDir {
				assert.Equal(t, p.path, key)
			}
		})
	}
}

func TestContentTypeForPath(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeForPath("/a/logo.PNG"))
	assert.Equal(t, DefaultContentType, ContentTypeForPath("/a/archive.tar.gz"))
}

func stripMeta(obj cms.Object) cms.Object {
	switch o := obj.(type) {
	case cms.Section:
		o.Meta = cms.Meta{}
		return o
	case cms.File:
		o.Meta = cms.Meta{}
		return o
	case cms.Page:
		o.Meta = cms.Meta{}
		return o
	case cms.Layout:
		o.Meta = cms.Meta{}
		return o
	case cms.Partial:
		o.Meta = cms.Meta{}
		return o
	}
	return obj
}
