package threescale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/portalsync/internal/cms"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, AccessToken: "secret", PerPage: 2, Concurrency: 2})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	c, err := New(Options{BaseURL: "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, defaultPerPage, c.perPage)
	assert.Equal(t, "https://example.com/admin/api/cms/sections.json", c.endpoint("/admin/api/cms/sections.json", nil))
}

func TestListSections_Paginated(t *testing.T) {
	var mu sync.Mutex
	var pages []string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/cms/sections.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("access_token"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		mu.Lock()
		pages = append(pages, strconv.Itoa(page))
		mu.Unlock()

		first := int64(page*2 - 1)
		fmt.Fprintf(w, `{"collection":[
			{"id":%d,"system_name":"s%d","partial_path":"/s%d","parent_id":1,"updated_at":"2024-05-01T10:00:00+02:00"},
			{"id":%d,"system_name":"s%d","partial_path":"/s%d","parent_id":1}
		],"metadata":{"total_pages":3,"current_page":%d}}`,
			first, first, first, first+1, first+1, first+1, page)
	}))

	sections, err := c.ListSections(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 6)

	for i, s := range sections {
		assert.Equal(t, int64(i+1), s.ID, "sections keep page order")
	}
	assert.Equal(t, "/s1", sections[0].Path)
	assert.Equal(t, 8, sections[0].UpdatedAt.Hour())
	assert.ElementsMatch(t, []string{"1", "2", "3"}, pages)
}

func TestListTemplates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("content"))
		_, _ = io.WriteString(w, `{"collection":[
			{"id":1,"type":"page","path":"/about","content_type":"text/html","section_id":3,"layout":"main_layout"},
			{"id":2,"type":"layout","system_name":"main_layout","liquid_enabled":true},
			{"id":3,"type":"partial","system_name":"menu"},
			{"id":4,"type":"builtin_page","system_name":"search"},
			{"id":5,"type":"builtin_partial","system_name":"submenu"}
		],"metadata":{"total_pages":1}}`)
	}))

	templates, err := c.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 5)

	assert.Equal(t, cms.Page{Meta: cms.Meta{ID: 1}, SectionID: 3, Path: "/about", ContentType: "text/html", Layout: "main_layout"}, templates[0])
	assert.Equal(t, "main_layout", templates[1].(cms.Layout).SystemName)
	assert.True(t, cms.IsTrue(templates[1].(cms.Layout).LiquidEnabled))
	assert.IsType(t, cms.Partial{}, templates[2])
	assert.True(t, templates[3].Builtin())
	assert.True(t, templates[4].Builtin())
}

func TestListTemplates_UnknownType(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"collection":[{"id":1,"type":"widget"}],"metadata":{"total_pages":1}}`)
	}))

	_, err := c.ListTemplates(context.Background())
	require.ErrorIs(t, err, cms.ErrUnrecognizedVariant)
}

func TestSaveSection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/admin/api/cms/sections.json", r.URL.Path)
			assert.Equal(t, "blog", r.PostForm.Get("title"), "title falls back to system name")
			assert.Equal(t, "blog", r.PostForm.Get("system_name"))
			assert.Equal(t, "/blog", r.PostForm.Get("partial_path"))
			assert.Equal(t, "1", r.PostForm.Get("parent_id"))
			assert.Equal(t, "true", r.PostForm.Get("public"))
			_, _ = io.WriteString(w, `{"id":10,"system_name":"blog","partial_path":"/blog","parent_id":1}`)
		case http.MethodPut:
			assert.Equal(t, "/admin/api/cms/sections/10.json", r.URL.Path)
			assert.Empty(t, r.PostForm.Get("system_name"))
			_, _ = io.WriteString(w, `{"id":10,"title":"Blog","system_name":"blog","partial_path":"/blog","parent_id":1}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	s := cms.Section{SystemName: "blog", Path: "/blog", ParentID: 1, Public: cms.Bool(true)}
	saved, err := c.Save(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), saved.Base().ID)

	updated, err := c.Save(context.Background(), saved.(cms.Section), nil)
	require.NoError(t, err)
	assert.Equal(t, "Blog", updated.(cms.Section).Title)
}

func TestSaveFile_Multipart(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "/img/logo", r.FormValue("path"))
		assert.Equal(t, "4", r.FormValue("section_id"))

		f, hdr, err := r.FormFile("attachment")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		assert.Equal(t, "logo", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"), "sniffed when the extension is unknown")

		body, _ := io.ReadAll(f)
		assert.Equal(t, png, body)
		_, _ = io.WriteString(w, `{"id":20,"path":"/img/logo","section_id":4}`)
	}))

	saved, err := c.Save(context.Background(), cms.File{Path: "/img/logo", SectionID: 4}, png)
	require.NoError(t, err)
	assert.Equal(t, cms.File{Meta: cms.Meta{ID: 20}, SectionID: 4, Path: "/img/logo"}, saved)
}

func TestSaveTemplate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/admin/api/cms/templates.json", r.URL.Path)
		assert.Equal(t, "page", r.PostForm.Get("type"))
		assert.Equal(t, "<h1>hi</h1>", r.PostForm.Get("draft"))
		assert.Equal(t, "main_layout", r.PostForm.Get("layout_name"))
		assert.Equal(t, "7", r.PostForm.Get("section_id"))
		_, _ = io.WriteString(w, `{"id":30,"type":"page","path":"/hi","section_id":7,"content_type":"text/html"}`)
	}))

	page := cms.Page{Path: "/hi", SectionID: 7, ContentType: "text/html", Layout: "main_layout"}
	saved, err := c.Save(context.Background(), page, []byte("<h1>hi</h1>"))
	require.NoError(t, err)
	assert.Equal(t, int64(30), saved.Base().ID)
}

func TestSaveTemplate_Guards(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))

	_, err := c.Save(context.Background(), cms.BuiltinPage{SystemName: "search"}, []byte("x"))
	require.ErrorIs(t, err, cms.ErrCannotCreateBuiltin)

	_, err = c.Save(context.Background(), cms.Layout{SystemName: "main"}, nil)
	require.ErrorIs(t, err, ErrMissingDraft)
}

func TestPublish(t *testing.T) {
	var called bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/api/cms/templates/30/publish.json", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":30,"type":"page"}`)
	}))

	require.NoError(t, c.Publish(context.Background(), 30))
	assert.True(t, called)
}

func TestDelete(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/admin/api/cms/files/5.json":
			w.WriteHeader(http.StatusOK)
		case "/admin/api/cms/templates/6.json":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error":"Built-in resources can't be deleted"}`)
		case "/admin/api/cms/sections/7.json":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"errors":{"base":["section is not empty"]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	require.NoError(t, c.Delete(context.Background(), cms.KindFile, 5))

	err := c.Delete(context.Background(), cms.KindTemplate, 6)
	require.ErrorIs(t, err, cms.ErrCannotDeleteBuiltin)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	err = c.Delete(context.Background(), cms.KindSection, 7)
	require.Error(t, err)
	assert.False(t, errors.Is(err, cms.ErrCannotDeleteBuiltin))
	assert.Contains(t, err.Error(), "base section is not empty")

	err = c.Delete(context.Background(), cms.Kind("widget"), 1)
	require.ErrorIs(t, err, cms.ErrUnrecognizedVariant)
}

func TestTransportErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListFiles(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
}

func TestFileContent(t *testing.T) {
	var portalURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/cms/files/5.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":5,"path":"/css/site.css"}`)
	})
	mux.HandleFunc("/admin/api/provider.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"account":{"base_url":%q,"site_access_code":"letmein"}}`, portalURL)
	})
	mux.HandleFunc("/css/site.css", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("access_code")
		if err != nil || cookie.Value != "letmein" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, "body{}")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	portalURL = srv.URL

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	data, ok, err := c.FileContent(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "body{}", string(data))
}

func TestTemplateContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/admin/api/cms/templates/") {
		case "1.json":
			_, _ = io.WriteString(w, `{"id":1,"type":"page","draft":"  ","published":"live"}`)
		case "2.json":
			_, _ = io.WriteString(w, `{"id":2,"type":"page","draft":"wip","published":"live"}`)
		case "3.json":
			_, _ = io.WriteString(w, `{"id":3,"type":"page"}`)
		}
	}))
	ctx := context.Background()

	data, ok, err := c.TemplateDraft(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "live", string(data), "blank draft falls back to published")

	data, _, err = c.TemplateDraft(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "wip", string(data))

	data, _, err = c.TemplatePublished(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "live", string(data))

	_, ok, err = c.TemplatePublished(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.TemplateDraft(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
