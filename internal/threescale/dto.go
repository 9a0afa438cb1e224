package threescale

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/schaermu/portalsync/internal/cms"
)

// Template type discriminators used by the API.
const (
	typePage           = "page"
	typeLayout         = "layout"
	typePartial        = "partial"
	typeBuiltinPage    = "builtin_page"
	typeBuiltinPartial = "builtin_partial"
)

type pageMetadata struct {
	PerPage      int `json:"per_page"`
	TotalEntries int `json:"total_entries"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
}

type sectionJSON struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `json:"title"`
	SystemName  string    `json:"system_name"`
	Public      *bool     `json:"public"`
	ParentID    int64     `json:"parent_id"`
	PartialPath string    `json:"partial_path"`
}

type fileJSON struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SectionID    int64     `json:"section_id"`
	Path         string    `json:"path"`
	Downloadable *bool     `json:"downloadable"`
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
}

type templateJSON struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Title         string    `json:"title"`
	SystemName    string    `json:"system_name"`
	Path          string    `json:"path"`
	ContentType   string    `json:"content_type"`
	Handler       string    `json:"handler"`
	LiquidEnabled *bool     `json:"liquid_enabled"`
	Hidden        *bool     `json:"hidden"`
	SectionID     int64     `json:"section_id"`
	Layout        string    `json:"layout"`
	LayoutID      int64     `json:"layout_id"`
	Draft         *string   `json:"draft"`
	Published     *string   `json:"published"`
}

type providerJSON struct {
	Account struct {
		BaseURL        string `json:"base_url"`
		SiteAccessCode string `json:"site_access_code"`
	} `json:"account"`
}

func (s sectionJSON) toCMS() cms.Section {
	return cms.Section{
		Meta:       cms.Meta{ID: s.ID, CreatedAt: s.CreatedAt.UTC(), UpdatedAt: s.UpdatedAt.UTC()},
		ParentID:   s.ParentID,
		SystemName: s.SystemName,
		Title:      s.Title,
		Path:       s.PartialPath,
		Public:     s.Public,
	}
}

func (f fileJSON) toCMS() cms.File {
	return cms.File{
		Meta:         cms.Meta{ID: f.ID, CreatedAt: f.CreatedAt.UTC(), UpdatedAt: f.UpdatedAt.UTC()},
		SectionID:    f.SectionID,
		Path:         f.Path,
		Downloadable: f.Downloadable,
		ContentType:  f.ContentType,
	}
}

func (t templateJSON) toCMS() (cms.Template, error) {
	meta := cms.Meta{ID: t.ID, CreatedAt: t.CreatedAt.UTC(), UpdatedAt: t.UpdatedAt.UTC()}

	switch t.Type {
	case typePage:
		return cms.Page{
			Meta:          meta,
			SectionID:     t.SectionID,
			Title:         t.Title,
			Path:          t.Path,
			ContentType:   t.ContentType,
			Layout:        t.Layout,
			Handler:       t.Handler,
			LiquidEnabled: t.LiquidEnabled,
			Hidden:        t.Hidden,
		}, nil
	case typeLayout:
		return cms.Layout{
			Meta:             meta,
			SystemName:       t.SystemName,
			Title:            t.Title,
			ContentType:      t.ContentType,
			Handler:          t.Handler,
			LiquidEnabled:    t.LiquidEnabled,
			DraftContent:     deref(t.Draft),
			PublishedContent: deref(t.Published),
		}, nil
	case typePartial:
		return cms.Partial{
			Meta:          meta,
			SystemName:    t.SystemName,
			ContentType:   t.ContentType,
			Handler:       t.Handler,
			LiquidEnabled: t.LiquidEnabled,
		}, nil
	case typeBuiltinPage:
		return cms.BuiltinPage{
			Meta:          meta,
			SystemName:    t.SystemName,
			Title:         t.Title,
			Path:          t.Path,
			ContentType:   t.ContentType,
			Layout:        t.Layout,
			Handler:       t.Handler,
			LiquidEnabled: t.LiquidEnabled,
			Hidden:        t.Hidden,
		}, nil
	case typeBuiltinPartial:
		return cms.BuiltinPartial{
			Meta:          meta,
			SystemName:    t.SystemName,
			ContentType:   t.ContentType,
			Handler:       t.Handler,
			LiquidEnabled: t.LiquidEnabled,
		}, nil
	default:
		return nil, fmt.Errorf("%w: template %d has type %q", cms.ErrUnrecognizedVariant, t.ID, t.Type)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formValues accumulates non-empty request parameters.
type formValues url.Values

func (f formValues) str(key, value string) {
	if value != "" {
		url.Values(f).Set(key, value)
	}
}

func (f formValues) id(key string, value int64) {
	if value != 0 {
		url.Values(f).Set(key, strconv.FormatInt(value, 10))
	}
}

func (f formValues) boolean(key string, value *bool) {
	if value != nil {
		url.Values(f).Set(key, strconv.FormatBool(*value))
	}
}

func sectionForm(s cms.Section, create bool) url.Values {
	f := formValues{}
	f.boolean("public", s.Public)
	f.str("title", s.Title)
	f.id("parent_id", s.ParentID)
	if create {
		if s.Title == "" {
			f.str("title", s.SystemName)
		}
		f.str("partial_path", s.Path)
		f.str("system_name", s.SystemName)
	}
	return url.Values(f)
}

// templateForm returns the create or update parameters of t. draft is
// omitted when nil.
func templateForm(t cms.Template, draft []byte, create bool) (url.Values, error) {
	f := formValues{}
	if draft != nil {
		url.Values(f).Set("draft", string(draft))
	}

	switch o := t.(type) {
	case cms.Page:
		if create {
			f.str("type", typePage)
		}
		f.str("title", o.Title)
		f.str("path", o.Path)
		f.id("section_id", o.SectionID)
		f.str("layout_name", o.Layout)
		f.str("content_type", o.ContentType)
		f.str("handler", o.Handler)
		f.boolean("liquid_enabled", o.LiquidEnabled)
	case cms.Layout:
		if create {
			f.str("type", typeLayout)
		}
		f.str("system_name", o.SystemName)
		f.str("title", o.Title)
		f.str("content_type", o.ContentType)
		f.str("handler", o.Handler)
		f.boolean("liquid_enabled", o.LiquidEnabled)
	case cms.Partial:
		if create {
			f.str("type", typePartial)
		}
		f.str("system_name", o.SystemName)
		f.str("content_type", o.ContentType)
		f.str("handler", o.Handler)
		f.boolean("liquid_enabled", o.LiquidEnabled)
	case cms.BuiltinPage:
		f.str("title", o.Title)
		f.str("layout_name", o.Layout)
		f.str("handler", o.Handler)
		f.boolean("liquid_enabled", o.LiquidEnabled)
	case cms.BuiltinPartial:
		f.str("handler", o.Handler)
		f.boolean("liquid_enabled", o.LiquidEnabled)
	default:
		return nil, fmt.Errorf("%w: %s", cms.ErrUnrecognizedVariant, cms.Variant(t))
	}
	return url.Values(f), nil
}
