package threescale

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/schaermu/portalsync/internal/cms"
)

type collection[T any] struct {
	Collection []T          `json:"collection"`
	Metadata   pageMetadata `json:"metadata"`
}

// listAll fetches every page of a collection endpoint. The first page tells
// how many follow; the rest are fetched concurrently and reassembled in
// page order.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	fetch := func(ctx context.Context, page int) (collection[T], error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.perPage))

		var out collection[T]
		err := c.do(ctx, request{method: "GET", path: path, query: q}, &out)
		return out, err
	}

	first, err := fetch(ctx, 1)
	if err != nil {
		return nil, err
	}
	if first.Metadata.TotalPages <= 1 {
		return first.Collection, nil
	}

	pages := make([][]T, first.Metadata.TotalPages)
	pages[0] = first.Collection

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for page := 2; page <= first.Metadata.TotalPages; page++ {
		g.Go(func() error {
			res, err := fetch(gctx, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			pages[page-1] = res.Collection
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []T
	for _, p := range pages {
		all = append(all, p...)
	}
	return all, nil
}

// ListSections returns every section.
func (c *Client) ListSections(ctx context.Context) ([]cms.Section, error) {
	items, err := listAll[sectionJSON](ctx, c, apiPrefix+"/sections.json", nil)
	if err != nil {
		return nil, err
	}
	out := make([]cms.Section, len(items))
	for i, s := range items {
		out[i] = s.toCMS()
	}
	return out, nil
}

// ListFiles returns every file.
func (c *Client) ListFiles(ctx context.Context) ([]cms.File, error) {
	items, err := listAll[fileJSON](ctx, c, apiPrefix+"/files.json", nil)
	if err != nil {
		return nil, err
	}
	out := make([]cms.File, len(items))
	for i, f := range items {
		out[i] = f.toCMS()
	}
	return out, nil
}

// ListTemplates returns every template without its content.
func (c *Client) ListTemplates(ctx context.Context) ([]cms.Template, error) {
	items, err := listAll[templateJSON](ctx, c, apiPrefix+"/templates.json", url.Values{"content": {"false"}})
	if err != nil {
		return nil, err
	}
	out := make([]cms.Template, 0, len(items))
	for _, t := range items {
		tmpl, err := t.toCMS()
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, nil
}
