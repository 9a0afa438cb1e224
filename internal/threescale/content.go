package threescale

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// FileContent downloads the body of a file from the developer portal. The
// portal may be protected by a site access code, which is sent as a cookie.
func (c *Client) FileContent(ctx context.Context, id int64) ([]byte, bool, error) {
	var file fileJSON
	if err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/files/%d.json", apiPrefix, id)}, &file); err != nil {
		return nil, false, err
	}

	var provider providerJSON
	if err := c.do(ctx, request{method: http.MethodGet, path: providerEndpoint}, &provider); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(provider.Account.BaseURL, "/")+file.Path, nil)
	if err != nil {
		return nil, false, &APIError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "*/*")
	if code := provider.Account.SiteAccessCode; code != "" {
		req.AddCookie(&http.Cookie{Name: "access_code", Value: code})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, &APIError{Message: "transport error", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &APIError{StatusCode: resp.StatusCode, Message: "failed to read file content", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, newAPIError(resp.StatusCode, data)
	}
	return data, true, nil
}

// TemplateDraft returns the draft of a template, or its published content
// when the draft is blank.
func (c *Client) TemplateDraft(ctx context.Context, id int64) ([]byte, bool, error) {
	t, err := c.template(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if t.Draft != nil && strings.TrimSpace(*t.Draft) != "" {
		return []byte(*t.Draft), true, nil
	}
	if t.Published != nil && strings.TrimSpace(*t.Published) != "" {
		return []byte(*t.Published), true, nil
	}
	return nil, false, nil
}

// TemplatePublished returns the published content of a template.
func (c *Client) TemplatePublished(ctx context.Context, id int64) ([]byte, bool, error) {
	t, err := c.template(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if t.Published == nil {
		return nil, false, nil
	}
	return []byte(*t.Published), true, nil
}

func (c *Client) template(ctx context.Context, id int64) (templateJSON, error) {
	var t templateJSON
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/templates/%d.json", apiPrefix, id)}, &t)
	return t, err
}
