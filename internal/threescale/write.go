package threescale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/schaermu/portalsync/internal/cms"
	"github.com/schaermu/portalsync/internal/pathkey"
)

// Save creates or updates obj. content is the file body or template draft.
func (c *Client) Save(ctx context.Context, obj cms.Object, content []byte) (cms.Object, error) {
	switch o := obj.(type) {
	case cms.Section:
		return c.saveSection(ctx, o)
	case cms.File:
		return c.saveFile(ctx, o, content)
	case cms.Template:
		return c.saveTemplate(ctx, o, content)
	default:
		return nil, fmt.Errorf("%w: %T", cms.ErrUnrecognizedVariant, obj)
	}
}

func (c *Client) saveSection(ctx context.Context, s cms.Section) (cms.Object, error) {
	r := request{method: http.MethodPost, path: apiPrefix + "/sections.json", form: sectionForm(s, !s.HasID())}
	if s.HasID() {
		r.method = http.MethodPut
		r.path = fmt.Sprintf("%s/sections/%d.json", apiPrefix, s.ID)
	}

	var out sectionJSON
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.toCMS(), nil
}

func (c *Client) saveFile(ctx context.Context, f cms.File, content []byte) (cms.Object, error) {
	body, contentType, err := fileMultipart(f, content)
	if err != nil {
		return nil, err
	}

	r := request{method: http.MethodPost, path: apiPrefix + "/files.json", body: body, contentType: contentType}
	if f.HasID() {
		r.method = http.MethodPut
		r.path = fmt.Sprintf("%s/files/%d.json", apiPrefix, f.ID)
	}

	var out fileJSON
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.toCMS(), nil
}

// fileMultipart encodes f and its attachment. The attachment part's type
// comes from the file extension or, failing that, from content sniffing.
func fileMultipart(f cms.File, content []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{{"path", f.Path}}
	if f.SectionID != 0 {
		fields = append(fields, [2]string{"section_id", strconv.FormatInt(f.SectionID, 10)})
	}
	if f.Downloadable != nil {
		fields = append(fields, [2]string{"downloadable", strconv.FormatBool(*f.Downloadable)})
	}
	if f.ContentType != "" {
		fields = append(fields, [2]string{"content_type", f.ContentType})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("failed to encode field %s: %w", kv[0], err)
		}
	}

	if content != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, path.Base(f.Path)))
		h.Set("Content-Type", attachmentType(f, content))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode attachment: %w", err)
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", fmt.Errorf("failed to encode attachment: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to encode attachment: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func attachmentType(f cms.File, content []byte) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ct := pathkey.ContentTypeForPath(f.Path); ct != pathkey.DefaultContentType {
		return ct
	}
	return mimetype.Detect(content).String()
}

func (c *Client) saveTemplate(ctx context.Context, t cms.Template, draft []byte) (cms.Object, error) {
	create := !t.Base().HasID()
	if create && t.Builtin() {
		return nil, fmt.Errorf("save %s: %w", cms.Variant(t), cms.ErrCannotCreateBuiltin)
	}
	if create && draft == nil {
		return nil, fmt.Errorf("save %s: %w", cms.Variant(t), ErrMissingDraft)
	}

	form, err := templateForm(t, draft, create)
	if err != nil {
		return nil, err
	}

	r := request{method: http.MethodPost, path: apiPrefix + "/templates.json", form: form}
	if !create {
		r.method = http.MethodPut
		r.path = fmt.Sprintf("%s/templates/%d.json", apiPrefix, t.Base().ID)
	}

	var out templateJSON
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.toCMS()
}

// Publish promotes the draft of a template to its published content.
func (c *Client) Publish(ctx context.Context, templateID int64) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("%s/templates/%d/publish.json", apiPrefix, templateID),
	}, nil)
}

// Delete removes an object. A rejected deletion of a built-in object unwraps
// to cms.ErrCannotDeleteBuiltin.
func (c *Client) Delete(ctx context.Context, kind cms.Kind, id int64) error {
	var resource string
	switch kind {
	case cms.KindSection:
		resource = "sections"
	case cms.KindFile:
		resource = "files"
	case cms.KindTemplate:
		resource = "templates"
	default:
		return fmt.Errorf("%w: kind %q", cms.ErrUnrecognizedVariant, kind)
	}

	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/%s/%d.json", apiPrefix, resource, id),
	}, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && isBuiltinDeletion(apiErr) {
		apiErr.Err = cms.ErrCannotDeleteBuiltin
	}
	return err
}

// Error text the service answers with when asked to delete a built-in.
const builtinDeletionMessage = "Built-in resources can't be deleted"

func isBuiltinDeletion(e *APIError) bool {
	return e.StatusCode == http.StatusUnprocessableEntity && e.Message == builtinDeletionMessage
}
