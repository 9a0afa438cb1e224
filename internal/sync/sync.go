// Package sync reconciles a local content tree with the remote CMS.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/schaermu/portalsync/internal/cms"
	"github.com/schaermu/portalsync/internal/pathkey"
	"github.com/schaermu/portalsync/internal/tree"
)

// DefaultLayoutName is the system name of the layout new pages get when no
// layout is given explicitly.
const DefaultLayoutName = "main_layout"

const rootKey = "/"

// Remote is the part of the content service the engine needs
type Remote interface {
	cms.Lister
	cms.Writer
}

// Engine orchestrates the upload process
type Engine struct {
	remote Remote
	source cms.Source
	logger *slog.Logger
	opts   Options
}

// NewEngine creates a new upload engine
func NewEngine(remote Remote, source cms.Source, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		remote: remote,
		source: source,
		logger: logger,
		opts:   opts,
	}
}

// Run executes the complete upload process and returns the plan it applied
// or, in dry-run mode, simulated.
func (e *Engine) Run(ctx context.Context) (*Plan, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("starting upload",
		"named_paths", e.opts.NamedPaths(),
		"dry_run", e.opts.DryRun)

	remoteObjs, err := FetchRemote(ctx, e.remote)
	if err != nil {
		return nil, err
	}

	entries, err := e.source.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to scan local content: %w", err)
	}
	e.logger.Info("scanned content trees", "local", len(entries), "remote", len(remoteObjs))

	plan, err := e.BuildPlan(remoteObjs, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload plan: %w", err)
	}

	e.logger.Info("upload plan",
		"upload", len(plan.Upload),
		"delete", len(plan.Delete),
		"skipped_builtins", len(plan.SkippedBuiltins),
		"layout", plan.Layout)

	if plan.Empty() {
		e.logger.Info("nothing to do")
		return plan, nil
	}

	if e.opts.DryRun {
		if err := e.simulate(plan); err != nil {
			return nil, err
		}
		e.logger.Info("dry-run complete, no changes applied")
		return plan, nil
	}

	if err := e.applyPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to apply upload plan: %w", err)
	}

	e.logger.Info("upload completed successfully")
	return plan, nil
}

// FetchRemote lists the whole remote tree. The three listings run
// concurrently.
func FetchRemote(ctx context.Context, l cms.Lister) ([]cms.Object, error) {
	var (
		sections  []cms.Section
		files     []cms.File
		templates []cms.Template
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if sections, err = l.ListSections(ctx); err != nil {
			return fmt.Errorf("failed to list sections: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if files, err = l.ListFiles(ctx); err != nil {
			return fmt.Errorf("failed to list files: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if templates, err = l.ListTemplates(ctx); err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	objs := make([]cms.Object, 0, len(sections)+len(files)+len(templates))
	for _, s := range sections {
		objs = append(objs, s)
	}
	for _, f := range files {
		objs = append(objs, f)
	}
	for _, t := range templates {
		objs = append(objs, t)
	}
	return objs, nil
}

// BuildPlan computes the operations that bring the remote tree in line with
// the local entries. It performs no I/O.
func (e *Engine) BuildPlan(remoteObjs []cms.Object, entries []cms.Entry) (*Plan, error) {
	local, sources, err := indexLocal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to index local content: %w", err)
	}
	remote, err := tree.Build(remoteObjs)
	if err != nil {
		return nil, fmt.Errorf("failed to index remote content: %w", err)
	}

	comparison := tree.Compare(local, remote)

	plan := &Plan{
		pending: local.Clone(),
		remote:  remote,
	}

	// Select candidate keys
	var uploadKeys []string
	switch {
	case e.opts.NamedPaths():
		uploadKeys, err = selectNamed(e.opts.Paths, e.opts.Recurse, local, sources)
		if err != nil {
			return nil, err
		}
	case e.opts.IncludeUnchanged:
		uploadKeys = local.Keys()
	default:
		uploadKeys = comparison.Changed()
	}

	// Resolve layout for new pages
	plan.Layout, err = resolveLayout(e.opts.Layout, local, remote, sources)
	if err != nil {
		return nil, err
	}

	// Deletions
	if e.opts.DeleteMissing && !e.opts.NamedPaths() {
		var items []tree.Item
		for _, key := range comparison.OnlyRemote {
			obj := remote[key]
			if key == rootKey {
				continue
			}
			if obj.Builtin() {
				plan.SkippedBuiltins = append(plan.SkippedBuiltins, key)
				continue
			}
			items = append(items, tree.Item{Key: key, Object: obj})
		}
		tree.SortForDelete(items)
		for _, it := range items {
			plan.Delete = append(plan.Delete, Op{Key: it.Key, Object: it.Object})
		}
	}

	// Uploads
	var items []tree.Item
	for _, key := range uploadKeys {
		if key == rootKey {
			continue
		}
		obj, err := prepareUpload(local[key], remote[key], plan.Layout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		items = append(items, tree.Item{Key: key, Object: obj})
	}
	tree.SortForUpload(items, plan.Layout)
	for _, it := range items {
		plan.Upload = append(plan.Upload, Op{
			Key:    it.Key,
			Object: it.Object,
			Source: sources[it.Key],
			Create: !it.Object.Base().HasID(),
		})
	}

	return plan, nil
}

// indexLocal classifies entries and indexes them by key. The second result
// maps keys back to the local path they were read from.
func indexLocal(entries []cms.Entry) (tree.Index, map[string]string, error) {
	idx := make(tree.Index, len(entries))
	sources := make(map[string]string, len(entries))

	for _, entry := range entries {
		obj := pathkey.Classify(entry.Path, entry.IsDir, entry.ModTime)
		key, err := pathkey.Encode(obj)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", entry.Path, err)
		}
		if err := idx.Add(key, obj); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", entry.Path, err)
		}
		sources[key] = entry.Path
	}
	return idx, sources, nil
}

// prepareUpload copies remote identity onto local or, for new objects,
// applies creation defaults.
func prepareUpload(local, remote cms.Object, layout string) (cms.Object, error) {
	if remote != nil {
		return cms.CopyIdentity(local, remote)
	}

	if p, ok := local.(cms.Page); ok && layout != "" && p.Layout == "" && p.ContentType == "text/html" {
		return p.WithLayout(layout), nil
	}
	return local, nil
}

// selectNamed expands named arguments to keys of local.
func selectNamed(args []string, recurse bool, local tree.Index, sources map[string]string) ([]string, error) {
	byPath := invert(sources)

	selected := make(map[string]bool)
	for _, arg := range args {
		key, ok := lookupLocal(arg, local, byPath)
		if !ok {
			return nil, fmt.Errorf("%w: %s", cms.ErrUnknownPath, arg)
		}
		selected[key] = true

		if recurse && strings.HasSuffix(key, "/") {
			for k, p := range sources {
				if strings.HasPrefix(p, sources[key]) {
					selected[k] = true
				}
			}
		}
	}

	keys := make([]string, 0, len(selected))
	for k := range selected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// lookupLocal finds arg as a local path or a key. Directories match with or
// without their trailing slash.
func lookupLocal(arg string, local tree.Index, byPath map[string]string) (string, bool) {
	p := normalizeArg(arg)
	for _, candidate := range []string{p, strings.TrimSuffix(p, "/") + "/"} {
		if key, ok := byPath[candidate]; ok {
			return key, true
		}
		if _, ok := local[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

func normalizeArg(arg string) string {
	p := path.Clean("/" + strings.TrimSpace(arg))
	if strings.HasSuffix(strings.TrimSpace(arg), "/") && p != "/" {
		p += "/"
	}
	return p
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// resolveLayout returns the system name of the layout for new pages.
func resolveLayout(arg *string, local, remote tree.Index, sources map[string]string) (string, error) {
	if arg == nil {
		if l, ok := tree.FindLayout(local, DefaultLayoutName); ok {
			return l.SystemName, nil
		}
		if l, ok := tree.FindLayout(remote, DefaultLayoutName); ok {
			return l.SystemName, nil
		}
		return "", nil
	}

	name := strings.TrimSpace(*arg)
	if name == "" {
		return "", nil
	}

	p := normalizeArg(name)
	key := p
	if k, ok := invert(sources)[p]; ok {
		key = k
	}
	for _, idx := range []tree.Index{local, remote} {
		if l, ok := idx[key].(cms.Layout); ok {
			return l.SystemName, nil
		}
	}
	return "", fmt.Errorf("%w: %s", cms.ErrInvalidLayoutArgument, name)
}

// applyPlan executes the upload plan
func (e *Engine) applyPlan(ctx context.Context, plan *Plan) error {
	// Delete remote-only objects
	for _, op := range plan.Delete {
		e.logger.Info("deleting", "path_key", op.Key, "kind", cms.Variant(op.Object), "id", op.Object.Base().ID)
		if err := cms.Delete(ctx, e.remote, op.Object); err != nil {
			return fmt.Errorf("failed to delete %s: %w", op.Key, err)
		}
	}

	// Create and update
	var publish []Op
	for _, op := range plan.Upload {
		obj, err := withParent(op, plan)
		if err != nil {
			return err
		}

		var content []byte
		if obj.Kind() != cms.KindSection {
			if content, err = e.source.ReadFile(op.Source); err != nil {
				return fmt.Errorf("failed to read %s: %w", op.Source, err)
			}
			if content == nil {
				content = []byte{}
			}
		}

		e.logger.Info("uploading", "path_key", op.Key, "action", op.Action(), "kind", cms.Variant(obj))
		saved, err := e.remote.Save(ctx, obj, content)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", op.Action(), op.Key, err)
		}
		plan.pending[op.Key] = saved

		if saved.Kind() == cms.KindTemplate {
			publish = append(publish, Op{Key: op.Key, Object: saved})
		}
	}

	// Publish templates
	if e.opts.KeepAsDraft {
		e.logger.Info("keeping templates as draft", "count", len(publish))
		return nil
	}
	for _, op := range publish {
		e.logger.Info("publishing", "path_key", op.Key, "id", op.Object.Base().ID)
		if err := e.remote.Publish(ctx, op.Object.Base().ID); err != nil {
			return fmt.Errorf("failed to publish %s: %w", op.Key, err)
		}
	}

	return nil
}

// withParent fills in a missing parent or owning section id.
func withParent(op Op, plan *Plan) (cms.Object, error) {
	ref, ok := cms.ParentRef(op.Object)
	if !ok || ref != 0 {
		return op.Object, nil
	}

	id, err := tree.ResolveParentID(op.Key, plan.pending, plan.remote)
	if err != nil {
		return nil, err
	}
	return cms.WithParentRef(op.Object, id)
}

// simulate logs the plan without touching the remote. Parent resolution
// still runs so the same errors surface as in a real run.
func (e *Engine) simulate(plan *Plan) error {
	for _, key := range plan.SkippedBuiltins {
		e.logger.Info("[dry-run] skipping built-in", "path_key", key)
	}
	for _, op := range plan.Delete {
		e.logger.Info("[dry-run] would delete", "path_key", op.Key, "kind", cms.Variant(op.Object), "id", op.Object.Base().ID)
	}
	for _, op := range plan.Upload {
		if _, err := withParent(op, plan); err != nil {
			return err
		}
		attrs := []any{"path_key", op.Key, "kind", cms.Variant(op.Object), "source", op.Source}
		if parent, ok := tree.NearestAncestor(op.Key, plan.pending, plan.remote); ok {
			attrs = append(attrs, "parent", parent)
		}
		e.logger.Info("[dry-run] would "+op.Action(), attrs...)
	}
	if !e.opts.KeepAsDraft {
		for _, op := range plan.Upload {
			if op.Object.Kind() == cms.KindTemplate {
				e.logger.Info("[dry-run] would publish", "path_key", op.Key)
			}
		}
	}
	return nil
}
