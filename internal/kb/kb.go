// Package kb materializes the tag index into a folder of rendered
// Markdown pages plus a root index.
package kb

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/out-of-cheese-error/gooseberry/internal/checksum"
	"github.com/out-of-cheese-error/gooseberry/internal/filter"
	"github.com/out-of-cheese-error/gooseberry/internal/hierarchy"
	"github.com/out-of-cheese-error/gooseberry/internal/index"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
	"github.com/out-of-cheese-error/gooseberry/internal/render"
	"github.com/out-of-cheese-error/gooseberry/internal/storage"
)

// Options fixes the layout of the generated knowledge base.
type Options struct {
	Hierarchy hierarchy.Spec
	Sort      hierarchy.SortSpec
	Extension string
	IndexName string
}

// Builder renders index contents into pages.
type Builder struct {
	idx      index.TagIndex
	store    storage.Provider
	renderer render.Renderer
	logger   *slog.Logger
	opts     Options
}

// New builds a knowledge base builder.
func New(idx index.TagIndex, store storage.Provider, renderer render.Renderer, logger *slog.Logger, opts Options) *Builder {
	if opts.IndexName == "" {
		opts.IndexName = "index"
	}
	return &Builder{idx: idx, store: store, renderer: renderer, logger: logger, opts: opts}
}

// Report summarizes one Make run.
type Report struct {
	Pages      int
	Written    int
	Skipped    int
	Collisions int
}

// Make renders every indexed annotation of group passing the filter
// into the configured folder tree. Pages whose rendered content is
// unchanged are left alone. With clear set, the output root is emptied
// first.
func (b *Builder) Make(group string, spec filter.Spec, clear bool) (*Report, error) {
	matched, err := b.matching(group, spec)
	if err != nil {
		return nil, err
	}

	tree, err := hierarchy.Build(matched, b.opts.Hierarchy, b.opts.Sort, hierarchy.Options{
		Extension: b.opts.Extension,
		IndexName: b.opts.IndexName,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range tree.Collisions {
		b.logger.Warn("make: filename collision disambiguated",
			slog.String("path", c.Path),
			slog.Any("keys", c.Keys))
	}

	if clear {
		if err := b.store.Clear(); err != nil {
			return nil, err
		}
	}

	indexPath := b.opts.IndexName
	if b.opts.Extension != "" {
		indexPath += "." + b.opts.Extension
	}

	report := &Report{Pages: len(tree.Pages), Collisions: len(tree.Collisions)}
	// A page grouped under a key that names the root index file is
	// folded into the index below the links instead of being
	// overwritten by it.
	indexExtra := ""
	for _, page := range tree.Pages {
		if page.Path == indexPath {
			body, err := b.renderAnnotations(page.Annotations)
			if err != nil {
				return nil, err
			}
			indexExtra = body
			continue
		}
		content, err := b.renderPage(page)
		if err != nil {
			return nil, err
		}
		if err := b.write(page.Path, content, report); err != nil {
			return nil, err
		}
	}

	indexContent, err := b.renderIndex(tree.Links, indexPath, indexExtra)
	if err != nil {
		return nil, err
	}
	if err := b.write(indexPath, indexContent, report); err != nil {
		return nil, err
	}

	b.logger.Info("make: done",
		slog.String("group", group),
		slog.Int("pages", report.Pages),
		slog.Int("written", report.Written),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

// View renders every indexed annotation of group passing the filter to
// w, one after another, without touching the knowledge base.
func (b *Builder) View(w io.Writer, group string, spec filter.Spec) (int, error) {
	matched, err := b.matching(group, spec)
	if err != nil {
		return 0, err
	}
	sorted := append([]models.Annotation(nil), matched...)
	hierarchy.Sort(sorted, b.opts.Sort)
	for _, a := range sorted {
		text, err := b.renderer.Render(TemplateAnnotation, annotationContext(a))
		if err != nil {
			return 0, err
		}
		if _, err := io.WriteString(w, text); err != nil {
			return 0, fmt.Errorf("kb: view: %w", err)
		}
	}
	return len(sorted), nil
}

// ViewOne renders a single annotation by id to w.
func (b *Builder) ViewOne(w io.Writer, id string) error {
	a, err := b.idx.Get(id)
	if err != nil {
		return err
	}
	text, err := b.renderer.Render(TemplateAnnotation, annotationContext(*a))
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("kb: view: %w", err)
	}
	return nil
}

// Clear empties the knowledge base folder.
func (b *Builder) Clear() error {
	return b.store.Clear()
}

func (b *Builder) matching(group string, spec filter.Spec) ([]models.Annotation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	all, err := b.idx.All(group)
	if err != nil {
		return nil, err
	}
	matched := make([]models.Annotation, 0, len(all))
	for _, a := range all {
		if filter.Matches(a, a.Tags, spec) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (b *Builder) renderAnnotations(annotations []models.Annotation) (string, error) {
	var body bytes.Buffer
	for _, a := range annotations {
		text, err := b.renderer.Render(TemplateAnnotation, annotationContext(a))
		if err != nil {
			return "", err
		}
		body.WriteString(text)
	}
	return body.String(), nil
}

func (b *Builder) renderPage(page hierarchy.Page) ([]byte, error) {
	body, err := b.renderAnnotations(page.Annotations)
	if err != nil {
		return nil, err
	}
	rendered, err := b.renderer.Render(TemplatePage, map[string]any{
		"name":        page.Name,
		"path":        page.Path,
		"count":       len(page.Annotations),
		"annotations": body,
	})
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

func (b *Builder) renderIndex(links []hierarchy.Link, indexPath, extra string) ([]byte, error) {
	var body bytes.Buffer
	count := 0
	for _, l := range links {
		// Never link the index to itself.
		if l.RelativePath == indexPath {
			continue
		}
		text, err := b.renderer.Render(TemplateIndexLink, map[string]any{
			"name": l.Name,
			"path": l.RelativePath,
		})
		if err != nil {
			return nil, err
		}
		body.WriteString(text)
		count++
	}
	if extra != "" {
		body.WriteString("\n")
		body.WriteString(extra)
	}
	rendered, err := b.renderer.Render(TemplatePage, map[string]any{
		"name":        b.opts.IndexName,
		"path":        "",
		"count":       count,
		"annotations": body.String(),
	})
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

// write stores content at path unless an identical file is already
// there, so untouched pages keep their mtimes.
func (b *Builder) write(path string, content []byte, report *Report) error {
	if existing, err := b.store.Read(path); err == nil &&
		checksum.Sum(existing) == checksum.Sum(content) {
		report.Skipped++
		return nil
	}
	if err := b.store.Write(path, content); err != nil {
		return err
	}
	report.Written++
	return nil
}
