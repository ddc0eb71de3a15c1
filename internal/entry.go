package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/out-of-cheese-error/gooseberry/internal/filter"
	"github.com/out-of-cheese-error/gooseberry/internal/hierarchy"
	"github.com/out-of-cheese-error/gooseberry/internal/index"
	"github.com/out-of-cheese-error/gooseberry/internal/kb"
	"github.com/out-of-cheese-error/gooseberry/internal/remote"
	"github.com/out-of-cheese-error/gooseberry/internal/storage"
	"github.com/out-of-cheese-error/gooseberry/internal/syncer"
)

// App holds the wired application: index, service client, sync engine,
// and knowledge base builder. Every command is a method; nothing runs
// in the background.
type App struct {
	config *Config
	logger *slog.Logger
	svc    remote.Service
	out    io.Writer

	db      *index.DB
	engine  *syncer.Engine
	builder *kb.Builder
}

// NewApp wires the application from the given options. WithConfig is
// required.
func NewApp(opts ...Option) (*App, error) {
	app := &App{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("internal: config is required")
	}
	cfg := app.config

	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg.App.LogLevel),
		}))
	}
	slog.SetDefault(app.logger)

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("internal: create data dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("internal: init index: %w", err)
	}
	app.db = db

	if app.svc == nil {
		app.svc = remote.NewClient(cfg.Hypothesis.BaseURL, cfg.Hypothesis.Username,
			cfg.Hypothesis.Key, cfg.Hypothesis.PageSize)
	}
	app.engine = syncer.New(db, app.svc, app.logger)

	store, err := storage.NewFS(cfg.KB.Dir)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("internal: init kb storage: %w", err)
	}
	renderer, err := kb.NewRenderer(cfg.KB.Templates)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	app.builder = kb.New(db, store, renderer, app.logger, kb.Options{
		Hierarchy: hierarchy.Spec{
			Levels:          cfg.KB.Hierarchy,
			NestedDelimiter: cfg.KB.NestedDelimiter,
		},
		Sort:      hierarchy.SortSpec{Keys: cfg.KB.Sort},
		Extension: cfg.KB.Extension,
		IndexName: cfg.KB.IndexName,
	})
	return app, nil
}

// Close releases the index.
func (a *App) Close() error {
	return a.db.Close()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (a *App) group() string {
	return a.config.Hypothesis.Group
}

// Sync pulls new and updated annotations into the index.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.engine.Sync(ctx, a.group())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %d, updated %d annotations\n", res.Added, res.Updated)
	return nil
}

// Tag adds or removes a tag on every annotation matching the filter,
// remote first.
func (a *App) Tag(ctx context.Context, spec filter.Spec, tag string, remove bool) error {
	matched, err := a.engine.FetchMatching(ctx, a.group(), spec)
	if err != nil {
		return err
	}
	changed := 0
	for _, ann := range matched {
		var ok bool
		if remove {
			ok, err = a.engine.RemoveTag(ctx, ann, tag)
		} else {
			ok, err = a.engine.AddTag(ctx, ann, tag)
		}
		if err != nil {
			return err
		}
		if ok {
			changed++
		}
	}
	verb := "Tagged"
	if remove {
		verb = "Untagged"
	}
	fmt.Fprintf(a.out, "%s %d of %d matching annotations\n", verb, changed, len(matched))
	return nil
}

// Delete removes every annotation matching the filter, remote first.
func (a *App) Delete(ctx context.Context, spec filter.Spec) error {
	matched, err := a.engine.FetchMatching(ctx, a.group(), spec)
	if err != nil {
		return err
	}
	for _, ann := range matched {
		if _, err := a.engine.Delete(ctx, ann.ID); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Deleted %d annotations\n", len(matched))
	return nil
}

// View renders matching indexed annotations to the output, or a single
// annotation when id is non-empty.
func (a *App) View(spec filter.Spec, id string) error {
	if id != "" {
		return a.builder.ViewOne(a.out, id)
	}
	_, err := a.builder.View(a.out, a.group(), spec)
	return err
}

// Move re-homes matching annotations into another group and re-syncs
// it.
func (a *App) Move(ctx context.Context, targetGroup string, spec filter.Spec) error {
	moved, err := a.engine.Move(ctx, a.group(), targetGroup, spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Moved %d annotations to group %s\n", moved, targetGroup)
	return nil
}

// Make renders the knowledge base from the index, optionally syncing
// first so the pages reflect remote truth.
func (a *App) Make(ctx context.Context, spec filter.Spec, clear, sync bool) error {
	if sync {
		if _, err := a.engine.Sync(ctx, a.group()); err != nil {
			return err
		}
	}
	report, err := a.builder.Make(a.group(), spec, clear)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Made %d pages (%d written, %d unchanged)\n",
		report.Pages, report.Written, report.Skipped)
	if report.Collisions > 0 {
		fmt.Fprintf(a.out, "Disambiguated %d filename collisions\n", report.Collisions)
	}
	return nil
}

// Clear empties the index, the sync watermarks, and the knowledge base
// folder.
func (a *App) Clear() error {
	if err := a.db.Clear(); err != nil {
		return err
	}
	if err := a.builder.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Cleared index and knowledge base")
	return nil
}
