// Package syncer drives the incremental pull from the annotation
// service into the tag index, and the remote-first write-back path.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/out-of-cheese-error/gooseberry/internal/filter"
	"github.com/out-of-cheese-error/gooseberry/internal/index"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
	"github.com/out-of-cheese-error/gooseberry/internal/remote"
)

// Engine coordinates the index and the remote service. All work is
// synchronous with the invoking command; there is no background state.
type Engine struct {
	idx    index.TagIndex
	svc    remote.Service
	logger *slog.Logger
}

// New builds a sync engine.
func New(idx index.TagIndex, svc remote.Service, logger *slog.Logger) *Engine {
	return &Engine{idx: idx, svc: svc, logger: logger}
}

// Result summarizes one successful sync.
type Result struct {
	Added     int
	Updated   int
	Watermark time.Time
}

// Sync pulls every annotation in group created or updated after the
// group's watermark and reconciles it into the index. Page fetching is
// pipelined with ingestion; any failure aborts the whole sync without
// advancing the watermark. Re-running after a partial failure is safe
// because Put is idempotent.
func (e *Engine) Sync(ctx context.Context, group string) (*Result, error) {
	watermark, err := e.idx.Watermark(group)
	if err != nil {
		return nil, err
	}
	known, err := e.idx.AllIDs()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("sync: pulling",
		slog.String("group", group),
		slog.Time("watermark", watermark))

	pages := make(chan []models.Annotation, 1)
	res := &Result{Watermark: watermark}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pages)
		token := ""
		for {
			batch, next, err := e.svc.List(gCtx, group, watermark, token)
			if err != nil {
				return err
			}
			if len(batch) > 0 {
				select {
				case pages <- batch:
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
			if next == "" {
				return nil
			}
			token = next
		}
	})
	g.Go(func() error {
		for batch := range pages {
			for _, a := range batch {
				if err := e.idx.Put(a); err != nil {
					return err
				}
				if _, seen := known[a.ID]; seen {
					res.Updated++
				} else {
					known[a.ID] = struct{}{}
					res.Added++
				}
				if a.Updated.After(res.Watermark) {
					res.Watermark = a.Updated
				}
			}
			e.logger.Debug("sync: ingested page",
				slog.String("group", group),
				slog.Int("count", len(batch)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("syncer: sync %s: %w", group, err)
	}

	// Zero results leave the watermark untouched.
	if res.Watermark.After(watermark) {
		if err := e.idx.SetWatermark(group, res.Watermark); err != nil {
			return nil, err
		}
	}

	e.logger.Info("sync: done",
		slog.String("group", group),
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated))
	return res, nil
}

// FetchMatching lists every annotation of a group currently on the
// remote service and returns the ones passing the filter spec. Used by
// tag/delete/move commands, which operate on remote truth rather than
// the possibly stale index.
func (e *Engine) FetchMatching(ctx context.Context, group string, spec filter.Spec) ([]models.Annotation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var matched []models.Annotation
	token := ""
	for {
		batch, next, err := e.svc.List(ctx, group, time.Time{}, token)
		if err != nil {
			return nil, fmt.Errorf("syncer: fetch %s: %w", group, err)
		}
		for _, a := range batch {
			if filter.Matches(a, a.Tags, spec) {
				matched = append(matched, a)
			}
		}
		if next == "" {
			return matched, nil
		}
		token = next
	}
}

// Move re-homes every annotation of sourceGroup matching the filter
// into targetGroup on the remote service, then fully re-syncs the
// target group so the index catches up.
func (e *Engine) Move(ctx context.Context, sourceGroup, targetGroup string, spec filter.Spec) (int, error) {
	matched, err := e.FetchMatching(ctx, sourceGroup, spec)
	if err != nil {
		return 0, err
	}
	for _, a := range matched {
		if err := e.svc.UpdateGroup(ctx, a.ID, targetGroup); err != nil {
			return 0, err
		}
		e.logger.Debug("move: regrouped",
			slog.String("id", a.ID),
			slog.String("target", targetGroup))
	}
	if err := e.idx.ResetWatermark(targetGroup); err != nil {
		return 0, err
	}
	if _, err := e.Sync(ctx, targetGroup); err != nil {
		return 0, err
	}
	return len(matched), nil
}
