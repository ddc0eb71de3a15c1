package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/index"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// Phase reports how far a two-phase write-back progressed. The remote
// service mutates first; the local index follows only on remote
// success, so the two never diverge by more than "remote applied,
// local pending", a state the next sync repairs.
type Phase int

const (
	// PhaseNone: the remote call failed, nothing changed anywhere.
	PhaseNone Phase = iota
	// PhaseRemoteApplied: the remote mutation succeeded but the local
	// index update failed; a subsequent sync reconciles it.
	PhaseRemoteApplied
	// PhaseComplete: remote and local both applied.
	PhaseComplete
)

// WriteBack is the typed outcome of one write-back operation.
type WriteBack struct {
	ID    string
	Phase Phase
}

// UpdateTags replaces an annotation's tags remotely, then mirrors the
// change into the index. The reserved empty-tag key is never sent to
// the service.
func (e *Engine) UpdateTags(ctx context.Context, a models.Annotation, tags []string) (WriteBack, error) {
	tags = models.DedupeTags(tags)
	if err := e.svc.UpdateTags(ctx, a.ID, stripReserved(tags)); err != nil {
		return WriteBack{ID: a.ID, Phase: PhaseNone}, err
	}
	if err := e.idx.Put(a.WithTags(tags)); err != nil {
		e.logger.Warn("write-back: remote applied but local put failed, next sync repairs",
			slog.String("id", a.ID), slog.String("error", err.Error()))
		return WriteBack{ID: a.ID, Phase: PhaseRemoteApplied}, err
	}
	return WriteBack{ID: a.ID, Phase: PhaseComplete}, nil
}

// AddTag adds one tag to an annotation. Returns false without touching
// anything when the tag is already present.
func (e *Engine) AddTag(ctx context.Context, a models.Annotation, tag string) (bool, error) {
	if a.HasTag(tag) {
		return false, nil
	}
	_, err := e.UpdateTags(ctx, a, append(append([]string(nil), a.Tags...), tag))
	return err == nil, err
}

// RemoveTag removes one tag from an annotation. Returns false without
// touching anything when the tag is absent.
func (e *Engine) RemoveTag(ctx context.Context, a models.Annotation, tag string) (bool, error) {
	if !a.HasTag(tag) {
		return false, nil
	}
	kept := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	_, err := e.UpdateTags(ctx, a, kept)
	return err == nil, err
}

// Delete removes an annotation remotely, then from the index.
func (e *Engine) Delete(ctx context.Context, id string) (WriteBack, error) {
	if err := e.svc.Delete(ctx, id); err != nil {
		return WriteBack{ID: id, Phase: PhaseNone}, err
	}
	if err := e.idx.Remove(id); err != nil {
		// The annotation may never have been synced locally.
		if errors.Is(err, apperr.ErrNotFound) {
			return WriteBack{ID: id, Phase: PhaseComplete}, nil
		}
		e.logger.Warn("write-back: remote deleted but local remove failed, next sync repairs",
			slog.String("id", id), slog.String("error", err.Error()))
		return WriteBack{ID: id, Phase: PhaseRemoteApplied}, err
	}
	return WriteBack{ID: id, Phase: PhaseComplete}, nil
}

// stripReserved drops the index-internal empty-tag bucket from a tag
// list bound for the remote service.
func stripReserved(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != index.EmptyTag {
			out = append(out, t)
		}
	}
	return out
}
