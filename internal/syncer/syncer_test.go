package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/filter"
	"github.com/out-of-cheese-error/gooseberry/internal/index"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
	"github.com/out-of-cheese-error/gooseberry/internal/testutil"
)

// fakeService is an in-memory annotation service with scriptable
// failures.
type fakeService struct {
	annotations map[string][]models.Annotation // by group
	pageSize    int

	listErrAfter int // fail the Nth List call (1-based), 0 disables
	listCalls    int
	updateErr    error
	deleteErr    error

	updatedTags   map[string][]string
	deleted       []string
	updatedGroups map[string]string
}

func newFakeService(pageSize int) *fakeService {
	return &fakeService{
		annotations:   make(map[string][]models.Annotation),
		pageSize:      pageSize,
		updatedTags:   make(map[string][]string),
		updatedGroups: make(map[string]string),
	}
}

func (f *fakeService) List(_ context.Context, group string, updatedAfter time.Time, pageToken string) ([]models.Annotation, string, error) {
	f.listCalls++
	if f.listErrAfter > 0 && f.listCalls >= f.listErrAfter {
		return nil, "", &apperr.RemoteError{Op: "list", Err: errors.New("boom")}
	}

	after := updatedAfter
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", err
		}
		after = t
	}

	var matched []models.Annotation
	for _, a := range f.annotations[group] {
		if a.Updated.After(after) {
			matched = append(matched, a)
		}
	}
	if len(matched) > f.pageSize {
		matched = matched[:f.pageSize]
	}
	next := ""
	if len(matched) == f.pageSize {
		next = matched[len(matched)-1].Updated.Format(time.RFC3339Nano)
	}
	return matched, next, nil
}

func (f *fakeService) UpdateTags(_ context.Context, id string, tags []string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedTags[id] = tags
	return nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) UpdateGroup(_ context.Context, id, group string) error {
	f.updatedGroups[id] = group
	for g, anns := range f.annotations {
		for i, a := range anns {
			if a.ID == id {
				a.Group = group
				f.annotations[group] = append(f.annotations[group], a)
				f.annotations[g] = append(anns[:i], anns[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func remoteAnn(id string, updated time.Time, tags ...string) models.Annotation {
	return models.Annotation{
		ID:      id,
		Created: updated.Add(-time.Hour),
		Updated: updated,
		URI:     "https://example.com/" + id,
		Group:   "g1",
		Tags:    tags,
	}
}

func testEngine(t *testing.T, svc *fakeService) (*Engine, *index.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, svc, logger), db
}

func day(n int) time.Time {
	return time.Date(2020, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestSyncIngestsAndAdvancesWatermark(t *testing.T) {
	svc := newFakeService(2)
	svc.annotations["g1"] = []models.Annotation{
		remoteAnn("a1", day(1), "x"),
		remoteAnn("a2", day(2), "y"),
		remoteAnn("a3", day(3)),
	}
	e, db := testEngine(t, svc)

	res, err := e.Sync(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 0, res.Updated)

	wm, err := db.Watermark("g1")
	require.NoError(t, err)
	assert.True(t, wm.Equal(day(3)))

	tags, err := db.GetTags("a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, tags)

	// Untagged annotations stay enumerable via the reserved bucket.
	ids, err := db.GetIDs(index.EmptyTag)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, ids)
}

func TestSyncIncremental(t *testing.T) {
	svc := newFakeService(200)
	svc.annotations["g1"] = []models.Annotation{remoteAnn("a1", day(1), "x")}
	e, db := testEngine(t, svc)

	_, err := e.Sync(context.Background(), "g1")
	require.NoError(t, err)

	// A remote edit after the watermark comes back as an update.
	svc.annotations["g1"] = append(svc.annotations["g1"], remoteAnn("a2", day(5)))
	svc.annotations["g1"][0] = remoteAnn("a1", day(6), "x", "new")

	res, err := e.Sync(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Updated)

	tags, _ := db.GetTags("a1")
	assert.Equal(t, []string{"new", "x"}, tags)

	wm, _ := db.Watermark("g1")
	assert.True(t, wm.Equal(day(6)))
}

func TestSyncZeroResultsKeepsWatermark(t *testing.T) {
	svc := newFakeService(200)
	e, db := testEngine(t, svc)
	require.NoError(t, db.SetWatermark("g1", day(10)))

	res, err := e.Sync(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)

	wm, _ := db.Watermark("g1")
	assert.True(t, wm.Equal(day(10)), "zero results must not move the watermark")
}

func TestSyncWatermarkMonotonic(t *testing.T) {
	svc := newFakeService(200)
	svc.annotations["g1"] = []models.Annotation{remoteAnn("a1", day(3))}
	e, db := testEngine(t, svc)

	var last time.Time
	for i := 0; i < 3; i++ {
		_, err := e.Sync(context.Background(), "g1")
		require.NoError(t, err)
		wm, _ := db.Watermark("g1")
		assert.False(t, wm.Before(last))
		last = wm
	}
}

func TestSyncFailureAbortsWithoutWatermarkAdvance(t *testing.T) {
	svc := newFakeService(1)
	svc.annotations["g1"] = []models.Annotation{
		remoteAnn("a1", day(1), "x"),
		remoteAnn("a2", day(2), "y"),
	}
	svc.listErrAfter = 2 // first page succeeds, second fails
	e, db := testEngine(t, svc)

	_, err := e.Sync(context.Background(), "g1")
	require.Error(t, err)

	wm, _ := db.Watermark("g1")
	assert.True(t, wm.IsZero(), "failed sync must not advance the watermark")

	// Re-running after the failure converges: Put is idempotent.
	svc.listErrAfter = 0
	res, err := e.Sync(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added, "a1 was already ingested by the aborted run")
	assert.Equal(t, 1, res.Updated)
}

func TestUpdateTagsRemoteFirst(t *testing.T) {
	svc := newFakeService(200)
	e, db := testEngine(t, svc)
	a := remoteAnn("a1", day(1), "x")
	require.NoError(t, db.Put(a))

	wb, err := e.UpdateTags(context.Background(), a, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, wb.Phase)
	assert.Equal(t, []string{"x", "y"}, svc.updatedTags["a1"])

	tags, _ := db.GetTags("a1")
	assert.Equal(t, []string{"x", "y"}, tags)
}

func TestUpdateTagsRemoteFailureLeavesIndexUntouched(t *testing.T) {
	svc := newFakeService(200)
	svc.updateErr = &apperr.RemoteError{Op: "update_tags", ID: "a1", Err: errors.New("rate limited")}
	e, db := testEngine(t, svc)
	a := remoteAnn("a1", day(1), "x")
	require.NoError(t, db.Put(a))

	wb, err := e.UpdateTags(context.Background(), a, []string{"x", "y"})
	require.Error(t, err)
	assert.Equal(t, PhaseNone, wb.Phase)

	tags, _ := db.GetTags("a1")
	assert.Equal(t, []string{"x"}, tags, "local index must not change when remote fails")
}

func TestUpdateTagsStripsReservedBucket(t *testing.T) {
	svc := newFakeService(200)
	e, db := testEngine(t, svc)
	a := remoteAnn("a1", day(1))
	require.NoError(t, db.Put(a))

	_, err := e.UpdateTags(context.Background(), a, []string{index.EmptyTag, "real"})
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, svc.updatedTags["a1"], "reserved key never reaches the service")
}

func TestAddAndRemoveTag(t *testing.T) {
	svc := newFakeService(200)
	e, db := testEngine(t, svc)
	a := remoteAnn("a1", day(1), "x")
	require.NoError(t, db.Put(a))

	changed, err := e.AddTag(context.Background(), a, "x")
	require.NoError(t, err)
	assert.False(t, changed, "tag already present")

	changed, err = e.AddTag(context.Background(), a, "y")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = e.RemoveTag(context.Background(), a, "missing")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = e.RemoveTag(context.Background(), a, "x")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{}, svc.updatedTags["a1"])
}

func TestDeleteRemoteFirst(t *testing.T) {
	svc := newFakeService(200)
	e, db := testEngine(t, svc)
	require.NoError(t, db.Put(remoteAnn("a1", day(1), "x")))

	wb, err := e.Delete(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, wb.Phase)
	assert.Equal(t, []string{"a1"}, svc.deleted)

	_, err = db.Get("a1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteRemoteFailureKeepsLocal(t *testing.T) {
	svc := newFakeService(200)
	svc.deleteErr = &apperr.RemoteError{Op: "delete", ID: "a1", Err: errors.New("denied")}
	e, db := testEngine(t, svc)
	require.NoError(t, db.Put(remoteAnn("a1", day(1), "x")))

	wb, err := e.Delete(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, PhaseNone, wb.Phase)

	_, err = db.Get("a1")
	assert.NoError(t, err, "annotation must survive a failed remote delete")
}

func TestFetchMatching(t *testing.T) {
	svc := newFakeService(200)
	svc.annotations["g1"] = []models.Annotation{
		remoteAnn("a1", day(1), "x"),
		remoteAnn("a2", day(2), "y"),
	}
	e, _ := testEngine(t, svc)

	got, err := e.FetchMatching(context.Background(), "g1", filter.Spec{Tags: []string{"x"}, Mode: filter.ModeAll})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestFetchMatchingInvalidSpec(t *testing.T) {
	svc := newFakeService(200)
	e, _ := testEngine(t, svc)

	_, err := e.FetchMatching(context.Background(), "g1", filter.Spec{Mode: "sometimes"})
	var invalid *apperr.InvalidSpecError
	assert.True(t, errors.As(err, &invalid), "want InvalidSpecError, got %v", err)
	assert.Zero(t, svc.listCalls, "invalid specs fail before any I/O")
}

func TestMove(t *testing.T) {
	svc := newFakeService(200)
	svc.annotations["old"] = []models.Annotation{
		remoteAnn("a1", day(1), "x"),
		remoteAnn("a2", day(2), "y"),
	}
	e, db := testEngine(t, svc)

	moved, err := e.Move(context.Background(), "old", "g1", filter.Spec{Tags: []string{"x"}, Mode: filter.ModeAll})
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Equal(t, "g1", svc.updatedGroups["a1"])

	// The target group was re-synced.
	got, err := db.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.Group)
}
