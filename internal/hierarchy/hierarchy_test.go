package hierarchy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

func ann(id string, tags ...string) models.Annotation {
	return models.Annotation{
		ID:      id,
		Created: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Updated: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		URI:     "https://example.com/" + id,
		Tags:    tags,
	}
}

func mdOpts() Options {
	return Options{Extension: "md", IndexName: "index"}
}

func pageByPath(t *testing.T, tree *Tree, path string) Page {
	t.Helper()
	for _, p := range tree.Pages {
		if p.Path == path {
			return p
		}
	}
	t.Fatalf("no page at %q, have %v", path, paths(tree))
	return Page{}
}

func paths(tree *Tree) []string {
	out := make([]string, len(tree.Pages))
	for i, p := range tree.Pages {
		out[i] = p.Path
	}
	return out
}

func TestEmptyHierarchySingleRootPage(t *testing.T) {
	tree, err := Build([]models.Annotation{ann("a1"), ann("a2")}, Spec{}, SortSpec{}, mdOpts())
	require.NoError(t, err)
	require.Len(t, tree.Pages, 1)
	assert.Equal(t, "index.md", tree.Pages[0].Path)
	assert.Len(t, tree.Pages[0].Annotations, 2)
}

func TestTagLevelMultiMembership(t *testing.T) {
	tree, err := Build(
		[]models.Annotation{ann("a1", "bee", "bee/honey")},
		Spec{Levels: []string{KeyTag}, NestedDelimiter: "/"},
		SortSpec{},
		mdOpts(),
	)
	require.NoError(t, err)
	require.Len(t, tree.Pages, 2)

	// Nested tag becomes a folder chain ending in a page.
	honey := pageByPath(t, tree, "bee/honey.md")
	require.Len(t, honey.Annotations, 1)
	assert.Equal(t, "a1", honey.Annotations[0].ID)

	// The plain tag keeps its own root-level page.
	bee := pageByPath(t, tree, "bee.md")
	require.Len(t, bee.Annotations, 1)
	assert.Equal(t, "a1", bee.Annotations[0].ID)
}

func TestUntaggedBucket(t *testing.T) {
	tree, err := Build(
		[]models.Annotation{ann("a1"), ann("a2", "bee")},
		Spec{Levels: []string{KeyTag}},
		SortSpec{},
		mdOpts(),
	)
	require.NoError(t, err)
	untagged := pageByPath(t, tree, "untagged.md")
	require.Len(t, untagged.Annotations, 1)
	assert.Equal(t, "a1", untagged.Annotations[0].ID)
}

func TestNestedFolderLevels(t *testing.T) {
	a := ann("a1", "bee")
	a.Title = "Hive Report"
	b := ann("a2", "bee")
	b.Title = "Hive Report"
	c := ann("a3", "wasp")
	c.Title = "Nest Notes"

	tree, err := Build(
		[]models.Annotation{a, b, c},
		Spec{Levels: []string{KeyTag, KeyTitle}},
		SortSpec{Keys: []string{KeyID}},
		mdOpts(),
	)
	require.NoError(t, err)

	hive := pageByPath(t, tree, "bee/Hive Report.md")
	require.Len(t, hive.Annotations, 2)
	assert.Equal(t, "a1", hive.Annotations[0].ID)
	assert.Equal(t, "a2", hive.Annotations[1].ID)

	pageByPath(t, tree, "wasp/Nest Notes.md")
}

func TestMissingLevelValueFallsIntoUnnamedBucket(t *testing.T) {
	a := ann("a1")
	a.Title = "" // no title
	tree, err := Build([]models.Annotation{a}, Spec{Levels: []string{KeyTitle}}, SortSpec{}, mdOpts())
	require.NoError(t, err)

	// The bucket must not share a name with the root index page, or
	// index generation would overwrite it.
	unnamed := pageByPath(t, tree, "unnamed.md")
	require.Len(t, unnamed.Annotations, 1)
	assert.Equal(t, "a1", unnamed.Annotations[0].ID)
}

func TestCollisionDisambiguation(t *testing.T) {
	a := ann("a1")
	a.Title = "A/B"
	b := ann("a2")
	b.Title = "A?B"

	tree, err := Build([]models.Annotation{a, b}, Spec{Levels: []string{KeyTitle}}, SortSpec{}, mdOpts())
	require.NoError(t, err)

	// Both sanitize to "AB"; both must survive under distinct paths.
	require.Len(t, tree.Pages, 2)
	assert.NotEqual(t, tree.Pages[0].Path, tree.Pages[1].Path)
	for _, p := range tree.Pages {
		assert.Contains(t, p.Path, "AB-")
	}

	require.Len(t, tree.Collisions, 1)
	assert.Equal(t, "AB", tree.Collisions[0].Path)
	assert.ElementsMatch(t, []string{"A/B", "A?B"}, tree.Collisions[0].Keys)
}

func TestDeterminism(t *testing.T) {
	anns := []models.Annotation{
		ann("a3", "zeta", "shared"),
		ann("a1", "alpha"),
		ann("a2", "shared"),
	}
	spec := Spec{Levels: []string{KeyTag}}
	sortSpec := SortSpec{Keys: []string{KeyUpdated, KeyID}}

	first, err := Build(anns, spec, sortSpec, mdOpts())
	require.NoError(t, err)
	// Reversed input, same logical set.
	reversed := []models.Annotation{anns[2], anns[1], anns[0]}
	second, err := Build(reversed, spec, sortSpec, mdOpts())
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	for i := range first.Pages {
		require.Equal(t, len(first.Pages[i].Annotations), len(second.Pages[i].Annotations))
		for j := range first.Pages[i].Annotations {
			assert.Equal(t, first.Pages[i].Annotations[j].ID, second.Pages[i].Annotations[j].ID)
		}
	}
	assert.Equal(t, first.Links, second.Links)
}

func TestCompositeSort(t *testing.T) {
	early := ann("b")
	early.Created = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	late := ann("a")
	late.Created = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	tied := ann("c")
	tied.Created = late.Created

	tree, err := Build(
		[]models.Annotation{tied, late, early},
		Spec{},
		SortSpec{Keys: []string{KeyCreated, KeyID}},
		mdOpts(),
	)
	require.NoError(t, err)
	got := tree.Pages[0].Annotations
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestLinksCoverAllPages(t *testing.T) {
	tree, err := Build(
		[]models.Annotation{ann("a1", "x"), ann("a2", "y")},
		Spec{Levels: []string{KeyTag}},
		SortSpec{},
		mdOpts(),
	)
	require.NoError(t, err)
	require.Len(t, tree.Links, len(tree.Pages))
	for i, p := range tree.Pages {
		assert.Equal(t, p.Path, tree.Links[i].RelativePath)
		assert.Equal(t, p.Name, tree.Links[i].Name)
	}
}

func TestNestedTagLinksUseLeafSegment(t *testing.T) {
	tree, err := Build(
		[]models.Annotation{ann("a1", "bee/honey")},
		Spec{Levels: []string{KeyTag}, NestedDelimiter: "/"},
		SortSpec{},
		mdOpts(),
	)
	require.NoError(t, err)
	require.Len(t, tree.Links, 1)
	assert.Equal(t, "bee/honey.md", tree.Links[0].RelativePath)
	assert.Equal(t, "honey", tree.Links[0].Name)
}

func TestInvalidSpecs(t *testing.T) {
	_, err := Build(nil, Spec{Levels: []string{"flavor"}}, SortSpec{}, mdOpts())
	assert.Error(t, err)

	_, err = Build(nil, Spec{}, SortSpec{Keys: []string{"flavor"}}, mdOpts())
	assert.Error(t, err)

	// Created/Updated sort fine but cannot group.
	_, err = Build(nil, Spec{Levels: []string{KeyCreated}}, SortSpec{}, mdOpts())
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "AB", Sanitize("A/B", 250))
	assert.Equal(t, "AB", Sanitize("A?B", 250))
	assert.Equal(t, "untitled", Sanitize("???", 250))
	assert.Equal(t, "trimmed", Sanitize("  trimmed. ", 250))
	assert.Equal(t, "abc", Sanitize("abcdef", 3))
}
