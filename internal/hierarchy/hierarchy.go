// Package hierarchy turns a filtered annotation set into a
// deterministic tree of folders and pages.
package hierarchy

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/checksum"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// Grouping and sort keys.
const (
	KeyTag       = "tag"
	KeyURI       = "uri"
	KeyBaseURI   = "base_uri"
	KeyTitle     = "title"
	KeyID        = "id"
	KeyGroup     = "group"
	KeyGroupName = "group_name"
	// Valid in SortSpec only.
	KeyCreated = "created"
	KeyUpdated = "updated"
)

var groupingKeys = map[string]bool{
	KeyTag: true, KeyURI: true, KeyBaseURI: true, KeyTitle: true,
	KeyID: true, KeyGroup: true, KeyGroupName: true,
}

var sortingKeys = map[string]bool{
	KeyTag: true, KeyURI: true, KeyBaseURI: true, KeyTitle: true,
	KeyID: true, KeyGroup: true, KeyGroupName: true,
	KeyCreated: true, KeyUpdated: true,
}

// untaggedBucket holds annotations with no tags; it mirrors the
// reserved empty-tag key of the index.
const untaggedBucket = "untagged"

// unnamedBucket holds annotations with no value for a non-tag level.
// It is distinct from the root index page name so the two never write
// to the same file.
const unnamedBucket = "unnamed"

// Spec is an ordered sequence of grouping levels. The last level names
// pages, every preceding level names a folder. Tag values are split
// into nested folder segments on NestedDelimiter when it is set.
type Spec struct {
	Levels          []string `yaml:"levels"`
	NestedDelimiter string   `yaml:"nested_delimiter"`
}

// Validate rejects unknown grouping keys before any I/O.
func (s Spec) Validate() error {
	for _, l := range s.Levels {
		if !groupingKeys[l] {
			return &apperr.InvalidSpecError{Kind: "hierarchy", Err: fmt.Errorf("unknown grouping key %q", l)}
		}
	}
	return nil
}

// SortSpec is a composite comparator applied within each page.
type SortSpec struct {
	Keys []string `yaml:"keys"`
}

// Validate rejects unknown sort keys before any I/O.
func (s SortSpec) Validate() error {
	for _, k := range s.Keys {
		if !sortingKeys[k] {
			return &apperr.InvalidSpecError{Kind: "sort", Err: fmt.Errorf("unknown sort key %q", k)}
		}
	}
	return nil
}

// Options controls naming of the produced tree.
type Options struct {
	Extension string // appended to page files, e.g. "md"
	IndexName string // name of the root index page
	MaxName   int    // maximum runes per path segment; 0 means the 250 default
}

func (o Options) maxName() int {
	if o.MaxName <= 0 {
		return 250
	}
	return o.MaxName
}

func (o Options) pageFile(name string) string {
	if o.Extension == "" {
		return name
	}
	return name + "." + o.Extension
}

// Page is the terminal grouping unit: a file holding an ordered list
// of annotations.
type Page struct {
	// Path is the sanitized path relative to the output root,
	// extension included.
	Path string
	// Name is the raw key value the page was grouped under.
	Name string
	// Annotations in SortSpec order.
	Annotations []models.Annotation
}

// Link points at a page from the root index.
type Link struct {
	Name         string
	RelativePath string
}

// Tree is the deterministic output of Build.
type Tree struct {
	Pages []Page
	// Links lists every page in path order, for index generation.
	Links []Link
	// Collisions reports sanitized-name clashes that were
	// disambiguated. The affected pages stay reachable.
	Collisions []*apperr.FilenameCollisionError
}

// Build groups, sorts, and lays out annotations. Given the same inputs
// it always produces the same tree, paths, and ordering.
func Build(annotations []models.Annotation, spec Spec, sortSpec SortSpec, opts Options) (*Tree, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := sortSpec.Validate(); err != nil {
		return nil, err
	}
	if opts.IndexName == "" {
		opts.IndexName = "index"
	}

	sorted := append([]models.Annotation(nil), annotations...)
	Sort(sorted, sortSpec)

	tree := &Tree{}
	if len(spec.Levels) == 0 {
		// Everything lands on the root page.
		tree.Pages = []Page{{
			Path:        opts.pageFile(opts.IndexName),
			Name:        opts.IndexName,
			Annotations: sorted,
		}}
	} else {
		recurse(tree, sorted, spec, opts, 0, "")
	}

	sort.Slice(tree.Pages, func(i, j int) bool { return tree.Pages[i].Path < tree.Pages[j].Path })
	for _, p := range tree.Pages {
		tree.Links = append(tree.Links, Link{Name: linkName(p.Path), RelativePath: p.Path})
	}
	return tree, nil
}

// linkName is the file stem of a page path: the last segment without
// the extension. A nested tag like "bee/honey" links as "honey".
func linkName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// recurse groups the annotations by the level at depth and descends.
// dir is the sanitized folder path accumulated so far.
func recurse(tree *Tree, annotations []models.Annotation, spec Spec, opts Options, depth int, dir string) {
	level := spec.Levels[depth]
	groups, order := groupByLevel(annotations, level)
	segsByRaw := resolveSegments(tree, order, level, spec, opts, dir)

	leaf := depth == len(spec.Levels)-1
	for _, raw := range order {
		segs := segsByRaw[raw]
		if leaf {
			folder := path.Join(dir, path.Join(segs[:len(segs)-1]...))
			tree.Pages = append(tree.Pages, Page{
				Path:        path.Join(folder, opts.pageFile(segs[len(segs)-1])),
				Name:        raw,
				Annotations: groups[raw],
			})
		} else {
			recurse(tree, groups[raw], spec, opts, depth+1, path.Join(dir, path.Join(segs...)))
		}
	}
}

// groupByLevel buckets annotations by their key values for one level.
// Tag levels are multi-valued: an annotation appears under each of its
// tags. Annotations with no value for the level fall into the untagged
// bucket (Tag) or the unnamed bucket (everything else); they are kept,
// never dropped. The returned order slice makes iteration
// deterministic.
func groupByLevel(annotations []models.Annotation, level string) (map[string][]models.Annotation, []string) {
	groups := make(map[string][]models.Annotation)
	var order []string

	for _, a := range annotations {
		for _, k := range keyValues(a, level) {
			if _, seen := groups[k]; !seen {
				order = append(order, k)
			}
			groups[k] = append(groups[k], a)
		}
	}
	sort.Strings(order)
	return groups, order
}

func keyValues(a models.Annotation, level string) []string {
	switch level {
	case KeyTag:
		if len(a.Tags) == 0 {
			return []string{untaggedBucket}
		}
		return a.Tags
	case KeyURI:
		return fallback(a.URI)
	case KeyBaseURI:
		return fallback(a.BaseURI())
	case KeyTitle:
		return fallback(a.Title)
	case KeyID:
		return fallback(a.ID)
	case KeyGroup:
		return fallback(a.Group)
	case KeyGroupName:
		return fallback(a.GroupName)
	}
	return fallback("")
}

func fallback(v string) []string {
	if v == "" {
		return []string{unnamedBucket}
	}
	return []string{v}
}

// resolveSegments sanitizes each raw key of one level into its path
// segment chain and disambiguates clashes. Two distinct raw keys whose
// chains sanitize identically all receive a short content-hash suffix
// on their final segment, so no page silently overwrites another; each
// clash is recorded once. Raw keys are processed in sorted order, so
// input order does not affect the result.
func resolveSegments(tree *Tree, order []string, level string, spec Spec, opts Options, dir string) map[string][]string {
	segsByRaw := make(map[string][]string, len(order))
	byPath := make(map[string][]string)
	for _, raw := range order {
		segs := rawSegments(raw, level, spec, opts)
		segsByRaw[raw] = segs
		joined := path.Join(segs...)
		byPath[joined] = append(byPath[joined], raw)
	}
	joinedPaths := make([]string, 0, len(byPath))
	for joined := range byPath {
		joinedPaths = append(joinedPaths, joined)
	}
	sort.Strings(joinedPaths)
	for _, joined := range joinedPaths {
		raws := byPath[joined]
		if len(raws) < 2 {
			continue
		}
		sort.Strings(raws)
		for _, raw := range raws {
			segs := segsByRaw[raw]
			segs[len(segs)-1] += "-" + checksum.Short(raw)
		}
		tree.Collisions = append(tree.Collisions, &apperr.FilenameCollisionError{
			Path: path.Join(dir, joined),
			Keys: raws,
		})
	}
	return segsByRaw
}

// rawSegments splits a raw key into sanitized path segments. Only tag
// values nest; every other key is a single segment.
func rawSegments(raw, level string, spec Spec, opts Options) []string {
	if level == KeyTag && spec.NestedDelimiter != "" && strings.Contains(raw, spec.NestedDelimiter) {
		parts := strings.Split(raw, spec.NestedDelimiter)
		segs := make([]string, 0, len(parts))
		for _, p := range parts {
			segs = append(segs, Sanitize(p, opts.maxName()))
		}
		return segs
	}
	return []string{Sanitize(raw, opts.maxName())}
}
