// Package filter evaluates declarative predicates over annotations and
// their tag sets, independent of where they are stored.
package filter

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// Tag match modes.
const (
	ModeAll = "all"
	ModeAny = "any"
)

// Spec is an immutable filter description. Every field is optional; a
// zero Spec matches everything.
type Spec struct {
	// Half-open time window [From, Before), compared against Updated
	// when IncludeUpdated is set, Created otherwise.
	From           *time.Time `yaml:"from"`
	Before         *time.Time `yaml:"before"`
	IncludeUpdated bool       `yaml:"include_updated"`

	// Case-sensitive substring predicates.
	URI   string `yaml:"uri"`
	Quote string `yaml:"quote"`
	Text  string `yaml:"text"`
	// Any matches when the substring appears in quote, text, uri, or
	// any tag.
	Any string `yaml:"any"`

	// Tags must all (ModeAll) or at least one (ModeAny) be present.
	Tags        []string `yaml:"tags"`
	Mode        string   `yaml:"mode"`
	ExcludeTags []string `yaml:"exclude_tags"`

	// Scope restriction: page notes only, or annotations only.
	PageOnly       bool `yaml:"page_only"`
	AnnotationOnly bool `yaml:"annotation_only"`

	// Groups, when non-empty, is an allowlist of group ids.
	Groups []string `yaml:"groups"`

	// Not inverts the whole composed predicate.
	Not bool `yaml:"not"`
}

// Validate rejects malformed specs before any I/O.
func (s Spec) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Mode, validation.In(ModeAll, ModeAny)),
		validation.Field(&s.PageOnly, validation.By(func(any) error {
			if s.PageOnly && s.AnnotationOnly {
				return validation.NewError("validation_scope", "page_only and annotation_only are mutually exclusive")
			}
			return nil
		})),
	)
	if err != nil {
		return &apperr.InvalidSpecError{Kind: "filter", Err: err}
	}
	return nil
}

// Matches reports whether an annotation with the given tag set passes
// the spec. All present predicates are combined with logical AND; the
// result is inverted when Not is set.
func Matches(a models.Annotation, tags []string, s Spec) bool {
	return matchesPositive(a, tags, s) != s.Not
}

func matchesPositive(a models.Annotation, tags []string, s Spec) bool {
	if s.PageOnly && !a.IsPageNote {
		return false
	}
	if s.AnnotationOnly && a.IsPageNote {
		return false
	}

	if len(s.Groups) > 0 && !contains(s.Groups, a.Group) {
		return false
	}

	ts := a.Created
	if s.IncludeUpdated {
		ts = a.Updated
	}
	if s.From != nil && ts.Before(*s.From) {
		return false
	}
	if s.Before != nil && !ts.Before(*s.Before) {
		return false
	}

	if s.URI != "" && !strings.Contains(a.URI, s.URI) {
		return false
	}

	if len(s.Tags) > 0 {
		if s.Mode == ModeAny {
			hit := false
			for _, want := range s.Tags {
				if contains(tags, want) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		} else {
			for _, want := range s.Tags {
				if !contains(tags, want) {
					return false
				}
			}
		}
	}
	for _, banned := range s.ExcludeTags {
		if contains(tags, banned) {
			return false
		}
	}

	if s.Quote != "" && !strings.Contains(a.Quote, s.Quote) {
		return false
	}
	if s.Text != "" && !strings.Contains(a.Text, s.Text) {
		return false
	}

	if s.Any != "" {
		if !strings.Contains(a.Quote, s.Any) &&
			!strings.Contains(a.Text, s.Any) &&
			!strings.Contains(a.URI, s.Any) &&
			!anyContains(tags, s.Any) {
			return false
		}
	}

	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func anyContains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
