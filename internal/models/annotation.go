// Package models defines the domain types for gooseberry.
package models

import (
	"net/url"
	"time"
)

// Annotation is a remotely-stored highlight/comment record. The ID is
// assigned by the annotation service and immutable once created.
type Annotation struct {
	ID          string            `json:"id"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
	URI         string            `json:"uri"`
	Title       string            `json:"title,omitempty"`
	Text        string            `json:"text"`
	Highlight   []string          `json:"highlight,omitempty"`
	Quote       string            `json:"quote,omitempty"`
	User        string            `json:"user"`
	DisplayName string            `json:"display_name,omitempty"`
	Group       string            `json:"group"`
	GroupName   string            `json:"group_name,omitempty"`
	References  []string          `json:"references,omitempty"`
	IsPageNote  bool              `json:"is_page_note"`
	Tags        []string          `json:"tags,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
}

// BaseURI returns the scheme+host part of the annotation's URI. Falls
// back to the raw URI when it doesn't parse.
func (a *Annotation) BaseURI() string {
	u, err := url.Parse(a.URI)
	if err != nil || u.Scheme == "" {
		return a.URI
	}
	return u.Scheme + "://" + u.Host
}

// Incontext returns the "view in context" link when the service
// provided one, otherwise the annotation's URI.
func (a *Annotation) Incontext() string {
	if link, ok := a.Links["incontext"]; ok && link != "" {
		return link
	}
	return a.URI
}

// HasTag reports whether tag is present in the annotation's tag list.
func (a *Annotation) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WithTags returns a copy of the annotation carrying the given tag set.
func (a Annotation) WithTags(tags []string) Annotation {
	a.Tags = append([]string(nil), tags...)
	return a
}

// DedupeTags collapses duplicate tags in place, preserving first-seen
// display order.
func DedupeTags(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
