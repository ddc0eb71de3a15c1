package remote

import (
	"strings"
	"time"

	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// searchResponse is the raw response of the search endpoint.
type searchResponse struct {
	Rows  []apiAnnotation `json:"rows"`
	Total int             `json:"total"`
}

// apiAnnotation is the wire shape of an annotation.
type apiAnnotation struct {
	ID         string            `json:"id"`
	Created    string            `json:"created"`
	Updated    string            `json:"updated"`
	URI        string            `json:"uri"`
	Text       string            `json:"text"`
	Tags       []string          `json:"tags"`
	User       string            `json:"user"`
	Group      string            `json:"group"`
	References []string          `json:"references"`
	Links      map[string]string `json:"links"`
	UserInfo   *apiUserInfo      `json:"user_info"`
	Document   *apiDocument      `json:"document"`
	Targets    []apiTarget       `json:"target"`
}

type apiUserInfo struct {
	DisplayName string `json:"display_name"`
}

type apiDocument struct {
	Title []string `json:"title"`
}

type apiTarget struct {
	Source    string        `json:"source"`
	Selectors []apiSelector `json:"selector"`
}

type apiSelector struct {
	Type  string `json:"type"`
	Exact string `json:"exact"`
}

// tagsRequest replaces an annotation's tag list. The tags key must
// always be present, even for an empty list; dropping it would leave
// the remote tags untouched.
type tagsRequest struct {
	Tags []string `json:"tags"`
}

// groupRequest moves an annotation to another group.
type groupRequest struct {
	Group string `json:"group"`
}

// convert maps a wire annotation onto the domain type. Timestamps
// arrive as RFC 3339; unparsable ones are left at their zero value
// rather than failing the whole page.
func convert(w apiAnnotation) models.Annotation {
	a := models.Annotation{
		ID:         w.ID,
		URI:        w.URI,
		Text:       w.Text,
		Tags:       models.DedupeTags(w.Tags),
		User:       w.User,
		Group:      w.Group,
		References: w.References,
		Links:      w.Links,
	}
	if t, err := time.Parse(time.RFC3339Nano, w.Created); err == nil {
		a.Created = t
	}
	if t, err := time.Parse(time.RFC3339Nano, w.Updated); err == nil {
		a.Updated = t
	}
	if w.UserInfo != nil {
		a.DisplayName = w.UserInfo.DisplayName
	}
	if w.Document != nil && len(w.Document.Title) > 0 {
		a.Title = w.Document.Title[0]
	}
	for _, target := range w.Targets {
		for _, sel := range target.Selectors {
			if sel.Type == "TextQuoteSelector" && sel.Exact != "" {
				a.Highlight = append(a.Highlight, sel.Exact)
			}
		}
	}
	a.Quote = strings.Join(a.Highlight, " ")
	// A note with no highlighted quote annotates the page itself.
	a.IsPageNote = len(a.Highlight) == 0
	return a
}
