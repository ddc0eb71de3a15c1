// Package remote talks to the Hypothesis annotation service. It is the
// only component that crosses the network; everything it returns is
// already converted to domain types.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// DefaultBaseURL is the public Hypothesis API root.
const DefaultBaseURL = "https://api.hypothes.is/api"

// Service is the annotation-service contract consumed by the sync
// engine. List pages through annotations created or updated after
// updatedAfter; pageToken continues a listing and an empty returned
// token ends it.
type Service interface {
	List(ctx context.Context, group string, updatedAfter time.Time, pageToken string) ([]models.Annotation, string, error)
	UpdateTags(ctx context.Context, id string, tags []string) error
	Delete(ctx context.Context, id string) error
	UpdateGroup(ctx context.Context, id, group string) error
}

// Client implements Service over HTTP.
type Client struct {
	baseURL    string
	username   string
	token      string
	pageSize   int
	httpClient *http.Client
}

// Verify Client satisfies Service at compile time.
var _ Service = (*Client)(nil)

// NewClient builds a Client. baseURL defaults to the public API and
// pageSize to 200 when zero.
func NewClient(baseURL, username, token string, pageSize int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		token:    token,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// List fetches one page of annotations in a group, oldest update
// first. The returned token is the cursor for the next page; it is
// empty when the page was short, meaning the listing is complete.
func (c *Client) List(ctx context.Context, group string, updatedAfter time.Time, pageToken string) ([]models.Annotation, string, error) {
	q := url.Values{}
	q.Set("group", group)
	q.Set("user", c.username)
	q.Set("sort", "updated")
	q.Set("order", "asc")
	q.Set("limit", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("search_after", pageToken)
	} else if !updatedAfter.IsZero() {
		q.Set("search_after", updatedAfter.UTC().Format(time.RFC3339Nano))
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, "", remoteErr("list", "", err)
	}

	annotations := make([]models.Annotation, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		annotations = append(annotations, convert(row))
	}

	next := ""
	if len(resp.Rows) == c.pageSize {
		next = resp.Rows[len(resp.Rows)-1].Updated
	}
	return annotations, next, nil
}

// UpdateTags replaces the tag list of a remote annotation. An empty or
// nil list clears the remote tags.
func (c *Client) UpdateTags(ctx context.Context, id string, tags []string) error {
	body := tagsRequest{Tags: tags}
	if tags == nil {
		body.Tags = []string{}
	}
	if err := c.do(ctx, http.MethodPatch, "/annotations/"+url.PathEscape(id), body, nil); err != nil {
		return remoteErr("update_tags", id, err)
	}
	return nil
}

// Delete removes a remote annotation.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/annotations/"+url.PathEscape(id), nil, nil); err != nil {
		return remoteErr("delete", id, err)
	}
	return nil
}

// UpdateGroup moves a remote annotation to another group.
func (c *Client) UpdateGroup(ctx context.Context, id, group string) error {
	if err := c.do(ctx, http.MethodPatch, "/annotations/"+url.PathEscape(id), groupRequest{Group: group}, nil); err != nil {
		return remoteErr("update_group", id, err)
	}
	return nil
}

// httpError is a non-2xx response; it carries the status for the
// RemoteError taxonomy.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.detail)
}

// remoteErr wraps a call failure into the shared error taxonomy.
func remoteErr(op, id string, err error) *apperr.RemoteError {
	re := &apperr.RemoteError{Op: op, ID: id, Err: err}
	var he *httpError
	if errors.As(err, &he) {
		re.Status = he.status
	}
	return re
}

// do performs one authenticated API call, decoding the response into
// out when it is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpError{status: resp.StatusCode, detail: string(bytes.TrimSpace(detail))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
