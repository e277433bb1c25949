// Package github lists the repositories and gists visible to an API
// token by walking the numbered pages of the GitHub web API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://api.github.com"

// Client issues listing requests against the GitHub API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(token string) *Client {
	return &Client{baseURL: DefaultBaseURL, token: token, client: http.DefaultClient}
}

// WithBaseURL points the client at a different API host. Used for
// GitHub Enterprise installations and by tests.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.client = client
	return c
}

// ListRepositories returns every repository the token can see, in API
// order. The endpoint also lists repositories the account merely
// collaborates on; callers narrow the result with Owned.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	return fetchAll[Repository](ctx, c, "/user/repos")
}

// ListGists returns every gist the token can see, in API order.
func (c *Client) ListGists(ctx context.Context) ([]Gist, error) {
	return fetchAll[Gist](ctx, c, "/gists")
}

// fetchAll walks the numbered pages of a listing endpoint starting at
// page 1 and stops at the first empty page. Only the page number is
// sent; the page size is whatever the server chose.
func fetchAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, err := fetchPage[T](ctx, c, path, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}

func fetchPage[T any](ctx context.Context, c *Client, path string, page int) ([]T, error) {
	url := fmt.Sprintf("%s%s?page=%d", c.baseURL, path, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := fmt.Sprintf("unsuccessful status code %d", resp.StatusCode)

		// GitHub error bodies carry a message field; fall back to the
		// raw body for anything else.
		var remote struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &remote) == nil && remote.Message != "" {
			msg += ": " + remote.Message
		} else if len(bytes.TrimSpace(body)) > 0 {
			msg += ": " + string(bytes.TrimSpace(body))
		}

		return nil, &APIError{URL: url, StatusCode: resp.StatusCode, Message: msg}
	}

	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &APIError{URL: url, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("unexpected response body: %s", bytes.TrimSpace(body))}
	}

	return items, nil
}

// APIError is returned when a listing request fails or returns a body
// that is not a listing. It aborts the run: without a complete listing
// there is nothing sensible to synchronize.
type APIError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("listing %s: %s", e.URL, e.Message)
}

// Ownable is satisfied by item types carrying their owner's login.
type Ownable interface {
	OwnerLogin() string
}

// Owned narrows items to the ones owned by login, preserving listing
// order. Matching is strict string equality; an item without owner
// metadata never matches.
func Owned[T Ownable](items []T, login string) []T {
	owned := make([]T, 0, len(items))
	for _, item := range items {
		if item.OwnerLogin() == login {
			owned = append(owned, item)
		}
	}
	return owned
}
