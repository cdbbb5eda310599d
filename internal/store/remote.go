package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/snippet"
)

// remoteCacheSize bounds the memoization cache of a Remote store.
const remoteCacheSize = 256

// Remote looks snippets up over HTTP: GET {base}/snippets/{ref} returns a
// JSON snippet, 404 means not found, 403 means a restricted collection.
// Found snippets are memoized in an expiring LRU so repeated expansions do
// not hammer the service.
type Remote struct {
	base   string
	client *http.Client
	cache  *expirable.LRU[string, *snippet.Snippet]
}

// NewRemote creates a remote store for the given base URL. A nil client
// falls back to a default with a sane timeout.
func NewRemote(base string, client *http.Client, cacheTTL time.Duration) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{
		base:   strings.TrimRight(base, "/"),
		client: client,
		cache:  expirable.NewLRU[string, *snippet.Snippet](remoteCacheSize, nil, cacheTTL),
	}
}

// wireSnippet is the service's record shape. Older deployments send the
// body under "text" and the trigger under "name"; normalization folds both
// generations into the canonical snippet type.
type wireSnippet struct {
	ID           string         `json:"id"`
	Trigger      string         `json:"trigger"`
	Name         string         `json:"name"`
	Content      string         `json:"content"`
	Text         string         `json:"text"`
	Description  string         `json:"description"`
	Variables    []wireVariable `json:"variables"`
	Dependencies []string       `json:"dependencies"`
	Collection   string         `json:"collection"`
}

type wireVariable struct {
	Name    string  `json:"name"`
	Prompt  string  `json:"prompt"`
	Default *string `json:"default"`
}

// normalize converts a wire record into the canonical shape.
func (w *wireSnippet) normalize() *snippet.Snippet {
	s := &snippet.Snippet{
		ID:           w.ID,
		Trigger:      w.Trigger,
		Body:         w.Content,
		Description:  w.Description,
		Dependencies: w.Dependencies,
		Collection:   w.Collection,
	}
	if s.Trigger == "" {
		s.Trigger = w.Name
	}
	if s.Body == "" {
		s.Body = w.Text
	}
	for _, v := range w.Variables {
		out := &snippet.Variable{Name: v.Name, Prompt: v.Prompt}
		if v.Default != nil {
			out.Default = *v.Default
			out.HasDefault = true
		}
		s.Variables = append(s.Variables, out)
	}
	return s
}

// Lookup implements Store.
func (r *Remote) Lookup(ctx context.Context, ref string, collections []string) (*snippet.Snippet, error) {
	key := ref + "|" + strings.Join(collections, ",")
	if snip, ok := r.cache.Get(key); ok {
		return snip, nil
	}

	logger := ctxlog.FromContext(ctx)

	u := fmt.Sprintf("%s/snippets/%s", r.base, url.PathEscape(ref))
	if len(collections) > 0 {
		u += "?collections=" + url.QueryEscape(strings.Join(collections, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: r.base, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("Remote lookup response.", "ref", ref, "status", resp.Status)

	switch {
	case resp.StatusCode == http.StatusOK:
		var wire wireSnippet
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return nil, fmt.Errorf("failed to decode snippet %q: %w", ref, err)
		}
		snip := wire.normalize()
		r.cache.Add(key, snip)
		return snip, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusForbidden:
		parsed := snippet.ParseReference(ref)
		return nil, &PermissionError{Collection: parsed.Collection}
	default:
		return nil, &NetworkError{Endpoint: r.base, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

// Collections implements Store via GET {base}/collections.
func (r *Remote) Collections(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/collections", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: r.base, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Endpoint: r.base, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("failed to decode collections: %w", err)
	}
	return names, nil
}
