package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxPageBodySize caps how much of one response body is decoded.
const maxPageBodySize = 4 << 20 // 4MB

// connection pooling limits to prevent resource exhaustion when watching many feeds
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

const (
	// itemsPerPage is the page size requested from the activity API.
	itemsPerPage = 100

	// maxPagesPerFetch bounds pagination within a single poll. The events
	// API itself only retains a bounded window of history, so a boundary
	// that cannot be found within this many pages has aged out.
	maxPagesPerFetch = 10

	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "repowatch"
)

// Client performs conditional fetches against a feed endpoint.
//
// Client holds the shared [Budget] and updates it from rate-limit response
// headers on every call, success or failure, whenever that metadata is
// present. Request timeouts are applied per call via context; response
// bodies are size-limited.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	budget     *Budget
	timeout    time.Duration
}

// Fetcher is the interface [Poller] consumes.
//
// [Client] is the production implementation; tests substitute scripted
// fetchers to drive the poller state machine deterministically.
type Fetcher interface {
	Fetch(ctx context.Context, src Source, cursor Cursor) (Page, error)
}

// NewClient creates a feed [Client].
//
// Parameters:
//   - baseURL: API root; empty means the public default
//   - token: bearer credential, empty for anonymous access
//   - timeout: per-request timeout; zero means 10 seconds
//   - budget: shared rate budget updated from response headers (required)
//
// The client is configured with connection pooling limits so that a process
// watching many feeds reuses connections instead of exhausting them.
func NewClient(baseURL, token string, timeout time.Duration, budget *Budget) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			// no global timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		budget:  budget,
		timeout: timeout,
	}
}

// Fetch performs one conditional fetch of the feed identified by src.
//
// The supplied cursor's validator is presented so the server can answer
// "nothing new" cheaply with a 304. On a 200, pagination is followed via the
// Link header until the cursor's boundary item is found (or the page cap is
// reached), everything at or before the boundary is cut, and the remaining
// items are returned oldest to newest together with a new cursor.
//
// The shared budget is updated from rate-limit headers on every response.
// Failures are returned as a [*FetchError] classifying how to react.
func (c *Client) Fetch(ctx context.Context, src Source, cursor Cursor) (Page, error) {
	next := fmt.Sprintf("%s/repos/%s/%s/events?per_page=%d",
		c.baseURL, url.PathEscape(src.Owner), url.PathEscape(src.Name), itemsPerPage)

	var (
		newest   []Item // accumulated newest-first
		etag     string
		boundary = cursor.LastID != ""
		found    = false
	)

	for page := 0; next != "" && page < maxPagesPerFetch; page++ {
		resp, err := c.get(ctx, next, page == 0, cursor.ETag)
		if err != nil {
			return Page{}, &FetchError{Kind: KindTransient, Err: err}
		}

		c.observe(resp)

		if page == 0 && resp.StatusCode == http.StatusNotModified {
			_ = resp.Body.Close()
			return Page{Unchanged: true, Cursor: cursor}, nil
		}

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return Page{}, c.classify(resp)
		}

		if page == 0 {
			etag = resp.Header.Get("ETag")
		}

		items, err := decodeItems(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return Page{}, &FetchError{Kind: KindTransient, Err: fmt.Errorf("decode page: %w", err)}
		}

		for _, item := range items {
			if boundary && item.ID == cursor.LastID {
				found = true
				break
			}
			newest = append(newest, item)
		}
		if !boundary || found {
			break
		}
		next = nextLink(resp.Header.Get("Link"))
	}

	if len(newest) == 0 {
		// a 200 whose items all fall at or before the boundary carries
		// nothing new; keep the boundary, refresh the validator
		return Page{Unchanged: true, Cursor: Cursor{ETag: etag, LastID: cursor.LastID}}, nil
	}

	// server order is newest-first; delivery order is oldest-first
	reverse(newest)

	return Page{
		Items:  newest,
		Cursor: Cursor{ETag: etag, LastID: newest[len(newest)-1].ID},
	}, nil
}

// get issues one HTTP request. The conditional validator is only sent on the
// first page of a poll; 304 has no meaning for continuation pages.
func (c *Client) get(ctx context.Context, rawURL string, conditional bool, etag string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if conditional && etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// observe feeds rate-limit response headers into the shared budget.
func (c *Client) observe(resp *http.Response) {
	raw := resp.Header.Get("X-RateLimit-Remaining")
	if raw == "" {
		return
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return
	}

	var reset time.Time
	if raw := resp.Header.Get("X-RateLimit-Reset"); raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			reset = time.Unix(unix, 0)
		}
	}

	c.budget.Observe(remaining, reset)
}

// classify maps a non-200 response to a [*FetchError].
func (c *Client) classify(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests:
		return &FetchError{Kind: KindRateLimited, StatusCode: code}
	case code == http.StatusForbidden && c.budget.Exhausted():
		// the service signals budget exhaustion with 403 + remaining: 0
		return &FetchError{Kind: KindRateLimited, StatusCode: code}
	case code >= 500:
		return &FetchError{Kind: KindTransient, StatusCode: code}
	default:
		// 401, 403 (non-budget), 404, 410, 422: permanent for this feed
		return &FetchError{Kind: KindFatal, StatusCode: code}
	}
}

// wireItem is the on-the-wire shape of one activity event.
type wireItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor struct {
		Login string `json:"login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// decodeItems decodes one page body into items, preserving server order.
func decodeItems(body io.Reader) ([]Item, error) {
	var wire []wireItem
	if err := json.NewDecoder(io.LimitReader(body, maxPageBodySize)).Decode(&wire); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(wire))
	for _, w := range wire {
		items = append(items, Item{
			ID:        w.ID,
			Type:      w.Type,
			Actor:     w.Actor.Login,
			Repo:      w.Repo.Name,
			CreatedAt: w.CreatedAt,
			Payload:   w.Payload,
		})
	}
	return items, nil
}

// nextLink extracts the rel="next" target from a Link header.
// Returns "" when there is no next page.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		for _, param := range section[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

// reverse flips items in place.
func reverse(items []Item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
