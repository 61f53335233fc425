package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"pouch-go/internal/pouch"
)

const userAgent = "pouch/1.0"

// HTTPOrigin fetches assets over HTTP(S) relative to a base URL.
type HTTPOrigin struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPOrigin creates an origin rooted at baseURL. timeout bounds each
// request (30s when zero or negative). rps caps outgoing requests per
// second; zero or negative means unlimited.
func NewHTTPOrigin(baseURL string, timeout time.Duration, rps int) (*HTTPOrigin, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %s", baseURL)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	return &HTTPOrigin{
		base:    u,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

// Fetch retrieves the asset at path relative to the base URL.
func (o *HTTPOrigin) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	return o.fetch(ctx, path, false)
}

// FetchFresh retrieves path with a cache-busting query parameter and a
// no-cache header, so intermediate HTTP caches cannot serve a stale copy.
func (o *HTTPOrigin) FetchFresh(ctx context.Context, path string) (io.ReadCloser, error) {
	return o.fetch(ctx, path, true)
}

func (o *HTTPOrigin) fetch(ctx context.Context, path string, fresh bool) (io.ReadCloser, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := o.base.JoinPath(path)
	if fresh {
		q := u.Query()
		q.Set("t", strconv.FormatInt(time.Now().UnixNano(), 10))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if fresh {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", path, resp.Status)
	}

	return resp.Body, nil
}

// Compile-time check that HTTPOrigin implements pouch.Origin
var _ pouch.Origin = (*HTTPOrigin)(nil)
