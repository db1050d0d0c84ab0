package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Requester performs rate limited GET requests against one upstream.
type Requester struct {
	source  string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

// NewRequester wraps client. rps <= 0 disables rate limiting.
func NewRequester(source string, client *http.Client, rps float64, timeout time.Duration) *Requester {
	c := http.Client{}
	if client != nil {
		c = *client
	}
	if timeout > 0 {
		c.Timeout = timeout
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &Requester{
		source:  source,
		client:  &c,
		limiter: rate.NewLimiter(limit, 1),
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "portfolio-sync/1.0",
		},
	}
}

// Get returns the body and status code. Only transport problems are errors;
// interpreting the status is left to the caller.
func (r *Requester) Get(ctx context.Context, url string) ([]byte, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s rate limit wait: %w", r.source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %w: %w", r.source, ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %w: read body: %w", r.source, ErrNetwork, err)
	}
	return body, resp.StatusCode, nil
}
