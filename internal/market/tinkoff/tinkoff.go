package tinkoff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/market"
)

const source = "tinkoff"

// statusOk is the envelope status of a successful response.
const statusOk = "Ok"

type Params struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
	CacheDir          string
	CacheTTL          time.Duration
	// HTTPClient is the base transport; the bearer token is added on top.
	HTTPClient *http.Client
}

// Client resolves prices through the Tinkoff Invest OpenAPI (REST).
type Client struct {
	baseURL string
	req     *market.Requester
	figis   *market.Cache
}

var _ interfaces.PriceSource = (*Client)(nil)

func New(p Params) *Client {
	base := p.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: p.Token,
		TokenType:   "Bearer",
	}))

	return &Client{
		baseURL: strings.TrimRight(p.BaseURL, "/"),
		req:     market.NewRequester(source, authed, p.RequestsPerSecond, p.Timeout),
		figis:   market.NewCache(p.CacheDir, p.CacheTTL),
	}
}

type envelope struct {
	TrackingID string          `json:"trackingId"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload"`
}

type instrument struct {
	FIGI     string `json:"figi"`
	Ticker   string `json:"ticker"`
	Currency string `json:"currency"`
	Name     string `json:"name"`
}

type searchPayload struct {
	Instruments []instrument `json:"instruments"`
	Total       int          `json:"total"`
}

type orderbookPayload struct {
	FIGI      string           `json:"figi"`
	LastPrice *decimal.Decimal `json:"lastPrice"`
}

// FIGI returns the instrument id of ticker. Results are cached.
func (c *Client) FIGI(ctx context.Context, ticker string) (string, error) {
	if ticker == "" {
		return "", fmt.Errorf("%w: empty ticker", market.ErrMalformed)
	}
	b, err := c.figis.GetOrFetch(ticker, func() ([]byte, error) {
		var p searchPayload
		q := url.Values{"ticker": {ticker}}
		if err := c.call(ctx, "/market/search/by-ticker?"+q.Encode(), &p); err != nil {
			return nil, err
		}
		if len(p.Instruments) == 0 {
			return nil, market.ErrNotFound
		}
		if p.Instruments[0].FIGI == "" {
			return nil, fmt.Errorf("%w: instrument without figi", market.ErrMalformed)
		}
		return []byte(p.Instruments[0].FIGI), nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", ticker, err)
	}
	return string(b), nil
}

// PruneCache drops expired FIGI lookups from memory and the cache directory.
func (c *Client) PruneCache() error {
	return c.figis.CleanupExpired()
}

// LastPrice resolves ticker to a FIGI, then reads the last price from the order book.
func (c *Client) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	figi, err := c.FIGI(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}

	var p orderbookPayload
	q := url.Values{"figi": {figi}, "depth": {"1"}}
	if err := c.call(ctx, "/market/orderbook?"+q.Encode(), &p); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, err)
	}
	if p.LastPrice == nil {
		return decimal.Zero, fmt.Errorf("%w: %s: orderbook without lastPrice", market.ErrMalformed, ticker)
	}
	return *p.LastPrice, nil
}

// call performs a GET and decodes the envelope payload into out.
func (c *Client) call(ctx context.Context, path string, out any) error {
	body, code, err := c.req.Get(ctx, c.baseURL+path)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if code >= http.StatusMultipleChoices {
			return &market.APIError{Source: source, Status: http.StatusText(code), Code: code, Payload: string(body)}
		}
		return fmt.Errorf("%w: %s: %v", market.ErrMalformed, path, err)
	}
	if env.Status != statusOk || code >= http.StatusMultipleChoices {
		status := env.Status
		if status == "" {
			status = http.StatusText(code)
		}
		return &market.APIError{Source: source, Status: status, Code: code, Payload: string(body)}
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s: empty payload", market.ErrMalformed, path)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("%w: %s: %v", market.ErrMalformed, path, err)
	}
	return nil
}
