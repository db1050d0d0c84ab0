package fxrates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/market"
)

const source = "fxrates"

type Params struct {
	BaseURL           string
	AccessKey         string
	Base              string // currency every rate is expressed in
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client reads rates from an exchangeratesapi.io compatible endpoint.
type Client struct {
	baseURL   string
	accessKey string
	base      string
	req       *market.Requester
}

var _ interfaces.RateSource = (*Client)(nil)

func New(p Params) *Client {
	return &Client{
		baseURL:   strings.TrimRight(p.BaseURL, "/"),
		accessKey: p.AccessKey,
		base:      strings.ToUpper(p.Base),
		req:       market.NewRequester(source, p.HTTPClient, p.RequestsPerSecond, p.Timeout),
	}
}

// Rate returns how many base units one unit of currency is worth.
func (c *Client) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		return decimal.Zero, fmt.Errorf("%w: empty currency", market.ErrMalformed)
	}
	if cur == c.base {
		return decimal.NewFromInt(1), nil
	}

	q := url.Values{"base": {cur}, "symbols": {c.base}}
	if c.accessKey != "" {
		q.Set("access_key", c.accessKey)
	}
	body, code, err := c.req.Get(ctx, c.baseURL+"/latest?"+q.Encode())
	if err != nil {
		return decimal.Zero, err
	}

	var obj any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		if code >= http.StatusMultipleChoices {
			return decimal.Zero, &market.APIError{Source: source, Status: http.StatusText(code), Code: code, Payload: string(body)}
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %v", market.ErrMalformed, cur, err)
	}

	if status, failed := upstreamFailure(obj); failed || code >= http.StatusMultipleChoices {
		if status == "" {
			status = http.StatusText(code)
		}
		return decimal.Zero, &market.APIError{Source: source, Status: status, Code: code, Payload: string(body)}
	}

	path := "$.rates." + c.base
	val, err := jsonpath.Get(path, obj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %s: %v", market.ErrMalformed, cur, path, err)
	}
	rate, err := toDecimal(val)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: rate %v", market.ErrMalformed, cur, val)
	}
	return rate, nil
}

// upstreamFailure detects both error shapes the API has used:
// {"success":false,"error":{"type":"..."}} and {"error":"..."}.
func upstreamFailure(obj any) (string, bool) {
	m, ok := obj.(map[string]any)
	if !ok {
		return "", false
	}
	status := ""
	switch e := m["error"].(type) {
	case string:
		status = e
	case map[string]any:
		if t, ok := e["type"].(string); ok {
			status = t
		} else {
			status = "error"
		}
	}
	if success, ok := m["success"].(bool); ok && !success && status == "" {
		status = "unsuccessful"
	}
	return status, status != ""
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unexpected %T", v)
	}
}
