// Package dataservice fetches historical candles over the REST data API,
// outside any simulation session.
package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"simutrador-go/internal/protocol"
)

// maxPageSize is the server-side cap on candles per request.
const maxPageSize = 10000

// Query selects a candle range for one symbol.
type Query struct {
	Symbol    string
	Timeframe string
	Start     time.Time
	End       time.Time
	PageSize  int
}

// Page is one page of historical candles.
type Page struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Candles   []protocol.Candle `json:"candles"`
}

// Client talks to the trading-data REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	authHeader func(*http.Request)
}

// New builds a data client. withAuth, when non-nil, decorates each request
// with credentials.
func New(baseURL string, log zerolog.Logger, withAuth func(*http.Request)) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
		authHeader: withAuth,
	}
}

// FetchCandles retrieves one page of candles for q.Symbol.
func (c *Client) FetchCandles(ctx context.Context, q Query) (Page, error) {
	if strings.TrimSpace(q.Symbol) == "" {
		return Page{}, fmt.Errorf("dataservice: symbol is required")
	}

	size := q.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}

	params := url.Values{}
	if q.Timeframe != "" {
		params.Set("timeframe", q.Timeframe)
	}
	params.Set("page_size", strconv.Itoa(size))
	if !q.Start.IsZero() {
		params.Set("start_date", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		params.Set("end_date", q.End.UTC().Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("%s/trading-data/data/%s?%s", c.baseURL, url.PathEscape(q.Symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, err
	}
	if c.authHeader != nil {
		c.authHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("dataservice: fetch %s: %w", q.Symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("dataservice: fetch %s: unexpected status %d", q.Symbol, resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("dataservice: decode %s response: %w", q.Symbol, err)
	}
	if page.Symbol == "" {
		page.Symbol = q.Symbol
	}
	c.log.Debug().Str("symbol", page.Symbol).Int("candles", len(page.Candles)).Msg("fetched history page")
	return page, nil
}
