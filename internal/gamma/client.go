// Package gamma is a thin REST client for the public Gamma market
// metadata API. The validation tool uses it to cross-check indexed
// markets against what the upstream API reports.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

// Client is the REST client for the Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Market is the subset of Gamma market metadata the validator compares.
type Market struct {
	ID          string  `json:"id"`
	ConditionID string  `json:"conditionId"`
	Question    string  `json:"question"`
	Closed      bool    `json:"closed"`
	Volume      string  `json:"volume"`
	Outcomes    string  `json:"outcomes"`
	EndDate     string  `json:"endDate"`
	Liquidity   float64 `json:"liquidityNum,omitempty"`
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMarkets returns a paginated list of markets.
func (c *Client) GetMarkets(ctx context.Context, limit, offset int) ([]Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("gamma: get markets: %w", err)
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("gamma: decode markets: %w", err)
	}
	return markets, nil
}

// GetMarketByCondition looks a market up by its on-chain condition id.
func (c *Client) GetMarketByCondition(ctx context.Context, conditionID string) (*Market, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)

	body, err := c.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("gamma: get market %s: %w", conditionID, err)
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("gamma: decode market: %w", err)
	}
	if len(markets) == 0 {
		return nil, nil
	}
	return &markets[0], nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
