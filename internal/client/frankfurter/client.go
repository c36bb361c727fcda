package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Client reads ECB reference rates from a Frankfurter-compatible API.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

type Rates struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://api.frankfurter.app"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Latest returns the most recent rates from base into the target currencies.
func (c *Client) Latest(ctx context.Context, base string, to ...string) (*Rates, error) {
	return c.On(ctx, "latest", base, to...)
}

// On returns rates for a YYYY-MM-DD date. Non-business days resolve to the prior fixing.
func (c *Client) On(ctx context.Context, date, base string, to ...string) (*Rates, error) {
	if base == "" {
		return nil, fmt.Errorf("base currency is required")
	}
	query := url.Values{}
	query.Set("from", strings.ToUpper(base))
	if len(to) > 0 {
		query.Set("to", strings.ToUpper(strings.Join(to, ",")))
	}
	body, err := c.doRequest(ctx, "/"+date, query)
	if err != nil {
		return nil, err
	}
	var out Rates
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	return &out, nil
}
