// Package papertrade provides a Go SDK for the papertrade-server REST API.
// Response types mirror the server's JSON payloads so callers do not need
// access to the server's internal packages.
package papertrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running papertrade-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// Account is a snapshot of a simulated account's funds.
type Account struct {
	ID             string  `json:"account_id"`
	InitialBalance float64 `json:"initial_balance"`
	Balance        float64 `json:"balance"`
	Available      float64 `json:"available"`
	Frozen         float64 `json:"frozen"`
	MarketValue    float64 `json:"market_value"`
	TotalAsset     float64 `json:"total_asset"`
	RealizedPnL    float64 `json:"realized_pnl"`
	CommissionPaid float64 `json:"commission_paid"`
	PositionCount  int     `json:"position_count"`
}

// Position is a snapshot of one open position.
type Position struct {
	Symbol       string  `json:"symbol"`
	Venue        string  `json:"venue"`
	Volume       int64   `json:"volume"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	CostBasis    float64 `json:"cost_basis"`
	Profit       float64 `json:"profit"`
	ProfitRatio  float64 `json:"profit_ratio"`
}

// Order is an order record as returned by the server.
type Order struct {
	ID           string    `json:"order_id"`
	AccountID    string    `json:"account_id"`
	Symbol       string    `json:"symbol"`
	Venue        string    `json:"venue"`
	Direction    string    `json:"direction"`
	Offset       string    `json:"offset"`
	Kind         string    `json:"kind"`
	Price        float64   `json:"price"`
	Volume       int64     `json:"volume"`
	TradedVolume int64     `json:"traded_volume"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Trade is a fill record.
type Trade struct {
	ID         string    `json:"trade_id"`
	OrderID    string    `json:"order_id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Venue      string    `json:"venue"`
	Direction  string    `json:"direction"`
	Offset     string    `json:"offset"`
	Price      float64   `json:"price"`
	Volume     int64     `json:"volume"`
	Commission float64   `json:"commission"`
	Profit     float64   `json:"profit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bar is a daily OHLCV bar.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// OrderRequest is the payload for submitting an order.
type OrderRequest struct {
	AccountID string  `json:"account_id"`
	Symbol    string  `json:"symbol"`
	Venue     string  `json:"venue"`
	Direction string  `json:"direction"`
	Offset    string  `json:"offset"`
	Kind      string  `json:"kind"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
}

// Task describes a background task's status.
type Task struct {
	ID        string          `json:"task_id"`
	Type      string          `json:"task_type"`
	Status    string          `json:"status"`
	Progress  float64         `json:"progress"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RejectionError is returned by SubmitOrder when the order was rejected by
// the pre-trade risk checks. The order exists on the server in rejected
// state under OrderID.
type RejectionError struct {
	OrderID string
	Reason  string
}

func (e *RejectionError) Error() string { return e.Reason }

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// CreateAccount creates a new simulated account.
func (c *Client) CreateAccount(ctx context.Context, id string, initialBalance float64) (*Account, error) {
	body := map[string]any{"account_id": id, "initial_balance": initialBalance}
	var acct Account
	if err := c.post(ctx, "/api/accounts", body, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetAccount retrieves an account snapshot.
func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	var acct Account
	if err := c.get(ctx, "/api/accounts/"+url.PathEscape(id), &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// ListAccounts retrieves snapshots of all accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var resp struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.get(ctx, "/api/accounts", &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetPositions retrieves an account's open positions.
func (c *Client) GetPositions(ctx context.Context, accountID string) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/api/accounts/"+url.PathEscape(accountID)+"/positions", &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetTrades retrieves an account's fills.
func (c *Client) GetTrades(ctx context.Context, accountID string) ([]Trade, error) {
	var resp struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, "/api/accounts/"+url.PathEscape(accountID)+"/trades", &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// SubmitOrder submits an order. A risk rejection is reported as a
// *RejectionError; other failures as plain errors.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var raw struct {
		Order
		Err string `json:"error"`
	}
	if err := c.post(ctx, "/api/orders", req, &raw); err != nil {
		return nil, err
	}
	if raw.Err != "" {
		return nil, &RejectionError{OrderID: raw.ID, Reason: raw.Err}
	}
	order := raw.Order
	return &order, nil
}

// GetOrder retrieves an order by ID.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var order Order
	if err := c.get(ctx, "/api/orders/"+url.PathEscape(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an active order.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(id), nil, nil)
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// GetBars retrieves daily bars for a symbol over [start, end].
func (c *Client) GetBars(ctx context.Context, symbol, venue string, start, end time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("venue", venue)
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	var resp struct {
		Bars []Bar `json:"bars"`
	}
	if err := c.get(ctx, "/api/bars/"+url.PathEscape(symbol)+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Bars, nil
}

// GetQuotes retrieves the latest prices for the given symbols.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	var resp struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := c.get(ctx, "/api/quotes?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Prices, nil
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// CreateTask starts a background task. The payload must carry a task_type
// field plus the matching params block, mirroring POST /api/tasks.
func (c *Client) CreateTask(ctx context.Context, payload any) (*Task, error) {
	var t Task
	if err := c.post(ctx, "/api/tasks", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask retrieves a task's status and result.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.get(ctx, "/api/tasks/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// StopTask requests cooperative cancellation of a running task.
func (c *Client) StopTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/stop", nil, nil)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}
