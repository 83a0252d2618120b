package papertrade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/cost"
	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/httpapi"
	"papertrade/internal/marketdata"
	"papertrade/internal/risk"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/internal/task"
)

type memBarStore struct {
	bars map[string][]domain.Bar
}

func (m *memBarStore) WriteBars(context.Context, domain.Venue, []domain.Bar) error { return nil }

func (m *memBarStore) ReadBars(_ context.Context, symbol string, _ domain.Venue, _, _ time.Time) ([]domain.Bar, error) {
	return m.bars[symbol], nil
}

func (m *memBarStore) ListSymbols(context.Context, domain.Venue) ([]string, error) {
	var out []string
	for s := range m.bars {
		out = append(out, s)
	}
	return out, nil
}

var _ store.BarStore = (*memBarStore)(nil)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	calc := cost.NewCalculator(cost.Schedule{})
	accounts := account.NewRegistry(calc)
	if _, err := accounts.Create("a1", 100000); err != nil {
		t.Fatal(err)
	}

	cfg := risk.DefaultConfig()
	cfg.CoolDownPeriod = 0
	gate, err := risk.NewGate(cfg, accounts, nil)
	if err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(accounts, gate, nil, log)

	registry := strategy.NewRegistry()
	bars := &memBarStore{bars: map[string][]domain.Bar{
		"600519": {{
			Symbol:    "600519",
			Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:      1500, High: 1520, Low: 1495, Close: 1510, Volume: 3000000,
		}},
	}}
	feed := marketdata.NewStaticFeed()
	feed.SetPrice("600519", 1512)

	srv := httpapi.NewServer(httpapi.Deps{
		Accounts:   accounts,
		Engine:     eng,
		Gate:       gate,
		Tasks:      task.NewManager(log),
		Backtester: strategy.NewBacktester(bars, registry, calc),
		Strategies: registry,
		Bars:       bars,
		Feed:       feed,
		Calc:       calc,
		Log:        log,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL)
}

func TestClientAccountLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	acct, err := client.CreateAccount(ctx, "a2", 50000)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acct.ID != "a2" || acct.Balance != 50000 {
		t.Errorf("created account = %+v, want id a2 balance 50000", acct)
	}

	got, err := client.GetAccount(ctx, "a2")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Available != 50000 {
		t.Errorf("Available = %v, want 50000", got.Available)
	}

	all, err := client.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListAccounts returned %d accounts, want 2", len(all))
	}
}

func TestClientGetAccountNotFound(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.GetAccount(context.Background(), "ghost"); err == nil {
		t.Fatal("GetAccount(ghost) should fail")
	}
}

func TestClientOrderRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	order, err := client.SubmitOrder(ctx, OrderRequest{
		AccountID: "a1",
		Symbol:    "600519",
		Venue:     "SSE",
		Direction: "long",
		Offset:    "open",
		Kind:      "limit",
		Price:     100,
		Volume:    100,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.Status != "filled" {
		t.Errorf("order status = %q, want filled", order.Status)
	}

	fetched, err := client.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if fetched.Symbol != "600519" || fetched.TradedVolume != 100 {
		t.Errorf("fetched order = %+v", fetched)
	}

	positions, err := client.GetPositions(ctx, "a1")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Volume != 100 {
		t.Errorf("positions = %+v, want one position of 100", positions)
	}

	trades, err := client.GetTrades(ctx, "a1")
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(trades) != 1 || trades[0].Price != 100 {
		t.Errorf("trades = %+v, want one trade at 100", trades)
	}

	// A filled order can no longer be cancelled.
	if err := client.CancelOrder(ctx, order.ID); err == nil {
		t.Error("CancelOrder on a filled order should fail")
	}
}

func TestClientSubmitOrderRejected(t *testing.T) {
	client := newTestClient(t)

	// Far beyond the account's buying power.
	_, err := client.SubmitOrder(context.Background(), OrderRequest{
		AccountID: "a1",
		Symbol:    "600519",
		Venue:     "SSE",
		Direction: "long",
		Offset:    "open",
		Kind:      "limit",
		Price:     10000,
		Volume:    100000,
	})
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("SubmitOrder error = %v, want *RejectionError", err)
	}
	if rej.OrderID == "" {
		t.Error("RejectionError should carry the rejected order's ID")
	}
}

func TestClientBarsAndQuotes(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	bars, err := client.GetBars(ctx, "600519", "SSE",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 1510 {
		t.Errorf("bars = %+v, want one bar closing at 1510", bars)
	}

	quotes, err := client.GetQuotes(ctx, []string{"600519"})
	if err != nil {
		t.Fatalf("GetQuotes: %v", err)
	}
	if quotes["600519"] != 1512 {
		t.Errorf("quote = %v, want 1512", quotes["600519"])
	}
}

func TestClientTaskLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	created, err := client.CreateTask(ctx, map[string]any{
		"task_type": "trading",
		"trade": map[string]any{
			"account_id": "a1",
			"symbol":     "600519",
			"venue":      "SSE",
			"direction":  "long",
			"offset":     "open",
			"kind":       "limit",
			"price":      100,
			"volume":     100,
		},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.Type != "trading" {
		t.Errorf("task type = %q, want trading", created.Type)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := client.GetTask(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if info.Status == "completed" {
			if len(info.Result) == 0 {
				t.Error("completed task should carry a result")
			}
			break
		}
		if info.Status == "failed" {
			t.Fatalf("task failed: %s", info.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("task did not complete, status %q", info.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
