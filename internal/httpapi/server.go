// Package httpapi exposes the trading platform over REST: accounts, orders,
// risk limits, market data, and background tasks.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/cost"
	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/marketdata"
	"papertrade/internal/risk"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/internal/task"
)

// Server serves the papertrade HTTP API.
type Server struct {
	accounts   *account.Registry
	engine     *engine.Engine
	gate       *risk.Gate
	tasks      *task.Manager
	backtester *strategy.Backtester
	strategies *strategy.Registry
	bars       store.BarStore
	feed       marketdata.PriceFeed
	calc       *cost.Calculator
	log        *slog.Logger
}

// Deps bundles the server's collaborators. All fields are required except
// Feed, which may be nil when no market data source is configured.
type Deps struct {
	Accounts   *account.Registry
	Engine     *engine.Engine
	Gate       *risk.Gate
	Tasks      *task.Manager
	Backtester *strategy.Backtester
	Strategies *strategy.Registry
	Bars       store.BarStore
	Feed       marketdata.PriceFeed
	Calc       *cost.Calculator
	Log        *slog.Logger
}

// NewServer creates a Server from its dependencies.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		accounts:   d.Accounts,
		engine:     d.Engine,
		gate:       d.Gate,
		tasks:      d.Tasks,
		backtester: d.Backtester,
		strategies: d.Strategies,
		bars:       d.Bars,
		feed:       d.Feed,
		calc:       d.Calc,
		log:        log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleRemoveAccount)
	mux.HandleFunc("GET /api/accounts/{id}/positions", s.handlePositions)
	mux.HandleFunc("GET /api/accounts/{id}/orders", s.handleOrders)
	mux.HandleFunc("GET /api/accounts/{id}/trades", s.handleTrades)
	mux.HandleFunc("GET /api/accounts/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /api/accounts/{id}/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/accounts/{id}/withdraw", s.handleWithdraw)

	mux.HandleFunc("POST /api/orders", s.handleSubmitOrder)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)

	mux.HandleFunc("GET /api/risk/limits", s.handleGetRiskLimits)
	mux.HandleFunc("PUT /api/risk/limits", s.handleSetRiskLimits)
	mux.HandleFunc("GET /api/accounts/{id}/risk", s.handlePortfolioRisk)
	mux.HandleFunc("GET /api/accounts/{id}/risk/report", s.handleRiskReport)

	mux.HandleFunc("POST /api/cost/estimate", s.handleCostEstimate)

	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)

	mux.HandleFunc("GET /api/symbols", s.handleListSymbols)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("GET /api/quotes", s.handleQuotes)

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks/{id}/stop", s.handleStopTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID             string  `json:"account_id"`
		InitialBalance float64 `json:"initial_balance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	acct, err := s.accounts.Create(req.ID, req.InitialBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, acct.Snapshot())
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	ids := s.accounts.List()
	infos := make([]account.Info, 0, len(ids))
	for _, id := range ids {
		if acct := s.accounts.Get(id); acct != nil {
			infos = append(infos, acct.Snapshot())
		}
	}
	writeJSON(w, map[string]any{"accounts": infos})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) *account.Account {
	id := r.PathValue("id")
	acct := s.accounts.Get(id)
	if acct == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("account %q not found", id))
		return nil
	}
	return acct
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, acct.Snapshot())
	}
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	if !s.accounts.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, map[string]any{"positions": acct.Positions()})
	}
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, map[string]any{"orders": s.engine.Orders(acct.ID())})
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, map[string]any{"trades": s.engine.Trades(acct.ID())})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, map[string]any{"history": acct.History()})
	}
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleCashFlow(w, r, func(acct *account.Account, amount float64) error {
		return acct.Deposit(amount)
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCashFlow(w, r, func(acct *account.Account, amount float64) error {
		return acct.Withdraw(amount)
	})
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request, apply func(*account.Account, float64) error) {
	acct := s.getAccount(w, r)
	if acct == nil {
		return
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := apply(acct, req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, acct.Snapshot())
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeBody(w, r, &req) {
		return
	}

	orderID, err := s.engine.Submit(req)
	if err != nil {
		if errors.Is(err, engine.ErrRejected) {
			// The order exists in rejected state; report both.
			writeJSON(w, map[string]any{"order_id": orderID, "error": err.Error()})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := s.engine.Order(orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.Order(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Cancel(r.PathValue("id")) {
		writeError(w, http.StatusConflict, "order not found or already terminal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Risk
// ---------------------------------------------------------------------------

func (s *Server) handleGetRiskLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.gate.Config())
}

func (s *Server) handleSetRiskLimits(w http.ResponseWriter, r *http.Request) {
	cfg := s.gate.Config()
	if !decodeBody(w, r, &cfg) {
		return
	}
	if err := s.gate.SetConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, s.gate.Config())
}

func (s *Server) handlePortfolioRisk(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, s.gate.CalculatePortfolioRisk(acct.ID()))
	}
}

func (s *Server) handleRiskReport(w http.ResponseWriter, r *http.Request) {
	if acct := s.getAccount(w, r); acct != nil {
		writeJSON(w, s.gate.GenerateReport(acct.ID()))
	}
}

// ---------------------------------------------------------------------------
// Costs and strategies
// ---------------------------------------------------------------------------

func (s *Server) handleCostEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price     float64          `json:"price"`
		Volume    int64            `json:"volume"`
		Direction domain.Direction `json:"direction"`
		Offset    domain.Offset    `json:"offset"`
		Venue     domain.Venue     `json:"venue"`
		RoundTrip bool             `json:"round_trip"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Price <= 0 || req.Volume <= 0 {
		writeError(w, http.StatusBadRequest, "price and volume must be positive")
		return
	}
	if req.RoundTrip {
		writeJSON(w, s.calc.CalculateRoundTrip(req.Price, req.Volume, req.Venue))
		return
	}
	writeJSON(w, s.calc.Calculate(req.Price, req.Volume, req.Direction, req.Offset, req.Venue))
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"strategies": s.strategies.List()})
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func parseVenue(r *http.Request) domain.Venue {
	v := domain.Venue(strings.ToUpper(r.URL.Query().Get("venue")))
	if v != domain.VenueSZSE {
		v = domain.VenueSSE
	}
	return v
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.bars.ListSymbols(r.Context(), parseVenue(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, map[string]any{"symbols": symbols})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	venue := parseVenue(r)

	end := time.Now()
	start := end.AddDate(0, -1, 0)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		end = t
	}

	bars, err := s.bars.ReadBars(r.Context(), symbol, venue, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, map[string]any{"symbol": symbol, "bars": bars})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "no market data feed configured")
		return
	}
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols query param required")
		return
	}
	symbols := strings.Split(strings.ToUpper(raw), ",")

	prices, err := s.feed.LatestPrices(r.Context(), symbols)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, map[string]any{"prices": prices})
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// createTaskRequest is the polymorphic task-creation payload: the type
// selects which params block applies.
type createTaskRequest struct {
	Type     string                  `json:"task_type"`
	Backtest *task.BacktestJobParams `json:"backtest,omitempty"`
	Scan     *task.ScanJobParams     `json:"scan,omitempty"`
	Trade    *engine.Request         `json:"trade,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var job task.Job
	switch req.Type {
	case task.TypeBacktest:
		if req.Backtest == nil {
			writeError(w, http.StatusBadRequest, "backtest params required")
			return
		}
		job = task.NewBacktestJob(s.backtester, *req.Backtest)
	case task.TypeScan:
		if req.Scan == nil {
			writeError(w, http.StatusBadRequest, "scan params required")
			return
		}
		job = task.NewScanJob(s.bars, *req.Scan, nil)
	case task.TypeTrade:
		if req.Trade == nil {
			writeError(w, http.StatusBadRequest, "trade params required")
			return
		}
		job = task.NewTradeJob(s.engine, s.accounts, *req.Trade)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown task type %q", req.Type))
		return
	}

	id := s.tasks.CreateAndStart(req.Type, job)
	info, err := s.tasks.Status(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, info)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	writeJSON(w, map[string]any{"tasks": s.tasks.List(status)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	info, err := s.tasks.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleStopTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasks.Stop(r.PathValue("id")) {
		writeError(w, http.StatusConflict, "task not running")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasks.Delete(r.PathValue("id")) {
		writeError(w, http.StatusConflict, "task running or not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
