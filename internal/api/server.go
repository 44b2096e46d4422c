// Package api serves backtests, stored runs and run traces over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/reporting"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 16

// Server holds the HTTP handlers.
// The trace WebSocket accepts only same-host origins unless Options.AllowedOrigins says otherwise.
type Server struct {
	runner     *simulation.Runner
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	traceStore storage.TraceStore
	defaults   domain.RunConfig
	metrics    *observability.Metrics
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
	started    time.Time
}

// Options contains configuration for creating a Server.
type Options struct {
	Runner     *simulation.Runner
	RunStore   storage.RunStore
	TradeStore storage.TradeRecordStore
	TraceStore storage.TraceStore // optional; /ws/trace answers 404 without it
	Defaults   domain.RunConfig   // applied to request fields left empty
	Metrics    *observability.Metrics
	Logger     zerolog.Logger

	// AllowedOrigins lists browser origins allowed to open /ws/trace.
	// Empty means same host only; "*" allows any origin.
	AllowedOrigins []string
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	return &Server{
		runner:     opts.Runner,
		runStore:   opts.RunStore,
		tradeStore: opts.TradeStore,
		traceStore: opts.TraceStore,
		defaults:   opts.Defaults,
		metrics:    m,
		logger:     opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		started: time.Now(),
	}
}

// originChecker returns nil for an empty list so the upgrader keeps its same-host check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

type route struct {
	name    string
	methods []string
	pattern string
	handler http.HandlerFunc
}

// Router returns the routing table wrapped with request logging and metrics.
func (s *Server) Router() *mux.Router {
	routes := []route{
		{"health", []string{http.MethodGet}, "/health", s.handleHealth},
		{"backtest", []string{http.MethodGet, http.MethodPost}, "/api/backtest", s.handleBacktest},
		{"runs", []string{http.MethodGet}, "/api/runs", s.handleRuns},
		{"run", []string{http.MethodGet}, "/api/runs/{id}", s.handleRun},
		{"run_trades", []string{http.MethodGet}, "/api/runs/{id}/trades", s.handleRunTrades},
		{"trace_ws", []string{http.MethodGet}, "/ws/trace/{id}", s.handleTraceStream},
	}

	router := mux.NewRouter().StrictSlash(true)
	for _, r := range routes {
		router.
			Methods(r.methods...).
			Path(r.pattern).
			Name(r.name).
			Handler(s.instrument(r.handler, r.name))
	}
	router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet).Name("metrics")
	return router
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records it in the HTTP metrics.
func (s *Server) instrument(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		if name == "trace_ws" {
			// the upgrader needs the raw writer to hijack the connection
			inner.ServeHTTP(w, r)
		} else {
			inner.ServeHTTP(rec, r)
		}
		elapsed := time.Since(start)

		s.metrics.RecordHTTPRequest(name, rec.code, elapsed.Seconds())
		s.logger.Debug().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("route", name).
			Int("code", rec.code).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBacktestRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "request")
		return
	}
	if req.Instrument == "" {
		writeError(w, http.StatusBadRequest, errors.New("instrument is required"), "request")
		return
	}

	cfg, err := req.runConfig(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "config")
		return
	}
	start, end, err := req.dateRange()
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "request")
		return
	}

	out, err := s.runner.Run(r.Context(), req.Instrument, start, end, cfg)
	if err != nil {
		kind := simulation.ErrorKind(err)
		writeError(w, statusForKind(kind, err), err, kind)
		return
	}

	res := out.Result
	resp := backtestResponse{
		Run:         toRunJSON(out.Summary, res.StrategyID),
		Existing:    out.Existing,
		Performance: out.Performance,
		Trades:      make([]tradeJSON, len(res.Trades)),
	}
	for i := range res.Trades {
		resp.Trades[i] = toTradeJSON(&res.Trades[i])
	}
	if o := res.Snapshot.PendingOrder; o != nil {
		resp.PendingOrder = &orderJSON{
			Side:       string(o.Side),
			Quantity:   o.Quantity,
			SignalDate: o.SignalTime.Format(time.DateOnly),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw), "request")
			return
		}
		limit = n
	}

	var (
		runs []*domain.RunSummary
		err  error
	)
	if instrument := r.URL.Query().Get("instrument"); instrument != "" {
		runs, err = metrics.NewAggregator(s.runStore, s.tradeStore).Leaderboard(r.Context(), instrument, limit)
		if errors.Is(err, metrics.ErrNoRuns) {
			runs, err = nil, nil
		}
	} else {
		runs, err = s.runStore.GetAll(r.Context())
		runs = metrics.Rank(runs)
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "storage")
		return
	}

	out := make([]runJSON, len(runs))
	for i, run := range runs {
		out[i] = toRunJSON(run, reporting.StrategyID(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunJSON(run, reporting.StrategyID(run)))
}

func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	trades, err := s.tradeStore.GetByRunID(r.Context(), run.RunID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "storage")
		return
	}

	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = toTradeJSON(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*domain.RunSummary, bool) {
	id := mux.Vars(r)["id"]
	run, err := s.runStore.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("run %s not found", id), "storage")
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err, "storage")
		return nil, false
	}
	return run, true
}

func decodeBacktestRequest(w http.ResponseWriter, r *http.Request) (backtestRequest, error) {
	var req backtestRequest
	if r.Method == http.MethodPost {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("decode body: %w", err)
		}
		return req, nil
	}

	q := r.URL.Query()
	req.Instrument = q.Get("instrument")
	req.Start = q.Get("start")
	req.End = q.Get("end")
	req.MAKind = q.Get("ma_kind")
	req.StartingCash = q.Get("starting_cash")
	req.CommissionRate = q.Get("commission_rate")
	req.SizingPolicy = q.Get("sizing_policy")

	ints := []struct {
		key string
		dst *int
	}{
		{"fast_window", &req.FastWindow},
		{"slow_window", &req.SlowWindow},
	}
	for _, f := range ints {
		if raw := q.Get(f.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, fmt.Errorf("invalid %s %q", f.key, raw)
			}
			*f.dst = n
		}
	}
	if raw := q.Get("units"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid units %q", raw)
		}
		req.Units = n
	}
	return req, nil
}

// runConfig overlays the request on base. Validation happens in the simulator.
func (req backtestRequest) runConfig(base domain.RunConfig) (domain.RunConfig, error) {
	cfg := base
	if req.FastWindow != 0 {
		cfg.FastWindow = req.FastWindow
	}
	if req.SlowWindow != 0 {
		cfg.SlowWindow = req.SlowWindow
	}
	if req.MAKind != "" {
		cfg.MAKind = domain.MAKind(strings.ToLower(req.MAKind))
	}
	if req.StartingCash != "" {
		v, err := decimal.NewFromString(req.StartingCash)
		if err != nil {
			return cfg, fmt.Errorf("invalid starting_cash %q", req.StartingCash)
		}
		cfg.StartingCash = v
	}
	if req.CommissionRate != "" {
		v, err := decimal.NewFromString(req.CommissionRate)
		if err != nil {
			return cfg, fmt.Errorf("invalid commission_rate %q", req.CommissionRate)
		}
		cfg.CommissionRate = v
	}
	if req.SizingPolicy != "" {
		cfg.Sizing = domain.SizingConfig{Policy: req.SizingPolicy, Units: req.Units}
	} else if req.Units != 0 {
		cfg.Sizing.Units = req.Units
	}
	cfg.LogTrace = req.LogTrace
	return cfg, nil
}

func (req backtestRequest) dateRange() (start, end time.Time, err error) {
	if req.Start == "" && req.End == "" {
		return start, end, nil
	}
	if req.Start == "" || req.End == "" {
		return start, end, errors.New("start and end must be given together")
	}
	if start, err = time.Parse(time.DateOnly, req.Start); err != nil {
		return start, end, fmt.Errorf("invalid start: %w", err)
	}
	if end, err = time.Parse(time.DateOnly, req.End); err != nil {
		return start, end, fmt.Errorf("invalid end: %w", err)
	}
	if end.Before(start) {
		return start, end, errors.New("end is before start")
	}
	return start, end, nil
}

func statusForKind(kind string, err error) int {
	switch kind {
	case "config":
		return http.StatusBadRequest
	case "series", "insufficient_data":
		return http.StatusUnprocessableEntity
	case "canceled":
		return http.StatusServiceUnavailable
	case "storage":
		if errors.Is(err, storage.ErrNotFound) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error, kind string) {
	writeJSON(w, code, errorJSON{Error: err.Error(), Kind: kind})
}
