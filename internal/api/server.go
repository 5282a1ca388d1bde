// Package api serves the HTTP surface: single-timeframe signal queries,
// multi-timeframe confluence, symbol listings, backtests, the event journal
// and a live WebSocket stream of emitted transitions.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"signal-systemv1/internal/backtest"
	"signal-systemv1/internal/fetcher"
	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/signal"
	redisstore "signal-systemv1/internal/store/redis"
	sqlitestore "signal-systemv1/internal/store/sqlite"
	"signal-systemv1/internal/symbols"
)

// DefaultMTFIntervals is the timeframe set analyzed by the confluence
// endpoint. Names double as MEXC kline intervals and confluence weight keys.
var DefaultMTFIntervals = []string{"Min15", "Min30", "Min60", "Hour4", "Day1"}

const defaultInterval = "Min15"

// Config wires the server's collaborators. Journal and Cache are optional;
// endpoints depending on them return 503 when absent.
type Config struct {
	Fetcher *fetcher.Client
	Symbols *symbols.Manager
	Journal *sqlitestore.Reader
	Cache   *redisstore.Reader

	MTFIntervals   []string
	Scoring        signal.Config
	UsePriceAction bool
}

// Server handles the HTTP API.
type Server struct {
	cfg Config
	hub *Hub
}

// NewServer creates the API server and its WebSocket hub.
func NewServer(cfg Config) *Server {
	if len(cfg.MTFIntervals) == 0 {
		cfg.MTFIntervals = DefaultMTFIntervals
	}
	zero := signal.Config{}
	if cfg.Scoring == zero {
		cfg.Scoring = signal.DefaultConfig()
	}
	return &Server{cfg: cfg, hub: NewHub()}
}

// Hub returns the WebSocket hub, to be registered as a detector observer.
func (s *Server) Hub() *Hub { return s.hub }

// Router sets up HTTP routes for the API server.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("/api/v1/symbols/search", s.handleSymbolSearch)
	mux.HandleFunc("/api/v1/signal", s.handleSignal)
	mux.HandleFunc("/api/v1/mtf", s.handleMTF)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("/api/v1/stream", s.hub.HandleWS)

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	// Prefer the Redis cache when wired, fall back to the in-process set.
	if s.cfg.Cache != nil {
		if cached, err := s.cfg.Cache.CachedSymbols(r.Context()); err == nil && len(cached) > 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": cached})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": s.cfg.Symbols.All()})
}

func (s *Server) handleSymbolSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"matches": s.cfg.Symbols.FuzzySearch(q, limit),
	})
}

// resolveSymbol validates the symbol parameter, answering 400/404 itself.
func (s *Server) resolveSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("symbol")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing symbol parameter")
		return "", false
	}
	sym, ok := s.cfg.Symbols.Validate(raw)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":       "unknown symbol " + sym,
			"suggestions": s.cfg.Symbols.FuzzySearch(raw, 5),
		})
		return "", false
	}
	return sym, true
}

// scoreSymbol fetches and scores one (symbol, interval) pair.
func (s *Server) scoreSymbol(ctx context.Context, symbol, interval string) ([]model.IndicatorRow, *signal.Result, error) {
	candles, err := s.cfg.Fetcher.FetchCandles(ctx, symbol, interval)
	if err != nil {
		return nil, nil, err
	}
	rows, err := indicator.Compute(candles, nil)
	if err != nil {
		return nil, nil, err
	}
	engine, err := signal.NewEngine(s.cfg.Scoring)
	if err != nil {
		return nil, nil, err
	}
	res, err := engine.Score(rows, s.cfg.UsePriceAction)
	if err != nil {
		return nil, nil, err
	}
	return rows, res, nil
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	sym, ok := s.resolveSymbol(w, r)
	if !ok {
		return
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = defaultInterval
	}

	rows, res, err := s.scoreSymbol(r.Context(), sym, interval)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	latest := res.Latest()
	last := rows[len(rows)-1]
	resp := map[string]interface{}{
		"symbol":   sym,
		"interval": interval,
		"ts":       last.TS.UTC().Format(time.RFC3339),
		"price":    last.Close,
		"signal":   latest,
		"trend":    res.Trend,
		"patterns": res.Patterns,
	}
	if res.HasSupport {
		resp["support"] = res.Support
	}
	if res.HasResistance {
		resp["resistance"] = res.Resistance
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMTF(w http.ResponseWriter, r *http.Request) {
	sym, ok := s.resolveSymbol(w, r)
	if !ok {
		return
	}

	perTF := make(map[string]model.TimeframeSignal, len(s.cfg.MTFIntervals))
	for _, interval := range s.cfg.MTFIntervals {
		rows, res, err := s.scoreSymbol(r.Context(), sym, interval)
		if err != nil {
			// A timeframe that fails to load is simply absent from the
			// confluence; partial data still yields a verdict.
			log.Printf("[api] mtf %s %s: %v", sym, interval, err)
			continue
		}
		latest := res.Latest()
		perTF[interval] = model.TimeframeSignal{
			Direction: latest.Direction,
			Strength:  latest.Strength,
			Trend:     res.Trend,
			Price:     rows[len(rows)-1].Close,
		}
	}

	conf, err := signal.AnalyzeConfluence(perTF, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, "no timeframe data for "+sym)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     sym,
		"confluence": conf,
		"timeframes": perTF,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sym, ok := s.resolveSymbol(w, r)
	if !ok {
		return
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = defaultInterval
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if s.cfg.Cache != nil {
		events, err := s.cfg.Cache.RecentEvents(r.Context(), sym, interval, int64(limit))
		if err == nil && len(events) > 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
			return
		}
	}
	if s.cfg.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal not configured")
		return
	}
	events, err := s.cfg.Journal.RecentEvents(sym, interval, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	sym, ok := s.resolveSymbol(w, r)
	if !ok {
		return
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = defaultInterval
	}

	candles, err := s.cfg.Fetcher.FetchCandles(r.Context(), sym, interval)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	res, err := backtest.Run(sym, interval, candles, backtest.Config{
		Scoring:        s.cfg.Scoring,
		UsePriceAction: s.cfg.UsePriceAction,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
