package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signal-systemv1/internal/fetcher"
	"signal-systemv1/internal/symbols"
)

// klineBackend serves a flat 60-row columnar kline payload for any symbol.
func klineBackend() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 60
		payload := map[string]interface{}{"success": true}
		data := map[string][]float64{
			"open": {}, "high": {}, "low": {}, "close": {}, "vol": {},
		}
		times := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			times = append(times, 1700000000+int64(i)*900)
			data["open"] = append(data["open"], 100)
			data["high"] = append(data["high"], 101)
			data["low"] = append(data["low"], 99)
			data["close"] = append(data["close"], 100)
			data["vol"] = append(data["vol"], 1000)
		}
		payload["data"] = map[string]interface{}{
			"time": times,
			"open": data["open"], "high": data["high"], "low": data["low"],
			"close": data["close"], "vol": data["vol"],
		}
		json.NewEncoder(w).Encode(payload)
	}))
}

func newTestServer(t *testing.T, backendURL string) *httptest.Server {
	t.Helper()
	srv := NewServer(Config{
		Fetcher: fetcher.New(backendURL + "/"),
		Symbols: symbols.NewManager(""),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s: decode: %v", url, err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	body := getJSON(t, ts.URL+"/api/v1/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestHandleSymbols(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	body := getJSON(t, ts.URL+"/api/v1/symbols", http.StatusOK)
	syms, ok := body["symbols"].([]interface{})
	if !ok || len(syms) == 0 {
		t.Fatalf("expected a non-empty symbol list, got %v", body["symbols"])
	}
}

func TestHandleSymbolSearch(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	getJSON(t, ts.URL+"/api/v1/symbols/search", http.StatusBadRequest)

	body := getJSON(t, ts.URL+"/api/v1/symbols/search?q=btc", http.StatusOK)
	matches, _ := body["matches"].([]interface{})
	if len(matches) == 0 || matches[0] != "BTC_USDT" {
		t.Errorf("search for btc should lead with BTC_USDT, got %v", matches)
	}
}

func TestHandleSignal(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	// Parameter validation before any fetch.
	getJSON(t, ts.URL+"/api/v1/signal", http.StatusBadRequest)

	body := getJSON(t, ts.URL+"/api/v1/signal?symbol=XYZQ_USDT", http.StatusNotFound)
	if _, ok := body["suggestions"]; !ok {
		t.Error("404 response should carry suggestions")
	}

	body = getJSON(t, ts.URL+"/api/v1/signal?symbol=btcusdt&interval=Min30", http.StatusOK)
	if body["symbol"] != "BTC_USDT" || body["interval"] != "Min30" {
		t.Errorf("echoed pair = %v %v", body["symbol"], body["interval"])
	}
	if body["price"] != 100.0 {
		t.Errorf("price = %v, want 100", body["price"])
	}
	sig, ok := body["signal"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing signal object: %v", body)
	}
	if sig["direction"] != "HOLD" {
		t.Errorf("flat series should HOLD, got %v", sig["direction"])
	}
}

func TestHandleSignal_UpstreamFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	getJSON(t, ts.URL+"/api/v1/signal?symbol=BTC_USDT", http.StatusBadGateway)
}

func TestHandleMTF(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	body := getJSON(t, ts.URL+"/api/v1/mtf?symbol=BTC_USDT", http.StatusOK)
	conf, ok := body["confluence"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing confluence object: %v", body)
	}
	if got := conf["timeframes_analyzed"]; got != float64(len(DefaultMTFIntervals)) {
		t.Errorf("timeframes analyzed = %v, want %d", got, len(DefaultMTFIntervals))
	}
	tfs, _ := body["timeframes"].(map[string]interface{})
	if len(tfs) != len(DefaultMTFIntervals) {
		t.Errorf("per-timeframe map has %d entries, want %d", len(tfs), len(DefaultMTFIntervals))
	}
}

// Every timeframe failing leaves nothing to analyze.
func TestHandleMTF_AllTimeframesDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	getJSON(t, ts.URL+"/api/v1/mtf?symbol=BTC_USDT", http.StatusBadGateway)
}

func TestHandleEvents_Unconfigured(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	// Neither cache nor journal is wired.
	getJSON(t, ts.URL+"/api/v1/events?symbol=BTC_USDT", http.StatusServiceUnavailable)
}

func TestHandleBacktest(t *testing.T) {
	backend := klineBackend()
	defer backend.Close()
	ts := newTestServer(t, backend.URL)

	body := getJSON(t, ts.URL+"/api/v1/backtest?symbol=BTC_USDT", http.StatusOK)
	if body["candles"] != 60.0 {
		t.Errorf("candles = %v, want 60", body["candles"])
	}
	if body["symbol"] != "BTC_USDT" {
		t.Errorf("symbol = %v", body["symbol"])
	}
}
