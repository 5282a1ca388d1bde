package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func klineServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/BTC_USDT") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "Min15" {
			t.Errorf("unexpected interval %q", got)
		}
		w.Write([]byte(body))
	}))
}

func TestFetchCandles(t *testing.T) {
	srv := klineServer(t, `{"success":true,"data":{
		"time":[1700000000,1700000900,1700001800],
		"open":[100,101,102],
		"high":[101,102,103],
		"low":[99,100,101],
		"close":[101,102,101],
		"vol":[10,20,30]
	}}`)
	defer srv.Close()

	candles, err := New(srv.URL + "/").FetchCandles(context.Background(), "BTC_USDT", "Min15")
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}
	if want := time.Unix(1700000000, 0).UTC(); !candles[0].TS.Equal(want) {
		t.Errorf("first TS = %s, want %s", candles[0].TS, want)
	}
	if !candles[0].TS.Before(candles[2].TS) {
		t.Error("candles must be oldest first")
	}
	if candles[1].Open != 101 || candles[1].Close != 102 || candles[1].Volume != 20 {
		t.Errorf("row 1 mismatch: %+v", candles[1])
	}
}

func TestFetchCandles_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"api error",
			`{"success":false,"message":"symbol not exists"}`,
			"api error",
		},
		{
			"no data",
			`{"success":true,"data":{"time":[],"open":[],"high":[],"low":[],"close":[],"vol":[]}}`,
			"no data",
		},
		{
			"ragged columns",
			`{"success":true,"data":{"time":[1700000000,1700000900],"open":[100],"high":[101,102],"low":[99,100],"close":[101,102],"vol":[10,20]}}`,
			"ragged",
		},
		{
			"invalid series",
			`{"success":true,"data":{"time":[1700000900,1700000000],"open":[100,101],"high":[101,102],"low":[99,100],"close":[101,102],"vol":[10,20]}}`,
			"non-monotonic",
		},
		{
			"garbage body",
			`<html>rate limited</html>`,
			"decode",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := klineServer(t, tc.body)
			defer srv.Close()

			_, err := New(srv.URL + "/").FetchCandles(context.Background(), "BTC_USDT", "Min15")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFetchCandles_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL + "/").FetchCandles(context.Background(), "BTC_USDT", "Min15")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Errorf("expected status error, got %v", err)
	}
}
