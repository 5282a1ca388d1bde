package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signal-systemv1/internal/model"
)

func sampleEvent(strength float64) model.SignalEvent {
	return model.SignalEvent{
		Symbol:    "BTC_USDT",
		Interval:  "Min15",
		TS:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Direction: model.DirectionBuy,
		Strength:  strength,
		Reason:    "Bullish confluence (Score: 2.10)",
		Price:     65000.5,
	}
}

func TestFromSignalEvent(t *testing.T) {
	a := FromSignalEvent(sampleEvent(0.3))
	if a.Level != AlertInfo {
		t.Errorf("weak signal level = %s, want INFO", a.Level)
	}
	if a.Title != "BUY BTC_USDT Min15" {
		t.Errorf("title = %q", a.Title)
	}
	if !strings.Contains(a.Message, "Reason: Bullish confluence") {
		t.Errorf("message missing reason: %q", a.Message)
	}
	if a.Event == nil || a.Event.Symbol != "BTC_USDT" {
		t.Error("alert should carry the originating event")
	}

	// Strength 0.7 and above escalates.
	if got := FromSignalEvent(sampleEvent(0.7)).Level; got != AlertWarning {
		t.Errorf("strong signal level = %s, want WARNING", got)
	}
}

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Send(ctx context.Context, alert Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

func TestDispatcher_FailingBackendDoesNotBlock(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("boom")}
	healthy := &recordingNotifier{}
	d := NewDispatcher(failing, healthy)

	if err := d.OnSignal(context.Background(), sampleEvent(0.5)); err != nil {
		t.Fatalf("dispatcher must swallow backend failures, got %v", err)
	}
	if len(failing.alerts) != 1 || len(healthy.alerts) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(failing.alerts), len(healthy.alerts))
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	alert := FromSignalEvent(sampleEvent(0.5))
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), alert); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "BUY BTC_USDT Min15" || got["level"] != "INFO" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["event"]; !ok {
		t.Error("payload should embed the event")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer bad.Close()
	if err := NewWebhookNotifier(bad.URL).Send(context.Background(), alert); err == nil {
		t.Error("expected error on a 403 response")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("BUY BTC_USDT (Score: 2.10)!")
	want := `BUY BTC\_USDT \(Score: 2\.10\)\!`
	if got != want {
		t.Errorf("escapeMarkdown = %q, want %q", got, want)
	}
	if escapeMarkdown("plain text") != "plain text" {
		t.Error("plain text must pass through untouched")
	}
}
