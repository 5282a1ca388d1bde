// Package feed provides live candle transports for the streaming detector.
//
// The MEXC feed speaks the contract-futures WebSocket protocol: one
// sub.kline subscription per connection, push.kline data frames, and an
// application-level ping every pingInterval. Reconnection with exponential
// backoff is handled here, at the transport boundary; the detector above
// only ever sees decoded candles.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"signal-systemv1/internal/model"
)

const (
	// DefaultMexcURL is the MEXC contract-futures WebSocket endpoint.
	DefaultMexcURL = "wss://contract.mexc.com/edge"

	defaultPingInterval   = 15 * time.Second
	defaultReconnectDelay = 2 * time.Second
	maxReconnectDelay     = 60 * time.Second
	readDeadlineSlack     = 3
)

// MexcConfig configures the MEXC feed.
type MexcConfig struct {
	URL          string        // defaults to DefaultMexcURL
	PingInterval time.Duration // defaults to 15s

	// Optional metrics hooks.
	OnReconnect func()
	OnMalformed func()
}

// Mexc is a Feed implementation over the MEXC contract WebSocket. Each
// Subscribe call owns its own connection; the value itself is stateless and
// safe to share across workers.
type Mexc struct {
	cfg MexcConfig
}

// NewMexc creates a MEXC feed.
func NewMexc(cfg MexcConfig) *Mexc {
	if cfg.URL == "" {
		cfg.URL = DefaultMexcURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	return &Mexc{cfg: cfg}
}

// wsRequest is a client -> server frame.
type wsRequest struct {
	Method string      `json:"method"`
	Param  interface{} `json:"param,omitempty"`
}

// wsMessage is a server -> client frame.
type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// klinePayload is the push.kline data frame. Volume arrives as "q".
type klinePayload struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	Q float64 `json:"q"`
}

// Subscribe streams candles for one (symbol, interval) pair into out until
// ctx is cancelled. Connection drops trigger reconnection with exponential
// backoff; the error return is ctx.Err() on cancellation.
func (m *Mexc) Subscribe(ctx context.Context, symbol, interval string, out chan<- model.Candle) error {
	delay := defaultReconnectDelay
	for {
		err := m.stream(ctx, symbol, interval, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Printf("[feed] %s %s: connection lost (%v), reconnecting in %s",
			symbol, interval, err, delay)
		if m.cfg.OnReconnect != nil {
			m.cfg.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// stream runs one connection lifetime: dial, subscribe, ping loop, read loop.
func (m *Mexc) stream(ctx context.Context, symbol, interval string, out chan<- model.Candle) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", m.cfg.URL, err)
	}
	defer conn.Close()

	sub := wsRequest{
		Method: "sub.kline",
		Param: map[string]string{
			"symbol":   symbol,
			"interval": interval,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe %s %s: %w", symbol, interval, err)
	}

	// Ping keeps the server side alive; closing the connection on ctx done
	// unblocks the read loop.
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteJSON(wsRequest{Method: "ping"}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer func() { <-pingDone }()

	for {
		conn.SetReadDeadline(time.Now().Add(readDeadlineSlack * m.cfg.PingInterval))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		candle, ok := m.decode(symbol, raw)
		if !ok {
			continue
		}
		select {
		case out <- candle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decode parses one server frame. Control frames and malformed payloads
// yield ok=false; malformed ones additionally log a warning. They never
// propagate past this boundary.
func (m *Mexc) decode(symbol string, raw []byte) (model.Candle, bool) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[feed] %s: dropping unparseable frame: %v", symbol, err)
		if m.cfg.OnMalformed != nil {
			m.cfg.OnMalformed()
		}
		return model.Candle{}, false
	}

	switch msg.Channel {
	case "push.kline":
		var k klinePayload
		if err := json.Unmarshal(msg.Data, &k); err != nil {
			log.Printf("[feed] %s: dropping malformed kline: %v", symbol, err)
			if m.cfg.OnMalformed != nil {
				m.cfg.OnMalformed()
			}
			return model.Candle{}, false
		}
		if k.T <= 0 || k.O <= 0 || k.H <= 0 || k.L <= 0 || k.C <= 0 || k.Q < 0 {
			log.Printf("[feed] %s: dropping kline with invalid fields at t=%d", symbol, k.T)
			if m.cfg.OnMalformed != nil {
				m.cfg.OnMalformed()
			}
			return model.Candle{}, false
		}
		return model.Candle{
			TS:     time.Unix(k.T, 0).UTC(),
			Open:   k.O,
			High:   k.H,
			Low:    k.L,
			Close:  k.C,
			Volume: k.Q,
		}, true

	case "rs.sub.kline":
		if string(msg.Data) == `"success"` {
			log.Printf("[feed] %s: kline subscription confirmed", symbol)
		} else {
			log.Printf("[feed] %s: subscription rejected: %s", symbol, msg.Data)
		}
	case "pong":
		// Keepalive reply; nothing to do.
	case "rs.error":
		log.Printf("[feed] %s: server error: %s", symbol, msg.Data)
	}
	return model.Candle{}, false
}
