// Package symbols maintains the tradable contract universe: loading it from
// the exchange, validating user input against it and fuzzy-matching typos.
package symbols

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultDetailURL is the MEXC contract listing endpoint.
const DefaultDetailURL = "https://contract.mexc.com/api/v1/contract/detail"

// defaultSymbols is the fallback universe used when the exchange listing
// cannot be loaded. Major pairs only.
var defaultSymbols = []string{
	"BTC_USDT", "ETH_USDT", "SOL_USDT", "XRP_USDT", "BNB_USDT",
	"ADA_USDT", "DOGE_USDT", "AVAX_USDT", "DOT_USDT", "LINK_USDT",
	"MATIC_USDT", "LTC_USDT", "TRX_USDT", "ATOM_USDT", "NEAR_USDT",
}

// Manager holds the known symbol set. Loading replaces the set atomically;
// reads are safe from any goroutine.
type Manager struct {
	url    string
	client *http.Client

	mu      sync.RWMutex
	symbols []string
	set     map[string]struct{}
}

// NewManager creates a Manager pre-populated with the fallback universe.
// An empty url selects the default listing endpoint.
func NewManager(url string) *Manager {
	if url == "" {
		url = DefaultDetailURL
	}
	m := &Manager{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	m.replace(defaultSymbols)
	return m
}

type detailResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Symbol string `json:"symbol"`
		State  int    `json:"state"`
	} `json:"data"`
}

// Load fetches the contract listing and replaces the symbol set. On failure
// the previous set (at minimum the fallback universe) stays in place and the
// error is returned for the caller to log.
func (m *Manager) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("symbols: create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("symbols: load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("symbols: load: unexpected status %d", resp.StatusCode)
	}

	var dr detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("symbols: decode listing: %w", err)
	}
	if !dr.Success || len(dr.Data) == 0 {
		return fmt.Errorf("symbols: empty listing")
	}

	loaded := make([]string, 0, len(dr.Data))
	for _, c := range dr.Data {
		if c.Symbol == "" {
			continue
		}
		// state 0 is an active contract.
		if c.State != 0 {
			continue
		}
		loaded = append(loaded, c.Symbol)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("symbols: no active contracts in listing")
	}
	sort.Strings(loaded)
	m.replace(loaded)
	log.Printf("[symbols] loaded %d contracts", len(loaded))
	return nil
}

func (m *Manager) replace(syms []string) {
	set := make(map[string]struct{}, len(syms))
	cp := make([]string, len(syms))
	copy(cp, syms)
	for _, s := range cp {
		set[s] = struct{}{}
	}
	m.mu.Lock()
	m.symbols = cp
	m.set = set
	m.mu.Unlock()
}

// All returns the known symbols, sorted.
func (m *Manager) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Normalize maps user input to the exchange's underscore form: trims
// whitespace, upper-cases, and inserts the underscore before a recognized
// quote suffix when missing (BTCUSDT becomes BTC_USDT).
func Normalize(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" || strings.Contains(s, "_") {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "USD", "BTC", "ETH"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "_" + quote
		}
	}
	return s
}

// Validate reports whether the (normalized) input names a known contract,
// returning the canonical symbol when it does.
func (m *Manager) Validate(input string) (string, bool) {
	sym := Normalize(input)
	m.mu.RLock()
	_, ok := m.set[sym]
	m.mu.RUnlock()
	return sym, ok
}

// FuzzySearch returns up to limit known symbols ranked by similarity to the
// query: exact match first, then prefix matches, then substring matches,
// then small-edit-distance matches. Ties rank alphabetically.
func (m *Manager) FuzzySearch(query string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	q := Normalize(query)
	if q == "" {
		return nil
	}

	type ranked struct {
		sym  string
		rank int
	}
	var matches []ranked
	m.mu.RLock()
	for _, s := range m.symbols {
		switch {
		case s == q:
			matches = append(matches, ranked{s, 0})
		case strings.HasPrefix(s, q):
			matches = append(matches, ranked{s, 1})
		case strings.Contains(s, q):
			matches = append(matches, ranked{s, 2})
		default:
			base := strings.SplitN(s, "_", 2)[0]
			qb := strings.SplitN(q, "_", 2)[0]
			if d := editDistance(base, qb); d <= 2 {
				matches = append(matches, ranked{s, 3 + d})
			}
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].sym < matches[j].sym
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.sym
	}
	return out
}

// editDistance is plain Levenshtein over two short ticker bases.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
