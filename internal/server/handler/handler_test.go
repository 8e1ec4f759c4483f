package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

type stubCache struct {
	prices map[string]float64
	ts     time.Time
}

func (s *stubCache) SetPrice(context.Context, string, float64, time.Time) error { return nil }

func (s *stubCache) GetPrice(_ context.Context, channel string) (float64, time.Time, error) {
	p, ok := s.prices[channel]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, s.ts, nil
}

func (s *stubCache) GetPrices(_ context.Context, channels []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, ch := range channels {
		if p, ok := s.prices[ch]; ok {
			out[ch] = p
		}
	}
	return out, nil
}

type stubLedger struct {
	info domain.PoolInfo
	ok   bool
}

func (s *stubLedger) RecordOutcome(context.Context, string, bool) (domain.Receipt, error) {
	return domain.Receipt{}, domain.ErrLedgerCall
}

func (s *stubLedger) PoolInfo(context.Context, string) (domain.PoolInfo, bool) {
	return s.info, s.ok
}

type stubGame struct {
	round uint64
	price float64
	ok    bool
}

func (s *stubGame) Snapshot(string) (uint64, float64, bool) {
	return s.round, s.price, s.ok
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestGetPrice(t *testing.T) {
	cache := &stubCache{prices: map[string]float64{"ETH": 2020.5}, ts: time.Unix(1700000000, 0)}
	h := NewPriceHandler(cache, []string{"ETH", "BTC"}, discard())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices/{channel}", h.GetPrice)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prices/ETH", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["price"] != 2020.5 {
		t.Fatalf("price = %v, want 2020.5", body["price"])
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prices/DOGE", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown channel status = %d, want 404", rr.Code)
	}
}

func TestListPrices(t *testing.T) {
	cache := &stubCache{prices: map[string]float64{"ETH": 2000, "BTC": 60000}}
	h := NewPriceHandler(cache, []string{"ETH", "BTC", "SOL"}, discard())

	rr := httptest.NewRecorder()
	h.ListPrices(rr, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Prices) != 2 || body.Prices["ETH"] != 2000 {
		t.Fatalf("prices = %v", body.Prices)
	}
}

func TestGetPoolDegradesWhenUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	game := &stubGame{round: 3, price: 2010, ok: true}
	h := NewPoolHandler(&stubLedger{ok: false}, game, []string{"ETH"}, discard())
	mux.HandleFunc("GET /api/pools/{channel}", h.GetPool)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/pools/ETH", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the ledger read fails", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["available"] != false {
		t.Fatalf("available = %v, want false", body["available"])
	}
	// The local round state survives a failed ledger read.
	if body["round_number"] != float64(3) || body["last_price"] != 2010.0 {
		t.Fatalf("local state missing from degraded response: %v", body)
	}
}

func TestListPools(t *testing.T) {
	h := NewPoolHandler(&stubLedger{ok: false}, nil, []string{"ETH", "BTC"}, discard())

	rr := httptest.NewRecorder()
	h.ListPools(rr, httptest.NewRequest(http.MethodGet, "/api/pools", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Pools []map[string]any `json:"pools"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Pools) != 2 {
		t.Fatalf("pools = %d, want 2", len(body.Pools))
	}
	if body.Pools[0]["available"] != false {
		t.Fatalf("available = %v, want false", body.Pools[0]["available"])
	}
}

func TestGetPool(t *testing.T) {
	ledger := &stubLedger{
		ok: true,
		info: domain.PoolInfo{
			Channel:       "ETH",
			TotalDeposit:  "12.5",
			CurrentRound:  7,
			Active:        true,
			ActivePlayers: 3,
			TotalPlayers:  10,
		},
	}
	game := &stubGame{round: 7, price: 2020.5, ok: true}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pools/{channel}", NewPoolHandler(ledger, game, []string{"ETH"}, discard()).GetPool)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/pools/ETH", nil))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["available"] != true || body["total_deposit"] != "12.5" {
		t.Fatalf("body = %v", body)
	}
	if body["active_players"] != float64(3) {
		t.Fatalf("active_players = %v, want 3", body["active_players"])
	}
	// On-ledger state and the settler's local view arrive merged.
	if body["round_number"] != float64(7) || body["last_price"] != 2020.5 {
		t.Fatalf("local round state missing: %v", body)
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler([]string{"ETH", "BTC"})

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Status   string   `json:"status"`
		Service  string   `json:"service"`
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" || body.Service != "oxgame-backend" {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Channels) != 2 || body.Channels[0] != "ETH" {
		t.Fatalf("channels = %v", body.Channels)
	}
}
