package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/allegiance/internal/alliance"
	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/faction"
)

func newTestServer(t *testing.T) (*Server, *engine.World) {
	t.Helper()

	cfg := alliance.DefaultConfig()
	cfg.FactionTags = []string{"SOBAN", "KHAANEPH"}
	ledger := alliance.LoadLedger(filepath.Join(t.TempDir(), "choices.txt"))

	w := engine.NewWorld(cfg, ledger)
	w.SeedPowers()
	w.TickStep(1)

	return &Server{World: w, AdminKey: "secret"}, w
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["factions"].(float64) != 2 {
		t.Errorf("factions = %v; want 2", body["factions"])
	}
	powers := body["powers"].([]any)
	if len(powers) != 2 || powers[0] != "SOBAN" {
		t.Errorf("powers = %v", powers)
	}
}

func TestFactionDetailStandings(t *testing.T) {
	s, w := newTestServer(t)
	w.EnsureActor(1, "Riggs")
	founder := faction.ActorID(1)
	if _, err := w.CreateFaction("MYFC", "My Faction", &founder); err != nil {
		t.Fatalf("CreateFaction: %v", err)
	}
	w.TickStep(2) // defaults apply

	req := httptest.NewRequest(http.MethodGet, "/api/v1/faction/MYFC", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Tag       string `json:"tag"`
		Standings []struct {
			Tag      string `json:"tag"`
			Value    int    `json:"value"`
			Standing string `json:"standing"`
		} `json:"standings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tag != "MYFC" || len(body.Standings) != 2 {
		t.Fatalf("body = %+v", body)
	}
	for _, st := range body.Standings {
		if st.Value != -500 || st.Standing != "hostile" {
			t.Errorf("standing toward %s = %d %q; want -500 hostile", st.Tag, st.Value, st.Standing)
		}
	}
}

func TestFactionDetailNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/faction/NOPE", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d; want 404", rec.Code)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	body := bytes.NewBufferString(`{"tag":"MYFC","name":"My Faction"}`)

	// GET on an admin endpoint is rejected outright.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/resetall", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET admin endpoint = %d; want 405", rec.Code)
	}

	// POST without a token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faction", body)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST without token = %d; want 401", rec.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faction",
		bytes.NewBufferString(`{"tag":"MYFC","name":"My Faction"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST with wrong token = %d; want 401", rec.Code)
	}

	// Right token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faction",
		bytes.NewBufferString(`{"tag":"MYFC","name":"My Faction"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("POST with valid token = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminResetFlow(t *testing.T) {
	s, w := newTestServer(t)
	w.EnsureActor(1, "Riggs")
	founder := faction.ActorID(1)
	f, _ := w.CreateFaction("MYFC", "My Faction", &founder)
	w.TickStep(2)

	done := make(chan string, 1)
	go func() {
		reply, _ := w.SubmitCommand(context.Background(), 1, "/alliance SOBAN", false)
		done <- reply
	}()
	for {
		w.TickStep(3)
		select {
		case <-done:
		default:
			continue
		}
		break
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reset",
		bytes.NewBufferString(`{"tag":"MYFC"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("reset = %d: %s", rec.Code, rec.Body.String())
	}
	for _, id := range w.LedgerIDs() {
		if id == f.ID {
			t.Error("ledger should be cleared after reset")
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("different IP should have its own bucket")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Error("RetryAfter should be positive for a limited IP")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "10.0.0.1:52114", "", "10.0.0.1"},
		{"no port", "10.0.0.1", "", "10.0.0.1"},
		{"proxied", "127.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"proxy chain", "127.0.0.1:80", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := clientIP(req); got != tc.want {
				t.Errorf("clientIP = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitMiddlewareRejectsWith429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.RemoteAddr = "10.0.0.1:52114"

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request = %d; want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d; want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry a Retry-After hint")
	}
}
