// Package api provides the HTTP API for observing and administering the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/faction"
	"github.com/talgya/allegiance/internal/persistence"
	"github.com/talgya/allegiance/internal/reputation"
)

// Server serves the world state over HTTP.
type Server struct {
	World    *engine.World
	Eng      *engine.Engine
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// WS, when set, is mounted at /ws for the chat gateway.
	WS http.HandlerFunc
}

// routes builds the full route table. Start serves it; tests hit it
// directly through httptest.
func (s *Server) routes() http.Handler {
	eventsLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can check in on the world).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/factions", s.handleFactions)
	mux.HandleFunc("/api/v1/faction/", s.handleFactionDetail)
	mux.HandleFunc("/api/v1/alliances", s.handleAlliances)
	mux.HandleFunc("/api/v1/events", RateLimitMiddleware(eventsLimiter, s.handleEvents))

	// Admin endpoints (POST, require bearer token). Faction creation and
	// membership stand in for the surrounding game world here.
	mux.HandleFunc("/api/v1/faction", s.adminOnly(s.handleCreateFaction))
	mux.HandleFunc("/api/v1/members", s.adminOnly(s.handleAddMember))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(s.handleReset))
	mux.HandleFunc("/api/v1/resetall", s.adminOnly(s.handleResetAll))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	if s.WS != nil {
		mux.HandleFunc("/ws", s.WS)
	}
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	mux := s.routes()
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.World.Snapshot()

	committed := 0
	for _, f := range snap.Factions {
		if f.Committed {
			committed++
		}
	}

	status := map[string]any{
		"name":      "Allegiance",
		"tick":      snap.Tick,
		"started":   humanize.Time(s.World.StartedAt),
		"factions":  len(snap.Factions),
		"actors":    len(snap.Actors),
		"committed": committed,
		"powers":    s.World.AllowedTags(),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed
	}
	writeJSON(w, status)
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	snap := s.World.Snapshot()
	cfg := s.World.Alliance.Config()

	type factionSummary struct {
		ID        faction.FactionID `json:"id"`
		Tag       string            `json:"tag"`
		Name      string            `json:"name"`
		Members   int               `json:"members"`
		NPCOnly   bool              `json:"npc_only"`
		Committed bool              `json:"committed"`
	}

	out := make([]factionSummary, 0, len(snap.Factions))
	for _, f := range snap.Factions {
		out = append(out, factionSummary{
			ID:        f.ID,
			Tag:       f.Tag,
			Name:      f.Name,
			Members:   len(f.Members),
			NPCOnly:   f.NPCOnly(),
			Committed: f.Committed,
		})
	}
	writeJSON(w, map[string]any{
		"factions":          out,
		"hostile_threshold": cfg.HostileThreshold,
	})
}

// handleFactionDetail serves GET /api/v1/faction/{tag} with the faction's
// standing toward every other faction.
func (s *Server) handleFactionDetail(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimPrefix(r.URL.Path, "/api/v1/faction/")
	if tag == "" {
		http.Error(w, "faction tag required", http.StatusBadRequest)
		return
	}

	snap := s.World.Snapshot()
	cfg := s.World.Alliance.Config()

	var target *engine.FactionState
	for i := range snap.Factions {
		if snap.Factions[i].Tag == tag {
			target = &snap.Factions[i]
			break
		}
	}
	if target == nil {
		http.Error(w, "faction not found", http.StatusNotFound)
		return
	}

	values := make(map[faction.FactionID]int)
	for _, rep := range snap.FactionReps {
		if rep.A == target.ID {
			values[rep.B] = rep.Value
		}
		if rep.B == target.ID {
			values[rep.A] = rep.Value
		}
	}

	type standingEntry struct {
		Tag      string `json:"tag"`
		Value    int    `json:"value"`
		Standing string `json:"standing"`
	}
	standings := make([]standingEntry, 0, len(snap.Factions)-1)
	for _, f := range snap.Factions {
		if f.ID == target.ID {
			continue
		}
		v := values[f.ID]
		standings = append(standings, standingEntry{
			Tag:      f.Tag,
			Value:    v,
			Standing: reputation.StandingOf(v, cfg.HostileThreshold).String(),
		})
	}

	writeJSON(w, map[string]any{
		"id":        target.ID,
		"tag":       target.Tag,
		"name":      target.Name,
		"members":   len(target.Members),
		"npc_only":  target.NPCOnly(),
		"committed": target.Committed,
		"standings": standings,
	})
}

func (s *Server) handleAlliances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"powers":    s.World.AllowedTags(),
		"committed": s.World.LedgerIDs(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, map[string]any{"events": s.World.Events.Recent(limit)})
}

func (s *Server) handleCreateFaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag         string           `json:"tag"`
		Name        string           `json:"name"`
		FounderID   *faction.ActorID `json:"founder_id"`
		FounderName string           `json:"founder_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FounderID != nil && req.FounderName != "" {
		s.World.EnsureActor(*req.FounderID, req.FounderName)
	}

	f, err := s.World.CreateFaction(req.Tag, req.Name, req.FounderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"id": f.ID, "tag": f.Tag})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FactionTag string          `json:"faction_tag"`
		ActorID    faction.ActorID `json:"actor_id"`
		ActorName  string          `json:"actor_name"`
		Role       string          `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ActorName != "" {
		s.World.EnsureActor(req.ActorID, req.ActorName)
	}

	role := faction.RoleMember
	switch strings.ToLower(req.Role) {
	case "leader":
		role = faction.RoleLeader
	case "founder":
		role = faction.RoleFounder
	}

	if err := s.World.AddMember(req.FactionTag, req.ActorID, role); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		http.Error(w, "faction tag required", http.StatusBadRequest)
		return
	}

	msg, err := s.World.Reset(req.Tag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"message": msg})
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"message": s.World.ResetAll()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed < 0 || req.Speed > 100 {
		http.Error(w, "speed must be between 0 and 100", http.StatusBadRequest)
		return
	}
	s.Eng.Speed = req.Speed
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]any{"speed": req.Speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.DB.SaveWorld(s.World.Snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}
