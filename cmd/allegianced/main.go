// Command allegianced runs the faction diplomacy server: a ticking world
// with a chat-driven alliance system, a WebSocket chat gateway, and an
// HTTP API for observation and admin control.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/allegiance/internal/alliance"
	"github.com/talgya/allegiance/internal/api"
	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/network"
	"github.com/talgya/allegiance/internal/persistence"
)

type appConfig struct {
	Port       int    `env:"PORT" envDefault:"8080"`
	DataDir    string `env:"DATA_DIR" envDefault:"data"`
	AdminKey   string `env:"ADMIN_KEY"`
	ConfigPath string `env:"ALLIANCE_CONFIG"`
	TickMS     int    `env:"TICK_MS" envDefault:"250"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var app appConfig
	if err := env.Parse(&app); err != nil {
		slog.Error("parse environment", "error", err)
		os.Exit(1)
	}
	if app.ConfigPath == "" {
		app.ConfigPath = filepath.Join(app.DataDir, "alliance.cfg")
	}
	if app.AdminKey == "" {
		slog.Warn("ADMIN_KEY not set — admin endpoints will be disabled")
	}

	slog.Info("Allegiance — faction diplomacy server")

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(app.DataDir, 0755)
	dbPath := filepath.Join(app.DataDir, "world.db")
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Diplomacy configuration and choice ledger ─────────────────────
	cfg := alliance.LoadConfig(app.ConfigPath)
	ledger := alliance.LoadLedger(filepath.Join(app.DataDir, "alliance_choices.txt"))
	slog.Info("diplomacy configured",
		"powers", cfg.FactionTags,
		"ally", cfg.AllyReputation,
		"enemy", cfg.EnemyReputation,
		"default", cfg.DefaultReputation,
		"npc_only", cfg.AllowOnlyNpcFactions,
		"committed", len(ledger.IDs()),
	)

	// ── Load or initialize world state ────────────────────────────────
	world := engine.NewWorld(cfg, ledger)
	defer world.Close()

	var startTick uint64
	if db.HasWorld() {
		slog.Info("found saved world state, loading...")
		state, err := db.LoadWorld()
		if err != nil {
			slog.Error("failed to load world", "error", err)
			os.Exit(1)
		}
		world.Restore(state.Tick, state.Actors, state.Factions, state.FactionReps, state.ActorReps)
		startTick = state.Tick
	} else {
		slog.Info("no saved state found, starting fresh")
	}
	world.SeedPowers()

	// ── Tick engine ───────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = startTick
	if app.TickMS > 0 {
		eng.Interval = time.Duration(app.TickMS) * time.Millisecond
	}
	eng.OnTick = world.TickStep

	var eventCursor uint64
	saveWorld := func(tick uint64) {
		if err := db.SaveWorld(world.Snapshot()); err != nil {
			slog.Error("world save failed", "tick", tick, "error", err)
		}
		fresh := world.Events.Since(eventCursor)
		if len(fresh) > 0 {
			if err := db.SaveEvents(fresh); err != nil {
				slog.Error("event save failed", "tick", tick, "error", err)
			} else {
				eventCursor = fresh[len(fresh)-1].Seq
			}
		}
	}
	eng.OnMinute = saveWorld
	eng.OnHour = func(tick uint64) {
		snap := world.Snapshot()
		committed := 0
		for _, f := range snap.Factions {
			if f.Committed {
				committed++
			}
		}
		slog.Info("hourly summary",
			"tick", tick,
			"factions", len(snap.Factions),
			"actors", len(snap.Actors),
			"committed", committed,
		)
	}

	// ── Chat gateway ──────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := network.NewHub(world, app.AdminKey)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx)

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{
		World:    world,
		Eng:      eng,
		DB:       db,
		Port:     app.Port,
		AdminKey: app.AdminKey,
		WS:       hub.ServeWS,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nAllegiance is live: %d alliance powers configured.\n", len(cfg.FactionTags))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", app.Port)
	fmt.Printf("Chat: ws://localhost:%d/ws\n", app.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d\n", startTick)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	saveWorld(eng.Tick)

	fmt.Println("Simulation stopped. World state saved.")
}
