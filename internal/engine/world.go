package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/allegiance/internal/alliance"
	"github.com/talgya/allegiance/internal/events"
	"github.com/talgya/allegiance/internal/faction"
	"github.com/talgya/allegiance/internal/reputation"
)

// World is the explicit context object for one loaded world: it owns the
// faction registry, the reputation matrix, the alliance engine, the event
// log, and the deferred-action queue. Constructed at world load and torn
// down at unload; there are no process-wide singletons.
//
// All mutations run either on the tick goroutine or behind the world
// mutex, which preserves the single-writer guarantee the diplomacy core
// relies on.
type World struct {
	mu sync.RWMutex

	Registry *faction.Registry
	Matrix   *reputation.Matrix
	Alliance *alliance.Engine
	Events   *events.Log

	queue    *alliance.Queue
	inbox    chan command
	lastTick uint64

	StartedAt time.Time
}

type command struct {
	actor faction.ActorID
	line  string
	admin bool
	reply chan string
}

// NewWorld assembles a world from its configuration and choice ledger.
// Registry hooks enqueue deferred reactions instead of reacting inline:
// the originating event may fire before the new faction or membership is
// fully registered, so reactions run one tick later.
func NewWorld(cfg alliance.Config, ledger *alliance.Ledger) *World {
	w := &World{
		Registry:  faction.NewRegistry(),
		Matrix:    reputation.NewMatrix(),
		Events:    events.NewLog(1000),
		queue:     alliance.NewQueue(),
		inbox:     make(chan command, 64),
		StartedAt: time.Now(),
	}
	w.Alliance = alliance.NewEngine(cfg, w.Registry, w.Matrix, ledger)
	w.Alliance.Emit = func(description, category string) {
		w.Events.Append(w.lastTick, description, category)
	}

	w.Registry.OnFactionCreated = func(id faction.FactionID) {
		w.queue.Defer("faction-defaults", func() {
			w.Alliance.ApplyDefaults(id)
		})
	}
	w.Registry.OnMemberJoined = func(id faction.FactionID, actor faction.ActorID) {
		w.queue.Defer("member-sync", func() {
			w.Alliance.SyncMember(id, actor)
		})
	}
	return w
}

// Close tears the world down. Pending deferred actions are dropped with
// the world; durable state (ledger, database) is already persisted by the
// callers that mutated it.
func (w *World) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Registry.OnFactionCreated = nil
	w.Registry.OnMemberJoined = nil
	slog.Info("world closed", "tick", w.lastTick)
}

// SeedPowers creates a memberless faction for every configured power tag
// that does not resolve yet, so a fresh world has its alignment targets.
func (w *World) SeedPowers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, tag := range w.Alliance.Config().FactionTags {
		if _, ok := w.Registry.ByTag(tag); ok {
			continue
		}
		if _, err := w.Registry.Create(tag, tag, nil); err != nil {
			slog.Warn("could not seed power faction", "tag", tag, "error", err)
			continue
		}
		slog.Info("power faction seeded", "tag", tag)
	}
}

// TickStep runs one scheduling tick: chat commands received since the
// last tick execute synchronously, then the deferred queue drains exactly
// once. Wire this to Engine.OnTick.
func (w *World) TickStep(tick uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastTick = tick
	w.drainCommands()
	w.queue.Drain()
}

func (w *World) drainCommands() {
	for {
		select {
		case c := <-w.inbox:
			reply := ""
			if alliance.IsCommand(c.line) {
				reply = w.Alliance.HandleCommand(c.actor, c.line, c.admin)
			}
			c.reply <- reply
		default:
			return
		}
	}
}

// SubmitCommand hands a chat command line to the world and blocks until
// the tick loop has executed it, returning the player-facing reply. The
// context bounds the wait: when the engine is paused no tick will drain
// the inbox, and the caller must not hang on it. A command abandoned
// after enqueue still executes; its reply lands in the buffered channel.
func (w *World) SubmitCommand(ctx context.Context, actor faction.ActorID, line string, admin bool) (string, error) {
	c := command{actor: actor, line: line, admin: admin, reply: make(chan string, 1)}
	select {
	case w.inbox <- c:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case reply := <-c.reply:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CurrentTick returns the most recently processed tick.
func (w *World) CurrentTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastTick
}

// EnsureActor records a player identity.
func (w *World) EnsureActor(id faction.ActorID, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Registry.RegisterActor(id, name)
}

// CreateFaction registers a new faction on behalf of the surrounding
// world (admin plane). The created-faction reaction runs on the next tick.
func (w *World) CreateFaction(tag, name string, founder *faction.ActorID) (*faction.Faction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.Registry.Create(tag, name, founder)
	if err != nil {
		return nil, err
	}
	w.Events.Append(w.lastTick, fmt.Sprintf("Faction %s [%s] has been founded", f.Name, f.Tag), "faction")
	return f, nil
}

// AddMember accepts an actor into a faction. The member-joined reaction
// runs on the next tick.
func (w *World) AddMember(tag string, actor faction.ActorID, role faction.Role) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.Registry.ByTag(tag)
	if !ok {
		return fmt.Errorf("no faction with tag %q", tag)
	}
	if err := w.Registry.AddMember(f.ID, actor, role); err != nil {
		return err
	}
	a, _ := w.Registry.Actor(actor)
	w.Events.Append(w.lastTick, fmt.Sprintf("%s has joined %s", a.Name, f.Name), "faction")
	return nil
}

// Reset clears one faction's alliance choice (admin plane).
func (w *World) Reset(tag string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Alliance.Reset(tag)
}

// ResetAll clears every player faction's alliance choice (admin plane).
func (w *World) ResetAll() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Alliance.ResetAll()
}

// FactionState is a faction copy with its diplomacy status attached.
type FactionState struct {
	faction.Faction
	Committed bool `json:"committed"`
}

// Snapshot is a consistent copy of world state, safe to read off-thread.
type Snapshot struct {
	Tick        uint64
	Actors      []faction.Actor
	Factions    []FactionState
	FactionReps []reputation.FactionEntry
	ActorReps   []reputation.ActorEntry
}

// Snapshot copies the current world state under the read lock.
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	all := w.Registry.All()
	factions := make([]FactionState, 0, len(all))
	for _, f := range all {
		copied := *f
		copied.Members = make(map[faction.ActorID]faction.Role, len(f.Members))
		for id, role := range f.Members {
			copied.Members[id] = role
		}
		factions = append(factions, FactionState{
			Faction:   copied,
			Committed: w.Alliance.Ledger().Contains(f.ID),
		})
	}

	return Snapshot{
		Tick:        w.lastTick,
		Actors:      w.Registry.Actors(),
		Factions:    factions,
		FactionReps: w.Matrix.FactionEntries(),
		ActorReps:   w.Matrix.ActorEntries(),
	}
}

// AllowedTags returns the tags of the currently eligible alliance powers.
func (w *World) AllowedTags() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	allowed := w.Alliance.AllowedFactions()
	tags := make([]string, len(allowed))
	for i, f := range allowed {
		tags[i] = f.Tag
	}
	return tags
}

// LedgerIDs returns the committed faction IDs.
func (w *World) LedgerIDs() []faction.FactionID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Alliance.Ledger().IDs()
}

// Restore loads persisted world state. Hooks do not fire; restored
// factions already received their defaults when first created.
func (w *World) Restore(tick uint64, actors []faction.Actor, factions []*faction.Faction,
	freps []reputation.FactionEntry, areps []reputation.ActorEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastTick = tick
	for _, a := range actors {
		w.Registry.RegisterActor(a.ID, a.Name)
	}
	for _, f := range factions {
		w.Registry.Restore(f)
	}
	for _, r := range freps {
		w.Matrix.SetFaction(r.A, r.B, r.Value)
	}
	for _, r := range areps {
		w.Matrix.SetActor(r.Actor, r.Faction, r.Value)
	}
	slog.Info("world state restored",
		"actors", len(actors),
		"factions", len(factions),
		"faction_reps", len(freps),
		"actor_reps", len(areps),
		"tick", tick,
	)
}
