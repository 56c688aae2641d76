// Package persistence provides SQLite-based world state storage.
// The choice ledger is not stored here: it is the diplomacy core's own
// text-file artifact, owned and persisted by the alliance package.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/events"
	"github.com/talgya/allegiance/internal/faction"
	"github.com/talgya/allegiance/internal/reputation"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factions (
		id INTEGER PRIMARY KEY,
		tag TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		faction_id INTEGER NOT NULL,
		actor_id INTEGER NOT NULL,
		role INTEGER NOT NULL,
		PRIMARY KEY (faction_id, actor_id)
	);

	CREATE TABLE IF NOT EXISTS faction_reputation (
		a INTEGER NOT NULL,
		b INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (a, b)
	);

	CREATE TABLE IF NOT EXISTS actor_reputation (
		actor_id INTEGER NOT NULL,
		faction_id INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (actor_id, faction_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_members_actor ON members(actor_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveWorld writes a full snapshot of world state (full replace).
func (db *DB) SaveWorld(snap engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"actors", "factions", "members", "faction_reputation", "actor_reputation"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, a := range snap.Actors {
		if _, err := tx.Exec("INSERT INTO actors (id, name) VALUES (?, ?)", a.ID, a.Name); err != nil {
			return fmt.Errorf("insert actor %d: %w", a.ID, err)
		}
	}

	for _, f := range snap.Factions {
		if _, err := tx.Exec("INSERT INTO factions (id, tag, name) VALUES (?, ?, ?)",
			f.ID, f.Tag, f.Name); err != nil {
			return fmt.Errorf("insert faction %d: %w", f.ID, err)
		}
		for actor, role := range f.Members {
			if _, err := tx.Exec(
				"INSERT INTO members (faction_id, actor_id, role) VALUES (?, ?, ?)",
				f.ID, actor, role); err != nil {
				return fmt.Errorf("insert member %d of faction %d: %w", actor, f.ID, err)
			}
		}
	}

	for _, r := range snap.FactionReps {
		if _, err := tx.Exec(
			"INSERT INTO faction_reputation (a, b, value) VALUES (?, ?, ?)",
			r.A, r.B, r.Value); err != nil {
			return fmt.Errorf("insert faction rep %d/%d: %w", r.A, r.B, err)
		}
	}

	for _, r := range snap.ActorReps {
		if _, err := tx.Exec(
			"INSERT INTO actor_reputation (actor_id, faction_id, value) VALUES (?, ?, ?)",
			r.Actor, r.Faction, r.Value); err != nil {
			return fmt.Errorf("insert actor rep %d/%d: %w", r.Actor, r.Faction, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES ('last_tick', ?)",
		strconv.FormatUint(snap.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("world state saved",
		"actors", len(snap.Actors),
		"factions", len(snap.Factions),
		"tick", snap.Tick,
	)
	return nil
}

// LoadedState is everything needed to restore a world.
type LoadedState struct {
	Tick        uint64
	Actors      []faction.Actor
	Factions    []*faction.Faction
	FactionReps []reputation.FactionEntry
	ActorReps   []reputation.ActorEntry
}

// HasWorld reports whether a saved world exists.
func (db *DB) HasWorld() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM factions"); err != nil {
		return false
	}
	return n > 0
}

// LoadWorld reads the full saved world state.
func (db *DB) LoadWorld() (*LoadedState, error) {
	state := &LoadedState{}

	var actorRows []struct {
		ID   uint64 `db:"id"`
		Name string `db:"name"`
	}
	if err := db.conn.Select(&actorRows, "SELECT id, name FROM actors ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	for _, r := range actorRows {
		state.Actors = append(state.Actors, faction.Actor{ID: faction.ActorID(r.ID), Name: r.Name})
	}

	var factionRows []struct {
		ID   uint64 `db:"id"`
		Tag  string `db:"tag"`
		Name string `db:"name"`
	}
	if err := db.conn.Select(&factionRows, "SELECT id, tag, name FROM factions ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load factions: %w", err)
	}
	byID := make(map[faction.FactionID]*faction.Faction, len(factionRows))
	for _, r := range factionRows {
		f := &faction.Faction{
			ID:      faction.FactionID(r.ID),
			Tag:     r.Tag,
			Name:    r.Name,
			Members: make(map[faction.ActorID]faction.Role),
		}
		byID[f.ID] = f
		state.Factions = append(state.Factions, f)
	}

	var memberRows []struct {
		FactionID uint64 `db:"faction_id"`
		ActorID   uint64 `db:"actor_id"`
		Role      uint8  `db:"role"`
	}
	if err := db.conn.Select(&memberRows, "SELECT faction_id, actor_id, role FROM members"); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	for _, r := range memberRows {
		if f, ok := byID[faction.FactionID(r.FactionID)]; ok {
			f.Members[faction.ActorID(r.ActorID)] = faction.Role(r.Role)
		}
	}

	var frepRows []struct {
		A     uint64 `db:"a"`
		B     uint64 `db:"b"`
		Value int    `db:"value"`
	}
	if err := db.conn.Select(&frepRows, "SELECT a, b, value FROM faction_reputation"); err != nil {
		return nil, fmt.Errorf("load faction reputation: %w", err)
	}
	for _, r := range frepRows {
		state.FactionReps = append(state.FactionReps, reputation.FactionEntry{
			A: faction.FactionID(r.A), B: faction.FactionID(r.B), Value: r.Value,
		})
	}

	var arepRows []struct {
		ActorID   uint64 `db:"actor_id"`
		FactionID uint64 `db:"faction_id"`
		Value     int    `db:"value"`
	}
	if err := db.conn.Select(&arepRows, "SELECT actor_id, faction_id, value FROM actor_reputation"); err != nil {
		return nil, fmt.Errorf("load actor reputation: %w", err)
	}
	for _, r := range arepRows {
		state.ActorReps = append(state.ActorReps, reputation.ActorEntry{
			Actor: faction.ActorID(r.ActorID), Faction: faction.FactionID(r.FactionID), Value: r.Value,
		})
	}

	if tickStr, err := db.GetMeta("last_tick"); err == nil {
		if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
			state.Tick = t
		}
	}

	return state, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range evs {
		if _, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N persisted events, oldest first.
func (db *DB) RecentEvents(limit int) ([]events.Event, error) {
	var rows []struct {
		Tick        uint64 `db:"tick"`
		Description string `db:"description"`
		Category    string `db:"category"`
	}
	err := db.conn.Select(&rows,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, events.Event{
			Tick:        rows[i].Tick,
			Description: rows[i].Description,
			Category:    rows[i].Category,
		})
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
