package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/events"
	"github.com/talgya/allegiance/internal/faction"
	"github.com/talgya/allegiance/internal/reputation"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadRoundtrip(t *testing.T) {
	db := openTestDB(t)

	snap := engine.Snapshot{
		Tick: 42,
		Actors: []faction.Actor{
			{ID: 1, Name: "Riggs"},
			{ID: 2, Name: "Vex"},
		},
		Factions: []engine.FactionState{
			{Faction: faction.Faction{ID: 1, Tag: "SOBAN", Name: "Soban Fleet",
				Members: map[faction.ActorID]faction.Role{}}},
			{Faction: faction.Faction{ID: 2, Tag: "MYFC", Name: "My Faction",
				Members: map[faction.ActorID]faction.Role{
					1: faction.RoleFounder,
					2: faction.RoleMember,
				}}, Committed: true},
		},
		FactionReps: []reputation.FactionEntry{{A: 1, B: 2, Value: 1500}},
		ActorReps:   []reputation.ActorEntry{{Actor: 1, Faction: 1, Value: 1500}},
	}

	if err := db.SaveWorld(snap); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}
	if !db.HasWorld() {
		t.Fatal("HasWorld should be true after save")
	}

	state, err := db.LoadWorld()
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if state.Tick != 42 {
		t.Errorf("Tick = %d; want 42", state.Tick)
	}
	if len(state.Actors) != 2 || state.Actors[0].Name != "Riggs" {
		t.Errorf("Actors = %+v", state.Actors)
	}
	if len(state.Factions) != 2 {
		t.Fatalf("Factions = %d; want 2", len(state.Factions))
	}

	var myfc *faction.Faction
	for _, f := range state.Factions {
		if f.Tag == "MYFC" {
			myfc = f
		}
	}
	if myfc == nil {
		t.Fatal("MYFC not loaded")
	}
	if myfc.Members[1] != faction.RoleFounder || myfc.Members[2] != faction.RoleMember {
		t.Errorf("MYFC members = %+v", myfc.Members)
	}

	if len(state.FactionReps) != 1 || state.FactionReps[0].Value != 1500 {
		t.Errorf("FactionReps = %+v", state.FactionReps)
	}
	if len(state.ActorReps) != 1 || state.ActorReps[0].Value != 1500 {
		t.Errorf("ActorReps = %+v", state.ActorReps)
	}
}

func TestSaveWorldIsFullReplace(t *testing.T) {
	db := openTestDB(t)

	first := engine.Snapshot{
		Tick: 1,
		Factions: []engine.FactionState{
			{Faction: faction.Faction{ID: 1, Tag: "OLDF", Name: "Old",
				Members: map[faction.ActorID]faction.Role{}}},
		},
	}
	if err := db.SaveWorld(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := engine.Snapshot{
		Tick: 2,
		Factions: []engine.FactionState{
			{Faction: faction.Faction{ID: 2, Tag: "NEWF", Name: "New",
				Members: map[faction.ActorID]faction.Role{}}},
		},
	}
	if err := db.SaveWorld(second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	state, err := db.LoadWorld()
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if len(state.Factions) != 1 || state.Factions[0].Tag != "NEWF" {
		t.Errorf("Factions after replace = %+v", state.Factions)
	}
}

func TestEventsPersistence(t *testing.T) {
	db := openTestDB(t)

	evs := []events.Event{
		{Tick: 1, Description: "first", Category: "diplomacy"},
		{Tick: 2, Description: "second", Category: "faction"},
		{Tick: 3, Description: "third", Category: "admin"},
	}
	if err := db.SaveEvents(evs); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	got, err := db.RecentEvents(2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 2 || got[0].Description != "second" || got[1].Description != "third" {
		t.Errorf("RecentEvents = %+v", got)
	}
}

func TestMetaRoundtrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveMeta("season", "3"); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
	v, err := db.GetMeta("season")
	if err != nil || v != "3" {
		t.Errorf("GetMeta = %q, %v; want 3", v, err)
	}
}
