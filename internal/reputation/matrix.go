// Package reputation stores diplomatic standing as signed integers, both
// between faction pairs and between individual actors and factions.
package reputation

import (
	"sort"

	"github.com/talgya/allegiance/internal/faction"
)

type pairKey struct {
	a, b faction.FactionID
}

type actorKey struct {
	actor faction.ActorID
	fac   faction.FactionID
}

// Matrix is the bidirectional reputation store. Unset pairs read as zero
// (neutral). Faction-pair writes are symmetric. Callers serialize access.
type Matrix struct {
	factions map[pairKey]int
	actors   map[actorKey]int
}

// NewMatrix creates an empty reputation matrix.
func NewMatrix() *Matrix {
	return &Matrix{
		factions: make(map[pairKey]int),
		actors:   make(map[actorKey]int),
	}
}

func normalize(a, b faction.FactionID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// SetFaction sets the reputation between two factions in both directions.
func (m *Matrix) SetFaction(a, b faction.FactionID, value int) {
	if a == b {
		return
	}
	m.factions[normalize(a, b)] = value
}

// Faction returns the reputation between two factions, zero when unset.
func (m *Matrix) Faction(a, b faction.FactionID) int {
	return m.factions[normalize(a, b)]
}

// SetActor sets an actor's personal reputation with a faction.
func (m *Matrix) SetActor(a faction.ActorID, f faction.FactionID, value int) {
	m.actors[actorKey{a, f}] = value
}

// Actor returns an actor's personal reputation with a faction, zero when unset.
func (m *Matrix) Actor(a faction.ActorID, f faction.FactionID) int {
	return m.actors[actorKey{a, f}]
}

// RemoveFaction clears every pair and personal entry involving a faction.
func (m *Matrix) RemoveFaction(id faction.FactionID) {
	for k := range m.factions {
		if k.a == id || k.b == id {
			delete(m.factions, k)
		}
	}
	for k := range m.actors {
		if k.fac == id {
			delete(m.actors, k)
		}
	}
}

// RemoveActor clears every personal entry for an actor.
func (m *Matrix) RemoveActor(a faction.ActorID) {
	for k := range m.actors {
		if k.actor == a {
			delete(m.actors, k)
		}
	}
}

// FactionEntry is one stored faction pair, normalized so A < B.
type FactionEntry struct {
	A, B  faction.FactionID
	Value int
}

// ActorEntry is one stored actor→faction value.
type ActorEntry struct {
	Actor   faction.ActorID
	Faction faction.FactionID
	Value   int
}

// FactionEntries returns all faction pairs in deterministic order, for persistence.
func (m *Matrix) FactionEntries() []FactionEntry {
	out := make([]FactionEntry, 0, len(m.factions))
	for k, v := range m.factions {
		out = append(out, FactionEntry{A: k.a, B: k.b, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// ActorEntries returns all actor entries in deterministic order, for persistence.
func (m *Matrix) ActorEntries() []ActorEntry {
	out := make([]ActorEntry, 0, len(m.actors))
	for k, v := range m.actors {
		out = append(out, ActorEntry{Actor: k.actor, Faction: k.fac, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Actor != out[j].Actor {
			return out[i].Actor < out[j].Actor
		}
		return out[i].Faction < out[j].Faction
	})
	return out
}
