package alliance

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/allegiance/internal/faction"
)

// Registry is the faction-lookup surface the engine consumes. It is
// implemented by faction.Registry; the engine never mutates factions.
type Registry interface {
	Actor(id faction.ActorID) (faction.Actor, bool)
	ByTag(tag string) (*faction.Faction, bool)
	ByID(id faction.FactionID) (*faction.Faction, bool)
	All() []*faction.Faction
	FactionOf(actor faction.ActorID) (*faction.Faction, bool)
	IsFounder(id faction.FactionID, actor faction.ActorID) bool
	IsLeader(id faction.FactionID, actor faction.ActorID) bool
	NPCOnly(id faction.FactionID) bool
}

// Matrix is the reputation substrate the engine writes through. Faction
// writes apply in both directions.
type Matrix interface {
	SetFaction(a, b faction.FactionID, value int)
	Faction(a, b faction.FactionID) int
	SetActor(a faction.ActorID, f faction.FactionID, value int)
	Actor(a faction.ActorID, f faction.FactionID) int
}

// Engine is the alliance-choice state machine. All methods must run on
// the single simulation goroutine (or behind the world mutex); the engine
// itself holds no locks.
type Engine struct {
	cfg    Config
	reg    Registry
	matrix Matrix
	ledger *Ledger

	// Emit, when set, records a world event. Nil disables event emission.
	Emit func(description, category string)
}

// NewEngine wires the engine to its collaborators.
func NewEngine(cfg Config, reg Registry, matrix Matrix, ledger *Ledger) *Engine {
	return &Engine{cfg: cfg, reg: reg, matrix: matrix, ledger: ledger}
}

// Config returns the active alliance configuration.
func (e *Engine) Config() Config { return e.cfg }

// Ledger returns the choice ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// AllowedFactions resolves the configured power tags against the live
// registry: tags must resolve to an existing faction and, when the
// NPC-only filter is on, to a memberless one. Unresolved tags are
// silently dropped and configuration order is preserved. The result is
// never cached — it must reflect live faction state.
func (e *Engine) AllowedFactions() []*faction.Faction {
	out := make([]*faction.Faction, 0, len(e.cfg.FactionTags))
	for _, tag := range e.cfg.FactionTags {
		f, ok := e.reg.ByTag(tag)
		if !ok {
			continue
		}
		if e.cfg.AllowOnlyNpcFactions && !f.NPCOnly() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Align performs the one-time alliance choice for the requesting actor's
// faction. The seven preconditions are checked in order; each failure is
// a typed AlignError with zero side effects. On success every allowed
// power gets the ally or enemy reputation (both the faction pair and each
// member's personal value), the choice is committed to the ledger, and a
// confirmation string is returned.
func (e *Engine) Align(actor faction.ActorID, tag string) (string, error) {
	if _, ok := e.reg.Actor(actor); !ok {
		return "", &AlignError{Kind: IdentityUnresolved}
	}
	own, ok := e.reg.FactionOf(actor)
	if !ok {
		return "", &AlignError{Kind: NoFaction}
	}
	if !e.reg.IsFounder(own.ID, actor) && !e.reg.IsLeader(own.ID, actor) {
		return "", &AlignError{Kind: InsufficientRole}
	}
	if e.ledger.Contains(own.ID) {
		return "", &AlignError{Kind: AlreadyCommitted}
	}
	target, ok := e.reg.ByTag(tag)
	if !ok {
		return "", &AlignError{Kind: UnknownTarget, Tag: tag}
	}
	allowed := e.AllowedFactions()
	if !containsFaction(allowed, target.ID) {
		return "", &AlignError{Kind: TargetNotAllowed, Tag: tag}
	}
	if target.ID == own.ID {
		return "", &AlignError{Kind: SelfAlignment}
	}

	// All checks passed: apply every matrix write, then commit the ledger
	// entry. A crash in between is recoverable via administrative reset;
	// no automatic rollback is attempted.
	members := own.MemberIDs()
	for _, f := range allowed {
		value := e.cfg.EnemyReputation
		if f.ID == target.ID {
			value = e.cfg.AllyReputation
		}
		e.matrix.SetFaction(own.ID, f.ID, value)
		for _, m := range members {
			e.matrix.SetActor(m, f.ID, value)
		}
	}

	if err := e.ledger.Add(own.ID); err != nil {
		// The choice is applied and held in memory; only durability failed.
		slog.Error("alliance ledger persist failed", "faction", own.Tag, "error", err)
	}

	msg := fmt.Sprintf("%s is now allied with %s (reputation %d).",
		own.Tag, target.Tag, e.cfg.AllyReputation)
	if len(allowed) > 1 {
		msg += fmt.Sprintf(" All other powers now regard %s as an enemy (%d).",
			own.Tag, e.cfg.EnemyReputation)
	}
	e.emit(fmt.Sprintf("%s has pledged allegiance to %s", own.Name, target.Name), "diplomacy")
	slog.Info("alliance committed", "faction", own.Tag, "ally", target.Tag)
	return msg, nil
}

// ApplyDefaults applies the configured default reputation between a newly
// created faction and every allowed power, including each member's
// personal value. NPC-only factions are skipped. The ledger is untouched:
// defaulting is distinct from committing a choice.
func (e *Engine) ApplyDefaults(id faction.FactionID) {
	if e.reg.NPCOnly(id) {
		return
	}
	f, ok := e.reg.ByID(id)
	if !ok {
		return
	}
	e.applyDefaults(f)
}

func (e *Engine) applyDefaults(f *faction.Faction) {
	members := f.MemberIDs()
	for _, power := range e.AllowedFactions() {
		if power.ID == f.ID {
			continue
		}
		e.matrix.SetFaction(f.ID, power.ID, e.cfg.DefaultReputation)
		for _, m := range members {
			e.matrix.SetActor(m, power.ID, e.cfg.DefaultReputation)
		}
	}
	slog.Info("default reputation applied", "faction", f.Tag, "value", e.cfg.DefaultReputation)
}

// SyncMember copies the faction's current standing with each allowed
// power onto a newly joined member, so personal reputation immediately
// reflects the faction's diplomatic posture. NPC-only factions are skipped.
func (e *Engine) SyncMember(id faction.FactionID, actor faction.ActorID) {
	if e.reg.NPCOnly(id) {
		return
	}
	f, ok := e.reg.ByID(id)
	if !ok {
		return
	}
	for _, power := range e.AllowedFactions() {
		if power.ID == f.ID {
			continue
		}
		e.matrix.SetActor(actor, power.ID, e.matrix.Faction(f.ID, power.ID))
	}
}

// Reset re-applies default reputation to the named faction and clears its
// ledger entry, allowing a fresh alliance choice. Authorization is the
// caller's concern; the engine only performs the operation.
func (e *Engine) Reset(tag string) (string, error) {
	f, ok := e.reg.ByTag(tag)
	if !ok {
		return "", &AlignError{Kind: UnknownTarget, Tag: tag}
	}
	e.applyDefaults(f)
	if err := e.ledger.Remove(f.ID); err != nil {
		slog.Error("alliance ledger persist failed", "faction", f.Tag, "error", err)
	}
	e.emit(fmt.Sprintf("The alliance choice of %s has been reset", f.Name), "admin")
	slog.Info("alliance reset", "faction", f.Tag)
	return fmt.Sprintf("Alliance choice for %s has been reset.", f.Tag), nil
}

// ResetAll resets every non-NPC faction.
func (e *Engine) ResetAll() string {
	count := 0
	for _, f := range e.reg.All() {
		if f.NPCOnly() {
			continue
		}
		e.applyDefaults(f)
		if err := e.ledger.Remove(f.ID); err != nil {
			slog.Error("alliance ledger persist failed", "faction", f.Tag, "error", err)
		}
		count++
	}
	e.emit("All alliance choices have been reset", "admin")
	slog.Info("alliance reset all", "factions", count)
	return fmt.Sprintf("Alliance choices reset for %d factions.", count)
}

// Status describes the requesting actor's faction standing toward each
// allowed power.
func (e *Engine) Status(actor faction.ActorID) (string, error) {
	if _, ok := e.reg.Actor(actor); !ok {
		return "", &AlignError{Kind: IdentityUnresolved}
	}
	own, ok := e.reg.FactionOf(actor)
	if !ok {
		return "", &AlignError{Kind: NoFaction}
	}

	allowed := e.AllowedFactions()
	if len(allowed) == 0 {
		return "No alliance powers are configured.", nil
	}

	var b strings.Builder
	if e.ledger.Contains(own.ID) {
		fmt.Fprintf(&b, "%s has made its alliance choice.", own.Tag)
	} else {
		fmt.Fprintf(&b, "%s has not chosen an alliance yet.", own.Tag)
	}
	for _, power := range allowed {
		fmt.Fprintf(&b, "\n  %s: %d", power.Tag, e.matrix.Faction(own.ID, power.ID))
	}
	return b.String(), nil
}

// List names the currently eligible alliance powers.
func (e *Engine) List() string {
	allowed := e.AllowedFactions()
	if len(allowed) == 0 {
		return "No alliance powers are configured."
	}
	tags := make([]string, len(allowed))
	for i, f := range allowed {
		tags[i] = f.Tag
	}
	return "Available alliance powers: " + strings.Join(tags, ", ")
}

func (e *Engine) emit(description, category string) {
	if e.Emit != nil {
		e.Emit(description, category)
	}
}

// IsAlignError reports whether err is one of the expected user-facing
// alignment failures, and returns its kind.
func IsAlignError(err error) (FailureKind, bool) {
	var ae *AlignError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

func containsFaction(list []*faction.Faction, id faction.FactionID) bool {
	for _, f := range list {
		if f.ID == id {
			return true
		}
	}
	return false
}
