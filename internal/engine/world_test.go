package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/allegiance/internal/alliance"
	"github.com/talgya/allegiance/internal/faction"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := alliance.DefaultConfig()
	cfg.FactionTags = []string{"SOBAN", "KHAANEPH"}
	ledger := alliance.LoadLedger(filepath.Join(t.TempDir(), "choices.txt"))

	w := NewWorld(cfg, ledger)
	w.SeedPowers()
	w.TickStep(1) // run seeding reactions (no-ops for NPC powers)
	return w
}

func TestSeedPowers(t *testing.T) {
	w := newTestWorld(t)

	for _, tag := range []string{"SOBAN", "KHAANEPH"} {
		f, ok := w.Registry.ByTag(tag)
		if !ok {
			t.Fatalf("power %s not seeded", tag)
		}
		if !f.NPCOnly() {
			t.Errorf("seeded power %s should be NPC-only", tag)
		}
	}

	// Seeding again must not duplicate.
	w.SeedPowers()
	if n := len(w.Registry.All()); n != 2 {
		t.Errorf("faction count after reseed = %d; want 2", n)
	}
}

func TestFactionCreatedReactionIsDeferred(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")

	founder := faction.ActorID(1)
	f, err := w.CreateFaction("MYFC", "My Faction", &founder)
	if err != nil {
		t.Fatalf("CreateFaction: %v", err)
	}

	soban, _ := w.Registry.ByTag("SOBAN")
	if got := w.Matrix.Faction(f.ID, soban.ID); got != 0 {
		t.Fatalf("defaults applied before the next tick: %d", got)
	}

	w.TickStep(2)
	if got := w.Matrix.Faction(f.ID, soban.ID); got != -500 {
		t.Errorf("rep(MYFC,SOBAN) after tick = %d; want default -500", got)
	}
	if got := w.Matrix.Actor(1, soban.ID); got != -500 {
		t.Errorf("founder personal rep after tick = %d; want -500", got)
	}
}

func TestMemberJoinedReactionIsDeferred(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")
	w.EnsureActor(2, "Vex")

	founder := faction.ActorID(1)
	f, _ := w.CreateFaction("MYFC", "My Faction", &founder)
	w.TickStep(2)

	// Leader aligns; then a new member joins and syncs next tick.
	reply := submitAndTick(w, 3, 1, "/alliance SOBAN", false)
	if !strings.Contains(reply, "allied with SOBAN") {
		t.Fatalf("align reply = %q", reply)
	}

	if err := w.AddMember("MYFC", 2, faction.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	soban, _ := w.Registry.ByTag("SOBAN")
	if got := w.Matrix.Actor(2, soban.ID); got != 0 {
		t.Fatalf("sync ran before the next tick: %d", got)
	}

	w.TickStep(4)
	if got := w.Matrix.Actor(2, soban.ID); got != 1500 {
		t.Errorf("joiner rep with SOBAN = %d; want faction's 1500", got)
	}
	_ = f
}

func TestSubmitCommandRunsWithinTick(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")

	reply := submitAndTick(w, 2, 1, "/alliance list", false)
	if !strings.Contains(reply, "SOBAN") {
		t.Errorf("list reply = %q", reply)
	}
}

func TestSubmitCommandGivesUpWithContext(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")

	// No tick runs during this test, so nothing ever drains the inbox;
	// the wait must end with the context instead of blocking forever.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := w.SubmitCommand(ctx, 1, "/alliance list", false); err == nil {
		t.Fatal("expected a context error while the tick loop is idle")
	}
}

func TestAdminResetThroughWorld(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")

	founder := faction.ActorID(1)
	f, _ := w.CreateFaction("MYFC", "My Faction", &founder)
	w.TickStep(2)
	submitAndTick(w, 3, 1, "/alliance SOBAN", false)

	if _, err := w.Reset("MYFC"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, id := range w.LedgerIDs() {
		if id == f.ID {
			t.Error("ledger entry should be cleared after reset")
		}
	}
}

func TestSnapshotIsConsistentCopy(t *testing.T) {
	w := newTestWorld(t)
	w.EnsureActor(1, "Riggs")
	founder := faction.ActorID(1)
	_, _ = w.CreateFaction("MYFC", "My Faction", &founder)
	w.TickStep(2)
	submitAndTick(w, 3, 1, "/alliance SOBAN", false)

	snap := w.Snapshot()
	if len(snap.Factions) != 3 {
		t.Fatalf("snapshot factions = %d; want 3", len(snap.Factions))
	}
	var myfc *FactionState
	for i := range snap.Factions {
		if snap.Factions[i].Tag == "MYFC" {
			myfc = &snap.Factions[i]
		}
	}
	if myfc == nil || !myfc.Committed {
		t.Fatalf("MYFC should be committed in snapshot: %+v", myfc)
	}

	// Mutating the snapshot must not touch the live registry.
	delete(myfc.Members, 1)
	live, _ := w.Registry.ByTag("MYFC")
	if len(live.Members) != 1 {
		t.Error("snapshot mutation leaked into the registry")
	}
}

// submitAndTick submits a command and advances one tick so it executes.
func submitAndTick(w *World, tick uint64, actor faction.ActorID, line string, admin bool) string {
	done := make(chan string, 1)
	go func() {
		reply, _ := w.SubmitCommand(context.Background(), actor, line, admin)
		done <- reply
	}()
	// The command lands on the inbox before TickStep drains it; poll until
	// the reply arrives in case the goroutine has not submitted yet.
	for {
		w.TickStep(tick)
		select {
		case reply := <-done:
			return reply
		default:
		}
	}
}
