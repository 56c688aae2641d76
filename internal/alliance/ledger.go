package alliance

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/talgya/allegiance/internal/faction"
)

// Ledger is the persisted set of faction IDs that have completed their
// one-time alliance choice. It is the single source of truth for the
// one-choice-only rule. The file holds one faction ID per line and is
// rewritten in full on every mutation.
type Ledger struct {
	path   string
	chosen map[faction.FactionID]struct{}
}

// LoadLedger reads the ledger file at path. A missing or unreadable file
// yields an empty ledger; the risk of re-granting a choice is accepted
// over refusing to start.
func LoadLedger(path string) *Ledger {
	l := &Ledger{
		path:   path,
		chosen: make(map[faction.FactionID]struct{}),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l
	}
	if err != nil {
		slog.Warn("could not read alliance ledger, starting empty", "path", path, "error", err)
		return l
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			slog.Warn("skipping malformed ledger line", "path", path, "line", line)
			continue
		}
		l.chosen[faction.FactionID(id)] = struct{}{}
	}
	return l
}

// Contains reports whether a faction has already made its choice.
func (l *Ledger) Contains(id faction.FactionID) bool {
	_, ok := l.chosen[id]
	return ok
}

// Add records a completed choice and persists synchronously.
func (l *Ledger) Add(id faction.FactionID) error {
	l.chosen[id] = struct{}{}
	return l.save()
}

// Remove clears a faction's choice and persists synchronously.
func (l *Ledger) Remove(id faction.FactionID) error {
	delete(l.chosen, id)
	return l.save()
}

// IDs returns the recorded faction IDs in ascending order.
func (l *Ledger) IDs() []faction.FactionID {
	out := make([]faction.FactionID, 0, len(l.chosen))
	for id := range l.chosen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *Ledger) save() error {
	var b strings.Builder
	for _, id := range l.IDs() {
		fmt.Fprintf(&b, "%d\n", id)
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	return nil
}
