// Package alliance implements the one-time faction alliance choice: a
// role-gated leader action that commits a faction's diplomatic posture
// toward a configured set of power factions, replicated across the
// reputation matrix and every member's personal standing.
package alliance

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the alliance tuning values read from the key = value
// config file. Zero-choice behavior is driven entirely by FactionTags:
// an empty list disables alignment and listing.
type Config struct {
	FactionTags          []string
	AllyReputation       int
	EnemyReputation      int
	DefaultReputation    int
	HostileThreshold     int
	AllowOnlyNpcFactions bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		AllyReputation:       1500,
		EnemyReputation:      -1500,
		DefaultReputation:    -500,
		HostileThreshold:     -500,
		AllowOnlyNpcFactions: true,
	}
}

// ParseConfig reads the line-oriented key = value format. Blank lines and
// lines starting with # or // are comments. Unknown keys and malformed
// values are ignored; the corresponding default stays in effect.
func ParseConfig(r io.Reader) Config {
	cfg := DefaultConfig()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Factions":
			var tags []string
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
			cfg.FactionTags = tags
		case "AllyReputation":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.AllyReputation = n
			}
		case "EnemyReputation":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.EnemyReputation = n
			}
		case "DefaultReputation":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.DefaultReputation = n
			}
		case "HostileThreshold":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.HostileThreshold = n
			}
		case "AllowOnlyNpcFactions":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.AllowOnlyNpcFactions = b
			}
		}
	}
	return cfg
}

// LoadConfig reads the config file at path. A missing file generates a
// commented default file; any read failure falls back to defaults. Config
// problems are never fatal.
func LoadConfig(path string) Config {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if werr := WriteDefaultConfig(path); werr != nil {
			slog.Warn("could not write default alliance config", "path", path, "error", werr)
		} else {
			slog.Info("generated default alliance config", "path", path)
		}
		return DefaultConfig()
	}
	if err != nil {
		slog.Warn("could not read alliance config, using defaults", "path", path, "error", err)
		return DefaultConfig()
	}
	defer f.Close()
	return ParseConfig(f)
}

// WriteDefaultConfig writes a commented default config file.
func WriteDefaultConfig(path string) error {
	d := DefaultConfig()
	content := fmt.Sprintf(`# Alliance configuration.
# Lines starting with # or // are comments. Unknown keys are ignored.

# Comma-separated tags of the power factions players may align with.
# Tags that do not resolve to an existing faction are silently skipped.
Factions =

# Reputation written toward the chosen ally.
AllyReputation = %d

# Reputation written toward every other configured power.
EnemyReputation = %d

# Reputation applied to newly created factions before they choose.
DefaultReputation = %d

# Values at or below this read as hostile; at or above its mirror, allied.
HostileThreshold = %d

# When true, only memberless (NPC) factions are eligible alignment targets.
AllowOnlyNpcFactions = %t
`, d.AllyReputation, d.EnemyReputation, d.DefaultReputation, d.HostileThreshold, d.AllowOnlyNpcFactions)

	return os.WriteFile(path, []byte(content), 0644)
}
