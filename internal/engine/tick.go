// Package engine provides the tick loop and the world context object that
// wires the diplomacy core to its collaborators.
package engine

import (
	"log/slog"
	"time"
)

// Tick cadence. One tick is the smallest scheduling unit; coarser layers
// are derived from the counter.
const (
	DefaultTickInterval = 250 * time.Millisecond
	TicksPerMinute      = 240   // at the default interval
	TicksPerHour        = 14400 // 60 minutes
)

// Engine drives the world forward, one tick at a time.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base tick interval

	// Callbacks for each tick layer — populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnMinute func(tick uint64) // Every TicksPerMinute ticks
	OnHour   func(tick uint64) // Every TicksPerHour ticks

	stop chan struct{}
}

// NewEngine creates a tick engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: DefaultTickInterval,
		stop:     make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until Stop is called.
func (e *Engine) Run() {
	slog.Info("tick engine started", "tick", e.Tick, "interval", e.Interval, "speed", e.Speed)

	for {
		select {
		case <-e.stop:
			slog.Info("tick engine stopped", "tick", e.Tick)
			return
		default:
		}

		if e.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}

// Stop halts the tick loop.
func (e *Engine) Stop() {
	close(e.stop)
}

// step advances the world by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerMinute == 0 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}
	if e.Tick%TicksPerHour == 0 && e.OnHour != nil {
		e.OnHour(e.Tick)
	}
}
