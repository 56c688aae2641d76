package reputation

// Standing is the qualitative relation derived from a numeric reputation
// value. The hostile threshold comes from configuration; the underlying
// relation model has no fixed cutoff of its own.
type Standing uint8

const (
	Hostile Standing = iota
	Neutral
	Allied
)

// StandingOf derives the qualitative standing from a reputation value.
// Values at or below hostileThreshold are hostile; values at or above its
// mirror are allied; everything between is neutral.
func StandingOf(value, hostileThreshold int) Standing {
	if value <= hostileThreshold {
		return Hostile
	}
	if value >= -hostileThreshold {
		return Allied
	}
	return Neutral
}

// String returns the display name of a standing.
func (s Standing) String() string {
	switch s {
	case Hostile:
		return "hostile"
	case Allied:
		return "allied"
	default:
		return "neutral"
	}
}
