package alliance

import "fmt"

// FailureKind identifies the expected, user-facing reasons an alignment
// request terminates. These are ordinary outcomes, not faults: each maps
// to one aborted operation with zero side effects.
type FailureKind uint8

const (
	IdentityUnresolved FailureKind = iota
	NoFaction
	InsufficientRole
	AlreadyCommitted
	UnknownTarget
	TargetNotAllowed
	SelfAlignment
)

// AlignError is a terminal precondition failure from Align. Its message is
// meant to be shown to the requesting player verbatim.
type AlignError struct {
	Kind FailureKind
	Tag  string // target tag, when relevant
}

func (e *AlignError) Error() string {
	switch e.Kind {
	case IdentityUnresolved:
		return "your identity could not be resolved"
	case NoFaction:
		return "you are not a member of any faction"
	case InsufficientRole:
		return "only the faction founder or a leader can choose an alliance"
	case AlreadyCommitted:
		return "your faction has already made its alliance choice"
	case UnknownTarget:
		return fmt.Sprintf("no faction with tag %q exists", e.Tag)
	case TargetNotAllowed:
		return fmt.Sprintf("%q is not an eligible alliance power", e.Tag)
	case SelfAlignment:
		return "you cannot ally your faction with itself"
	default:
		return "alignment failed"
	}
}
