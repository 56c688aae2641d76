// Factions — named player groups with membership, roles, and diplomatic standing.
package faction

// FactionID is a unique identifier for a faction, stable for its lifetime.
type FactionID uint64

// ActorID is the stable identity of a player. Transient session handles
// are mapped to ActorIDs at the transport layer.
type ActorID uint64

// Role is an actor's rank within a faction.
type Role uint8

const (
	RoleMember Role = iota
	RoleLeader
	RoleFounder
)

// RoleName returns a display name for a role.
func RoleName(r Role) string {
	switch r {
	case RoleFounder:
		return "founder"
	case RoleLeader:
		return "leader"
	default:
		return "member"
	}
}

// Actor is a known player identity.
type Actor struct {
	ID   ActorID `json:"id"`
	Name string  `json:"name"`
}

// Faction represents a named group with membership and roles.
// The diplomacy core only reads factions; creation and membership changes
// come from the surrounding world (admin plane, game events).
type Faction struct {
	ID      FactionID        `json:"id"`
	Tag     string           `json:"tag"`
	Name    string           `json:"name"`
	Members map[ActorID]Role `json:"members"`
}

// NPCOnly reports whether the faction has no human members. Configured
// power factions are seeded memberless, so they stay NPC-only until a
// player somehow joins them.
func (f *Faction) NPCOnly() bool {
	return len(f.Members) == 0
}

// MemberIDs returns the current member identities in unspecified order.
func (f *Faction) MemberIDs() []ActorID {
	ids := make([]ActorID, 0, len(f.Members))
	for id := range f.Members {
		ids = append(ids, id)
	}
	return ids
}
