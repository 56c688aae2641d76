package faction

import (
	"fmt"
	"sort"
)

// Registry tracks every faction and known actor in the world and answers
// the capability queries the diplomacy core depends on. It holds no locks
// of its own; callers serialize access (see engine.World).
type Registry struct {
	factions   map[FactionID]*Faction
	byTag      map[string]FactionID
	actors     map[ActorID]Actor
	membership map[ActorID]FactionID
	nextID     FactionID

	// Hooks fire after a mutation is fully applied. The world uses them to
	// enqueue deferred reactions rather than reacting inline.
	OnFactionCreated func(FactionID)
	OnMemberJoined   func(FactionID, ActorID)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factions:   make(map[FactionID]*Faction),
		byTag:      make(map[string]FactionID),
		actors:     make(map[ActorID]Actor),
		membership: make(map[ActorID]FactionID),
		nextID:     1,
	}
}

// RegisterActor records a player identity, updating the name if already known.
func (r *Registry) RegisterActor(id ActorID, name string) {
	r.actors[id] = Actor{ID: id, Name: name}
}

// Actor resolves a stable identity.
func (r *Registry) Actor(id ActorID) (Actor, bool) {
	a, ok := r.actors[id]
	return a, ok
}

// Actors returns all known actors ordered by ID.
func (r *Registry) Actors() []Actor {
	out := make([]Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create registers a new faction. A nil founder creates a memberless
// (NPC-only) faction, used for seeding configured power factions.
// Tags must be unique; tag matching is case-sensitive.
func (r *Registry) Create(tag, name string, founder *ActorID) (*Faction, error) {
	if tag == "" {
		return nil, fmt.Errorf("faction tag must not be empty")
	}
	if _, exists := r.byTag[tag]; exists {
		return nil, fmt.Errorf("faction tag %q already in use", tag)
	}
	if founder != nil {
		if _, known := r.actors[*founder]; !known {
			return nil, fmt.Errorf("unknown founder actor %d", *founder)
		}
		if _, inFaction := r.membership[*founder]; inFaction {
			return nil, fmt.Errorf("actor %d already belongs to a faction", *founder)
		}
	}

	f := &Faction{
		ID:      r.nextID,
		Tag:     tag,
		Name:    name,
		Members: make(map[ActorID]Role),
	}
	r.nextID++
	if founder != nil {
		f.Members[*founder] = RoleFounder
		r.membership[*founder] = f.ID
	}
	r.factions[f.ID] = f
	r.byTag[tag] = f.ID

	if r.OnFactionCreated != nil {
		r.OnFactionCreated(f.ID)
	}
	return f, nil
}

// AddMember accepts an actor into a faction with the given role.
func (r *Registry) AddMember(id FactionID, actor ActorID, role Role) error {
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("unknown faction %d", id)
	}
	if _, known := r.actors[actor]; !known {
		return fmt.Errorf("unknown actor %d", actor)
	}
	if existing, inFaction := r.membership[actor]; inFaction && existing != id {
		return fmt.Errorf("actor %d already belongs to faction %d", actor, existing)
	}
	f.Members[actor] = role
	r.membership[actor] = id

	if r.OnMemberJoined != nil {
		r.OnMemberJoined(id, actor)
	}
	return nil
}

// RemoveMember removes an actor from a faction.
func (r *Registry) RemoveMember(id FactionID, actor ActorID) {
	f, ok := r.factions[id]
	if !ok {
		return
	}
	delete(f.Members, actor)
	if r.membership[actor] == id {
		delete(r.membership, actor)
	}
}

// Disband removes a faction and all its memberships.
func (r *Registry) Disband(id FactionID) {
	f, ok := r.factions[id]
	if !ok {
		return
	}
	for actor := range f.Members {
		if r.membership[actor] == id {
			delete(r.membership, actor)
		}
	}
	delete(r.byTag, f.Tag)
	delete(r.factions, id)
}

// ByTag resolves a faction by its tag (case-sensitive).
func (r *Registry) ByTag(tag string) (*Faction, bool) {
	id, ok := r.byTag[tag]
	if !ok {
		return nil, false
	}
	return r.factions[id], true
}

// ByID resolves a faction by its ID.
func (r *Registry) ByID(id FactionID) (*Faction, bool) {
	f, ok := r.factions[id]
	return f, ok
}

// All returns every faction ordered by ID.
func (r *Registry) All() []*Faction {
	out := make([]*Faction, 0, len(r.factions))
	for _, f := range r.factions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FactionOf returns the faction an actor belongs to, if any.
func (r *Registry) FactionOf(actor ActorID) (*Faction, bool) {
	id, ok := r.membership[actor]
	if !ok {
		return nil, false
	}
	f, ok := r.factions[id]
	return f, ok
}

// IsFounder reports whether the actor holds the founder role in the faction.
func (r *Registry) IsFounder(id FactionID, actor ActorID) bool {
	f, ok := r.factions[id]
	return ok && f.Members[actor] == RoleFounder
}

// IsLeader reports whether the actor holds the leader role in the faction.
func (r *Registry) IsLeader(id FactionID, actor ActorID) bool {
	f, ok := r.factions[id]
	return ok && f.Members[actor] == RoleLeader
}

// NPCOnly reports whether the faction has no human members.
// Unknown factions are treated as NPC-only.
func (r *Registry) NPCOnly(id FactionID) bool {
	f, ok := r.factions[id]
	return !ok || f.NPCOnly()
}

// Restore inserts a faction loaded from persistence without firing hooks
// and keeps the ID allocator above every restored ID.
func (r *Registry) Restore(f *Faction) {
	if f.Members == nil {
		f.Members = make(map[ActorID]Role)
	}
	r.factions[f.ID] = f
	r.byTag[f.Tag] = f.ID
	for actor := range f.Members {
		r.membership[actor] = f.ID
	}
	if f.ID >= r.nextID {
		r.nextID = f.ID + 1
	}
}
