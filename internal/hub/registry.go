package hub

import "sync"

// Registry tracks which live clients belong to which room. Rooms are pure
// runtime state: created implicitly on first join, discarded when the last
// member leaves. Both directions of the relation are indexed so that
// OnDisconnect is proportional to the client's own memberships.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
	}
}

// Join attaches the client to the room, creating the room if absent. Joining
// a room already joined is a no-op. Returns true when the membership is new.
func (r *Registry) Join(c *Client, roomID string) bool {
	if c == nil || roomID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[roomID] = room
	}
	if _, joined := room[c]; joined {
		return false
	}
	room[c] = struct{}{}

	joined, ok := r.memberships[c]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[c] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave detaches the client from the room. Leaving a room not joined, or an
// unknown room, is a no-op. An emptied room is discarded.
func (r *Registry) Leave(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, roomID)
}

func (r *Registry) leaveLocked(c *Client, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if _, joined := room[c]; !joined {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	if joined, ok := r.memberships[c]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.memberships, c)
		}
	}
}

// LeaveAll detaches the client from every room it had joined.
func (r *Registry) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.memberships[c] {
		r.leaveLocked(c, roomID)
	}
	delete(r.memberships, c)
}

// OnDisconnect is the disconnect hook: it guarantees no leaked membership
// after a connection dies, however many rooms it was in.
func (r *Registry) OnDisconnect(c *Client) {
	r.LeaveAll(c)
}

// MembersOf returns the room's current members excluding the given client,
// so a sender never receives its own echo. An unknown room yields an empty
// slice, never an error.
func (r *Registry) MembersOf(roomID string, exclude *Client) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	members := make([]*Client, 0, len(room))
	for c := range room {
		if c != exclude {
			members = append(members, c)
		}
	}
	return members
}

// RoomsOf returns the ids of the rooms the client currently belongs to.
func (r *Registry) RoomsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.memberships[c]))
	for roomID := range r.memberships[c] {
		ids = append(ids, roomID)
	}
	return ids
}
