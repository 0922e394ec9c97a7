package hub

import "sync"

// Rooms owns the bidirectional room membership relation. Invariant: a
// client appears in a room's member set if and only if that room appears in
// the client's joined set. Both indexes mutate under one mutex so the
// symmetry holds at every observable point.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomID -> client IDs
	joined  map[string]map[string]struct{} // clientID -> room IDs
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds the client to the room, creating the room on first join.
// Joining a room twice is a no-op.
func (r *Rooms) Join(clientID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]struct{})
	}
	r.members[roomID][clientID] = struct{}{}

	if r.joined[clientID] == nil {
		r.joined[clientID] = make(map[string]struct{})
	}
	r.joined[clientID][roomID] = struct{}{}
}

// Leave removes the client from the room. Rooms have no existence
// independent of membership: the last leave deletes the room entry.
// Leaving a room never joined is a no-op.
func (r *Rooms) Leave(clientID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(clientID, roomID)
}

func (r *Rooms) leaveLocked(clientID, roomID string) {
	if set := r.members[roomID]; set != nil {
		delete(set, clientID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	if set := r.joined[clientID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.joined, clientID)
		}
	}
}

// LeaveAll removes the client from every room it had joined and deletes its
// index entry, all under the lock. Used exclusively during teardown; returns
// the rooms that were left.
func (r *Rooms) LeaveAll(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.joined[clientID]
	if len(set) == 0 {
		delete(r.joined, clientID)
		return nil
	}
	rooms := make([]string, 0, len(set))
	for roomID := range set {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		r.leaveLocked(clientID, roomID)
	}
	return rooms
}

// Members returns the current member set; empty slice for an unknown room.
func (r *Rooms) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[roomID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns the rooms the client has joined; empty slice for an
// unknown client.
func (r *Rooms) RoomsOf(clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.joined[clientID]
	rooms := make([]string, 0, len(set))
	for roomID := range set {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// RoomIDs enumerates all rooms that currently have members.
func (r *Rooms) RoomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}
