// Package registry tracks which connections are members of which rooms.
//
// Each room has its own lock, so traffic in one room never waits on another.
// A per-connection entry keeps the reverse index used by Purge; operations for
// one connection take its entry lock first and a room lock second. Purge leaves
// the entry behind as a tombstone so a later Join for the same id is refused.
package registry

import (
	"sort"
	"sync"
)

type room struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

type connRooms struct {
	mu     sync.Mutex
	rooms  map[string]struct{}
	purged bool
}

type Registry struct {
	roomsMu sync.RWMutex
	rooms   map[string]*room

	connsMu sync.Mutex
	conns   map[string]*connRooms
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		conns: make(map[string]*connRooms),
	}
}

// Join is idempotent and creates the room on first use.
func (r *Registry) Join(roomName, connID string) {
	cr := r.conn(connID)
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.purged {
		// connection is gone, do not resurrect it
		return
	}

	rm := r.room(roomName)
	rm.mu.Lock()
	rm.members[connID] = struct{}{}
	rm.mu.Unlock()

	cr.rooms[roomName] = struct{}{}
}

// Leave is a no-op when connID is not in the room.
func (r *Registry) Leave(roomName, connID string) {
	r.connsMu.Lock()
	cr, ok := r.conns[connID]
	r.connsMu.Unlock()
	if !ok {
		return
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if _, joined := cr.rooms[roomName]; !joined {
		return
	}
	delete(cr.rooms, roomName)
	r.removeMember(roomName, connID)
}

// Purge removes connID from every room and returns the rooms it left.
func (r *Registry) Purge(connID string) []string {
	cr := r.conn(connID)
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.purged {
		return nil
	}
	cr.purged = true
	left := make([]string, 0, len(cr.rooms))
	for name := range cr.rooms {
		r.removeMember(name, connID)
		left = append(left, name)
	}
	cr.rooms = nil
	sort.Strings(left)

	return left
}

// Members returns a copy of the room's member set taken under the room lock.
func (r *Registry) Members(roomName string) []string {
	r.roomsMu.RLock()
	rm, ok := r.rooms[roomName]
	r.roomsMu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}

	return out
}

func (r *Registry) Rooms(connID string) []string {
	r.connsMu.Lock()
	cr, ok := r.conns[connID]
	r.connsMu.Unlock()
	if !ok {
		return nil
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.purged {
		return nil
	}
	out := make([]string, 0, len(cr.rooms))
	for name := range cr.rooms {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// RoomCount includes rooms that are currently empty.
func (r *Registry) RoomCount() int {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()

	return len(r.rooms)
}

func (r *Registry) conn(connID string) *connRooms {
	r.connsMu.Lock()
	defer r.connsMu.Unlock()

	cr, ok := r.conns[connID]
	if !ok {
		cr = &connRooms{rooms: make(map[string]struct{})}
		r.conns[connID] = cr
	}

	return cr
}

func (r *Registry) room(name string) *room {
	r.roomsMu.RLock()
	rm, ok := r.rooms[name]
	r.roomsMu.RUnlock()
	if ok {
		return rm
	}

	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()

	if rm, ok = r.rooms[name]; !ok {
		rm = &room{members: make(map[string]struct{})}
		r.rooms[name] = rm
	}

	return rm
}

// removeMember keeps the room entry even when it becomes empty.
func (r *Registry) removeMember(roomName, connID string) {
	r.roomsMu.RLock()
	rm, ok := r.rooms[roomName]
	r.roomsMu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	delete(rm.members, connID)
	rm.mu.Unlock()
}
