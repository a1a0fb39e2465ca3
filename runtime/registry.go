package runtime

import (
	"match-chat/contract"
	"match-chat/observability"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[string]struct{}

type connection struct {
	userID string
	sink   contract.EventSink
}

// Registry is the process-local table of live connections and chat rooms.
// A user is online while at least one of its connections is registered.
// Rooms hold connection ids, so two devices of the same user join independently.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]connection // connID -> owner and sink
	userConns   map[string]Set        // userID -> connIDs
	roomMembers map[string]Set        // chatID -> connIDs
	connRooms   map[string]Set        // connID -> chatIDs
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]connection),
		userConns:   make(map[string]Set),
		roomMembers: make(map[string]Set),
		connRooms:   make(map[string]Set),
	}
}

// RegisterConnection adds connID for userID and reports whether the user went online.
func (r *Registry) RegisterConnection(userID, connID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[connID] = connection{userID: userID, sink: sink}
	conns, ok := r.userConns[userID]
	if !ok {
		conns = make(Set)
		r.userConns[userID] = conns
	}
	wentOnline := len(conns) == 0
	conns[connID] = struct{}{}
	return wentOnline
}

// UnregisterConnection removes connID from every room and reports whether it was the user's last one.
// Unknown connections are ignored.
func (r *Registry) UnregisterConnection(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok || conn.userID != userID {
		return false
	}
	delete(r.connections, connID)
	for chatID := range r.connRooms[connID] {
		r.removeMember(chatID, connID)
	}
	delete(r.connRooms, connID)

	conns := r.userConns[userID]
	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}
	delete(r.userConns, userID)
	return true
}

func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.userConns[userID])
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID]) > 0
}

// Join puts a registered connection in a chat room. It reports false for unknown connections.
func (r *Registry) Join(connID, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connID]; !ok {
		return false
	}
	if _, ok := r.roomMembers[chatID]; !ok {
		r.roomMembers[chatID] = make(Set)
	}
	r.roomMembers[chatID][connID] = struct{}{}
	if _, ok := r.connRooms[connID]; !ok {
		r.connRooms[connID] = make(Set)
	}
	r.connRooms[connID][chatID] = struct{}{}
	return true
}

func (r *Registry) Leave(connID, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMember(chatID, connID)
	if rooms, ok := r.connRooms[connID]; ok {
		delete(rooms, chatID)
		if len(rooms) == 0 {
			delete(r.connRooms, connID)
		}
	}
}

// removeMember expects the write lock. Empty rooms are dropped.
func (r *Registry) removeMember(chatID, connID string) {
	if members, ok := r.roomMembers[chatID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.roomMembers, chatID)
		}
	}
}

func (r *Registry) IsInRoom(connID, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[chatID][connID]
	return ok
}

// GetSinksForRoom returns the sinks of every connection joined to chatID,
// skipping all the connections of excludedUser.
func (r *Registry) GetSinksForRoom(chatID, excludedUser string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[chatID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range members {
		conn, exists := r.connections[connID]
		if !exists || (excludedUser != "" && conn.userID == excludedUser) {
			continue
		}
		sinks = append(sinks, conn.sink)
	}
	return sinks
}

// GetSinksForUsers returns the sinks of every connection of the given users, rooms aside.
func (r *Registry) GetSinksForUsers(userIDs ...string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, userID := range lo.Uniq(userIDs) {
		for connID := range r.userConns[userID] {
			sinks = append(sinks, r.connections[connID].sink)
		}
	}
	return sinks
}

func (r *Registry) Population() observability.Population {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return observability.Population{
		Connections: len(r.connections),
		OnlineUsers: len(r.userConns),
		Rooms:       len(r.roomMembers),
	}
}
