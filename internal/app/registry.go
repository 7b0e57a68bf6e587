package app

import (
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	UserID domain.UserID
	Conn   core.SignalConnection
}

// Registry maps users to their live transport connections.
// A user is online exactly while it owns at least one connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnectionID]*connEntry
	byUser map[domain.UserID]map[core.ConnectionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnectionID]*connEntry),
		byUser: make(map[domain.UserID]map[core.ConnectionID]struct{}),
	}
}

// Register binds cid to uid. first is true when this made the user
// go from zero to one connection. Registering a known cid is a no-op.
func (r *Registry) Register(uid domain.UserID, cid core.ConnectionID, conn core.SignalConnection) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		if e.UserID != uid {
			log.Warn().Str("module", "app.registry").Str("cid", string(cid)).Str("owner", string(e.UserID)).Str("user", string(uid)).Msg("connection already owned by another user")
		}
		return false
	}
	set, ok := r.byUser[uid]
	if !ok {
		set = make(map[core.ConnectionID]struct{})
		r.byUser[uid] = set
	}
	set[cid] = struct{}{}
	r.conns[cid] = &connEntry{UserID: uid, Conn: conn}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("user", string(uid)).Int("conns", len(set)).Msg("registered connection")
	return len(set) == 1
}

// Deregister forgets cid. last is true when it was the owner's final
// connection. An unknown cid reports found == false.
func (r *Registry) Deregister(cid core.ConnectionID) (uid domain.UserID, last bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false, false
	}
	last = r.removeLocked(cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("user", string(e.UserID)).Bool("last", last).Msg("deregistered connection")
	return e.UserID, last, true
}

func (r *Registry) removeLocked(cid core.ConnectionID) (last bool) {
	e := r.conns[cid]
	delete(r.conns, cid)
	set := r.byUser[e.UserID]
	delete(set, cid)
	if len(set) == 0 {
		delete(r.byUser, e.UserID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[uid]) > 0
}

// OwnerOf returns the user a connection is authenticated as.
func (r *Registry) OwnerOf(cid core.ConnectionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false
	}
	return e.UserID, true
}

type ConnSnap struct {
	ID   core.ConnectionID
	Conn core.SignalConnection
}

// ConnectionsOf returns a copy of the user's live connections.
func (r *Registry) ConnectionsOf(uid domain.UserID) []ConnSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[uid]
	out := make([]ConnSnap, 0, len(set))
	for cid := range set {
		out = append(out, ConnSnap{ID: cid, Conn: r.conns[cid].Conn})
	}
	return out
}

// Connection looks up a single live connection.
func (r *Registry) Connection(cid core.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// Stats returns the number of online users and open connections.
func (r *Registry) Stats() (users, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser), len(r.conns)
}
