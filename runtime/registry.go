// Package runtime contains the relay engine: the session registry, the
// message router, and the workers that keep them healthy. It coordinates
// the system without containing transport or UI logic.
package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/errors"
)

// Registry is the single authority for session lifecycle and
// connection-to-session binding. Every mutating operation runs under one
// mutex so that concurrent joins, closes and disconnects always leave the
// session table and the per-connection bindings consistent with each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session // canonical id -> session
	owners   map[string]string          // owner token -> session id
	bindings map[string]domain.Binding  // conn id -> binding
	conns    map[string]contract.Conn   // conn id -> conn, bound conns only
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
		owners:   make(map[string]string),
		bindings: make(map[string]domain.Binding),
		conns:    make(map[string]contract.Conn),
	}
}

// JoinResult reports the outcome of a successful Join: the canonical
// session id, the final (possibly suffixed) display name, and the prompt
// currently in effect.
type JoinResult struct {
	SessionID string
	FinalName string
	Prompt    string
}

// Create registers a new session and binds the host connection.
// An empty or already-taken proposed id is replaced by a fresh random one,
// so the returned id may differ from the proposal. Fails with
// ErrOwnershipConflict when the owner token already owns an active session
// or the connection is already bound; an empty token skips the ownership
// check.
func (r *Registry) Create(proposedID, ownerToken string, host contract.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bindings[host.ID()].Bound() {
		return "", fmt.Errorf("connection already bound: %w", errors.ErrOwnershipConflict)
	}
	// Anonymous clients carry no token and are tracked per connection only.
	if ownerToken != "" {
		if _, owned := r.owners[ownerToken]; owned {
			return "", fmt.Errorf("owner token already holds a session: %w", errors.ErrOwnershipConflict)
		}
	}

	id := domain.NormalizeSessionID(proposedID)
	if _, taken := r.sessions[id]; id == "" || taken {
		for {
			id = domain.NewSessionID()
			if _, taken := r.sessions[id]; !taken {
				break
			}
		}
	}

	r.sessions[id] = domain.NewSession(id, ownerToken, host.ID())
	if ownerToken != "" {
		r.owners[ownerToken] = id
	}
	r.bindings[host.ID()] = domain.Binding{Role: domain.RoleHost, SessionID: id, OwnerToken: ownerToken}
	r.conns[host.ID()] = host
	return id, nil
}

// Join binds a connection as a member of an existing session. A desired
// name colliding with a current member gets an incrementing numeric suffix;
// Join never fails solely because of a name collision.
func (r *Registry) Join(sessionID, desiredName, ownerToken string, conn contract.Conn) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bindings[conn.ID()].Bound() {
		return JoinResult{}, fmt.Errorf("connection already bound: %w", errors.ErrOwnershipConflict)
	}
	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return JoinResult{}, errors.ErrSessionNotFound
	}
	name := strings.TrimSpace(desiredName)
	if name == "" {
		return JoinResult{}, errors.ErrNameRequired
	}

	final := name
	for i := 2; ; i++ {
		if _, taken := s.Members[final]; !taken {
			break
		}
		final = fmt.Sprintf("%s-%d", name, i)
	}

	s.Members[final] = conn.ID()
	r.bindings[conn.ID()] = domain.Binding{Role: domain.RoleMember, SessionID: s.ID, Name: final, OwnerToken: ownerToken}
	r.conns[conn.ID()] = conn
	return JoinResult{SessionID: s.ID, FinalName: final, Prompt: s.Prompt}, nil
}

// SetPrompt replaces the prompt of the session hosted by the given
// connection. Empty text is permitted. Returns the affected session id.
func (r *Registry) SetPrompt(host contract.Conn, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bindings[host.ID()]
	if b.Role != domain.RoleHost {
		return "", errors.ErrNotHost
	}
	s, ok := r.sessions[b.SessionID]
	if !ok {
		return "", errors.ErrSessionNotFound
	}
	s.Prompt = text
	return s.ID, nil
}

// HostOf resolves the host connection of a session. The second return is
// false when the session or its host is gone; callers treat that as a
// silent no-op, not an error.
func (r *Registry) HostOf(sessionID string) (contract.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[s.HostConnID]
	return conn, ok
}

// MemberConn resolves a member by display name for direct delivery,
// bypassing broadcast.
func (r *Registry) MemberConn(sessionID, name string) (contract.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	connID, ok := s.Members[name]
	if !ok {
		return nil, errors.ErrMemberNotFound
	}
	conn, ok := r.conns[connID]
	if !ok {
		return nil, errors.ErrMemberNotFound
	}
	return conn, nil
}

// RemoveMember unbinds the named member if present and reports whether a
// removal occurred. Idempotent: callers use the result to decide whether a
// departure should be broadcast.
func (r *Registry) RemoveMember(sessionID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return false
	}
	connID, ok := s.Members[name]
	if !ok {
		return false
	}
	delete(s.Members, name)
	delete(r.bindings, connID)
	delete(r.conns, connID)
	return true
}

// CloseSession destroys the session and unbinds every participant,
// returning the former member connections so the caller can notify and
// disconnect them. Idempotent: a missing session yields nil.
func (r *Registry) CloseSession(sessionID string) []contract.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return nil
	}

	var former []contract.Conn
	for _, connID := range s.Members {
		if conn, live := r.conns[connID]; live {
			former = append(former, conn)
		}
		delete(r.bindings, connID)
		delete(r.conns, connID)
	}
	delete(r.bindings, s.HostConnID)
	delete(r.conns, s.HostConnID)
	delete(r.owners, s.OwnerToken)
	delete(r.sessions, s.ID)
	return former
}

// LookupByConn resolves the current binding of a connection.
// The zero binding (role unbound) is returned for unknown connections.
func (r *Registry) LookupByConn(conn contract.Conn) (domain.Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[conn.ID()]
	return b, ok
}

// Participants snapshots every connection currently bound to the session,
// host first. Used for broadcast fan-out.
func (r *Registry) Participants(sessionID string) []contract.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return nil
	}
	var all []contract.Conn
	if host, live := r.conns[s.HostConnID]; live {
		all = append(all, host)
	}
	for _, connID := range s.Members {
		if conn, live := r.conns[connID]; live {
			all = append(all, conn)
		}
	}
	return all
}

// MemberNames returns the current member display names in sorted order.
func (r *Registry) MemberNames(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(s.Members))
	for name := range s.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prompt returns the current prompt of a session, empty when unknown.
func (r *Registry) Prompt(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[domain.NormalizeSessionID(sessionID)]; ok {
		return s.Prompt
	}
	return ""
}
