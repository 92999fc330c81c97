package transport

import (
	"sync"

	"relay-lab/contract"
)

// ConnTable tracks every live connection regardless of session binding.
// The liveness monitor probes this set; the accept loop adds and the
// disconnect path removes.
type ConnTable struct {
	mu    sync.RWMutex
	conns map[string]contract.Conn
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[string]contract.Conn)}
}

func (t *ConnTable) Add(conn contract.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[conn.ID()] = conn
}

func (t *ConnTable) Remove(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, connID)
}

func (t *ConnTable) Snapshot() []contract.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]contract.Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		out = append(out, conn)
	}
	return out
}

func (t *ConnTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
