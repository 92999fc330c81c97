// Package domain contains core concepts of the relay system.
// No runtime, network, or UI logic should be added here.
package domain

type Role string

const (
	RoleUnbound Role = "unbound"
	RoleHost    Role = "host"
	RoleMember  Role = "member"
)

// Session is one collaboration room: a single host, any number of members,
// and the current shared prompt. Members map display names to connection ids.
// Sessions are mutated only by the registry, under its lock.
type Session struct {
	ID         string
	OwnerToken string
	HostConnID string
	Members    map[string]string
	Prompt     string
}

func NewSession(id, ownerToken, hostConnID string) *Session {
	return &Session{
		ID:         id,
		OwnerToken: ownerToken,
		HostConnID: hostConnID,
		Members:    make(map[string]string),
	}
}

// Binding is the per-connection metadata record: which session the
// connection is bound to and under which role. The zero value is unbound.
type Binding struct {
	Role       Role
	SessionID  string
	Name       string
	OwnerToken string
}

func (b Binding) Bound() bool {
	return b.Role == RoleHost || b.Role == RoleMember
}
