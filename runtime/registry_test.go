package runtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"relay-lab/domain"
	"relay-lab/errors"
)

// fakeConn records every frame the engine sends it. Shared by the
// registry and router tests.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	alive  bool
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, alive: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func (c *fakeConn) Probe() error { return nil }

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeConn) MarkAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events decodes every recorded frame into a flat map.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.frames))
	for _, frame := range c.frames {
		var flat map[string]any
		require.NoError(t, json.Unmarshal(frame, &flat))
		out = append(out, flat)
	}
	return out
}

func (c *fakeConn) eventsOf(t *testing.T, tag string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, evt := range c.events(t) {
		if evt["tag"] == tag {
			out = append(out, evt)
		}
	}
	return out
}

func TestRegistry_Create_With_Empty_Proposal_Generates_Id(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	host := newFakeConn("conn-host")

	// When creating without proposing an identifier
	id, err := registry.Create("", "owner-1", host)

	// Then a fresh fixed-length token is assigned
	req.NoError(err)
	req.Len(id, domain.SessionIDLength)

	// And the host connection is bound
	binding, ok := registry.LookupByConn(host)
	req.True(ok)
	req.Equal(domain.RoleHost, binding.Role)
	req.Equal(id, binding.SessionID)
}

func TestRegistry_Create_Keeps_Free_Proposal_And_Normalizes_Case(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	id, err := registry.Create("MATH42", "owner-1", newFakeConn("conn-1"))

	req.NoError(err)
	req.Equal("math42", id)
}

func TestRegistry_Create_Replaces_Taken_Proposal(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	first, err := registry.Create("math42", "owner-1", newFakeConn("conn-1"))
	req.NoError(err)

	// When a second host proposes the same identifier
	second, err := registry.Create("math42", "owner-2", newFakeConn("conn-2"))

	// Then the returned identifier differs from the proposal and stays unique
	req.NoError(err)
	req.NotEqual(first, second)
	req.Len(second, domain.SessionIDLength)
}

func TestRegistry_Create_Rejects_Owner_Holding_A_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Create("", "owner-1", newFakeConn("conn-1"))
	req.NoError(err)

	_, err = registry.Create("", "owner-1", newFakeConn("conn-2"))

	req.ErrorIs(err, errors.ErrOwnershipConflict)
}

func TestRegistry_Create_Allows_Multiple_Anonymous_Owners(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Two clients without tokens each create their own session
	first, err := registry.Create("", "", newFakeConn("conn-1"))
	req.NoError(err)
	second, err := registry.Create("", "", newFakeConn("conn-2"))
	req.NoError(err)

	req.NotEqual(first, second)

	// A closed anonymous session leaves the other untouched
	registry.CloseSession(first)
	_, ok := registry.HostOf(second)
	req.True(ok)
}

func TestRegistry_Create_Rejects_Already_Bound_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	host := newFakeConn("conn-1")

	_, err := registry.Create("", "owner-1", host)
	req.NoError(err)

	_, err = registry.Create("", "owner-2", host)

	req.ErrorIs(err, errors.ErrOwnershipConflict)
}

func TestRegistry_Join_Unknown_Session_Fails(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Join("nope99", "ana", "tok", newFakeConn("conn-1"))

	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func TestRegistry_Join_Requires_A_Name(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)

	_, err = registry.Join(id, "   ", "tok", newFakeConn("conn-1"))

	req.ErrorIs(err, errors.ErrNameRequired)
}

func TestRegistry_Join_Suffixes_Colliding_Names(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)

	// When three members ask for the same name
	first, err := registry.Join(id, "ana", "tok-1", newFakeConn("conn-1"))
	req.NoError(err)
	second, err := registry.Join(id, "ana", "tok-2", newFakeConn("conn-2"))
	req.NoError(err)
	third, err := registry.Join(id, "ana", "tok-3", newFakeConn("conn-3"))
	req.NoError(err)

	// Then each gets a distinct final name
	req.Equal("ana", first.FinalName)
	req.Equal("ana-2", second.FinalName)
	req.Equal("ana-3", third.FinalName)
	req.ElementsMatch([]string{"ana", "ana-2", "ana-3"}, registry.MemberNames(id))
}

func TestRegistry_Join_Is_Case_Insensitive_On_Session_Id(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("math42", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)

	res, err := registry.Join("MATH42", "ana", "tok", newFakeConn("conn-1"))

	req.NoError(err)
	req.Equal(id, res.SessionID)
}

func TestRegistry_Concurrent_Joins_Never_Share_A_Name(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)

	const joiners = 20
	var wg sync.WaitGroup
	results := make(chan string, joiners)

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := registry.Join(id, "ana", "tok", newFakeConn(fmt.Sprintf("conn-%d", i)))
			if err == nil {
				results <- res.FinalName
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	for name := range results {
		_, duplicate := seen[name]
		req.False(duplicate, "name %q assigned twice", name)
		seen[name] = struct{}{}
	}
	req.Len(seen, joiners)
}

func TestRegistry_SetPrompt_Requires_Host(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)
	member := newFakeConn("conn-1")
	_, err = registry.Join(id, "ana", "tok", member)
	req.NoError(err)

	_, err = registry.SetPrompt(member, "What is 2+2?")

	req.ErrorIs(err, errors.ErrNotHost)
}

func TestRegistry_SetPrompt_Replaces_Text_Unconditionally(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	host := newFakeConn("conn-host")
	id, err := registry.Create("", "owner-1", host)
	req.NoError(err)

	_, err = registry.SetPrompt(host, "What is 2+2?")
	req.NoError(err)
	req.Equal("What is 2+2?", registry.Prompt(id))

	// Empty text is permitted
	_, err = registry.SetPrompt(host, "")
	req.NoError(err)
	req.Equal("", registry.Prompt(id))
}

func TestRegistry_RemoveMember_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)
	_, err = registry.Join(id, "ana", "tok", newFakeConn("conn-1"))
	req.NoError(err)

	req.True(registry.RemoveMember(id, "ana"))
	req.False(registry.RemoveMember(id, "ana"))
	req.Empty(registry.MemberNames(id))
}

func TestRegistry_CloseSession_Unbinds_Everyone(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	host := newFakeConn("conn-host")
	member := newFakeConn("conn-1")
	id, err := registry.Create("", "owner-1", host)
	req.NoError(err)
	_, err = registry.Join(id, "ana", "tok", member)
	req.NoError(err)

	former := registry.CloseSession(id)

	req.Len(former, 1)
	_, hostBound := registry.LookupByConn(host)
	req.False(hostBound)
	_, memberBound := registry.LookupByConn(member)
	req.False(memberBound)

	// And the identifier is free again, owner included
	_, err = registry.Create(id, "owner-1", newFakeConn("conn-2"))
	req.NoError(err)
}

func TestRegistry_CloseSession_On_Unknown_Id_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.Nil(registry.CloseSession("nope99"))
}

func TestRegistry_MemberConn_Resolves_Direct_Target(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id, err := registry.Create("", "owner-1", newFakeConn("conn-host"))
	req.NoError(err)
	member := newFakeConn("conn-1")
	_, err = registry.Join(id, "ana", "tok", member)
	req.NoError(err)

	conn, err := registry.MemberConn(id, "ana")
	req.NoError(err)
	req.Equal(member.ID(), conn.ID())

	_, err = registry.MemberConn(id, "bob")
	req.ErrorIs(err, errors.ErrMemberNotFound)
}

func TestRegistry_HostOf_Reports_Gone_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	host := newFakeConn("conn-host")
	id, err := registry.Create("", "owner-1", host)
	req.NoError(err)

	conn, ok := registry.HostOf(id)
	req.True(ok)
	req.Equal(host.ID(), conn.ID())

	registry.CloseSession(id)
	_, ok = registry.HostOf(id)
	req.False(ok)
}
