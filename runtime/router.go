package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/domain/event"
	"relay-lab/errors"
	"relay-lab/protocol"
)

// Censor rewrites relayed text before broadcast. A nil Censor disables
// moderation.
type Censor interface {
	Censor(text string) string
}

// TokenVerifier checks the signature of an owner token when signed tokens
// are required. A nil verifier accepts any token.
type TokenVerifier func(token string) error

// Router is the protocol state machine. Each connection moves
// Unbound -> Host (create) or Unbound -> Member (join) and back to Unbound
// on leave, close or disconnect. All role violations are answered with an
// error event to the sender only; nothing here terminates a connection
// except the disconnect path itself.
type Router struct {
	log       *slog.Logger
	registry  *Registry
	validator protocol.CommandValidator
	censor    Censor
	verify    TokenVerifier
	taps      chan event.Tagged
}

func NewRouter(log *slog.Logger, registry *Registry, validator protocol.CommandValidator,
	censor Censor, verify TokenVerifier, tapBufferSize int) *Router {
	return &Router{
		log:       log,
		registry:  registry,
		validator: validator,
		censor:    censor,
		verify:    verify,
		taps:      make(chan event.Tagged, tapBufferSize),
	}
}

// Taps exposes the stream of tagged outbound events for the fan-out worker.
func (rt *Router) Taps() <-chan event.Tagged {
	return rt.taps
}

// Dispatch decodes and executes one inbound frame. Malformed frames are
// dropped without a reply; everything else answers the sender, directly or
// through a broadcast.
func (rt *Router) Dispatch(ctx context.Context, conn contract.Conn, frame []byte) {
	cmd, err := protocol.Decode(frame)
	if err != nil {
		rt.log.Debug("Dropping undecodable frame", "conn_id", conn.ID(), "err", err)
		return
	}
	if err := rt.validator.Validate(cmd); err != nil {
		rt.sendError(conn, err)
		return
	}

	switch c := cmd.(type) {
	case domain.CreateCommand:
		rt.handleCreate(conn, c)
	case domain.JoinCommand:
		rt.handleJoin(conn, c)
	case domain.SetPromptCommand:
		rt.handleSetPrompt(conn, c)
	case domain.AnswerCommand:
		rt.handleAnswer(conn, c)
	case domain.FeedbackCommand:
		rt.handleFeedback(conn, c)
	case domain.LeaveCommand:
		rt.handleLeave(conn)
	case domain.CloseCommand:
		rt.handleClose(conn)
	case domain.UnknownCommand:
		rt.sendError(conn, fmt.Errorf("%w: %q", errors.ErrUnknownCommand, c.Tag))
	}
}

func (rt *Router) handleCreate(conn contract.Conn, c domain.CreateCommand) {
	if rt.verify != nil {
		if err := rt.verify(c.OwnerToken); err != nil {
			rt.sendError(conn, fmt.Errorf("%w: %v", errors.ErrInvalidOwnerToken, err))
			return
		}
	}
	id, err := rt.registry.Create(c.SessionID, c.OwnerToken, conn)
	if err != nil {
		rt.sendError(conn, err)
		return
	}
	rt.log.Info("Session created", "session_id", id, "host_conn", conn.ID())
	rt.sendTo(id, conn, event.Created{SessionID: id})
	rt.broadcast(id, event.MemberList{SessionID: id, Members: rt.registry.MemberNames(id)})
	if prompt := rt.registry.Prompt(id); prompt != "" {
		rt.broadcast(id, event.PromptUpdate{Text: prompt})
	}
}

func (rt *Router) handleJoin(conn contract.Conn, c domain.JoinCommand) {
	res, err := rt.registry.Join(c.SessionID, c.Name, c.OwnerToken, conn)
	if err != nil {
		rt.sendError(conn, err)
		return
	}
	rt.log.Info("Member joined", "session_id", res.SessionID, "name", res.FinalName)
	rt.sendTo(res.SessionID, conn, event.Joined{
		SessionID: res.SessionID,
		Name:      res.FinalName,
		Prompt:    res.Prompt,
	})
	rt.broadcast(res.SessionID, event.MemberList{
		SessionID: res.SessionID,
		Members:   rt.registry.MemberNames(res.SessionID),
	})
	rt.broadcast(res.SessionID, event.MemberJoined{SessionID: res.SessionID, Name: res.FinalName})
}

func (rt *Router) handleSetPrompt(conn contract.Conn, c domain.SetPromptCommand) {
	text := rt.censored(c.Text)
	id, err := rt.registry.SetPrompt(conn, text)
	if err != nil {
		rt.sendError(conn, err)
		return
	}
	rt.broadcast(id, event.PromptUpdate{Text: text})
}

func (rt *Router) handleAnswer(conn contract.Conn, c domain.AnswerCommand) {
	b, _ := rt.registry.LookupByConn(conn)
	if b.Role != domain.RoleMember {
		rt.sendError(conn, errors.ErrNotMember)
		return
	}
	host, ok := rt.registry.HostOf(b.SessionID)
	if !ok {
		// Session or host vanished between frames: the sender learns
		// about it through its own connection state, not an error.
		return
	}
	rt.sendTo(b.SessionID, host, event.AnswerReceived{
		Name:     b.Name,
		Payload:  rt.censored(c.Payload),
		Filename: c.Filename,
	})
}

func (rt *Router) handleFeedback(conn contract.Conn, c domain.FeedbackCommand) {
	b, _ := rt.registry.LookupByConn(conn)
	if b.Role != domain.RoleHost {
		rt.sendError(conn, errors.ErrNotHost)
		return
	}
	target, err := rt.registry.MemberConn(b.SessionID, c.To)
	if err != nil {
		rt.sendError(conn, err)
		return
	}
	rt.sendTo(b.SessionID, target, event.Feedback{Text: rt.censored(c.Text)})
}

func (rt *Router) handleLeave(conn contract.Conn) {
	b, _ := rt.registry.LookupByConn(conn)
	if b.Role != domain.RoleMember {
		rt.sendError(conn, errors.ErrNotMember)
		return
	}
	if rt.registry.RemoveMember(b.SessionID, b.Name) {
		rt.log.Info("Member left", "session_id", b.SessionID, "name", b.Name)
		rt.broadcast(b.SessionID, event.MemberLeft{SessionID: b.SessionID, Name: b.Name})
		rt.broadcast(b.SessionID, event.MemberList{
			SessionID: b.SessionID,
			Members:   rt.registry.MemberNames(b.SessionID),
		})
	}
}

func (rt *Router) handleClose(conn contract.Conn) {
	b, _ := rt.registry.LookupByConn(conn)
	if b.Role != domain.RoleHost {
		rt.sendError(conn, errors.ErrNotHost)
		return
	}
	rt.closeSession(b.SessionID, conn)
}

// Disconnect is the cleanup path shared by explicit disconnects, transport
// errors and liveness eviction. Safe to invoke more than once for the same
// connection: the second caller finds the binding already gone.
func (rt *Router) Disconnect(ctx context.Context, conn contract.Conn) {
	b, ok := rt.registry.LookupByConn(conn)
	if !ok || !b.Bound() {
		return
	}
	switch b.Role {
	case domain.RoleHost:
		rt.log.Info("Host disconnected, closing session", "session_id", b.SessionID)
		rt.closeSession(b.SessionID, nil)
	case domain.RoleMember:
		if rt.registry.RemoveMember(b.SessionID, b.Name) {
			rt.log.Info("Member disconnected", "session_id", b.SessionID, "name", b.Name)
			rt.broadcast(b.SessionID, event.MemberLeft{SessionID: b.SessionID, Name: b.Name})
			rt.broadcast(b.SessionID, event.MemberList{
				SessionID: b.SessionID,
				Members:   rt.registry.MemberNames(b.SessionID),
			})
		}
	}
}

// closeSession destroys the session, notifies every former participant and
// force-disconnects the members. The host, when still connected, only gets
// the sessionClosed event and drops back to Unbound.
func (rt *Router) closeSession(sessionID string, host contract.Conn) {
	former := rt.registry.CloseSession(sessionID)
	rt.log.Info("Session closed", "session_id", sessionID, "members", len(former))

	closed := event.SessionClosed{}
	if host != nil {
		rt.sendTo(sessionID, host, closed)
	}
	for _, member := range former {
		rt.sendTo(sessionID, member, closed)
	}
	for _, member := range former {
		if err := member.Close(); err != nil {
			rt.log.Debug("Closing former member failed", "conn_id", member.ID(), "err", err)
		}
	}
}

func (rt *Router) sendError(conn contract.Conn, err error) {
	rt.sendTo("", conn, event.Error{Message: err.Error()})
}

// sendTo delivers one event to a single connection and mirrors it to taps.
func (rt *Router) sendTo(sessionID string, conn contract.Conn, e event.Event) {
	frame, err := protocol.Encode(e)
	if err != nil {
		rt.log.Error("Encoding event failed", "tag", e.EventTag(), "err", err)
		return
	}
	conn.Send(frame)
	rt.tap(event.Tagged{SessionID: sessionID, Dest: []string{conn.ID()}, Event: e})
}

// broadcast delivers one event to every current participant of a session.
// Delivery is best effort per connection; a slow peer only loses its own
// frames, never anyone else's.
func (rt *Router) broadcast(sessionID string, e event.Event) {
	conns := rt.registry.Participants(sessionID)
	if len(conns) == 0 {
		return
	}
	frame, err := protocol.Encode(e)
	if err != nil {
		rt.log.Error("Encoding event failed", "tag", e.EventTag(), "err", err)
		return
	}
	for _, conn := range conns {
		conn.Send(frame)
	}
	dest := lo.Map(conns, func(c contract.Conn, _ int) string { return c.ID() })
	rt.tap(event.Tagged{SessionID: sessionID, Dest: dest, Event: e})
}

func (rt *Router) tap(e event.Tagged) {
	select {
	case rt.taps <- e:
	default:
		rt.log.Debug("Tap channel full, dropping event copy", "tag", e.Event.EventTag())
	}
}

func (rt *Router) censored(text string) string {
	if rt.censor == nil {
		return text
	}
	return rt.censor.Censor(text)
}
