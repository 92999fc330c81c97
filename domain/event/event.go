package event

// Event is an outbound record delivered to connections and taps.
// Events are immutable after construction.
type Event interface {
	EventTag() string
}

type Created struct {
	SessionID string `json:"sessionId"`
}

type Joined struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
}

type MemberList struct {
	SessionID string   `json:"sessionId"`
	Members   []string `json:"members"`
}

type MemberJoined struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type MemberLeft struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type PromptUpdate struct {
	Text string `json:"text"`
}

type AnswerReceived struct {
	Name     string `json:"name"`
	Payload  string `json:"payload"`
	Filename string `json:"filename,omitempty"`
}

type Feedback struct {
	Text string `json:"text"`
}

type SessionClosed struct{}

type Error struct {
	Message string `json:"message"`
}

func (Created) EventTag() string        { return "created" }
func (Joined) EventTag() string         { return "joined" }
func (MemberList) EventTag() string     { return "memberList" }
func (MemberJoined) EventTag() string   { return "memberJoined" }
func (MemberLeft) EventTag() string     { return "memberLeft" }
func (PromptUpdate) EventTag() string   { return "promptUpdate" }
func (AnswerReceived) EventTag() string { return "answerReceived" }
func (Feedback) EventTag() string       { return "feedback" }
func (SessionClosed) EventTag() string  { return "sessionClosed" }
func (Error) EventTag() string          { return "error" }

// Tagged wraps an outbound event with the session it concerns and the
// connection ids it was delivered to. This is what subscriber sinks
// (persistence, projections) consume; they never influence routing.
type Tagged struct {
	SessionID string
	Dest      []string
	Event     Event
}
