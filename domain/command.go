package domain

// Command is an inbound intent decoded from a wire frame.
// Commands are immutable after construction.
type Command interface {
	CommandTag() string
}

type CreateCommand struct {
	SessionID  string `json:"sessionId,omitempty"`
	OwnerToken string `json:"ownerToken"`
}

type JoinCommand struct {
	SessionID  string `json:"sessionId"`
	Name       string `json:"name"`
	OwnerToken string `json:"ownerToken"`
}

type SetPromptCommand struct {
	Text string `json:"text"`
}

type AnswerCommand struct {
	Payload  string `json:"payload"`
	Filename string `json:"filename,omitempty"`
}

type FeedbackCommand struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type LeaveCommand struct{}

type CloseCommand struct{}

// UnknownCommand preserves an unrecognized tag so the router can answer
// with an explicit error instead of swallowing the frame.
type UnknownCommand struct {
	Tag string
}

func (CreateCommand) CommandTag() string    { return "create" }
func (JoinCommand) CommandTag() string      { return "join" }
func (SetPromptCommand) CommandTag() string { return "setPrompt" }
func (AnswerCommand) CommandTag() string    { return "answer" }
func (FeedbackCommand) CommandTag() string  { return "feedback" }
func (LeaveCommand) CommandTag() string     { return "leave" }
func (CloseCommand) CommandTag() string     { return "close" }
func (c UnknownCommand) CommandTag() string { return c.Tag }
