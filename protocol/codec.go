// Package protocol translates wire frames to and from the closed command
// and event types of the domain. Frames are small JSON records carrying a
// "tag" discriminant.
package protocol

import (
	"encoding/json"
	"fmt"

	"relay-lab/domain"
	"relay-lab/domain/event"
	"relay-lab/errors"
)

type envelope struct {
	Tag string `json:"tag"`
}

// Decode turns a raw frame into a typed command.
// A frame that is not valid JSON or has no tag yields ErrDecodeFailure;
// the caller drops those silently since the sender cannot yet be trusted
// as a protocol peer. A well-formed frame with an unrecognized tag decodes
// to UnknownCommand so the router can answer with an error event.
func Decode(raw []byte) (domain.Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecodeFailure, err)
	}
	if env.Tag == "" {
		return nil, fmt.Errorf("%w: missing tag", errors.ErrDecodeFailure)
	}

	var (
		cmd domain.Command
		err error
	)
	switch env.Tag {
	case "create":
		var c domain.CreateCommand
		err = json.Unmarshal(raw, &c)
		cmd = c
	case "join":
		var c domain.JoinCommand
		err = json.Unmarshal(raw, &c)
		cmd = c
	case "setPrompt":
		var c domain.SetPromptCommand
		err = json.Unmarshal(raw, &c)
		cmd = c
	case "answer":
		var c domain.AnswerCommand
		err = json.Unmarshal(raw, &c)
		cmd = c
	case "feedback":
		var c domain.FeedbackCommand
		err = json.Unmarshal(raw, &c)
		cmd = c
	case "leave":
		cmd = domain.LeaveCommand{}
	case "close":
		cmd = domain.CloseCommand{}
	default:
		return domain.UnknownCommand{Tag: env.Tag}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecodeFailure, err)
	}
	return cmd, nil
}

// Encode serializes an outbound event with its tag injected alongside the
// event's own fields, producing the flat record shape clients expect.
func Encode(e event.Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]any)
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	flat["tag"] = e.EventTag()
	return json.Marshal(flat)
}
