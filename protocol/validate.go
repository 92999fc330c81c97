package protocol

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"relay-lab/domain"
)

var validate = validator.New()

const maxNameLength = 64

// CommandValidator bounds the size of free-text fields on inbound commands.
// Emptiness rules (NameRequired and friends) belong to the registry; this
// layer only rejects frames that are too large to relay.
type CommandValidator struct {
	maxContentLength int
}

func NewCommandValidator(maxContentLength int) CommandValidator {
	return CommandValidator{maxContentLength: maxContentLength}
}

func (v CommandValidator) Validate(cmd domain.Command) error {
	contentRule := fmt.Sprintf("max=%d", v.maxContentLength)
	nameRule := fmt.Sprintf("max=%d", maxNameLength)

	switch c := cmd.(type) {
	case domain.JoinCommand:
		if err := validate.Var(c.Name, nameRule); err != nil {
			return fmt.Errorf("name exceeds %d characters", maxNameLength)
		}
	case domain.SetPromptCommand:
		if err := validate.Var(c.Text, contentRule); err != nil {
			return fmt.Errorf("prompt exceeds %d characters", v.maxContentLength)
		}
	case domain.AnswerCommand:
		if err := validate.Var(c.Payload, contentRule); err != nil {
			return fmt.Errorf("payload exceeds %d characters", v.maxContentLength)
		}
	case domain.FeedbackCommand:
		if err := validate.Var(c.To, nameRule); err != nil {
			return fmt.Errorf("target name exceeds %d characters", maxNameLength)
		}
		if err := validate.Var(c.Text, contentRule); err != nil {
			return fmt.Errorf("feedback exceeds %d characters", v.maxContentLength)
		}
	}
	return nil
}
