package errors

import "fmt"

var (
	ErrWorkerPanic            = fmt.Errorf("worker panic")
	ErrEmptyWords             = fmt.Errorf("no words have been found")
	ErrSessionNotFound        = fmt.Errorf("session not found")
	ErrNameRequired           = fmt.Errorf("a display name is required")
	ErrNameConflictUnresolved = fmt.Errorf("display name conflict could not be resolved")
	ErrNotHost                = fmt.Errorf("connection is not the host of a session")
	ErrNotMember              = fmt.Errorf("connection is not a member of a session")
	ErrMemberNotFound         = fmt.Errorf("no such member in this session")
	ErrOwnershipConflict      = fmt.Errorf("client already owns or is bound to a session")
	ErrDecodeFailure          = fmt.Errorf("frame could not be decoded")
	ErrUnknownCommand         = fmt.Errorf("unknown command tag")
	ErrInvalidOwnerToken      = fmt.Errorf("owner token signature is invalid")
)
