package presence

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
)
