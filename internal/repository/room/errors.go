package room

import "errors"

var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrUnauthorized            = errors.New("only the host may change playback state")
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrInvalidPlaybackPosition = errors.New("invalid playback position")
)
