package room

import "time"

type UpdateStateParams struct {
	RoomID      string
	CurrentTime float64
	IsPlaying   bool
	RequesterID string
	// At is when the update was received. Zero means now.
	At time.Time
}

type JoinParams struct {
	RoomID      string
	Participant Participant
}

type JoinResult struct {
	State         State
	Created       bool
	AlreadyJoined bool
}

type LeaveParams struct {
	RoomID string
	ConnID string
}

type LeaveResult struct {
	State       State
	Left        Participant
	Removed     bool
	HostChanged bool
}

type CloseParams struct {
	RoomID      string
	RequesterID string
}
