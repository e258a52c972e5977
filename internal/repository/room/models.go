package room

import "time"

type Participant struct {
	ConnID    string
	UserID    string
	Username  string
	Anonymous bool
	JoinedAt  time.Time
}

// State is a point-in-time copy of a room. Mutating it does not affect the registry.
type State struct {
	RoomID       string
	HostID       string
	CurrentTime  float64
	IsPlaying    bool
	UpdatedAt    time.Time
	Version      uint64
	Participants []Participant
}

// Position extrapolates the playback position at now. While paused it is CurrentTime.
func (s State) Position(now time.Time) float64 {
	if !s.IsPlaying || s.UpdatedAt.IsZero() {
		return s.CurrentTime
	}

	elapsed := now.Sub(s.UpdatedAt).Seconds()
	if elapsed < 0 {
		return s.CurrentTime
	}

	return s.CurrentTime + elapsed
}

func (s State) IsHost(userID string) bool {
	return s.HostID == userID
}
