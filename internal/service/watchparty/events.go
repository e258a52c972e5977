package watchparty

import (
	"time"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/internal/repository/room"
)

const (
	TypeRoomState            = "ROOM_STATE"
	TypeUserJoined           = "USER_JOINED"
	TypeUserLeft             = "USER_LEFT"
	TypePlaybackStateChanged = "PLAYBACK_STATE_CHANGED"
	TypeReceiveMessage       = "RECEIVE_MESSAGE"
	TypeHostChanged          = "HOST_CHANGED"
	TypeRoomClosed           = "ROOM_CLOSED"
)

// Event is the closed set of messages this package sends to room members.
type Event interface {
	hub.Event
	roomEvent()
}

type Participant struct {
	ConnID   string `json:"conn_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsHost   bool   `json:"is_host"`
}

func newParticipant(p room.Participant, hostID string) Participant {
	return Participant{
		ConnID:   p.ConnID,
		UserID:   p.UserID,
		Username: p.Username,
		IsHost:   p.UserID == hostID,
	}
}

func newParticipants(s room.State) []Participant {
	list := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		list = append(list, newParticipant(p, s.HostID))
	}

	return list
}

type RoomStateEvent struct {
	RoomID       string        `json:"room_id"`
	HostID       string        `json:"host_id"`
	CurrentTime  float64       `json:"current_time"`
	IsPlaying    bool          `json:"is_playing"`
	Version      uint64        `json:"version"`
	IsHost       bool          `json:"is_host"`
	Participants []Participant `json:"participants"`
	ServerTime   time.Time     `json:"server_time"`
}

type UserJoinedEvent struct {
	Participant       Participant `json:"participant"`
	ParticipantsCount int         `json:"participants_count"`
}

type UserLeftEvent struct {
	Participant       Participant `json:"participant"`
	ParticipantsCount int         `json:"participants_count"`
}

type PlaybackStateChangedEvent struct {
	CurrentTime float64 `json:"current_time"`
	IsPlaying   bool    `json:"is_playing"`
	Version     uint64  `json:"version"`
	UpdatedBy   string  `json:"updated_by"`
}

type ReceiveMessageEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type HostChangedEvent struct {
	HostID   string `json:"host_id"`
	Username string `json:"username"`
}

type RoomClosedEvent struct {
	RoomID   string `json:"room_id"`
	ClosedBy string `json:"closed_by"`
}

func (RoomStateEvent) EventType() string { return TypeRoomState }
func (UserJoinedEvent) EventType() string { return TypeUserJoined }
func (UserLeftEvent) EventType() string { return TypeUserLeft }
func (PlaybackStateChangedEvent) EventType() string { return TypePlaybackStateChanged }
func (ReceiveMessageEvent) EventType() string { return TypeReceiveMessage }
func (HostChangedEvent) EventType() string { return TypeHostChanged }
func (RoomClosedEvent) EventType() string { return TypeRoomClosed }

func (RoomStateEvent) roomEvent() {}
func (UserJoinedEvent) roomEvent() {}
func (UserLeftEvent) roomEvent() {}
func (PlaybackStateChangedEvent) roomEvent() {}
func (ReceiveMessageEvent) roomEvent() {}
func (HostChangedEvent) roomEvent() {}
func (RoomClosedEvent) roomEvent() {}
