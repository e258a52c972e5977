// Package watchparty relays playback state, presence and chat between the members of a room.
package watchparty

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/internal/metrics"
	"github.com/cinestream/watchparty/internal/repository/connection"
	"github.com/cinestream/watchparty/internal/repository/presence"
	"github.com/cinestream/watchparty/internal/repository/room"
)

var (
	ErrNotInRoom  = errors.New("connection is not in this room")
	ErrValidation = errors.New("validation failed")
)

type iRoomRepo interface {
	Get(roomID string) (room.State, error)
	Count() int
	UpdateState(*room.UpdateStateParams) (room.State, error)
	Join(*room.JoinParams) (room.JoinResult, error)
	Leave(*room.LeaveParams) (room.LeaveResult, error)
	Close(*room.CloseParams) (room.State, error)
}

type iConnRepo interface {
	Add(connection.Connection) error
	Remove(connID string) (connection.Connection, error)
	Get(connID string) (connection.Connection, error)
	SetRoom(connID, roomID string) (string, error)
	ClearRoom(connID, roomID string) error
}

type iPresenceRepo interface {
	AddParticipant(context.Context, *presence.AddParticipantParams) error
	RemoveParticipant(context.Context, *presence.RemoveParticipantParams) error
	GetParticipants(ctx context.Context, roomID string) ([]presence.Participant, error)
	CountParticipants(ctx context.Context, roomID string) (int, error)
}

type iBroadcaster interface {
	AddToGroup(group, connID string) error
	RemoveFromGroup(group, connID string)
	SendToConn(ctx context.Context, connID string, e hub.Event) error
	SendToGroup(ctx context.Context, group string, e hub.Event) error
	SendToGroupExcept(ctx context.Context, group, exceptConnID string, e hub.Event) error
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	presenceRepo iPresenceRepo
	broadcaster  iBroadcaster
	now          func() time.Time
	logger       *slog.Logger
}

func NewService(
	roomRepo iRoomRepo,
	connRepo iConnRepo,
	presenceRepo iPresenceRepo,
	broadcaster iBroadcaster,
	logger *slog.Logger,
) *service {
	return &service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		presenceRepo: presenceRepo,
		broadcaster:  broadcaster,
		now:          time.Now,
		logger:       logger,
	}
}

func GroupName(roomID string) string {
	return "room:" + roomID
}

// Delivery is best effort: state has already changed by the time we broadcast, so failures are
// logged and never returned to the caller.
func (s service) sendToGroup(ctx context.Context, roomID string, e Event) {
	if err := s.broadcaster.SendToGroup(ctx, GroupName(roomID), e); err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast", "type", e.EventType(), "error", err)
	}
}

func (s service) sendToGroupExcept(ctx context.Context, roomID, exceptConnID string, e Event) {
	if err := s.broadcaster.SendToGroupExcept(ctx, GroupName(roomID), exceptConnID, e); err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast", "type", e.EventType(), "error", err)
	}
}

func (s service) sendToConn(ctx context.Context, connID string, e Event) {
	if err := s.broadcaster.SendToConn(ctx, connID, e); err != nil {
		s.logger.WarnContext(ctx, "failed to send", "type", e.EventType(), "conn_id", connID, "error", err)
	}
}

func (s service) refreshRoomsGauge() {
	metrics.ActiveRooms.Set(float64(s.roomRepo.Count()))
}
