package watchparty

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinestream/watchparty/internal/metrics"
	"github.com/cinestream/watchparty/internal/repository/room"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type UpdatePlaybackStateParams struct {
	ConnID      string
	RoomID      string
	CurrentTime float64
	IsPlaying   bool
}

func (p UpdatePlaybackStateParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomID, RoomIDRule...),
		validation.Field(&p.CurrentTime, CurrentTimeRule...),
	)
}

type UpdatePlaybackStateResponse struct {
	State room.State
}

// UpdatePlaybackState applies a host's play, pause or seek and relays it to every other
// connection in the room. A rejected update changes nothing and reaches nobody.
func (s service) UpdatePlaybackState(ctx context.Context, params *UpdatePlaybackStateParams) (UpdatePlaybackStateResponse, error) {
	if err := validate(params); err != nil {
		metrics.RejectedPlaybackUpdates.WithLabelValues("invalid").Inc()
		return UpdatePlaybackStateResponse{}, err
	}

	conn, err := s.getMember(params.ConnID, params.RoomID)
	if err != nil {
		metrics.RejectedPlaybackUpdates.WithLabelValues(rejectReason(err)).Inc()
		return UpdatePlaybackStateResponse{}, err
	}

	state, err := s.roomRepo.UpdateState(&room.UpdateStateParams{
		RoomID:      params.RoomID,
		CurrentTime: params.CurrentTime,
		IsPlaying:   params.IsPlaying,
		RequesterID: conn.ParticipantID(),
		At:          s.now(),
	})
	if err != nil {
		metrics.RejectedPlaybackUpdates.WithLabelValues(rejectReason(err)).Inc()
		return UpdatePlaybackStateResponse{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	s.sendToGroupExcept(ctx, params.RoomID, params.ConnID, PlaybackStateChangedEvent{
		CurrentTime: state.CurrentTime,
		IsPlaying:   state.IsPlaying,
		Version:     state.Version,
		UpdatedBy:   conn.ParticipantID(),
	})

	return UpdatePlaybackStateResponse{State: state}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, room.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, room.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, room.ErrInvalidPlaybackPosition):
		return "invalid"
	default:
		return "error"
	}
}
