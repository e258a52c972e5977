package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/cinestream/watchparty/internal/repository/presence"
	"github.com/cinestream/watchparty/internal/repository/room"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/rest"
	"github.com/go-chi/chi/v5"
)

type roomResponse struct {
	RoomID            string                 `json:"room_id"`
	HostID            string                 `json:"host_id"`
	CurrentTime       float64                `json:"current_time"`
	IsPlaying         bool                   `json:"is_playing"`
	Version           uint64                 `json:"version"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Participants      []presence.Participant `json:"participants"`
	ParticipantsCount int                    `json:"participants_count"`
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	info, err := c.watchPartyService.GetRoom(r.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, watchparty.ErrValidation):
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": toErrorEvent(err)})
		case errors.Is(err, room.ErrRoomNotFound):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": toErrorEvent(err)})
		default:
			c.logger.ErrorContext(r.Context(), "failed to get room", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": toErrorEvent(err)})
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": roomResponse{
		RoomID:            info.State.RoomID,
		HostID:            info.State.HostID,
		CurrentTime:       info.Position,
		IsPlaying:         info.State.IsPlaying,
		Version:           info.State.Version,
		UpdatedAt:         info.State.UpdatedAt,
		Participants:      info.Participants,
		ParticipantsCount: info.ParticipantsCount,
	}})
}

type onlineCountResponse struct {
	Count int64 `json:"count"`
}

func (c controller) getOnlineCount(w http.ResponseWriter, r *http.Request) {
	count, err := c.notificationService.OnlineCount(r.Context())
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to get online count", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": toErrorEvent(err)})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": onlineCountResponse{Count: count}})
}
