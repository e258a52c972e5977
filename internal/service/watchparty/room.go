package watchparty

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinestream/watchparty/internal/repository/connection"
	"github.com/cinestream/watchparty/internal/repository/presence"
	"github.com/cinestream/watchparty/internal/repository/room"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type JoinRoomParams struct {
	ConnID string
	RoomID string
}

func (p JoinRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomID, RoomIDRule...),
	)
}

type JoinRoomResponse struct {
	State        room.State
	Position     float64
	Created      bool
	PreviousRoom string
}

// JoinRoom puts the connection into roomID, creating the room if needed, and sends it the live
// room state. A connection in another room leaves that room first. Joining the current room again
// only resends the state.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := validate(params); err != nil {
		return JoinRoomResponse{}, err
	}

	conn, err := s.getConn(params.ConnID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	alreadyIn := conn.RoomID == params.RoomID
	previousRoom := ""
	if conn.RoomID != "" && !alreadyIn {
		previousRoom = conn.RoomID
		if err := s.leave(ctx, conn, conn.RoomID); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to leave previous room: %w", err)
		}
	}

	// Subscribe before taking the snapshot so no update slips between the two. Anything that
	// arrives before ROOM_STATE carries a higher version than the snapshot.
	group := GroupName(params.RoomID)
	if err := s.broadcaster.AddToGroup(group, params.ConnID); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add to group: %w", err)
	}

	now := s.now()
	participant := room.Participant{
		ConnID:    conn.ConnID,
		UserID:    conn.ParticipantID(),
		Username:  conn.Username,
		Anonymous: conn.Anonymous(),
		JoinedAt:  now,
	}

	// The connection's room and its presence entry are recorded before the registry join, so a
	// CloseRoom or last leave that sees the participant also finds and clears them.
	if !alreadyIn {
		if _, err := s.connRepo.SetRoom(params.ConnID, params.RoomID); err != nil {
			s.broadcaster.RemoveFromGroup(group, params.ConnID)
			return JoinRoomResponse{}, fmt.Errorf("failed to set connection room: %w", err)
		}

		if err := s.presenceRepo.AddParticipant(ctx, &presence.AddParticipantParams{
			RoomID: params.RoomID,
			Participant: presence.Participant{
				ConnID:   participant.ConnID,
				UserID:   participant.UserID,
				Username: participant.Username,
				JoinedAt: now.UnixMilli(),
			},
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to record presence", "room_id", params.RoomID, "error", err)
		}
	}

	joined, err := s.roomRepo.Join(&room.JoinParams{
		RoomID:      params.RoomID,
		Participant: participant,
	})
	if err != nil {
		if !alreadyIn {
			s.undoJoin(ctx, params.ConnID, params.RoomID)
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	state := joined.State
	position := state.Position(now)
	s.sendToConn(ctx, params.ConnID, RoomStateEvent{
		RoomID:       state.RoomID,
		HostID:       state.HostID,
		CurrentTime:  position,
		IsPlaying:    state.IsPlaying,
		Version:      state.Version,
		IsHost:       state.IsHost(conn.ParticipantID()),
		Participants: newParticipants(state),
		ServerTime:   now,
	})

	if joined.AlreadyJoined {
		return JoinRoomResponse{State: state, Position: position}, nil
	}

	self := len(state.Participants) - 1
	s.sendToGroupExcept(ctx, params.RoomID, params.ConnID, UserJoinedEvent{
		Participant:       newParticipant(state.Participants[self], state.HostID),
		ParticipantsCount: len(state.Participants),
	})

	if joined.Created {
		s.refreshRoomsGauge()
	}

	s.logger.InfoContext(ctx, "joined room",
		"room_id", params.RoomID,
		"participants", len(state.Participants),
		"created", joined.Created,
	)

	return JoinRoomResponse{
		State:        state,
		Position:     position,
		Created:      joined.Created,
		PreviousRoom: previousRoom,
	}, nil
}

func (s service) undoJoin(ctx context.Context, connID, roomID string) {
	s.broadcaster.RemoveFromGroup(GroupName(roomID), connID)
	if err := s.connRepo.ClearRoom(connID, roomID); err != nil && !errors.Is(err, connection.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to clear connection room", "conn_id", connID, "error", err)
	}
	s.removePresence(ctx, roomID, connID)
}

func (s service) removePresence(ctx context.Context, roomID, connID string) {
	if err := s.presenceRepo.RemoveParticipant(ctx, &presence.RemoveParticipantParams{
		RoomID: roomID,
		ConnID: connID,
	}); err != nil && !errors.Is(err, presence.ErrParticipantNotFound) {
		s.logger.WarnContext(ctx, "failed to remove presence", "room_id", roomID, "conn_id", connID, "error", err)
	}
}

type LeaveRoomParams struct {
	ConnID string
	RoomID string
}

func (p LeaveRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomID, RoomIDRule...),
	)
}

// LeaveRoom is a no-op when the connection is not in roomID.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	if err := validate(params); err != nil {
		return err
	}

	conn, err := s.getConn(params.ConnID)
	if err != nil {
		return err
	}

	if conn.RoomID != params.RoomID {
		return nil
	}

	return s.leave(ctx, conn, params.RoomID)
}

func (s service) leave(ctx context.Context, conn connection.Connection, roomID string) error {
	s.broadcaster.RemoveFromGroup(GroupName(roomID), conn.ConnID)
	if err := s.connRepo.ClearRoom(conn.ConnID, roomID); err != nil && !errors.Is(err, connection.ErrNotFound) {
		return fmt.Errorf("failed to clear connection room: %w", err)
	}

	left, err := s.roomRepo.Leave(&room.LeaveParams{
		RoomID: roomID,
		ConnID: conn.ConnID,
	})
	// The presence entry goes even when the registry no longer knows the participant, otherwise a
	// room recreated under the same id would list it.
	s.removePresence(ctx, roomID, conn.ConnID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrParticipantNotFound) {
			return nil
		}
		return fmt.Errorf("failed to leave room: %w", err)
	}

	// The group and the presence set are already empty. Deleting them by name here could race
	// with a new joiner recreating the room.
	if left.Removed {
		s.refreshRoomsGauge()
		s.logger.InfoContext(ctx, "room removed", "room_id", roomID)
		return nil
	}

	state := left.State
	s.sendToGroup(ctx, roomID, UserLeftEvent{
		Participant:       newParticipant(left.Left, state.HostID),
		ParticipantsCount: len(state.Participants),
	})

	if left.HostChanged {
		event := HostChangedEvent{HostID: state.HostID}
		for _, p := range state.Participants {
			if p.UserID == state.HostID {
				event.Username = p.Username
				break
			}
		}
		s.sendToGroup(ctx, roomID, event)
		s.logger.InfoContext(ctx, "host changed", "room_id", roomID, "host_id", state.HostID)
	}

	return nil
}

type CloseRoomParams struct {
	ConnID string
	RoomID string
}

func (p CloseRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomID, RoomIDRule...),
	)
}

// CloseRoom ends the room for everyone. Only the host may close it.
func (s service) CloseRoom(ctx context.Context, params *CloseRoomParams) error {
	if err := validate(params); err != nil {
		return err
	}

	conn, err := s.getMember(params.ConnID, params.RoomID)
	if err != nil {
		return err
	}

	state, err := s.roomRepo.Close(&room.CloseParams{
		RoomID:      params.RoomID,
		RequesterID: conn.ParticipantID(),
	})
	if err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}

	s.sendToGroup(ctx, params.RoomID, RoomClosedEvent{
		RoomID:   params.RoomID,
		ClosedBy: conn.ParticipantID(),
	})

	// Members are removed one by one rather than by room so that a fresh room created under the
	// same id in the meantime keeps its own members.
	for _, p := range state.Participants {
		s.broadcaster.RemoveFromGroup(GroupName(params.RoomID), p.ConnID)
		if err := s.connRepo.ClearRoom(p.ConnID, params.RoomID); err != nil && !errors.Is(err, connection.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to clear connection room", "conn_id", p.ConnID, "error", err)
		}
		s.removePresence(ctx, params.RoomID, p.ConnID)
	}
	s.refreshRoomsGauge()

	s.logger.InfoContext(ctx, "room closed", "room_id", params.RoomID)
	return nil
}

type RoomInfo struct {
	State             room.State
	Position          float64
	Participants      []presence.Participant
	ParticipantsCount int
}

func (s service) GetRoom(ctx context.Context, roomID string) (RoomInfo, error) {
	if err := validation.Validate(roomID, RoomIDRule...); err != nil {
		return RoomInfo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	state, err := s.roomRepo.Get(roomID)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("failed to get room: %w", err)
	}

	participants, err := s.presenceRepo.GetParticipants(ctx, roomID)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("failed to get participants: %w", err)
	}

	return RoomInfo{
		State:             state,
		Position:          state.Position(s.now()),
		Participants:      participants,
		ParticipantsCount: len(participants),
	}, nil
}
