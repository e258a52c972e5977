package watchparty

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinestream/watchparty/internal/repository/connection"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ConnectParams struct {
	ConnID   string
	UserID   string
	Username string
}

func (p ConnectParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
	)
}

// Connect records a new transport connection. It is not in any room until it joins one.
func (s service) Connect(ctx context.Context, params *ConnectParams) error {
	if err := validate(params); err != nil {
		return err
	}

	if err := s.connRepo.Add(connection.Connection{
		ConnID:   params.ConnID,
		UserID:   params.UserID,
		Username: params.Username,
	}); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	return nil
}

// Disconnect is the transport's disconnect callback. It leaves the connection's current room and
// forgets the connection. Unknown connections are ignored.
func (s service) Disconnect(ctx context.Context, connID string) error {
	conn, err := s.connRepo.Get(connID)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get connection: %w", err)
	}

	if conn.RoomID != "" {
		if err := s.leave(ctx, conn, conn.RoomID); err != nil {
			s.logger.WarnContext(ctx, "failed to leave room on disconnect", "room_id", conn.RoomID, "error", err)
		}
	}

	if _, err := s.connRepo.Remove(connID); err != nil && !errors.Is(err, connection.ErrNotFound) {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	return nil
}

func (s service) getConn(connID string) (connection.Connection, error) {
	conn, err := s.connRepo.Get(connID)
	if err != nil {
		return connection.Connection{}, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn, nil
}

// getMember returns the connection if it is currently in roomID. A missing room is reported as
// room.ErrRoomNotFound so callers can tell it apart from a stranger.
func (s service) getMember(connID, roomID string) (connection.Connection, error) {
	conn, err := s.getConn(connID)
	if err != nil {
		return connection.Connection{}, err
	}

	if conn.RoomID != roomID {
		if _, err := s.roomRepo.Get(roomID); err != nil {
			return connection.Connection{}, err
		}
		return connection.Connection{}, ErrNotInRoom
	}

	return conn, nil
}
