package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/ctxlogger"
)

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *hub.Client, _ EmptyInput) error {
	return nil
}

type JoinRoomInput struct {
	RoomID string `json:"room_id" validate:"required,room_id"`
}

func (c controller) handleJoinRoom(ctx context.Context, client *hub.Client, input JoinRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomID))
	if _, err := c.watchPartyService.JoinRoom(ctx, &watchparty.JoinRoomParams{
		ConnID: client.ID(),
		RoomID: input.RoomID,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

type LeaveRoomInput struct {
	RoomID string `json:"room_id" validate:"required,room_id"`
}

func (c controller) handleLeaveRoom(ctx context.Context, client *hub.Client, input LeaveRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomID))
	if err := c.watchPartyService.LeaveRoom(ctx, &watchparty.LeaveRoomParams{
		ConnID: client.ID(),
		RoomID: input.RoomID,
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

type UpdatePlaybackStateInput struct {
	RoomID      string   `json:"room_id" validate:"required,room_id"`
	CurrentTime *float64 `json:"current_time" validate:"required,gte=0"`
	IsPlaying   *bool    `json:"is_playing" validate:"required"`
}

func (c controller) handleUpdatePlaybackState(ctx context.Context, client *hub.Client, input UpdatePlaybackStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomID))
	if _, err := c.watchPartyService.UpdatePlaybackState(ctx, &watchparty.UpdatePlaybackStateParams{
		ConnID:      client.ID(),
		RoomID:      input.RoomID,
		CurrentTime: *input.CurrentTime,
		IsPlaying:   *input.IsPlaying,
	}); err != nil {
		return fmt.Errorf("failed to update playback state: %w", err)
	}

	return nil
}

type SendMessageInput struct {
	RoomID  string `json:"room_id" validate:"required,room_id"`
	Message string `json:"message" validate:"required"`
}

func (c controller) handleSendMessage(ctx context.Context, client *hub.Client, input SendMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomID))
	if _, err := c.watchPartyService.SendMessage(ctx, &watchparty.SendMessageParams{
		ConnID:  client.ID(),
		RoomID:  input.RoomID,
		Message: input.Message,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

type CloseRoomInput struct {
	RoomID string `json:"room_id" validate:"required,room_id"`
}

func (c controller) handleCloseRoom(ctx context.Context, client *hub.Client, input CloseRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomID))
	if err := c.watchPartyService.CloseRoom(ctx, &watchparty.CloseRoomParams{
		ConnID: client.ID(),
		RoomID: input.RoomID,
	}); err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}

	return nil
}
