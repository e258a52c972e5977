// Package notification tracks how many clients are online and pushes the count to everyone
// subscribed to the notifications channel.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cinestream/watchparty/internal/hub"
)

const (
	Group           = "notifications"
	TypeOnlineCount = "ONLINE_COUNT"
)

type OnlineCountEvent struct {
	Count int64 `json:"count"`
}

func (OnlineCountEvent) EventType() string { return TypeOnlineCount }

type iOnlineCounter interface {
	IncrOnline(context.Context) (int64, error)
	DecrOnline(context.Context) (int64, error)
	GetOnline(context.Context) (int64, error)
}

type iBroadcaster interface {
	AddToGroup(group, connID string) error
	RemoveFromGroup(group, connID string)
	SendToGroup(ctx context.Context, group string, e hub.Event) error
}

type service struct {
	counter     iOnlineCounter
	broadcaster iBroadcaster
	logger      *slog.Logger
}

func NewService(counter iOnlineCounter, broadcaster iBroadcaster, logger *slog.Logger) *service {
	return &service{
		counter:     counter,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s service) Connect(ctx context.Context, connID string) (int64, error) {
	if err := s.broadcaster.AddToGroup(Group, connID); err != nil {
		return 0, fmt.Errorf("failed to add to group: %w", err)
	}

	count, err := s.counter.IncrOnline(ctx)
	if err != nil {
		s.broadcaster.RemoveFromGroup(Group, connID)
		return 0, fmt.Errorf("failed to increment online count: %w", err)
	}

	s.publish(ctx, count)
	return count, nil
}

func (s service) Disconnect(ctx context.Context, connID string) (int64, error) {
	s.broadcaster.RemoveFromGroup(Group, connID)

	count, err := s.counter.DecrOnline(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement online count: %w", err)
	}

	s.publish(ctx, count)
	return count, nil
}

func (s service) OnlineCount(ctx context.Context) (int64, error) {
	count, err := s.counter.GetOnline(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get online count: %w", err)
	}

	return count, nil
}

func (s service) publish(ctx context.Context, count int64) {
	if err := s.broadcaster.SendToGroup(ctx, Group, OnlineCountEvent{Count: count}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish online count", "error", err)
	}
}
