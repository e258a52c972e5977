package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cinestream/watchparty/internal/repository/presence"
)

func (r repo) getParticipantsKey(roomID string) string {
	return "presence:room:" + roomID + ":participants"
}

func (r repo) AddParticipant(ctx context.Context, params *presence.AddParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	data, err := json.Marshal(params.Participant)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}

	key := r.getParticipantsKey(params.RoomID)
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, key, params.Participant.ConnID, data)
	pipe.Expire(ctx, key, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *presence.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getParticipantsKey(params.RoomID)
	pipe := r.rc.TxPipeline()
	hdel := pipe.HDel(ctx, key, params.ConnID)
	pipe.Expire(ctx, key, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if hdel.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", presence.ErrParticipantNotFound)
		return presence.ErrParticipantNotFound
	}

	return nil
}

// GetParticipants also refreshes the hash TTL, so a room with stable membership that is still
// being looked at keeps its list.
func (r repo) GetParticipants(ctx context.Context, roomID string) ([]presence.Participant, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomID)
	key := r.getParticipantsKey(roomID)
	pipe := r.rc.TxPipeline()
	hgetall := pipe.HGetAll(ctx, key)
	pipe.Expire(ctx, key, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	fields := hgetall.Val()
	participants := make([]presence.Participant, 0, len(fields))
	for connID, raw := range fields {
		var p presence.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed participant", "conn_id", connID, "error", err)
			continue
		}
		participants = append(participants, p)
	}
	presence.SortByJoinOrder(participants)

	return participants, nil
}

func (r repo) CountParticipants(ctx context.Context, roomID string) (int, error) {
	key := r.getParticipantsKey(roomID)
	pipe := r.rc.TxPipeline()
	hlen := pipe.HLen(ctx, key)
	pipe.Expire(ctx, key, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}

	return int(hlen.Val()), nil
}
