package inmemory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cinestream/watchparty/internal/repository/presence"
)

type repo struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]presence.Participant
	online atomic.Int64
}

func NewRepo() *repo {
	return &repo{
		rooms: make(map[string]map[string]presence.Participant),
	}
}

func (r *repo) AddParticipant(_ context.Context, params *presence.AddParticipantParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants, ok := r.rooms[params.RoomID]
	if !ok {
		participants = make(map[string]presence.Participant)
		r.rooms[params.RoomID] = participants
	}
	participants[params.Participant.ConnID] = params.Participant

	return nil
}

func (r *repo) RemoveParticipant(_ context.Context, params *presence.RemoveParticipantParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants, ok := r.rooms[params.RoomID]
	if !ok {
		return presence.ErrParticipantNotFound
	}

	if _, ok := participants[params.ConnID]; !ok {
		return presence.ErrParticipantNotFound
	}

	delete(participants, params.ConnID)
	if len(participants) == 0 {
		delete(r.rooms, params.RoomID)
	}

	return nil
}

func (r *repo) GetParticipants(_ context.Context, roomID string) ([]presence.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := r.rooms[roomID]
	list := make([]presence.Participant, 0, len(participants))
	for _, p := range participants {
		list = append(list, p)
	}
	presence.SortByJoinOrder(list)

	return list, nil
}

func (r *repo) CountParticipants(_ context.Context, roomID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID]), nil
}

func (r *repo) IncrOnline(_ context.Context) (int64, error) {
	return r.online.Add(1), nil
}

// DecrOnline never takes the counter below zero.
func (r *repo) DecrOnline(_ context.Context) (int64, error) {
	for {
		current := r.online.Load()
		if current <= 0 {
			return 0, nil
		}

		if r.online.CompareAndSwap(current, current-1) {
			return current - 1, nil
		}
	}
}

func (r *repo) GetOnline(_ context.Context) (int64, error) {
	return r.online.Load(), nil
}
