package inmemory

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cinestream/watchparty/internal/repository/room"
)

type roomEntry struct {
	mu           sync.Mutex
	id           string
	hostID       string
	currentTime  float64
	isPlaying    bool
	updatedAt    time.Time
	version      uint64
	participants []room.Participant
	// set once the entry is dropped from the registry map
	closed bool
}

func (e *roomEntry) snapshot() room.State {
	participants := make([]room.Participant, len(e.participants))
	copy(participants, e.participants)

	return room.State{
		RoomID:       e.id,
		HostID:       e.hostID,
		CurrentTime:  e.currentTime,
		IsPlaying:    e.isPlaying,
		UpdatedAt:    e.updatedAt,
		Version:      e.version,
		Participants: participants,
	}
}

func (e *roomEntry) indexOf(connID string) int {
	for i, p := range e.participants {
		if p.ConnID == connID {
			return i
		}
	}

	return -1
}

func (e *roomEntry) hasUser(userID string) bool {
	for _, p := range e.participants {
		if p.UserID == userID {
			return true
		}
	}

	return false
}

type repo struct {
	mu     sync.RWMutex
	rooms  map[string]*roomEntry
	now    func() time.Time
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*roomEntry),
		now:    time.Now,
		logger: logger,
	}
}

// getOrCreate must be called with r.mu held for writing.
func (r *repo) getOrCreate(roomID, hostID string) (*roomEntry, bool) {
	if e, ok := r.rooms[roomID]; ok {
		return e, false
	}

	e := &roomEntry{
		id:        roomID,
		hostID:    hostID,
		updatedAt: r.now(),
	}
	r.rooms[roomID] = e

	return e, true
}

func (r *repo) lookup(roomID string) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomID]
	return e, ok
}

func (r *repo) GetOrCreate(roomID, hostID string) room.State {
	r.logger.Debug("called", "room_id", roomID, "host_id", hostID)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, _ := r.getOrCreate(roomID, hostID)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshot()
}

func (r *repo) Get(roomID string) (room.State, error) {
	e, ok := r.lookup(roomID)
	if !ok {
		return room.State{}, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return room.State{}, room.ErrRoomNotFound
	}

	return e.snapshot(), nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *repo) UpdateState(params *room.UpdateStateParams) (room.State, error) {
	r.logger.Debug("called", "params", params)
	if math.IsNaN(params.CurrentTime) || math.IsInf(params.CurrentTime, 0) || params.CurrentTime < 0 {
		return room.State{}, room.ErrInvalidPlaybackPosition
	}

	e, ok := r.lookup(params.RoomID)
	if !ok {
		r.logger.Debug("returned", "error", room.ErrRoomNotFound)
		return room.State{}, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// lost a race with Remove
	if e.closed {
		r.logger.Debug("returned", "error", room.ErrRoomNotFound)
		return room.State{}, room.ErrRoomNotFound
	}

	if e.hostID != params.RequesterID {
		r.logger.Debug("returned", "error", room.ErrUnauthorized)
		return room.State{}, room.ErrUnauthorized
	}

	updatedAt := params.At
	if updatedAt.IsZero() {
		updatedAt = r.now()
	}

	e.currentTime = params.CurrentTime
	e.isPlaying = params.IsPlaying
	e.updatedAt = updatedAt
	e.version++

	return e.snapshot(), nil
}

func (r *repo) Join(params *room.JoinParams) (room.JoinResult, error) {
	r.logger.Debug("called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, created := r.getOrCreate(params.RoomID, params.Participant.UserID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexOf(params.Participant.ConnID) >= 0 {
		return room.JoinResult{State: e.snapshot(), AlreadyJoined: true}, nil
	}

	p := params.Participant
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}
	e.participants = append(e.participants, p)

	return room.JoinResult{State: e.snapshot(), Created: created}, nil
}

func (r *repo) Leave(params *room.LeaveParams) (room.LeaveResult, error) {
	r.logger.Debug("called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		r.logger.Debug("returned", "error", room.ErrRoomNotFound)
		return room.LeaveResult{}, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(params.ConnID)
	if i < 0 {
		r.logger.Debug("returned", "error", room.ErrParticipantNotFound)
		return room.LeaveResult{}, room.ErrParticipantNotFound
	}

	left := e.participants[i]
	e.participants = append(e.participants[:i], e.participants[i+1:]...)

	if len(e.participants) == 0 {
		r.drop(e)
		return room.LeaveResult{State: e.snapshot(), Left: left, Removed: true}, nil
	}

	hostChanged := false
	if !e.hasUser(e.hostID) {
		// participants are kept in join order
		e.hostID = e.participants[0].UserID
		hostChanged = true
	}

	return room.LeaveResult{State: e.snapshot(), Left: left, HostChanged: hostChanged}, nil
}

func (r *repo) Close(params *room.CloseParams) (room.State, error) {
	r.logger.Debug("called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return room.State{}, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hostID != params.RequesterID {
		return room.State{}, room.ErrUnauthorized
	}

	r.drop(e)

	return e.snapshot(), nil
}

// Remove drops the room and returns its last state. Removing a missing room is a no-op.
func (r *repo) Remove(roomID string) (room.State, bool) {
	r.logger.Debug("called", "room_id", roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomID]
	if !ok {
		return room.State{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r.drop(e)

	return e.snapshot(), true
}

// drop unlinks e from the registry and marks it closed so updates still holding it fail. Callers
// hold r.mu for writing and e.mu.
func (r *repo) drop(e *roomEntry) {
	e.closed = true
	if r.rooms[e.id] == e {
		delete(r.rooms, e.id)
	}
}
