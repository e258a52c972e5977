package inmemory

import (
	"log/slog"
	"sync"

	"github.com/cinestream/watchparty/internal/repository/connection"
)

type repo struct {
	conns  map[string]connection.Connection
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:  make(map[string]connection.Connection),
		logger: logger,
	}
}

func (r *repo) Add(conn connection.Connection) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", conn.ConnID)
	if _, ok := r.conns[conn.ConnID]; ok {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.conns[conn.ConnID] = conn

	return nil
}

func (r *repo) Remove(connID string) (connection.Connection, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connID)
	conn, ok := r.conns[connID]
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.Connection{}, connection.ErrNotFound
	}

	delete(r.conns, connID)

	return conn, nil
}

func (r *repo) Get(connID string) (connection.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return connection.Connection{}, connection.ErrNotFound
	}

	return conn, nil
}

// SetRoom records roomID as the connection's current room and returns the previous one.
func (r *repo) SetRoom(connID, roomID string) (string, error) {
	funcName := "connection.inmemory.SetRoom"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connID, "room_id", roomID)
	conn, ok := r.conns[connID]
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	previous := conn.RoomID
	conn.RoomID = roomID
	r.conns[connID] = conn

	return previous, nil
}

// ClearRoom resets the current room only when it still equals roomID.
func (r *repo) ClearRoom(connID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return connection.ErrNotFound
	}

	if conn.RoomID == roomID {
		conn.RoomID = ""
		r.conns[connID] = conn
	}

	return nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
