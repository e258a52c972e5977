package controller

import (
	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter[*hub.Client] {
	mux := wsrouter.New[*hub.Client]()
	mux.Use(c.wsRequestIdMw, c.wsLoggerMw)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// room
	wsrouter.Handle(mux, "JOIN_ROOM", c.handleJoinRoom)
	wsrouter.Handle(mux, "LEAVE_ROOM", c.handleLeaveRoom)
	wsrouter.Handle(mux, "CLOSE_ROOM", c.handleCloseRoom)

	// playback
	wsrouter.Handle(mux, "UPDATE_PLAYBACK_STATE", c.handleUpdatePlaybackState)

	// chat
	wsrouter.Handle(mux, "SEND_MESSAGE", c.handleSendMessage)

	return mux
}

func (c controller) getNotificationsWSRouter() *wsrouter.WSRouter[*hub.Client] {
	mux := wsrouter.New[*hub.Client]()
	mux.Use(c.wsRequestIdMw)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	return mux
}
