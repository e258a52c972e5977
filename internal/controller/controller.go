package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/identity"
	"github.com/cinestream/watchparty/pkg/validator"
	"github.com/cinestream/watchparty/pkg/wsrouter"
	"github.com/gorilla/websocket"
)

type iWatchPartyService interface {
	Connect(context.Context, *watchparty.ConnectParams) error
	Disconnect(ctx context.Context, connID string) error
	JoinRoom(context.Context, *watchparty.JoinRoomParams) (watchparty.JoinRoomResponse, error)
	LeaveRoom(context.Context, *watchparty.LeaveRoomParams) error
	UpdatePlaybackState(context.Context, *watchparty.UpdatePlaybackStateParams) (watchparty.UpdatePlaybackStateResponse, error)
	SendMessage(context.Context, *watchparty.SendMessageParams) (watchparty.ReceiveMessageEvent, error)
	CloseRoom(context.Context, *watchparty.CloseRoomParams) error
	GetRoom(ctx context.Context, roomID string) (watchparty.RoomInfo, error)
}

type iNotificationService interface {
	Connect(ctx context.Context, connID string) (int64, error)
	Disconnect(ctx context.Context, connID string) (int64, error)
	OnlineCount(ctx context.Context) (int64, error)
}

type iHub interface {
	Register(*hub.Client) error
	Unregister(connID string)
	SendToConn(ctx context.Context, connID string, e hub.Event) error
}

type controller struct {
	watchPartyService   iWatchPartyService
	notificationService iNotificationService
	hub                 iHub
	tokens              *identity.Tokens
	upgrader            websocket.Upgrader
	clientConfig        hub.Config
	validate            *validator.Validator
	wsmux               *wsrouter.WSRouter[*hub.Client]
	notificationsWsmux  *wsrouter.WSRouter[*hub.Client]
	logger              *slog.Logger
}

func NewController(
	watchPartyService iWatchPartyService,
	notificationService iNotificationService,
	h iHub,
	tokens *identity.Tokens,
	clientConfig hub.Config,
	logger *slog.Logger,
) *controller {
	c := controller{
		watchPartyService:   watchPartyService,
		notificationService: notificationService,
		hub:                 h,
		tokens:              tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clientConfig: clientConfig,
		validate:     validator.NewValidator(),
		logger:       logger,
	}
	c.wsmux = c.getWSRouter()
	c.notificationsWsmux = c.getNotificationsWSRouter()

	return &c
}
