package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/ctxlogger"
	"github.com/cinestream/watchparty/pkg/identity"
	"github.com/cinestream/watchparty/pkg/rest"
	"github.com/cinestream/watchparty/pkg/wsrouter"
	"github.com/google/uuid"
)

// accept resolves the caller's identity, upgrades the connection and registers it with the hub.
// It writes the HTTP response itself when it fails.
func (c controller) accept(w http.ResponseWriter, r *http.Request) (context.Context, *hub.Client, identity.Identity, bool) {
	id, err := c.tokens.FromRequest(r)
	if err != nil {
		c.logger.InfoContext(r.Context(), "rejected connection", "error", err)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid token"})
		return nil, nil, identity.Identity{}, false
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return nil, nil, identity.Identity{}, false
	}

	connID := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", connID))
	if !id.Anonymous() {
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", id.UserID))
	}
	ctx = context.WithValue(ctx, connIDCtxKey, connID)

	client := hub.NewClient(connID, conn, c.clientConfig)
	if err := c.hub.Register(client); err != nil {
		c.logger.WarnContext(ctx, "failed to register client", "error", err)
		conn.Close()
		return nil, nil, identity.Identity{}, false
	}

	return ctx, client, id, true
}

func (c controller) serve(ctx context.Context, client *hub.Client, mux *wsrouter.WSRouter[*hub.Client]) {
	go func() {
		if err := client.WritePump(); err != nil {
			c.logger.DebugContext(ctx, "write pump stopped", "error", err)
		}
	}()

	if err := client.ReadPump(ctx, func(ctx context.Context, data []byte) {
		if err := mux.Serve(ctx, client, data); err != nil {
			c.writeError(ctx, err)
		}
	}); err != nil {
		c.logger.DebugContext(ctx, "read pump stopped", "error", err)
	}
}

func (c controller) watchParty(w http.ResponseWriter, r *http.Request) {
	ctx, client, id, ok := c.accept(w, r)
	if !ok {
		return
	}
	defer c.hub.Unregister(client.ID())

	if err := c.watchPartyService.Connect(ctx, &watchparty.ConnectParams{
		ConnID:   client.ID(),
		UserID:   id.UserID,
		Username: id.Username,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect", "error", err)
		return
	}
	defer func() {
		if err := c.watchPartyService.Disconnect(context.WithoutCancel(ctx), client.ID()); err != nil {
			c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
		}
	}()

	c.logger.InfoContext(ctx, "connected")
	c.serve(ctx, client, c.wsmux)
	c.logger.InfoContext(ctx, "disconnected")
}

func (c controller) notifications(w http.ResponseWriter, r *http.Request) {
	ctx, client, _, ok := c.accept(w, r)
	if !ok {
		return
	}
	defer c.hub.Unregister(client.ID())

	if _, err := c.notificationService.Connect(ctx, client.ID()); err != nil {
		c.logger.WarnContext(ctx, "failed to connect notifications", "error", err)
		return
	}
	defer func() {
		if _, err := c.notificationService.Disconnect(context.WithoutCancel(ctx), client.ID()); err != nil {
			c.logger.WarnContext(ctx, "failed to disconnect notifications", "error", err)
		}
	}()

	c.serve(ctx, client, c.notificationsWsmux)
}
