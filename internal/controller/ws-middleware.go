package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cinestream/watchparty/internal/hub"
	"github.com/cinestream/watchparty/pkg/ctxlogger"
	"github.com/cinestream/watchparty/pkg/wsrouter"
	"github.com/google/uuid"
)

func (c controller) wsRequestIdMw(next wsrouter.HandlerFunc[*hub.Client]) wsrouter.HandlerFunc[*hub.Client] {
	return func(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
		ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", uuid.NewString()))
		return next(ctx, client, payload)
	}
}

func (c controller) wsLoggerMw(next wsrouter.HandlerFunc[*hub.Client]) wsrouter.HandlerFunc[*hub.Client] {
	return func(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
		ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
		c.logger.DebugContext(ctx, "websocket message received", "payload", string(payload))

		start := time.Now()
		err := next(ctx, client, payload)

		c.logger.InfoContext(ctx, "websocket message handled",
			"processing_time_us", time.Since(start).Microseconds(),
			"error", err,
		)

		return err
	}
}
