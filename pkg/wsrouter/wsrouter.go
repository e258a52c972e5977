package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
	ErrBadPayload       = errors.New("bad payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles the raw payload of one message. C is whatever the caller uses to identify
// the sending connection.
type HandlerFunc[C any] func(ctx context.Context, conn C, payload json.RawMessage) error

type Middleware[C any] func(next HandlerFunc[C]) HandlerFunc[C]

type WSRouter[C any] struct {
	routes      map[string]HandlerFunc[C]
	middlewares []Middleware[C]
}

func New[C any]() *WSRouter[C] {
	return &WSRouter[C]{routes: make(map[string]HandlerFunc[C])}
}

// Use appends middlewares. They wrap handlers registered after the call, first one outermost.
func (r *WSRouter[C]) Use(middlewares ...Middleware[C]) {
	r.middlewares = append(r.middlewares, middlewares...)
}

func (r *WSRouter[C]) HandleRaw(messageType string, handler HandlerFunc[C]) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	r.routes[messageType] = handler
}

// Handle registers a handler that receives the payload decoded into T. An absent or null payload
// leaves T at its zero value.
func Handle[C, T any](r *WSRouter[C], messageType string, handler func(ctx context.Context, conn C, input T) error) {
	r.HandleRaw(messageType, func(ctx context.Context, conn C, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("%w: %w", ErrBadPayload, err)
			}
		}

		return handler(ctx, conn, input)
	})
}

// Serve decodes one frame and dispatches it by type.
func (r *WSRouter[C]) Serve(ctx context.Context, conn C, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	handler, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return handler(context.WithValue(ctx, messageTypeKey, msg.Type), conn, msg.Payload)
}
