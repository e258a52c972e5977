package controller

import (
	"context"
	"errors"

	"github.com/cinestream/watchparty/internal/repository/room"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/validator"
	"github.com/cinestream/watchparty/pkg/wsrouter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodeNotInRoom       = "NOT_IN_ROOM"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUnknownType     = "UNKNOWN_TYPE"
	CodeBadPayload      = "BAD_PAYLOAD"
)

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (ErrorEvent) EventType() string { return "ERROR" }

var ErrValidationError = errors.New("validation error")

type inputValidationError struct {
	errors []validator.ValidationError
}

func (e *inputValidationError) Error() string {
	return ErrValidationError.Error()
}

func (e *inputValidationError) Unwrap() error {
	return ErrValidationError
}

func (c controller) validateInput(input any) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return &inputValidationError{errors: validationErrors}
	}

	return nil
}

func toErrorEvent(err error) ErrorEvent {
	var inputErr *inputValidationError
	if errors.As(err, &inputErr) {
		return ErrorEvent{Code: CodeValidationError, Message: "invalid payload", Details: inputErr.errors}
	}

	switch {
	case errors.Is(err, watchparty.ErrValidation):
		event := ErrorEvent{Code: CodeValidationError, Message: "invalid payload"}
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			event.Details = fieldErrs
		}
		return event
	case errors.Is(err, room.ErrInvalidPlaybackPosition):
		return ErrorEvent{Code: CodeValidationError, Message: err.Error()}
	case errors.Is(err, room.ErrUnauthorized):
		return ErrorEvent{Code: CodeUnauthorized, Message: room.ErrUnauthorized.Error()}
	case errors.Is(err, room.ErrRoomNotFound):
		return ErrorEvent{Code: CodeRoomNotFound, Message: room.ErrRoomNotFound.Error()}
	case errors.Is(err, watchparty.ErrNotInRoom):
		return ErrorEvent{Code: CodeNotInRoom, Message: watchparty.ErrNotInRoom.Error()}
	case errors.Is(err, wsrouter.ErrUnknownType):
		return ErrorEvent{Code: CodeUnknownType, Message: err.Error()}
	case errors.Is(err, wsrouter.ErrBadPayload), errors.Is(err, wsrouter.ErrMalformedMessage):
		return ErrorEvent{Code: CodeBadPayload, Message: "payload could not be decoded"}
	default:
		return ErrorEvent{Code: CodeInternalError, Message: "internal error"}
	}
}

// writeError reports a failed message to the sending connection only.
func (c controller) writeError(ctx context.Context, err error) {
	connID := c.getConnIDFromCtx(ctx)
	event := toErrorEvent(err)
	if event.Code == CodeInternalError {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	} else {
		c.logger.InfoContext(ctx, "message rejected", "code", event.Code, "error", err)
	}

	if err := c.hub.SendToConn(ctx, connID, event); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}
