package watchparty

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type SendMessageParams struct {
	ConnID  string
	RoomID  string
	Message string
}

func (p SendMessageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomID, RoomIDRule...),
		validation.Field(&p.Message, MessageRule...),
	)
}

// SendMessage broadcasts a chat line to the whole room, sender included, so every member renders
// the same server timestamp.
func (s service) SendMessage(ctx context.Context, params *SendMessageParams) (ReceiveMessageEvent, error) {
	trimmed := *params
	trimmed.Message = strings.TrimSpace(params.Message)
	if err := validate(&trimmed); err != nil {
		return ReceiveMessageEvent{}, err
	}

	conn, err := s.getMember(params.ConnID, params.RoomID)
	if err != nil {
		return ReceiveMessageEvent{}, err
	}

	event := ReceiveMessageEvent{
		UserID:    conn.ParticipantID(),
		Username:  conn.Username,
		Message:   trimmed.Message,
		CreatedAt: s.now().UTC(),
	}
	s.sendToGroup(ctx, params.RoomID, event)

	return event, nil
}
