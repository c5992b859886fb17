package gateway

import (
	"errors"

	"github.com/getevo/evo/v2"
	"github.com/go-playground/validator/v10"
	"github.com/talkbase-io/talkbase-backend/apps/credits"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

type Controller struct{}

// MessageInput is the public inbound-message payload
type MessageInput struct {
	VisitorID  string             `json:"visitor_id" validate:"required,min=1,max=255"`
	Content    string             `json:"content" validate:"required,min=1,max=8000"`
	Attachment *models.Attachment `json:"attachment"`
}

var validate = validator.New()

// PostMessage accepts one visitor message and returns the stored messages.
// The agent message is absent when a human owns the conversation.
func (c Controller) PostMessage(request *evo.Request) any {
	channelID := request.Param("channel").String()
	if channelID == "" {
		return response.Error(response.ErrInvalidInput)
	}

	var input MessageInput
	if err := request.BodyParser(&input); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(input); err != nil {
		return response.Error(response.NewError(response.ErrorCodeInvalidInput, err.Error(), 400))
	}

	if input.Attachment != nil && !input.Attachment.Valid() {
		return response.Error(response.NewError(response.ErrorCodeInvalidInput, "unsupported attachment", 400))
	}

	result, err := Default.HandleInboundMessage(&InboundMessage{
		ChannelID:         channelID,
		VisitorExternalID: input.VisitorID,
		Content:           input.Content,
		Attachment:        input.Attachment,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrChannelInactive):
			return response.Error(response.ErrChannelInactive)
		case errors.Is(err, credits.ErrNoCredits):
			return response.Error(response.ErrCreditExhausted)
		default:
			return response.Error(response.ErrInternalError)
		}
	}

	return response.OK(map[string]interface{}{
		"conversation_id": result.Conversation.ID,
		"user_message":    result.UserMessage,
		"agent_message":   result.AgentMessage,
	})
}
