package conversation

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/pagination"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

type Controller struct{}

// GetMessages returns the paginated message history of a conversation
func (c Controller) GetMessages(request *evo.Request) any {
	id := request.Param("id").Int()
	if id <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return response.Error(response.ErrConversationNotFound)
	}

	var messages []models.Message
	query := db.Where("conversation_id = ?", conv.ID).Order("created_at ASC, id ASC")

	p, err := pagination.New(query, request, &messages, pagination.Options{MaxSize: 100})
	if err != nil {
		return response.Error(response.ErrInternalError)
	}

	return response.OKWithMeta(messages, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}

// AssignConversation hands the conversation over to a human operator
func (c Controller) AssignConversation(request *evo.Request) any {
	id := request.Param("id").Int()
	if id <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var input struct {
		UserID string `json:"user_id"`
	}
	if err := request.BodyParser(&input); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return response.Error(response.ErrConversationNotFound)
	}

	if err := Default.Handover(&conv, userID); err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.OK(conv)
}

// CloseConversation closes the conversation and releases the open-slot so the
// visitor's next message starts a new one
func (c Controller) CloseConversation(request *evo.Request) any {
	id := request.Param("id").Int()
	if id <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return response.Error(response.ErrConversationNotFound)
	}

	if err := Default.Close(&conv); err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.OK(conv)
}
