package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager resolves visitor sessions to conversations and appends messages
type Manager struct {
	DB *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{DB: db}
}

// Resolve returns the single non-closed conversation for a visitor on a
// channel, creating it when none exists. The lookup and creation are one
// atomic upsert against the (channel_id, visitor_external_id, active) unique
// key, so two simultaneous first messages converge on the same row instead of
// racing a read-then-create.
func (m *Manager) Resolve(channel *models.Channel, visitorExternalID string, visitorName string) (*models.Conversation, error) {
	now := time.Now()

	conv := models.Conversation{
		ChannelID:         channel.ID,
		VisitorExternalID: visitorExternalID,
		Active:            &models.ConversationActive,
		Status:            models.ConversationStatusOpen,
		ContactName:       visitorName,
		LastMessageAt:     now,
	}

	err := m.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "channel_id"},
			{Name: "visitor_external_id"},
			{Name: "active"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_message_at": now,
		}),
	}).Create(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	// The upsert does not reliably return the surviving row, re-fetch the
	// open conversation.
	var resolved models.Conversation
	err = m.DB.Where("channel_id = ? AND visitor_external_id = ? AND active IS NOT NULL",
		channel.ID, visitorExternalID).First(&resolved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved conversation: %w", err)
	}

	if resolved.ContactID == nil {
		m.linkContact(channel, &resolved)
	}

	return &resolved, nil
}

// linkContact attaches a contact to a conversation that has none: the link
// carries forward from the visitor's most recent linked conversation on the
// same channel, otherwise a fresh workspace-scoped contact is created. Best
// effort: failure is logged and the turn continues without a contact.
func (m *Manager) linkContact(channel *models.Channel, conv *models.Conversation) {
	var previous models.Conversation
	err := m.DB.Where("channel_id = ? AND visitor_external_id = ? AND contact_id IS NOT NULL",
		conv.ChannelID, conv.VisitorExternalID).
		Where("id <> ?", conv.ID).
		Order("created_at DESC").
		First(&previous).Error
	if err == nil {
		err = m.DB.Model(conv).Updates(map[string]interface{}{
			"contact_id":   previous.ContactID,
			"contact_name": previous.ContactName,
		}).Error
		if err != nil {
			log.Warning("Failed to autolink contact for conversation %d: %v", conv.ID, err)
			return
		}
		conv.ContactID = previous.ContactID
		conv.ContactName = previous.ContactName
		return
	}

	workspaceID, err := m.workspaceFor(channel)
	if err != nil {
		log.Warning("Failed to resolve workspace for channel %s: %v", channel.ID, err)
		return
	}

	contact := models.Contact{WorkspaceID: workspaceID, Name: conv.ContactName}
	if err := m.DB.Create(&contact).Error; err != nil {
		log.Warning("Failed to create contact for conversation %d: %v", conv.ID, err)
		return
	}
	if err := m.DB.Model(conv).Update("contact_id", contact.ID).Error; err != nil {
		log.Warning("Failed to link contact %s to conversation %d: %v", contact.ID, conv.ID, err)
		return
	}
	conv.ContactID = &contact.ID
}

func (m *Manager) workspaceFor(channel *models.Channel) (uuid.UUID, error) {
	if channel.Agent != nil {
		return channel.Agent.WorkspaceID, nil
	}
	var agent models.Agent
	if err := m.DB.Where("id = ?", channel.AgentID).First(&agent).Error; err != nil {
		return uuid.Nil, err
	}
	return agent.WorkspaceID, nil
}

// AppendMessage persists one message and touches the conversation's
// LastMessageAt. Attachment metadata is echoed verbatim into the message
// metadata.
func (m *Manager) AppendMessage(conv *models.Conversation, role string, body string, attachment *models.Attachment) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conv.ID,
		Role:           role,
		Body:           body,
	}

	if attachment != nil {
		meta, err := json.Marshal(map[string]interface{}{"attachment": attachment})
		if err != nil {
			return nil, fmt.Errorf("failed to encode attachment metadata: %w", err)
		}
		msg.Metadata = meta
	}

	if err := m.DB.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to persist %s message: %w", role, err)
	}

	if err := m.DB.Model(conv).Update("last_message_at", msg.CreatedAt).Error; err != nil {
		log.Warning("Failed to touch conversation %d: %v", conv.ID, err)
	}

	return &msg, nil
}

// History returns the most recent messages of a conversation in chronological
// order, capped at limit.
func (m *Manager) History(conv *models.Conversation, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	var recent []models.Message
	err := m.DB.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	// reverse into chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// Handover assigns the conversation to a human operator. Subsequent inbound
// messages are stored but never answered by the model.
func (m *Manager) Handover(conv *models.Conversation, userID uuid.UUID) error {
	err := m.DB.Model(conv).Updates(map[string]interface{}{
		"assigned_to": userID,
		"status":      models.ConversationStatusPending,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to hand over conversation %d: %w", conv.ID, err)
	}
	conv.AssignedTo = &userID
	conv.Status = models.ConversationStatusPending
	return nil
}

// Close ends the conversation. Clearing the active marker releases the unique
// slot so the visitor's next message starts a fresh conversation.
func (m *Manager) Close(conv *models.Conversation) error {
	now := time.Now()
	err := m.DB.Model(conv).Updates(map[string]interface{}{
		"status":    models.ConversationStatusClosed,
		"active":    nil,
		"closed_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close conversation %d: %w", conv.ID, err)
	}
	conv.Status = models.ConversationStatusClosed
	conv.Active = nil
	conv.ClosedAt = &now
	return nil
}
