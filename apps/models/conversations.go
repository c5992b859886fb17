package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/restify"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/nats"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation status constants
const (
	ConversationStatusOpen    = "open"
	ConversationStatusPending = "pending"
	ConversationStatusClosed  = "closed"
)

// Message role constants
const (
	MessageRoleUser  = "user"
	MessageRoleAgent = "agent"
	MessageRoleHuman = "human"
)

// ConversationActive marks a non-closed conversation row. Open and pending
// rows carry 1, closed rows carry NULL so the composite unique index
// (channel_id, visitor_external_id, active) enforces at most one non-closed
// conversation per visitor per channel while allowing any number of closed
// ones.
var ConversationActive uint8 = 1

type Conversation struct {
	ID                uint           `gorm:"column:id;primaryKey" json:"id"`
	ChannelID         string         `gorm:"column:channel_id;size:50;not null;uniqueIndex:uq_conversation_open;fk:channels" json:"channel_id"`
	VisitorExternalID string         `gorm:"column:visitor_external_id;size:255;not null;uniqueIndex:uq_conversation_open" json:"visitor_external_id"`
	Active            *uint8         `gorm:"column:active;uniqueIndex:uq_conversation_open" json:"-"`
	Status            string         `gorm:"column:status;size:20;not null;default:'open';check:status IN ('open','pending','closed')" json:"status"`
	AssignedTo        *uuid.UUID     `gorm:"column:assigned_to;type:char(36);index" json:"assigned_to"`
	ContactID         *uuid.UUID     `gorm:"column:contact_id;type:char(36);index;fk:contacts" json:"contact_id"`
	ContactName       string         `gorm:"column:contact_name;size:255" json:"contact_name"`
	LastMessageAt     time.Time      `gorm:"column:last_message_at" json:"last_message_at"`
	CustomFields      datatypes.JSON `gorm:"column:custom_fields;type:json" json:"custom_fields"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	ClosedAt          *time.Time     `gorm:"column:closed_at" json:"closed_at"`

	// Relationships
	Channel  *Channel  `gorm:"foreignKey:ChannelID;references:ID" json:"channel,omitempty"`
	Contact  *Contact  `gorm:"foreignKey:ContactID;references:ID" json:"contact,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID;references:ID" json:"messages,omitempty"`

	restify.API
}

// Message rows are immutable once written and strictly ordered by creation
// time within a conversation.
type Message struct {
	ID             uint           `gorm:"column:id;primaryKey" json:"id"`
	ConversationID uint           `gorm:"column:conversation_id;not null;index;fk:conversations" json:"conversation_id"`
	Role           string         `gorm:"column:role;size:20;not null;check:role IN ('user','agent','human')" json:"role"`
	Body           string         `gorm:"column:body;type:text;not null" json:"body"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Conversation *Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`

	restify.API
}

// Attachment is the persisted attachment-echo metadata shape.
type Attachment struct {
	Type    string `json:"type"` // image or pdf
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// Valid reports whether the attachment names a supported type and a URL.
func (a *Attachment) Valid() bool {
	if a.URL == "" {
		return false
	}
	return a.Type == "image" || a.Type == "pdf"
}

// AttachmentFromMetadata decodes the attachment echo stored on a message, if any.
func (m *Message) AttachmentFromMetadata() *Attachment {
	if len(m.Metadata) == 0 {
		return nil
	}
	var meta struct {
		Attachment *Attachment `json:"attachment"`
	}
	if err := json.Unmarshal(m.Metadata, &meta); err != nil {
		return nil
	}
	return meta.Attachment
}

// IsHandedOver reports whether a human owns the conversation, which suppresses
// bot replies.
func (c *Conversation) IsHandedOver() bool {
	return c.AssignedTo != nil
}

// AfterCreate hook - broadcast message creation to NATS so channel transports
// and agent dashboards can react in realtime
func (m *Message) AfterCreate(tx *gorm.DB) error {
	go func() {
		subject := fmt.Sprintf("conversation.%d", m.ConversationID)
		data, _ := json.Marshal(map[string]interface{}{
			"event":   "message.created",
			"message": m,
			"role":    m.Role,
		})
		if err := nats.Publish(subject, data); err != nil {
			log.Error("Failed to publish message.created to NATS: %v", err)
		}
	}()

	return nil
}

// AfterUpdate hook - broadcast conversation updates (status, assignment,
// contact mirror) to NATS
func (c *Conversation) AfterUpdate(tx *gorm.DB) error {
	go func() {
		subject := fmt.Sprintf("conversation.%d", c.ID)
		data, _ := json.Marshal(map[string]interface{}{
			"event":        "conversation.updated",
			"conversation": c,
		})
		if err := nats.Publish(subject, data); err != nil {
			log.Error("Failed to publish conversation.updated to NATS: %v", err)
		}
	}()

	return nil
}
