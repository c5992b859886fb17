package models

import (
	"time"

	"github.com/getevo/restify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Workspace struct {
	ID        uuid.UUID `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Balance  *CreditBalance `gorm:"foreignKey:WorkspaceID;references:ID" json:"balance,omitempty"`
	Agents   []Agent        `gorm:"foreignKey:WorkspaceID;references:ID" json:"agents,omitempty"`
	Contacts []Contact      `gorm:"foreignKey:WorkspaceID;references:ID" json:"contacts,omitempty"`

	restify.API
}

// CreditBalance holds the remaining metered AI credits of a workspace.
// Balance is decremented once per successful AI turn. The gateway precheck and
// the debit are not one atomic unit, so the balance is a soft limit: it may
// transiently dip below zero under concurrent turns.
type CreditBalance struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"column:workspace_id;type:char(36);not null;uniqueIndex;fk:workspaces" json:"workspace_id"`
	Balance     int64     `gorm:"column:balance;not null;default:0" json:"balance"`
	TotalUsed   int64     `gorm:"column:total_used;not null;default:0" json:"total_used"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

// UsageLog is append-only: one row per billed AI turn.
type UsageLog struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	WorkspaceID      uuid.UUID `gorm:"column:workspace_id;type:char(36);not null;index;fk:workspaces" json:"workspace_id"`
	ConversationID   uint      `gorm:"column:conversation_id;not null;index;fk:conversations" json:"conversation_id"`
	MessageID        *uint     `gorm:"column:message_id;index" json:"message_id"`
	Model            string    `gorm:"column:model;size:100" json:"model"`
	PromptTokens     int       `gorm:"column:prompt_tokens;default:0" json:"prompt_tokens"`
	CompletionTokens int       `gorm:"column:completion_tokens;default:0" json:"completion_tokens"`
	TotalTokens      int       `gorm:"column:total_tokens;default:0" json:"total_tokens"`
	Credits          int       `gorm:"column:credits;not null;default:1" json:"credits"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	restify.API
}

// BeforeCreate hook to generate UUID for Workspace
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

func (UsageLog) TableName() string {
	return "usage_logs"
}
