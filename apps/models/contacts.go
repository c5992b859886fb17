package models

import (
	"time"

	"github.com/getevo/restify"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contact is a workspace-scoped identity record for an external visitor.
// Rows are created on first contact during session resolution; field values
// are updated through the update_contact tool.
type Contact struct {
	ID          uuid.UUID      `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	WorkspaceID uuid.UUID      `gorm:"column:workspace_id;type:char(36);not null;index;fk:workspaces" json:"workspace_id"`
	Name        string         `gorm:"column:name;size:255" json:"name"`
	Email       string         `gorm:"column:email;size:255" json:"email"`
	Phone       string         `gorm:"column:phone;size:50" json:"phone"`
	Data        datatypes.JSON `gorm:"column:data;type:json" json:"data"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Conversations []Conversation `gorm:"foreignKey:ContactID;references:ID" json:"conversations,omitempty"`

	restify.API
}

// BeforeCreate hook to generate UUID for Contact
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
