package models

import (
	"time"

	"github.com/getevo/restify"
	"gorm.io/datatypes"
)

type Channel struct {
	ID            string         `gorm:"column:id;primaryKey;size:50" json:"id"`
	AgentID       uint           `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Name          string         `gorm:"column:name;size:255;not null" json:"name"`
	IsActive      bool           `gorm:"column:is_active;default:1" json:"is_active"`
	Configuration datatypes.JSON `gorm:"column:configuration;type:json" json:"configuration"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Agent         *Agent         `gorm:"foreignKey:AgentID;references:ID" json:"agent,omitempty"`
	Conversations []Conversation `gorm:"foreignKey:ChannelID;references:ID" json:"conversations,omitempty"`

	restify.API
}
