package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/getevo/restify"
	"gorm.io/datatypes"
)

// Intent action type constants
const (
	IntentActionWebhook  = "webhook"
	IntentActionInternal = "internal"
	IntentActionForm     = "form"
)

// Intent is a keyword-triggered side action. Matching is evaluated against
// each inbound user message before the model is invoked and never replaces
// the reply.
type Intent struct {
	ID             uint           `gorm:"column:id;primaryKey" json:"id"`
	AgentID        uint           `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Name           string         `gorm:"column:name;size:255;not null" json:"name"`
	Keywords       datatypes.JSON `gorm:"column:keywords;type:json" json:"keywords"`
	ActionType     string         `gorm:"column:action_type;size:20;not null;default:'webhook';check:action_type IN ('webhook','internal','form')" json:"action_type"`
	WebhookURL     string         `gorm:"column:webhook_url;size:500" json:"webhook_url"`
	InternalAction string         `gorm:"column:internal_action;size:100" json:"internal_action"`
	FormID         string         `gorm:"column:form_id;size:100" json:"form_id"`
	Enabled        bool           `gorm:"column:enabled;not null;default:1" json:"enabled"`
	Position       int            `gorm:"column:position;not null;default:0" json:"position"`
	TriggerCount   int64          `gorm:"column:trigger_count;not null;default:0" json:"trigger_count"`
	LastTriggered  *time.Time     `gorm:"column:last_triggered" json:"last_triggered"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Agent *Agent `gorm:"foreignKey:AgentID;references:ID" json:"agent,omitempty"`

	restify.API
}

func (Intent) TableName() string {
	return "intents"
}

// KeywordList decodes the keywords array, lowercased and with empty entries
// dropped.
func (i *Intent) KeywordList() []string {
	if len(i.Keywords) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(i.Keywords, &raw); err != nil {
		return nil
	}
	var keywords []string
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
