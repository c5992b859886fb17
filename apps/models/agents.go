package models

import (
	"time"

	"github.com/getevo/restify"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Agent status constants
const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
)

// Agent job type constants
const (
	AgentJobSupport   = "support"
	AgentJobSales     = "sales"
	AgentJobBooking   = "booking"
	AgentJobAssistant = "assistant"
)

// Agent communication style constants
const (
	AgentStyleFormal       = "formal"
	AgentStyleCasual       = "casual"
	AgentStyleFriendly     = "friendly"
	AgentStyleProfessional = "professional"
	AgentStylePlayful      = "playful"
)

// Model family constants
const (
	ModelFamilyOpenAI = "openai"
	ModelFamilyGemini = "gemini"
)

type Agent struct {
	ID                   uint      `gorm:"column:id;primaryKey" json:"id"`
	WorkspaceID          uuid.UUID `gorm:"column:workspace_id;type:char(36);not null;index;fk:workspaces" json:"workspace_id"`
	Name                 string    `gorm:"column:name;size:255;not null" json:"name"`
	Persona              string    `gorm:"column:persona;type:text" json:"persona"`
	BusinessDescription  string    `gorm:"column:business_description;type:text" json:"business_description"`
	JobType              string    `gorm:"column:job_type;size:50;not null;default:'support';check:job_type IN ('support','sales','booking','assistant')" json:"job_type"`
	CommunicationStyle   string    `gorm:"column:communication_style;size:50;not null;default:'friendly';check:communication_style IN ('formal','casual','friendly','professional','playful')" json:"communication_style"`
	ModelFamily          string    `gorm:"column:model_family;size:50;not null;default:'openai';check:model_family IN ('openai','gemini')" json:"model_family"`
	Timezone             string    `gorm:"column:timezone;size:50;not null;default:'UTC'" json:"timezone"`
	UseEmojis            bool      `gorm:"column:use_emojis;not null;default:0" json:"use_emojis"`
	SignatureEnabled     bool      `gorm:"column:signature_enabled;not null;default:0" json:"signature_enabled"`
	Signature            string    `gorm:"column:signature;size:255" json:"signature"`
	RestrictTopics       bool      `gorm:"column:restrict_topics;not null;default:0" json:"restrict_topics"`
	AllowedTopics        string    `gorm:"column:allowed_topics;type:text" json:"allowed_topics"`
	HumanTransferEnabled bool      `gorm:"column:human_transfer_enabled;not null;default:0" json:"human_transfer_enabled"`
	CalendarEnabled      bool      `gorm:"column:calendar_enabled;not null;default:0" json:"calendar_enabled"`
	MaxToolCalls         int       `gorm:"column:max_tool_calls;not null;default:8" json:"max_tool_calls"`
	ContextWindow        int       `gorm:"column:context_window;not null;default:10" json:"context_window"`
	Status               string    `gorm:"column:status;size:20;not null;default:'active';check:status IN ('active','inactive')" json:"status"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Workspace    *Workspace              `gorm:"foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	Channels     []Channel               `gorm:"foreignKey:AgentID;references:ID" json:"channels,omitempty"`
	CustomFields []CustomFieldDefinition `gorm:"foreignKey:AgentID;references:ID" json:"custom_fields,omitempty"`
	Intents      []Intent                `gorm:"foreignKey:AgentID;references:ID" json:"intents,omitempty"`
	Media        []MediaItem             `gorm:"foreignKey:AgentID;references:ID" json:"media,omitempty"`

	restify.API
}

// CustomFieldDefinition describes a contact field the agent should try to
// collect during conversations. The prompt assembler enumerates these and the
// model stores values through the update_contact tool.
type CustomFieldDefinition struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	AgentID     uint      `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Key         string    `gorm:"column:field_key;size:100;not null" json:"key"`
	Label       string    `gorm:"column:label;size:255;not null" json:"label"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

// Calendar provider constants
const (
	CalendarProviderGoogle = "google"
)

type CalendarIntegration struct {
	ID          uint           `gorm:"column:id;primaryKey" json:"id"`
	AgentID     uint           `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Provider    string         `gorm:"column:provider;size:50;not null;default:'google'" json:"provider"`
	Enabled     bool           `gorm:"column:enabled;not null;default:0" json:"enabled"`
	CalendarID  string         `gorm:"column:calendar_id;size:255" json:"calendar_id"`
	Credentials datatypes.JSON `gorm:"column:credentials;type:json" json:"-"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

// Media item type constants
const (
	MediaTypeImage    = "image"
	MediaTypeVideo    = "video"
	MediaTypeDocument = "document"
)

// MediaItem is an entry in the agent's media library, returned by the
// search_media tool. Items either carry a public URL or an S3 object key that
// is presigned on demand.
type MediaItem struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	AgentID     uint      `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Type        string    `gorm:"column:type;size:50;not null;default:'image';check:type IN ('image','video','document')" json:"type"`
	URL         string    `gorm:"column:url;size:500" json:"url"`
	S3Key       *string   `gorm:"column:s3_key;size:500" json:"s3_key"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

func (CustomFieldDefinition) TableName() string {
	return "custom_field_definitions"
}

func (CalendarIntegration) TableName() string {
	return "calendar_integrations"
}

func (MediaItem) TableName() string {
	return "media_items"
}
