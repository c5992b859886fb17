package models

import (
	"encoding/json"
	"time"

	"github.com/getevo/restify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Knowledge source status constants
const (
	KnowledgeSourceStatusProcessing = "processing"
	KnowledgeSourceStatusReady      = "ready"
	KnowledgeSourceStatusFailed     = "failed"
)

// Knowledge source type constants
const (
	KnowledgeSourceTypeText = "text"
	KnowledgeSourceTypeURL  = "url"
	KnowledgeSourceTypePDF  = "pdf"
)

// KnowledgeSource is ingested reference material. Only READY sources
// participate in retrieval.
type KnowledgeSource struct {
	ID        uuid.UUID `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	AgentID   uint      `gorm:"column:agent_id;not null;index;fk:agents" json:"agent_id"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	Type      string    `gorm:"column:type;size:20;not null;default:'text';check:type IN ('text','url','pdf')" json:"type"`
	Status    string    `gorm:"column:status;size:20;not null;default:'processing';check:status IN ('processing','ready','failed')" json:"status"`
	Content   string    `gorm:"column:content;type:longtext" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Chunks []DocumentChunk `gorm:"foreignKey:SourceID;references:ID" json:"-"`

	restify.API
}

// DocumentChunk is an embeddable passage of a knowledge source, immutable
// after creation. AgentID is denormalized so retrieval can scope chunks
// without joining sources.
type DocumentChunk struct {
	ID         uuid.UUID `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	SourceID   uuid.UUID `gorm:"column:source_id;type:char(36);not null;index;fk:knowledge_sources" json:"source_id"`
	AgentID    uint      `gorm:"column:agent_id;not null;index" json:"agent_id"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	ChunkIndex int       `gorm:"column:chunk_index;not null" json:"chunk_index"`
	TokenCount int       `gorm:"column:token_count;default:0" json:"token_count"`
	Embedding  []byte    `gorm:"column:embedding;type:blob" json:"-"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Source *KnowledgeSource `gorm:"foreignKey:SourceID;references:ID" json:"source,omitempty"`

	restify.API
}

// EmbeddingVector decodes the stored embedding. Returns nil when the chunk has
// not been embedded yet.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if len(c.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(c.Embedding, &vec); err != nil {
		return nil
	}
	return vec
}

// SetEmbeddingVector encodes and stores the embedding.
func (c *DocumentChunk) SetEmbeddingVector(vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	c.Embedding = data
	return nil
}

func (KnowledgeSource) TableName() string {
	return "knowledge_sources"
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// BeforeCreate hook - generate UUID if not set
func (s *KnowledgeSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook - generate UUID if not set
func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
