package rag

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

type Controller struct{}

type createSourceRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// CreateSource registers a knowledge source and starts ingestion in the
// background. The source answers retrieval queries only once it turns READY.
func (c Controller) CreateSource(request *evo.Request) any {
	agentID := request.Param("agent").Int()
	if agentID <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var agent models.Agent
	if err := db.Where("id = ?", agentID).First(&agent).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	var input createSourceRequest
	if err := request.BodyParser(&input); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if input.Name == "" || input.Content == "" {
		return response.Error(response.ErrMissingRequired)
	}
	switch input.Type {
	case models.KnowledgeSourceTypeText, models.KnowledgeSourceTypeURL, models.KnowledgeSourceTypePDF:
	case "":
		input.Type = models.KnowledgeSourceTypeText
	default:
		return response.Error(response.ErrInvalidInput)
	}

	source := models.KnowledgeSource{
		AgentID: agent.ID,
		Name:    input.Name,
		Type:    input.Type,
		Status:  models.KnowledgeSourceStatusProcessing,
		Content: input.Content,
	}
	if err := db.Create(&source).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	go func(id uuid.UUID) {
		if err := DefaultIndexer.IndexSource(id); err != nil {
			log.Error("Background indexing of source %s failed: %v", id, err)
		}
	}(source.ID)

	return response.Created(source)
}

// ListSources returns an agent's knowledge sources
func (c Controller) ListSources(request *evo.Request) any {
	agentID := request.Param("agent").Int()
	if agentID <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var sources []models.KnowledgeSource
	if err := db.Where("agent_id = ?", agentID).Order("created_at DESC").Find(&sources).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.List(sources, len(sources))
}

// ReindexSource re-runs ingestion for one source
func (c Controller) ReindexSource(request *evo.Request) any {
	sourceID, err := uuid.Parse(request.Param("id").String())
	if err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	var source models.KnowledgeSource
	if err := db.Where("id = ?", sourceID).First(&source).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	if err := db.Model(&source).Update("status", models.KnowledgeSourceStatusProcessing).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	go func() {
		if err := DefaultIndexer.IndexSource(source.ID); err != nil {
			log.Error("Reindex of source %s failed: %v", source.ID, err)
		}
	}()

	return response.Message("reindex started")
}

// DeleteSource removes a source and its chunks
func (c Controller) DeleteSource(request *evo.Request) any {
	sourceID, err := uuid.Parse(request.Param("id").String())
	if err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	var source models.KnowledgeSource
	if err := db.Where("id = ?", sourceID).First(&source).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	if err := DefaultIndexer.DeleteSourceIndex(source.ID); err != nil {
		return response.Error(response.ErrDatabaseError)
	}
	if err := db.Delete(&source).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.Message("source deleted")
}

// GetConfig returns the current retrieval configuration
func (c Controller) GetConfig(request *evo.Request) any {
	return response.OK(GetConfig())
}

// UpdateConfig stores new retrieval settings and reloads them
func (c Controller) UpdateConfig(request *evo.Request) any {
	var cfg RAGConfig
	if err := request.BodyParser(&cfg); err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	if err := UpdateConfig(&cfg); err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.OK(GetConfig())
}
