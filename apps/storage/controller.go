package storage

import (
	"context"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/go-playground/validator/v10"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

type Controller struct{}

var validate = validator.New()

// PresignInput requests a direct-to-bucket upload slot
type PresignInput struct {
	Filename    string `json:"filename" validate:"required,min=1,max=255"`
	ContentType string `json:"content_type" validate:"required,min=1,max=100"`
}

// MediaItemInput registers an uploaded object (or an external URL) in the
// agent's media library
type MediaItemInput struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Type        string `json:"type" validate:"required,oneof=image video document"`
	URL         string `json:"url" validate:"omitempty,url"`
	S3Key       string `json:"s3_key"`
}

// PresignUpload hands the dashboard a presigned PUT URL so large media files
// go straight to the bucket instead of through the API server
func (c Controller) PresignUpload(request *evo.Request) any {
	agentID := request.Param("id").Int()
	if agentID <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	if !IsEnabled() {
		return response.Error(response.NewError(response.ErrorCodeInternalError, "Media storage is not enabled", 503))
	}

	var input PresignInput
	if err := request.BodyParser(&input); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(input); err != nil {
		return response.Error(response.NewError(response.ErrorCodeInvalidInput, err.Error(), 400))
	}

	var agent models.Agent
	if err := db.Where("id = ?", agentID).First(&agent).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	key := GenerateMediaKey(agent.ID, input.Filename)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url, err := PresignUploadURL(ctx, key, input.ContentType, 0)
	if err != nil {
		log.Error("Failed to presign media upload for agent %d: %v", agent.ID, err)
		return response.Error(response.ErrInternalError)
	}

	return response.OK(map[string]string{"url": url, "key": key})
}

// CreateMediaItem registers a media library entry after its object has been
// uploaded (or with a plain external URL)
func (c Controller) CreateMediaItem(request *evo.Request) any {
	agentID := request.Param("id").Int()
	if agentID <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var input MediaItemInput
	if err := request.BodyParser(&input); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(input); err != nil {
		return response.Error(response.NewError(response.ErrorCodeInvalidInput, err.Error(), 400))
	}
	if input.URL == "" && input.S3Key == "" {
		return response.Error(response.NewError(response.ErrorCodeMissingRequired, "Either url or s3_key is required", 400))
	}

	var agent models.Agent
	if err := db.Where("id = ?", agentID).First(&agent).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	item := models.MediaItem{
		AgentID:     agent.ID,
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		URL:         input.URL,
	}
	if input.S3Key != "" {
		item.S3Key = &input.S3Key
	}

	if err := db.Create(&item).Error; err != nil {
		log.Error("Failed to create media item for agent %d: %v", agent.ID, err)
		return response.Error(response.ErrDatabaseError)
	}

	return response.Created(item)
}

// ListMedia returns the agent's media library
func (c Controller) ListMedia(request *evo.Request) any {
	agentID := request.Param("id").Int()
	if agentID <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var items []models.MediaItem
	if err := db.Where("agent_id = ?", agentID).Order("created_at DESC").Find(&items).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.List(items, len(items))
}

// DeleteMediaItem removes a media library entry and its stored object
func (c Controller) DeleteMediaItem(request *evo.Request) any {
	id := request.Param("id").Int()
	if id <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var item models.MediaItem
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	if item.S3Key != nil && IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := Delete(ctx, *item.S3Key); err != nil {
			// The row still goes away, the orphaned object is logged
			log.Warning("Failed to delete media object %s: %v", *item.S3Key, err)
		}
	}

	if err := db.Delete(&item).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}

	return response.Message("Media item deleted")
}

// GetMediaURL resolves the downloadable URL of a media item, presigning
// bucket-backed objects on demand
func (c Controller) GetMediaURL(request *evo.Request) any {
	id := request.Param("id").Int()
	if id <= 0 {
		return response.Error(response.ErrInvalidInput)
	}

	var item models.MediaItem
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	if item.S3Key != nil && IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		url, err := PresignDownloadURL(ctx, *item.S3Key, 0)
		if err != nil {
			log.Error("Failed to presign media item %d: %v", item.ID, err)
			return response.Error(response.ErrInternalError)
		}
		return response.OK(map[string]string{"url": url})
	}

	if item.URL == "" {
		return response.Error(response.ErrNotFound)
	}
	return response.OK(map[string]string{"url": item.URL})
}
