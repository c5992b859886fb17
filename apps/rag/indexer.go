package rag

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/pdfutil"
	"gorm.io/gorm"
)

// VectorStore is the write side of the vector index, implemented by QdrantClient
type VectorStore interface {
	EnsureCollection(name string, vectorSize int) error
	UpsertPoints(collection string, points []QdrantPoint) error
	DeleteSourcePoints(collection string, sourceID string) error
}

// Indexer ingests knowledge sources: resolve content, chunk, embed, store.
// A source becomes READY only after its chunks are fully persisted; any
// failure marks it FAILED and leaves no partial chunks behind.
type Indexer struct {
	DB       *gorm.DB
	Embedder Embedder
	Store    VectorStore
	Config   *RAGConfig

	httpClient *http.Client
}

func NewIndexer(db *gorm.DB) *Indexer {
	return &Indexer{
		DB:         db,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (i *Indexer) config() *RAGConfig {
	if i.Config != nil {
		return i.Config
	}
	return GetConfig()
}

func (i *Indexer) embedder() Embedder {
	if i.Embedder != nil {
		return i.Embedder
	}
	return GetEmbedder()
}

// IndexSource processes one knowledge source end to end
func (i *Indexer) IndexSource(sourceID uuid.UUID) error {
	cfg := i.config()
	if !cfg.Enabled {
		log.Debug("RAG is disabled, skipping source indexing")
		return nil
	}

	var source models.KnowledgeSource
	if err := i.DB.Where("id = ?", sourceID).First(&source).Error; err != nil {
		return fmt.Errorf("failed to fetch knowledge source: %w", err)
	}

	if err := i.indexSource(&source, cfg); err != nil {
		log.Error("Failed to index source %s: %v", sourceID, err)
		i.setStatus(&source, models.KnowledgeSourceStatusFailed)
		return err
	}

	i.setStatus(&source, models.KnowledgeSourceStatusReady)
	return nil
}

func (i *Indexer) indexSource(source *models.KnowledgeSource, cfg *RAGConfig) error {
	content, err := i.resolveContent(source)
	if err != nil {
		return err
	}

	// Drop any chunks from a previous run
	if err := i.DeleteSourceIndex(source.ID); err != nil {
		log.Warning("Failed to delete existing index for source %s: %v", source.ID, err)
	}

	chunks := ChunkText(source.Name+"\n\n"+content, cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks generated")
	}

	embedder := i.embedder()
	if embedder == nil {
		return fmt.Errorf("no embedding backend configured")
	}

	chunkTexts := make([]string, len(chunks))
	for idx, chunk := range chunks {
		chunkTexts[idx] = chunk.Content
	}

	vectors, err := embedder.Embed(chunkTexts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(chunks))
	}

	var points []QdrantPoint
	var dbChunks []models.DocumentChunk

	for idx, chunk := range chunks {
		chunkID := uuid.New()

		dbChunk := models.DocumentChunk{
			ID:         chunkID,
			SourceID:   source.ID,
			AgentID:    source.AgentID,
			Content:    chunk.Content,
			ChunkIndex: chunk.Index,
			TokenCount: chunk.TokenCount,
		}
		if err := dbChunk.SetEmbeddingVector(vectors[idx]); err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		dbChunks = append(dbChunks, dbChunk)

		points = append(points, QdrantPoint{
			ID:     chunkID.String(),
			Vector: vectors[idx],
			Payload: map[string]interface{}{
				"source_id":     source.ID.String(),
				"source_name":   source.Name,
				"agent_id":      source.AgentID,
				"chunk_index":   chunk.Index,
				"chunk_content": chunk.Content,
			},
		})
	}

	if err := i.DB.CreateInBatches(&dbChunks, 100).Error; err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	// The vector index is an accelerator, retrieval falls back to the
	// database when points are missing
	if i.Store != nil {
		collection := GetCollectionName()
		if err := i.Store.EnsureCollection(collection, cfg.VectorSize); err != nil {
			log.Warning("Failed to ensure collection: %v", err)
		} else if err := i.Store.UpsertPoints(collection, points); err != nil {
			log.Warning("Failed to push vectors to index for source %s: %v", source.ID, err)
		}
	}

	log.Info("Indexed knowledge source %s with %d chunks", source.ID, len(chunks))
	return nil
}

// DeleteSourceIndex removes a source's chunks from the index and the database
func (i *Indexer) DeleteSourceIndex(sourceID uuid.UUID) error {
	if i.Store != nil {
		if err := i.Store.DeleteSourcePoints(GetCollectionName(), sourceID.String()); err != nil {
			log.Warning("Failed to delete vectors from index: %v", err)
		}
	}

	if err := i.DB.Where("source_id = ?", sourceID).Delete(&models.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// resolveContent loads the raw text of a source. TEXT sources carry it
// inline, URL sources are fetched, PDF sources are fetched and extracted.
func (i *Indexer) resolveContent(source *models.KnowledgeSource) (string, error) {
	switch source.Type {
	case models.KnowledgeSourceTypeText:
		if source.Content == "" {
			return "", fmt.Errorf("text source has no content")
		}
		return source.Content, nil

	case models.KnowledgeSourceTypeURL:
		data, err := i.fetch(source.Content)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case models.KnowledgeSourceTypePDF:
		data, err := i.fetch(source.Content)
		if err != nil {
			return "", err
		}
		return pdfutil.ExtractText(data)

	default:
		return "", fmt.Errorf("unknown source type %q", source.Type)
	}
}

func (i *Indexer) fetch(url string) ([]byte, error) {
	client := i.httpClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

func (i *Indexer) setStatus(source *models.KnowledgeSource, status string) {
	if err := i.DB.Model(source).Update("status", status).Error; err != nil {
		log.Error("Failed to update source %s status: %v", source.ID, err)
	}
}
