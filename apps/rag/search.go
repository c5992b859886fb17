package rag

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
)

// Embedder turns texts into embedding vectors. Implemented by the AI
// provider client and injected at startup to keep this package free of
// provider specifics.
type Embedder interface {
	Embed(texts []string) ([][]float32, error)
}

// VectorIndex is the primary search path, implemented by QdrantClient
type VectorIndex interface {
	Search(collection string, agentID uint, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
}

var (
	defaultEmbedder Embedder
	embedderLock    sync.RWMutex
)

// SetEmbedder wires the embedding backend
func SetEmbedder(e Embedder) {
	embedderLock.Lock()
	defer embedderLock.Unlock()
	defaultEmbedder = e
}

// GetEmbedder returns the wired embedding backend
func GetEmbedder() Embedder {
	embedderLock.RLock()
	defer embedderLock.RUnlock()
	return defaultEmbedder
}

// ChunkMatch is a scored retrieval hit
type ChunkMatch struct {
	SourceName string  `json:"source_name"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// Retriever answers "what does this agent know about X". Retrieval is strictly
// best effort: every failure path degrades toward an empty context and never
// aborts the caller's turn.
type Retriever struct {
	DB       *gorm.DB
	Embedder Embedder
	Index    VectorIndex
	Config   *RAGConfig
}

func NewRetriever(db *gorm.DB) *Retriever {
	return &Retriever{DB: db}
}

func (r *Retriever) config() *RAGConfig {
	if r.Config != nil {
		return r.Config
	}
	return GetConfig()
}

func (r *Retriever) embedder() Embedder {
	if r.Embedder != nil {
		return r.Embedder
	}
	return GetEmbedder()
}

// Search returns the chunks of an agent's READY knowledge sources relevant to
// the query: primary path Qdrant, fallback cosine scan over the database.
func (r *Retriever) Search(agentID uint, query string) ([]ChunkMatch, error) {
	cfg := r.config()
	if !cfg.Enabled {
		return nil, nil
	}

	embedder := r.embedder()
	if embedder == nil {
		return nil, fmt.Errorf("no embedding backend configured")
	}

	vectors, err := embedder.Embed([]string{query})
	if err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := vectors[0]

	if r.Index != nil {
		matches, err := r.searchIndex(agentID, queryVector, cfg)
		if err == nil {
			return matches, nil
		}
		log.Warning("Vector index search failed, falling back to database scan: %v", err)
	}

	return r.scanDatabase(agentID, queryVector, cfg)
}

// Context runs Search and joins the hits into a single prompt context block.
// Empty string means "no relevant knowledge"; errors collapse to that too.
func (r *Retriever) Context(agentID uint, query string) string {
	matches, err := r.Search(agentID, query)
	if err != nil {
		log.Warning("Knowledge retrieval failed for agent %d: %v", agentID, err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	context := "Relevant knowledge base information:\n\n"
	for i, m := range matches {
		context += fmt.Sprintf("--- Source %d: %s ---\n%s\n\n", i+1, m.SourceName, m.Content)
	}
	return context
}

func (r *Retriever) searchIndex(agentID uint, vector []float32, cfg *RAGConfig) ([]ChunkMatch, error) {
	results, err := r.Index.Search(GetCollectionName(), agentID, vector, cfg.TopK, cfg.ScoreThreshold)
	if err != nil {
		return nil, err
	}

	var matches []ChunkMatch
	for _, res := range results {
		matches = append(matches, ChunkMatch{
			SourceName: payloadString(res.Payload, "source_name"),
			Content:    payloadString(res.Payload, "chunk_content"),
			Score:      res.Score,
		})
	}
	return matches, nil
}

// scanDatabase is the fallback path: brute-force cosine over the agent's
// chunks from READY sources.
func (r *Retriever) scanDatabase(agentID uint, vector []float32, cfg *RAGConfig) ([]ChunkMatch, error) {
	var chunks []models.DocumentChunk
	err := r.DB.Preload("Source").
		Where("agent_id = ?", agentID).
		Where("source_id IN (?)", r.DB.Model(&models.KnowledgeSource{}).
			Select("id").Where("status = ?", models.KnowledgeSourceStatusReady)).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	var matches []ChunkMatch
	for _, chunk := range chunks {
		embedding := chunk.EmbeddingVector()
		if embedding == nil {
			continue
		}
		score := CosineSimilarity(vector, embedding)
		if score <= cfg.ScoreThreshold {
			continue
		}
		name := ""
		if chunk.Source != nil {
			name = chunk.Source.Name
		}
		matches = append(matches, ChunkMatch{
			SourceName: name,
			Content:    chunk.Content,
			Score:      score,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > cfg.TopK {
		matches = matches[:cfg.TopK]
	}
	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, 0 when
// lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func payloadString(payload map[string]interface{}, key string) string {
	if val, ok := payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
