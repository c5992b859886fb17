package rag

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// Default RAG settings
const (
	DefaultChunkSize      = 500
	DefaultChunkOverlap   = 50
	DefaultMinChunkSize   = 100
	DefaultVectorSize     = 1536 // text-embedding-3-small
	DefaultScoreThreshold = 0.4
	DefaultTopK           = 5
)

// RAGConfig holds the RAG configuration
type RAGConfig struct {
	Enabled        bool    `json:"enabled"`
	EmbeddingModel string  `json:"embedding_model"`
	VectorSize     int     `json:"vector_size"`
	ChunkSize      int     `json:"chunk_size"`
	ChunkOverlap   int     `json:"chunk_overlap"`
	MinChunkSize   int     `json:"min_chunk_size"`
	ScoreThreshold float32 `json:"score_threshold"`
	TopK           int     `json:"top_k"`
}

var (
	config     *RAGConfig
	configLock sync.RWMutex
)

// GetConfig returns the current RAG configuration
func GetConfig() *RAGConfig {
	configLock.RLock()
	defer configLock.RUnlock()

	if config == nil {
		return loadConfig()
	}
	return config
}

func getSettingInt(key string, defaultValue int) int {
	val := models.GetSettingValue(key, "")
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getSettingFloat32(key string, defaultValue float32) float32 {
	val := models.GetSettingValue(key, "")
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return defaultValue
	}
	return float32(floatVal)
}

// loadConfig loads RAG settings from database
func loadConfig() *RAGConfig {
	cfg := &RAGConfig{
		Enabled:        models.GetSettingValue("rag.enabled", "true") == "true",
		EmbeddingModel: models.GetSettingValue("rag.embedding_model", "text-embedding-3-small"),
		VectorSize:     getSettingInt("rag.vector_size", DefaultVectorSize),
		ChunkSize:      getSettingInt("rag.chunk_size", DefaultChunkSize),
		ChunkOverlap:   getSettingInt("rag.chunk_overlap", DefaultChunkOverlap),
		MinChunkSize:   getSettingInt("rag.min_chunk_size", DefaultMinChunkSize),
		ScoreThreshold: getSettingFloat32("rag.score_threshold", DefaultScoreThreshold),
		TopK:           getSettingInt("rag.top_k", DefaultTopK),
	}
	return cfg
}

// ReloadConfig reloads the RAG configuration from database
func ReloadConfig() {
	configLock.Lock()
	defer configLock.Unlock()
	config = loadConfig()
	log.Info("RAG config reloaded: enabled=%v, model=%s, vectorSize=%d, chunkSize=%d",
		config.Enabled, config.EmbeddingModel, config.VectorSize, config.ChunkSize)
}

// UpdateConfig updates the RAG configuration in database
func UpdateConfig(cfg *RAGConfig) error {
	values := map[string]string{
		"rag.enabled":         fmt.Sprintf("%t", cfg.Enabled),
		"rag.embedding_model": cfg.EmbeddingModel,
		"rag.vector_size":     strconv.Itoa(cfg.VectorSize),
		"rag.chunk_size":      strconv.Itoa(cfg.ChunkSize),
		"rag.chunk_overlap":   strconv.Itoa(cfg.ChunkOverlap),
		"rag.min_chunk_size":  strconv.Itoa(cfg.MinChunkSize),
		"rag.score_threshold": fmt.Sprintf("%.2f", cfg.ScoreThreshold),
		"rag.top_k":           strconv.Itoa(cfg.TopK),
	}

	for key, value := range values {
		if err := models.SetSetting(key, value, "string", "rag", ""); err != nil {
			return err
		}
	}

	ReloadConfig()
	return nil
}
