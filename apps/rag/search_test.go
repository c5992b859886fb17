package rag

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockEmbedder struct {
	embedFn func(texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(texts []string) ([][]float32, error) {
	return m.embedFn(texts)
}

type mockIndex struct {
	searchFn func(collection string, agentID uint, vector []float32, limit int, threshold float32) ([]SearchResult, error)
}

func (m *mockIndex) Search(collection string, agentID uint, vector []float32, limit int, threshold float32) ([]SearchResult, error) {
	return m.searchFn(collection, agentID, vector, limit, threshold)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&models.KnowledgeSource{}, &models.DocumentChunk{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func testConfig() *RAGConfig {
	return &RAGConfig{
		Enabled:        true,
		VectorSize:     3,
		ChunkSize:      DefaultChunkSize,
		ChunkOverlap:   DefaultChunkOverlap,
		MinChunkSize:   DefaultMinChunkSize,
		ScoreThreshold: 0.4,
		TopK:           5,
	}
}

func seedChunk(t *testing.T, gdb *gorm.DB, sourceID uuid.UUID, agentID uint, content string, embedding []float32) {
	t.Helper()
	chunk := models.DocumentChunk{
		SourceID: sourceID,
		AgentID:  agentID,
		Content:  content,
	}
	if err := chunk.SetEmbeddingVector(embedding); err != nil {
		t.Fatalf("set embedding: %v", err)
	}
	if err := gdb.Create(&chunk).Error; err != nil {
		t.Fatalf("create chunk: %v", err)
	}
}

func seedSource(t *testing.T, gdb *gorm.DB, agentID uint, name, status string) uuid.UUID {
	t.Helper()
	source := models.KnowledgeSource{
		AgentID: agentID,
		Name:    name,
		Type:    models.KnowledgeSourceTypeText,
		Status:  status,
		Content: "stub",
	}
	if err := gdb.Create(&source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}
	return source.ID
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
	}
	for _, tc := range cases {
		got := CosineSimilarity(tc.a, tc.b)
		if math.Abs(float64(got-tc.want)) > 1e-5 {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}
}

func TestSearchUsesVectorIndexFirst(t *testing.T) {
	retriever := &Retriever{
		Config:   testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}},
		Index: &mockIndex{searchFn: func(collection string, agentID uint, vector []float32, limit int, threshold float32) ([]SearchResult, error) {
			if agentID != 7 {
				return nil, fmt.Errorf("unexpected agent %d", agentID)
			}
			if limit != 5 || threshold != 0.4 {
				return nil, fmt.Errorf("unexpected limit %d / threshold %f", limit, threshold)
			}
			return []SearchResult{
				{Score: 0.9, Payload: map[string]interface{}{"source_name": "faq", "chunk_content": "we ship worldwide"}},
			}, nil
		}},
	}

	matches, err := retriever.Search(7, "do you ship to France?")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Content != "we ship worldwide" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSearchFallsBackToDatabaseScan(t *testing.T) {
	gdb := testDB(t)
	ready := seedSource(t, gdb, 7, "faq", models.KnowledgeSourceStatusReady)
	processing := seedSource(t, gdb, 7, "draft", models.KnowledgeSourceStatusProcessing)

	seedChunk(t, gdb, ready, 7, "close match", []float32{1, 0, 0})
	seedChunk(t, gdb, ready, 7, "weak match", []float32{0.5, 0.8, 0.33})
	seedChunk(t, gdb, ready, 7, "orthogonal", []float32{0, 1, 0})
	seedChunk(t, gdb, processing, 7, "not ready yet", []float32{1, 0, 0})
	seedChunk(t, gdb, ready, 9, "other agent", []float32{1, 0, 0})

	retriever := &Retriever{
		DB:     gdb,
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}},
		Index: &mockIndex{searchFn: func(string, uint, []float32, int, float32) ([]SearchResult, error) {
			return nil, errors.New("qdrant unreachable")
		}},
	}

	matches, err := retriever.Search(7, "anything")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above threshold, got %d: %+v", len(matches), matches)
	}
	if matches[0].Content != "close match" {
		t.Errorf("expected best match first, got %q", matches[0].Content)
	}
	for _, m := range matches {
		if m.Content == "not ready yet" || m.Content == "other agent" {
			t.Errorf("match %q should have been excluded", m.Content)
		}
	}
}

func TestSearchCapsResultsAtTopK(t *testing.T) {
	gdb := testDB(t)
	ready := seedSource(t, gdb, 7, "faq", models.KnowledgeSourceStatusReady)
	for i := 0; i < 10; i++ {
		seedChunk(t, gdb, ready, 7, fmt.Sprintf("chunk %d", i), []float32{1, 0, 0})
	}

	cfg := testConfig()
	cfg.TopK = 3
	retriever := &Retriever{
		DB:     gdb,
		Config: cfg,
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}},
	}

	matches, err := retriever.Search(7, "anything")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("expected 3 matches, got %d", len(matches))
	}
}

func TestContextDegradesToEmptyString(t *testing.T) {
	// Embedding failure must not surface to the caller
	retriever := &Retriever{
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		}},
	}
	if got := retriever.Context(7, "anything"); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}

	// Disabled retrieval also yields empty context
	cfg := testConfig()
	cfg.Enabled = false
	retriever = &Retriever{Config: cfg}
	if got := retriever.Context(7, "anything"); got != "" {
		t.Errorf("expected empty context when disabled, got %q", got)
	}
}

func TestContextJoinsMatches(t *testing.T) {
	retriever := &Retriever{
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}},
		Index: &mockIndex{searchFn: func(string, uint, []float32, int, float32) ([]SearchResult, error) {
			return []SearchResult{
				{Score: 0.9, Payload: map[string]interface{}{"source_name": "faq", "chunk_content": "first"}},
				{Score: 0.8, Payload: map[string]interface{}{"source_name": "policies", "chunk_content": "second"}},
			}, nil
		}},
	}

	ctx := retriever.Context(7, "anything")
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}
	for _, want := range []string{"faq", "first", "policies", "second"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}
