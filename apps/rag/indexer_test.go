package rag

import (
	"errors"
	"testing"

	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type mockStore struct {
	ensureFn func(name string, size int) error
	upsertFn func(collection string, points []QdrantPoint) error
	deleteFn func(collection string, sourceID string) error
}

func (m *mockStore) EnsureCollection(name string, size int) error {
	if m.ensureFn != nil {
		return m.ensureFn(name, size)
	}
	return nil
}

func (m *mockStore) UpsertPoints(collection string, points []QdrantPoint) error {
	if m.upsertFn != nil {
		return m.upsertFn(collection, points)
	}
	return nil
}

func (m *mockStore) DeleteSourcePoints(collection string, sourceID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(collection, sourceID)
	}
	return nil
}

func TestIndexSourceMarksReadyAndStoresChunks(t *testing.T) {
	gdb := testDB(t)
	sourceID := seedSource(t, gdb, 7, "faq", models.KnowledgeSourceStatusProcessing)

	var upserted []QdrantPoint
	indexer := &Indexer{
		DB:     gdb,
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i := range texts {
				vectors[i] = []float32{1, 0, 0}
			}
			return vectors, nil
		}},
		Store: &mockStore{upsertFn: func(collection string, points []QdrantPoint) error {
			upserted = append(upserted, points...)
			return nil
		}},
	}

	if err := indexer.IndexSource(sourceID); err != nil {
		t.Fatalf("index: %v", err)
	}

	var source models.KnowledgeSource
	if err := gdb.Where("id = ?", sourceID).First(&source).Error; err != nil {
		t.Fatalf("fetch source: %v", err)
	}
	if source.Status != models.KnowledgeSourceStatusReady {
		t.Errorf("expected ready status, got %s", source.Status)
	}

	var chunks []models.DocumentChunk
	if err := gdb.Where("source_id = ?", sourceID).Find(&chunks).Error; err != nil {
		t.Fatalf("fetch chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks to be stored")
	}
	if len(upserted) != len(chunks) {
		t.Errorf("expected %d points upserted, got %d", len(chunks), len(upserted))
	}
	for _, chunk := range chunks {
		if chunk.AgentID != 7 {
			t.Errorf("chunk agent_id = %d, want 7", chunk.AgentID)
		}
		if chunk.EmbeddingVector() == nil {
			t.Error("chunk embedding missing")
		}
	}
}

func TestIndexSourceMarksFailedOnEmbeddingError(t *testing.T) {
	gdb := testDB(t)
	sourceID := seedSource(t, gdb, 7, "faq", models.KnowledgeSourceStatusProcessing)

	indexer := &Indexer{
		DB:     gdb,
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		}},
	}

	if err := indexer.IndexSource(sourceID); err == nil {
		t.Fatal("expected indexing to fail")
	}

	var source models.KnowledgeSource
	if err := gdb.Where("id = ?", sourceID).First(&source).Error; err != nil {
		t.Fatalf("fetch source: %v", err)
	}
	if source.Status != models.KnowledgeSourceStatusFailed {
		t.Errorf("expected failed status, got %s", source.Status)
	}

	var count int64
	gdb.Model(&models.DocumentChunk{}).Where("source_id = ?", sourceID).Count(&count)
	if count != 0 {
		t.Errorf("expected no chunks, got %d", count)
	}
}

func TestIndexSourceSurvivesVectorStoreFailure(t *testing.T) {
	gdb := testDB(t)
	sourceID := seedSource(t, gdb, 7, "faq", models.KnowledgeSourceStatusProcessing)

	indexer := &Indexer{
		DB:     gdb,
		Config: testConfig(),
		Embedder: &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i := range texts {
				vectors[i] = []float32{1, 0, 0}
			}
			return vectors, nil
		}},
		Store: &mockStore{upsertFn: func(string, []QdrantPoint) error {
			return errors.New("qdrant unreachable")
		}},
	}

	// Database chunks are enough for the fallback search path
	if err := indexer.IndexSource(sourceID); err != nil {
		t.Fatalf("index should tolerate store failure: %v", err)
	}

	var source models.KnowledgeSource
	if err := gdb.Where("id = ?", sourceID).First(&source).Error; err != nil {
		t.Fatalf("fetch source: %v", err)
	}
	if source.Status != models.KnowledgeSourceStatusReady {
		t.Errorf("expected ready status, got %s", source.Status)
	}
}
