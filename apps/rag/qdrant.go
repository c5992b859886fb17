package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// QdrantClient is a client for the Qdrant vector database
type QdrantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// QdrantPoint represents a point in Qdrant
type QdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchResult represents a search result from Qdrant
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

var (
	qdrantClient     *QdrantClient
	qdrantClientLock sync.RWMutex
)

// InitQdrant initializes the Qdrant client
func InitQdrant() error {
	qdrantClientLock.Lock()
	defer qdrantClientLock.Unlock()

	url := settings.Get("QDRANT.URL", "http://localhost:6333").String()
	apiKey := settings.Get("QDRANT.API_KEY", "").String()

	qdrantClient = &QdrantClient{
		baseURL: url,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	log.Info("Qdrant client initialized with URL: %s", url)
	return nil
}

// GetQdrantClient returns the Qdrant client instance
func GetQdrantClient() *QdrantClient {
	qdrantClientLock.RLock()
	defer qdrantClientLock.RUnlock()
	return qdrantClient
}

// GetCollectionName returns the configured collection name
func GetCollectionName() string {
	return settings.Get("QDRANT.COLLECTION_NAME", "knowledge_chunks").String()
}

// doRequest performs an HTTP request to Qdrant
func (c *QdrantClient) doRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// EnsureCollection creates the collection when it does not exist yet
func (c *QdrantClient) EnsureCollection(name string, vectorSize int) error {
	_, err := c.doRequest("GET", "/collections/"+name, nil)
	if err == nil {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	if _, err := c.doRequest("PUT", "/collections/"+name, body); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info("Created Qdrant collection: %s with vector size: %d", name, vectorSize)
	return nil
}

// UpsertPoints inserts or updates points in a collection
func (c *QdrantClient) UpsertPoints(collectionName string, points []QdrantPoint) error {
	body := map[string]interface{}{
		"points": points,
	}

	_, err := c.doRequest("PUT", "/collections/"+collectionName+"/points", body)
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// DeleteSourcePoints deletes all points belonging to a knowledge source
func (c *QdrantClient) DeleteSourcePoints(collectionName string, sourceID string) error {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{
					"key":   "source_id",
					"match": map[string]interface{}{"value": sourceID},
				},
			},
		},
	}

	_, err := c.doRequest("POST", "/collections/"+collectionName+"/points/delete", body)
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	return nil
}

// Search searches for similar vectors scoped to one agent
func (c *QdrantClient) Search(collectionName string, agentID uint, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	body := map[string]interface{}{
		"vector":          vector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": scoreThreshold,
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{
					"key":   "agent_id",
					"match": map[string]interface{}{"value": agentID},
				},
			},
		},
	}

	respBody, err := c.doRequest("POST", "/collections/"+collectionName+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var result struct {
		Result []SearchResult `json:"result"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return result.Result, nil
}
