package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// OpenAIClient is a hand-rolled client for the OpenAI chat completions and
// embeddings APIs
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *OpenAIClient) Family() string {
	return models.ModelFamilyOpenAI
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// openAIContentPart is one element of a multimodal message content array
type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// openAIMessage matches the wire shape of the chat completions API. Content
// is a plain string for text messages and a part array when an image is
// attached.
type openAIMessage struct {
	Role       string      `json:"role"`
	Content    interface{} `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

type openAIChatRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion request with tools to OpenAI
func (c *OpenAIClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	wire := openAIChatRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		wire.Messages = append(wire.Messages, toOpenAIMessage(msg))
	}
	if len(req.Tools) > 0 {
		wire.Tools = req.Tools
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result openAIChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, result.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in OpenAI response")
	}

	choice := result.Choices[0]
	return &ChatResult{
		Text:      choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
		Usage: TokenUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		},
	}, nil
}

func toOpenAIMessage(msg ChatMessage) openAIMessage {
	out := openAIMessage{
		Role:       msg.Role,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
	}

	if msg.ImageURL != "" {
		parts := []openAIContentPart{}
		if msg.Content != "" {
			parts = append(parts, openAIContentPart{Type: "text", Text: msg.Content})
		}
		image := openAIContentPart{Type: "image_url"}
		image.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: msg.ImageURL}
		parts = append(parts, image)
		out.Content = parts
		return out
	}

	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		out.Content = msg.Content
	}
	return out
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed generates embedding vectors for the given texts. Satisfies the
// retrieval package's embedding backend interface.
func (c *OpenAIClient) Embed(texts []string) ([][]float32, error) {
	embeddingModel := models.GetSettingValue("rag.embedding_model", "text-embedding-3-small")

	body, err := json.Marshal(openAIEmbeddingRequest{
		Model: embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result openAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", result.Error.Message)
	}

	vectors := make([][]float32, len(result.Data))
	for _, item := range result.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}
