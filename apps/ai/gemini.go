package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// GeminiClient is a hand-rolled client for the Google Gemini generateContent
// API. It speaks the provider-neutral ChatRequest shape and translates to the
// Gemini wire format internally.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, baseURL, model string) *GeminiClient {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *GeminiClient) Family() string {
	return models.ModelFamilyGemini
}

func (c *GeminiClient) Model() string {
	return c.model
}

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data,omitempty"`
	FunctionCall *struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	} `json:"functionCall,omitempty"`
	FunctionResponse *struct {
		Name     string                 `json:"name"`
		Response map[string]interface{} `json:"response"`
	} `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []struct {
		FunctionDeclarations []geminiFunctionDeclaration `json:"function_declarations"`
	} `json:"tools,omitempty"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Complete sends a generateContent request to Gemini
func (c *GeminiClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	wire := geminiRequest{}
	if req.System != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, msg := range req.Messages {
		content, err := toGeminiContent(msg)
		if err != nil {
			return nil, err
		}
		wire.Contents = append(wire.Contents, content)
	}

	if len(req.Tools) > 0 {
		declarations := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, geminiFunctionDeclaration{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			})
		}
		wire.Tools = append(wire.Tools, struct {
			FunctionDeclarations []geminiFunctionDeclaration `json:"function_declarations"`
		}{FunctionDeclarations: declarations})
	}

	wire.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if wire.GenerationConfig.MaxOutputTokens == 0 {
		wire.GenerationConfig.MaxOutputTokens = 2000
	}
	wire.GenerationConfig.Temperature = req.Temperature
	if wire.GenerationConfig.Temperature == 0 {
		wire.GenerationConfig.Temperature = 0.7
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("Gemini API error (status %d, %s): %s", resp.StatusCode, result.Error.Status, result.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	out := &ChatResult{
		Usage: TokenUsage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
		},
	}

	var texts []string
	for i, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			call := ToolCall{
				ID:   fmt.Sprintf("call_%d", i),
				Type: "function",
			}
			call.Function.Name = part.FunctionCall.Name
			call.Function.Arguments = string(part.FunctionCall.Args)
			if call.Function.Arguments == "" {
				call.Function.Arguments = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}
	out.Text = strings.Join(texts, "\n")

	return out, nil
}

func toGeminiContent(msg ChatMessage) (geminiContent, error) {
	switch msg.Role {
	case "assistant":
		content := geminiContent{Role: "model"}
		if msg.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			part := geminiPart{}
			args := json.RawMessage(call.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			part.FunctionCall = &struct {
				Name string          `json:"name"`
				Args json.RawMessage `json:"args"`
			}{Name: call.Function.Name, Args: args}
			content.Parts = append(content.Parts, part)
		}
		if len(content.Parts) == 0 {
			content.Parts = append(content.Parts, geminiPart{Text: " "})
		}
		return content, nil

	case "tool":
		part := geminiPart{}
		part.FunctionResponse = &struct {
			Name     string                 `json:"name"`
			Response map[string]interface{} `json:"response"`
		}{
			Name:     msg.Name,
			Response: map[string]interface{}{"content": msg.Content},
		}
		return geminiContent{Role: "user", Parts: []geminiPart{part}}, nil

	default:
		content := geminiContent{Role: "user"}
		if msg.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
		}
		if msg.ImageURL != "" {
			mime, data, err := decodeDataURL(msg.ImageURL)
			if err != nil {
				return geminiContent{}, fmt.Errorf("invalid inline image: %w", err)
			}
			part := geminiPart{}
			part.InlineData = &struct {
				MimeType string `json:"mime_type"`
				Data     string `json:"data"`
			}{MimeType: mime, Data: data}
			content.Parts = append(content.Parts, part)
		}
		if len(content.Parts) == 0 {
			content.Parts = append(content.Parts, geminiPart{Text: " "})
		}
		return content, nil
	}
}

// decodeDataURL splits a base64 data URL into its mime type and payload
func decodeDataURL(dataURL string) (string, string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("not a data URL")
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", fmt.Errorf("data URL is not base64 encoded")
	}
	return rest[:idx], rest[idx+len(";base64,"):], nil
}
