package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getevo/evo/v2/lib/settings"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// ErrProviderUnavailable indicates no model provider could serve the turn:
// the configured family and the fallback family are both unusable.
var ErrProviderUnavailable = fmt.Errorf("no usable AI provider")

// ToolDefinition represents a tool that can be called by the model
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef represents a function definition exposed to the model
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents a tool call requested by the model
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatMessage is one entry of the running exchange. ImageURL carries an
// inline data URL and is only ever set on the current turn's user message;
// prior-turn images are represented as text placeholders.
type ChatMessage struct {
	Role       string
	Content    string
	ImageURL   string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ChatRequest is a provider-neutral chat completion request
type ChatRequest struct {
	System      string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// TokenUsage is the provider-reported token consumption of one call
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResult is a provider-neutral chat completion result
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// ChatProvider is one model family behind a single call shape. The tool-call
// loop is written once against this interface.
type ChatProvider interface {
	Family() string
	Model() string
	Complete(ctx context.Context, req *ChatRequest) (*ChatResult, error)
}

// FamilyConfig holds one model family's resolved credentials and models
type FamilyConfig struct {
	APIKey      string
	Endpoint    string
	Model       string
	VisionModel string
}

// Usable reports whether the family has a credential configured
func (f FamilyConfig) Usable() bool {
	return f.APIKey != ""
}

// ProviderConfig holds both families' credentials, resolved once per turn and
// passed down instead of being re-read mid-pipeline.
type ProviderConfig struct {
	OpenAI FamilyConfig
	Gemini FamilyConfig
}

// ResolveProviders reads provider credentials from database settings with
// config file fallback. Called once per invocation.
func ResolveProviders() *ProviderConfig {
	cfg := &ProviderConfig{
		OpenAI: FamilyConfig{
			APIKey:      resolveSetting("ai.openai.api_key", "OPENAI.API_KEY", ""),
			Endpoint:    resolveSetting("ai.openai.endpoint", "OPENAI.ENDPOINT", "https://api.openai.com/v1"),
			Model:       resolveSetting("ai.openai.model", "OPENAI.MODEL", "gpt-4o-mini"),
			VisionModel: resolveSetting("ai.openai.vision_model", "OPENAI.VISION_MODEL", "gpt-4o"),
		},
		Gemini: FamilyConfig{
			APIKey:      resolveSetting("ai.gemini.api_key", "GEMINI.API_KEY", ""),
			Endpoint:    resolveSetting("ai.gemini.endpoint", "GEMINI.ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
			Model:       resolveSetting("ai.gemini.model", "GEMINI.MODEL", "gemini-1.5-flash"),
			VisionModel: resolveSetting("ai.gemini.vision_model", "GEMINI.VISION_MODEL", "gemini-1.5-flash"),
		},
	}
	return cfg
}

func resolveSetting(dbKey, fileKey, fallback string) string {
	if v := models.GetSettingValue(dbKey, ""); v != "" {
		return v
	}
	if v := settings.Get(fileKey).String(); v != "" {
		return v
	}
	return fallback
}

func (c *ProviderConfig) family(name string) FamilyConfig {
	if name == models.ModelFamilyGemini {
		return c.Gemini
	}
	return c.OpenAI
}

// alternateFamily returns the name of the other model family
func alternateFamily(name string) string {
	if name == models.ModelFamilyGemini {
		return models.ModelFamilyOpenAI
	}
	return models.ModelFamilyGemini
}

// Provider builds the chat provider for a family. When the turn carries an
// image and the family's chat model is not its vision model, the
// vision-capable sibling is substituted.
func (c *ProviderConfig) Provider(familyName string, needVision bool) (ChatProvider, error) {
	fam := c.family(familyName)
	if !fam.Usable() {
		return nil, fmt.Errorf("%s credential missing: %w", familyName, ErrProviderUnavailable)
	}

	model := fam.Model
	if needVision && fam.VisionModel != "" {
		model = fam.VisionModel
	}
	return c.build(familyName, fam, model)
}

// FallbackProvider builds the alternate family's vision-capable model. The
// fallback always uses the vision model so it can serve whatever the primary
// was asked to do.
func (c *ProviderConfig) FallbackProvider(familyName string) (ChatProvider, error) {
	alt := alternateFamily(familyName)
	fam := c.family(alt)
	if !fam.Usable() {
		return nil, fmt.Errorf("%s credential missing: %w", alt, ErrProviderUnavailable)
	}

	model := fam.VisionModel
	if model == "" {
		model = fam.Model
	}
	return c.build(alt, fam, model)
}

func (c *ProviderConfig) build(familyName string, fam FamilyConfig, model string) (ChatProvider, error) {
	switch familyName {
	case models.ModelFamilyGemini:
		return NewGeminiClient(fam.APIKey, fam.Endpoint, model), nil
	case models.ModelFamilyOpenAI:
		return NewOpenAIClient(fam.APIKey, fam.Endpoint, model), nil
	default:
		return nil, fmt.Errorf("unknown model family %q: %w", familyName, ErrProviderUnavailable)
	}
}
