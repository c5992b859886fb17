package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/rag"
	"gorm.io/gorm"
)

// TurnState names a phase of the generation state machine
type TurnState string

const (
	StateInit             TurnState = "init"
	StateContextLoaded    TurnState = "context_loaded"
	StateProviderSelected TurnState = "provider_selected"
	StateGenerating       TurnState = "generating"
	StateToolRequested    TurnState = "tool_requested"
	StateToolExecuted     TurnState = "tool_executed"
	StateComplete         TurnState = "complete"
	StateFailed           TurnState = "failed"
)

// MaxToolLoopIterations is the hard cap on tool-call round trips per turn.
// Agents can lower it via MaxToolCalls but never raise it.
const MaxToolLoopIterations = 8

// ErrToolLoopExceeded indicates the model kept requesting tools until the
// iteration cap; the turn fails instead of looping forever.
var ErrToolLoopExceeded = fmt.Errorf("tool call loop exceeded iteration cap")

// ProviderSource builds chat providers from resolved credentials
type ProviderSource interface {
	Provider(family string, needVision bool) (ChatProvider, error)
	FallbackProvider(family string) (ChatProvider, error)
}

// TurnInput is everything one inbound message turn starts from. UserMessage
// is the already-persisted USER message; Content and Attachment mirror it.
type TurnInput struct {
	Agent        *models.Agent
	Channel      *models.Channel
	Conversation *models.Conversation
	UserMessage  *models.Message
	Content      string
	Attachment   *models.Attachment
}

// TurnResult is the outcome of a completed turn
type TurnResult struct {
	Text  string
	Model string
	Usage TokenUsage
	Media *models.Attachment
	State TurnState
}

// Orchestrator drives one model turn: context assembly, provider selection
// with single fallback, the tool-call loop and multimodal handling.
type Orchestrator struct {
	DB        *gorm.DB
	Retriever *rag.Retriever
	Calendar  CalendarResolver

	// Providers returns the credentials source for a turn, resolved once and
	// passed down. Defaults to ResolveProviders.
	Providers func() ProviderSource

	// PromptTemplate overrides the settings-backed template when set
	PromptTemplate string

	// CallTimeout bounds each provider call
	CallTimeout time.Duration
}

func NewOrchestrator(db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		DB:          db,
		CallTimeout: 60 * time.Second,
	}
}

func (o *Orchestrator) providers() ProviderSource {
	if o.Providers != nil {
		return o.Providers()
	}
	return ResolveProviders()
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return 60 * time.Second
}

// Run executes one turn. A returned error is turn-fatal: the caller persists
// the categorized apology instead of a reply and charges nothing.
func (o *Orchestrator) Run(input *TurnInput) (*TurnResult, error) {
	agent := input.Agent
	turn := &TurnResult{State: StateInit}

	// Context assembly. Retrieval, history and attachment conversion are all
	// best effort; their failures degrade the prompt, not the turn.
	knowledgeContext := ""
	if o.Retriever != nil {
		knowledgeContext = o.Retriever.Context(agent.ID, input.Content)
	}

	history := o.loadHistory(input)

	var fields []models.CustomFieldDefinition
	if err := o.DB.Where("agent_id = ?", agent.ID).Order("id ASC").Find(&fields).Error; err != nil {
		log.Warning("Failed to load custom fields for agent %d: %v", agent.ID, err)
	}

	replyLanguage := DetectLanguage(input.Content)
	var system string
	if o.PromptTemplate != "" {
		system = GenerateSystemPromptWithTemplate(o.PromptTemplate, agent, fields, knowledgeContext, replyLanguage)
	} else {
		system = GenerateSystemPrompt(agent, fields, knowledgeContext, replyLanguage)
	}

	content := input.Content
	imageDataURL := ""
	if input.Attachment != nil {
		prepared, err := prepareAttachment(input.Attachment)
		if err != nil {
			log.Warning("Failed to prepare attachment for conversation %d: %v", input.Conversation.ID, err)
		} else {
			imageDataURL = prepared.ImageDataURL
			if prepared.ExtractedText != "" {
				content += "\n\n[Attached document content]\n" + prepared.ExtractedText
			}
		}
	}
	turn.State = StateContextLoaded

	// Provider selection: configured family first, vision sibling when the
	// turn carries an image, one fallback to the alternate family.
	hasImage := input.Attachment != nil && input.Attachment.Type == "image"
	source := o.providers()

	usedFallback := false
	provider, err := source.Provider(agent.ModelFamily, hasImage)
	if err != nil {
		log.Warning("Provider %s unusable for agent %d, trying fallback: %v", agent.ModelFamily, agent.ID, err)
		provider, err = source.FallbackProvider(agent.ModelFamily)
		if err != nil {
			turn.State = StateFailed
			return nil, fmt.Errorf("provider selection failed: %w", ErrProviderUnavailable)
		}
		usedFallback = true
	}
	turn.State = StateProviderSelected

	messages := o.historyMessages(history)
	messages = append(messages, ChatMessage{
		Role:     "user",
		Content:  content,
		ImageURL: imageDataURL,
	})

	actx := &AgentContext{
		DB:           o.DB,
		Agent:        agent,
		Channel:      input.Channel,
		Conversation: input.Conversation,
		Contact:      o.loadContact(input.Conversation),
		Calendar:     o.Calendar,
	}
	tools := BuildTools(agent)

	maxIterations := MaxToolLoopIterations
	if agent.MaxToolCalls > 0 && agent.MaxToolCalls < maxIterations {
		maxIterations = agent.MaxToolCalls
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		turn.State = StateGenerating

		result, err := o.complete(provider, system, messages, tools)
		if err != nil && !usedFallback {
			fallback, ferr := source.FallbackProvider(agent.ModelFamily)
			if ferr == nil {
				log.Warning("Provider %s call failed for conversation %d, falling back to %s: %v",
					provider.Family(), input.Conversation.ID, fallback.Family(), err)
				provider = fallback
				usedFallback = true
				result, err = o.complete(provider, system, messages, tools)
			}
		}
		if err != nil {
			turn.State = StateFailed
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		turn.Usage.PromptTokens += result.Usage.PromptTokens
		turn.Usage.CompletionTokens += result.Usage.CompletionTokens

		if len(result.ToolCalls) > 0 {
			turn.State = StateToolRequested
			messages = append(messages, ChatMessage{
				Role:      "assistant",
				Content:   result.Text,
				ToolCalls: result.ToolCalls,
			})

			for _, call := range result.ToolCalls {
				outcome := ExecuteTool(actx, call)
				messages = append(messages, ChatMessage{
					Role:       "tool",
					Content:    outcome,
					ToolCallID: call.ID,
					Name:       call.Function.Name,
				})
			}
			turn.State = StateToolExecuted
			continue
		}

		turn.State = StateComplete
		turn.Text = result.Text
		turn.Model = provider.Model()
		turn.Media = actx.SelectedMedia
		return turn, nil
	}

	turn.State = StateFailed
	return nil, fmt.Errorf("conversation %d: %w", input.Conversation.ID, ErrToolLoopExceeded)
}

func (o *Orchestrator) complete(provider ChatProvider, system string, messages []ChatMessage, tools []ToolDefinition) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.callTimeout())
	defer cancel()

	return provider.Complete(ctx, &ChatRequest{
		System:   system,
		Messages: messages,
		Tools:    tools,
	})
}

// loadHistory returns the conversation's recent messages before the current
// one, chronological, capped at the agent's context window.
func (o *Orchestrator) loadHistory(input *TurnInput) []models.Message {
	limit := input.Agent.ContextWindow
	if limit <= 0 {
		limit = 10
	}

	query := o.DB.Where("conversation_id = ?", input.Conversation.ID)
	if input.UserMessage != nil {
		query = query.Where("id <> ?", input.UserMessage.ID)
	}

	var recent []models.Message
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&recent).Error
	if err != nil {
		log.Warning("Failed to load history for conversation %d: %v", input.Conversation.ID, err)
		return nil
	}

	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent
}

// historyMessages converts stored messages into the running exchange.
// Prior-turn attachments are represented as text placeholders only.
func (o *Orchestrator) historyMessages(history []models.Message) []ChatMessage {
	var messages []ChatMessage
	for _, msg := range history {
		role := "user"
		if msg.Role == models.MessageRoleAgent {
			role = "assistant"
		}

		body := msg.Body
		if att := msg.AttachmentFromMetadata(); att != nil {
			placeholder := historyPlaceholder(att)
			if body != "" {
				body += "\n" + placeholder
			} else {
				body = placeholder
			}
		}

		messages = append(messages, ChatMessage{Role: role, Content: body})
	}
	return messages
}

func (o *Orchestrator) loadContact(conv *models.Conversation) *models.Contact {
	if conv.ContactID == nil {
		return nil
	}
	var contact models.Contact
	if err := o.DB.Where("id = ?", conv.ContactID).First(&contact).Error; err != nil {
		return nil
	}
	return &contact
}
