package gateway

import (
	"errors"
	"fmt"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/ai"
	"github.com/talkbase-io/talkbase-backend/apps/conversation"
	"github.com/talkbase-io/talkbase-backend/apps/credits"
	"github.com/talkbase-io/talkbase-backend/apps/intent"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
)

// ErrChannelInactive indicates the channel does not exist or is switched off.
// Raised before any write happens.
var ErrChannelInactive = fmt.Errorf("channel not found or inactive")

// TurnRunner generates one agent reply for an inbound message
type TurnRunner interface {
	Run(input *ai.TurnInput) (*ai.TurnResult, error)
}

// InboundMessage is one visitor message entering the pipeline
type InboundMessage struct {
	ChannelID         string
	VisitorExternalID string
	Content           string
	Attachment        *models.Attachment
}

// InboundResult is the pipeline outcome. AgentMessage is nil when the
// conversation is owned by a human.
type InboundResult struct {
	Conversation *models.Conversation
	UserMessage  *models.Message
	AgentMessage *models.Message
}

// Pipeline turns one inbound visitor message into a grounded, tool-augmented,
// metered agent reply.
type Pipeline struct {
	DB           *gorm.DB
	Sessions     *conversation.Manager
	Credits      *credits.Ledger
	Intents      *intent.Matcher
	Orchestrator TurnRunner
}

func NewPipeline(db *gorm.DB) *Pipeline {
	return &Pipeline{
		DB:       db,
		Sessions: conversation.NewManager(db),
		Credits:  credits.NewLedger(db),
		Intents:  intent.NewMatcher(db),
	}
}

// HandleInboundMessage runs the full pipeline for one visitor message.
//
// Ordering: channel and credit gates reject with zero writes; the USER
// message persists before intent detection, the handoff gate runs after both
// and before any model call; the charge lands strictly after a successful
// reply. Turn-fatal generation errors keep the USER message and persist one
// categorized apology as the AGENT message, uncharged.
func (p *Pipeline) HandleInboundMessage(in *InboundMessage) (*InboundResult, error) {
	var channel models.Channel
	err := p.DB.Preload("Agent").Where("id = ?", in.ChannelID).First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChannelInactive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel %s: %w", in.ChannelID, err)
	}
	if !channel.IsActive {
		return nil, ErrChannelInactive
	}

	agent := channel.Agent
	if agent == nil || agent.Status != models.AgentStatusActive {
		return nil, ErrChannelInactive
	}

	// Soft limit: the precheck and the debit are not one atomic unit, so
	// concurrent turns can drive the balance slightly negative. The next
	// precheck stops the workspace.
	if p.Credits == nil || !p.Credits.HasCredit(agent.WorkspaceID) {
		return nil, credits.ErrNoCredits
	}

	conv, err := p.Sessions.Resolve(&channel, in.VisitorExternalID, "")
	if err != nil {
		return nil, err
	}

	userMsg, err := p.Sessions.AppendMessage(conv, models.MessageRoleUser, in.Content, in.Attachment)
	if err != nil {
		return nil, err
	}

	result := &InboundResult{Conversation: conv, UserMessage: userMsg}

	if p.Intents != nil {
		p.Intents.Process(agent.ID, conv, in.Content)
	}

	// Human-handoff gate: the message is stored, no reply and no charge
	if conv.IsHandedOver() {
		return result, nil
	}

	if p.Orchestrator == nil {
		return nil, fmt.Errorf("gateway has no orchestrator configured")
	}

	turn, err := p.Orchestrator.Run(&ai.TurnInput{
		Agent:        agent,
		Channel:      &channel,
		Conversation: conv,
		UserMessage:  userMsg,
		Content:      in.Content,
		Attachment:   in.Attachment,
	})
	if err != nil {
		log.Error("Turn failed for conversation %d (%s): %v", conv.ID, ai.CategorizeTurnError(err), err)

		apology, aerr := p.Sessions.AppendMessage(conv, models.MessageRoleAgent, ai.ApologyFor(err), nil)
		if aerr != nil {
			log.Error("Failed to persist apology for conversation %d: %v", conv.ID, aerr)
			return result, nil
		}
		result.AgentMessage = apology
		return result, nil
	}

	agentMsg, err := p.Sessions.AppendMessage(conv, models.MessageRoleAgent, turn.Text, turn.Media)
	if err != nil {
		return result, fmt.Errorf("failed to persist agent reply: %w", err)
	}
	result.AgentMessage = agentMsg

	charge := credits.Usage{
		WorkspaceID:      agent.WorkspaceID,
		ConversationID:   conv.ID,
		MessageID:        &agentMsg.ID,
		Model:            turn.Model,
		PromptTokens:     turn.Usage.PromptTokens,
		CompletionTokens: turn.Usage.CompletionTokens,
		Credits:          1,
	}
	if err := p.Credits.Charge(charge); err != nil {
		// The reply is already delivered; billing failures are an
		// operational problem, not the visitor's
		log.Error("Failed to charge workspace %s for conversation %d: %v", agent.WorkspaceID, conv.ID, err)
	}

	return result, nil
}
