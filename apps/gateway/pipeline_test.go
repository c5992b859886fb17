package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/ai"
	"github.com/talkbase-io/talkbase-backend/apps/credits"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeRunner struct {
	runFn func(input *ai.TurnInput) (*ai.TurnResult, error)
	calls int
}

func (f *fakeRunner) Run(input *ai.TurnInput) (*ai.TurnResult, error) {
	f.calls++
	if f.runFn != nil {
		return f.runFn(input)
	}
	return &ai.TurnResult{Text: "Hello!", Model: "gpt-4o-mini"}, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.Agent{},
		&models.Channel{},
		&models.Conversation{},
		&models.Message{},
		&models.Contact{},
		&models.Intent{},
		&models.CreditBalance{},
		&models.UsageLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// seedChannel creates an active agent, its web channel and a funded balance
func seedChannel(t *testing.T, gdb *gorm.DB, balance int64) (*models.Agent, *models.Channel) {
	t.Helper()

	agent := models.Agent{
		WorkspaceID: uuid.New(),
		Name:        "Tessa",
		JobType:     models.AgentJobSupport,
		ModelFamily: models.ModelFamilyOpenAI,
		Timezone:    "UTC",
		Status:      models.AgentStatusActive,
	}
	if err := gdb.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	channel := models.Channel{
		ID:       "web-" + uuid.NewString()[:8],
		AgentID:  agent.ID,
		Name:     "Website widget",
		IsActive: true,
	}
	if err := gdb.Create(&channel).Error; err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	if err := gdb.Create(&models.CreditBalance{WorkspaceID: agent.WorkspaceID, Balance: balance}).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	return &agent, &channel
}

func testPipeline(gdb *gorm.DB, runner TurnRunner) *Pipeline {
	p := NewPipeline(gdb)
	p.Orchestrator = runner
	return p
}

func messageCount(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := gdb.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return count
}

func TestInactiveChannelRejectsWithZeroWrites(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)
	if err := gdb.Model(channel).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate channel: %v", err)
	}

	runner := &fakeRunner{}
	p := testPipeline(gdb, runner)

	_, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"})
	if !errors.Is(err, ErrChannelInactive) {
		t.Fatalf("expected ErrChannelInactive, got %v", err)
	}
	if n := messageCount(t, gdb); n != 0 {
		t.Errorf("expected zero messages, got %d", n)
	}
	if runner.calls != 0 {
		t.Errorf("orchestrator must not run for inactive channels")
	}
}

func TestUnknownChannelRejects(t *testing.T) {
	gdb := testDB(t)
	seedChannel(t, gdb, 10)
	p := testPipeline(gdb, &fakeRunner{})

	_, err := p.HandleInboundMessage(&InboundMessage{ChannelID: "does-not-exist", VisitorExternalID: "v1", Content: "hi"})
	if !errors.Is(err, ErrChannelInactive) {
		t.Fatalf("expected ErrChannelInactive, got %v", err)
	}
}

func TestChannelLookupFailureIsNotInactive(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)
	if err := gdb.Migrator().DropTable(&models.Channel{}); err != nil {
		t.Fatalf("drop channels: %v", err)
	}

	p := testPipeline(gdb, &fakeRunner{})
	_, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"})
	if err == nil {
		t.Fatal("expected an error when the channel lookup fails")
	}
	if errors.Is(err, ErrChannelInactive) {
		t.Fatalf("database failures must not masquerade as an inactive channel, got %v", err)
	}
}

func TestInactiveAgentRejects(t *testing.T) {
	gdb := testDB(t)
	agent, channel := seedChannel(t, gdb, 10)
	if err := gdb.Model(agent).Update("status", models.AgentStatusInactive).Error; err != nil {
		t.Fatalf("deactivate agent: %v", err)
	}

	p := testPipeline(gdb, &fakeRunner{})
	_, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"})
	if !errors.Is(err, ErrChannelInactive) {
		t.Fatalf("expected ErrChannelInactive, got %v", err)
	}
	if n := messageCount(t, gdb); n != 0 {
		t.Errorf("expected zero messages, got %d", n)
	}
}

func TestExhaustedCreditsRejectWithZeroWrites(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 0)

	runner := &fakeRunner{}
	p := testPipeline(gdb, runner)

	_, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"})
	if !errors.Is(err, credits.ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits, got %v", err)
	}
	if n := messageCount(t, gdb); n != 0 {
		t.Errorf("expected zero messages, got %d", n)
	}
	if runner.calls != 0 {
		t.Errorf("orchestrator must not run without credit")
	}
}

func TestHandedOverConversationStoresUserMessageOnly(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)

	operator := uuid.New()
	conv := models.Conversation{
		ChannelID:         channel.ID,
		VisitorExternalID: "v1",
		Active:            &models.ConversationActive,
		Status:            models.ConversationStatusPending,
		AssignedTo:        &operator,
	}
	if err := gdb.Create(&conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	runner := &fakeRunner{}
	p := testPipeline(gdb, runner)

	result, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "are you there?"})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if result.UserMessage == nil || result.UserMessage.Body != "are you there?" {
		t.Fatalf("expected stored user message, got %+v", result.UserMessage)
	}
	if result.AgentMessage != nil {
		t.Errorf("no agent reply expected while a human owns the conversation")
	}
	if runner.calls != 0 {
		t.Errorf("orchestrator must not run for handed-over conversations")
	}
}

func TestUserMessagePersistsBeforeTurn(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)

	runner := &fakeRunner{}
	runner.runFn = func(input *ai.TurnInput) (*ai.TurnResult, error) {
		var stored models.Message
		if err := gdb.Where("id = ?", input.UserMessage.ID).First(&stored).Error; err != nil {
			t.Errorf("user message must be persisted before the turn runs: %v", err)
		}
		return &ai.TurnResult{Text: "hello", Model: "gpt-4o-mini"}, nil
	}
	p := testPipeline(gdb, runner)

	if _, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"}); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one turn, got %d", runner.calls)
	}
}

func TestTurnFailurePersistsApologyWithoutCharge(t *testing.T) {
	gdb := testDB(t)
	agent, channel := seedChannel(t, gdb, 10)

	runner := &fakeRunner{runFn: func(input *ai.TurnInput) (*ai.TurnResult, error) {
		return nil, fmt.Errorf("provider selection failed: %w", ai.ErrProviderUnavailable)
	}}
	p := testPipeline(gdb, runner)

	result, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "hi"})
	if err != nil {
		t.Fatalf("turn failures must not surface as pipeline errors, got %v", err)
	}
	if result.AgentMessage == nil {
		t.Fatal("expected an apology agent message")
	}
	if !strings.Contains(result.AgentMessage.Body, "not fully set up") {
		t.Errorf("expected configuration apology, got %q", result.AgentMessage.Body)
	}
	if result.AgentMessage.Role != models.MessageRoleAgent {
		t.Errorf("expected agent role, got %q", result.AgentMessage.Role)
	}

	var logs int64
	if err := gdb.Model(&models.UsageLog{}).Count(&logs).Error; err != nil {
		t.Fatalf("count usage logs: %v", err)
	}
	if logs != 0 {
		t.Errorf("failed turns must not be charged, found %d usage rows", logs)
	}

	var balance models.CreditBalance
	if err := gdb.Where("workspace_id = ?", agent.WorkspaceID).First(&balance).Error; err != nil {
		t.Fatalf("fetch balance: %v", err)
	}
	if balance.Balance != 10 {
		t.Errorf("balance must be untouched, got %d", balance.Balance)
	}
}

func TestSuccessfulTurnChargesExactlyOnce(t *testing.T) {
	gdb := testDB(t)
	agent, channel := seedChannel(t, gdb, 10)

	runner := &fakeRunner{runFn: func(input *ai.TurnInput) (*ai.TurnResult, error) {
		return &ai.TurnResult{
			Text:  "We open at 9am.",
			Model: "gpt-4o-mini",
			Usage: ai.TokenUsage{PromptTokens: 120, CompletionTokens: 18},
		}, nil
	}}
	p := testPipeline(gdb, runner)

	result, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "when do you open?"})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if result.AgentMessage == nil || result.AgentMessage.Body != "We open at 9am." {
		t.Fatalf("expected agent reply, got %+v", result.AgentMessage)
	}

	var balance models.CreditBalance
	if err := gdb.Where("workspace_id = ?", agent.WorkspaceID).First(&balance).Error; err != nil {
		t.Fatalf("fetch balance: %v", err)
	}
	if balance.Balance != 9 {
		t.Errorf("expected one credit debited, balance %d", balance.Balance)
	}

	var logs []models.UsageLog
	if err := gdb.Find(&logs).Error; err != nil {
		t.Fatalf("fetch usage logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one usage row, got %d", len(logs))
	}
	entry := logs[0]
	if entry.PromptTokens != 120 || entry.CompletionTokens != 18 || entry.TotalTokens != 138 {
		t.Errorf("unexpected token accounting %+v", entry)
	}
	if entry.MessageID == nil || *entry.MessageID != result.AgentMessage.ID {
		t.Errorf("usage row must reference the agent message")
	}
	if entry.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model %q", entry.Model)
	}
}

func TestAttachmentEchoedOnUserMessage(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)

	p := testPipeline(gdb, &fakeRunner{})
	att := &models.Attachment{Type: "image", URL: "https://cdn.example.com/photo.jpg", AltText: "a photo"}

	result, err := p.HandleInboundMessage(&InboundMessage{
		ChannelID:         channel.ID,
		VisitorExternalID: "v1",
		Content:           "what is this?",
		Attachment:        att,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	stored := result.UserMessage.AttachmentFromMetadata()
	if stored == nil || stored.URL != att.URL || stored.Type != "image" {
		t.Fatalf("expected attachment echoed into message metadata, got %+v", stored)
	}
}

func TestMediaReplyAttachedToAgentMessage(t *testing.T) {
	gdb := testDB(t)
	_, channel := seedChannel(t, gdb, 10)

	runner := &fakeRunner{runFn: func(input *ai.TurnInput) (*ai.TurnResult, error) {
		return &ai.TurnResult{
			Text:  "Here is our pricing chart.",
			Model: "gpt-4o-mini",
			Media: &models.Attachment{Type: "image", URL: "https://cdn.example.com/pricing.png"},
		}, nil
	}}
	p := testPipeline(gdb, runner)

	result, err := p.HandleInboundMessage(&InboundMessage{ChannelID: channel.ID, VisitorExternalID: "v1", Content: "show me pricing"})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	media := result.AgentMessage.AttachmentFromMetadata()
	if media == nil || media.URL != "https://cdn.example.com/pricing.png" {
		t.Fatalf("expected media attached to agent message, got %+v", media)
	}
}
