package ai

import (
	"strings"
	"testing"

	"github.com/talkbase-io/talkbase-backend/apps/models"
)

func promptAgent() *models.Agent {
	return &models.Agent{
		Name:                "Tessa",
		Persona:             "A cheerful baker who loves sourdough.",
		BusinessDescription: "Talkbase test bakery in Lisbon.",
		JobType:             models.AgentJobBooking,
		CommunicationStyle:  models.AgentStylePlayful,
		Timezone:            "Europe/Lisbon",
		UseEmojis:           true,
		CalendarEnabled:     true,
	}
}

func render(t *testing.T, agent *models.Agent, fields []models.CustomFieldDefinition, context, language string) string {
	t.Helper()
	prompt, err := RenderAgentPrompt(DefaultAgentPromptTemplate, BuildPromptData(agent, fields, context, language))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return prompt
}

func TestPromptContainsPersonaAndStyle(t *testing.T) {
	prompt := render(t, promptAgent(), nil, "", "")

	if !strings.Contains(prompt, "Tessa") {
		t.Error("expected agent name in prompt")
	}
	if !strings.Contains(prompt, "cheerful baker") {
		t.Error("expected persona in prompt")
	}
	if !strings.Contains(prompt, "Playful") {
		t.Error("expected style phrase in prompt")
	}
	if !strings.Contains(prompt, "appointment booking") {
		t.Error("expected job description in prompt")
	}
	if !strings.Contains(prompt, "Use emojis") {
		t.Error("expected emoji instruction in prompt")
	}
}

func TestPromptCustomFieldDirectiveIsImperative(t *testing.T) {
	fields := []models.CustomFieldDefinition{
		{Key: "company", Label: "Company name", Description: "where the visitor works"},
		{Key: "budget", Label: "Budget"},
	}
	prompt := render(t, promptAgent(), fields, "", "")

	if !strings.Contains(prompt, "Company name (company)") {
		t.Error("expected custom field enumerated in prompt")
	}
	if !strings.Contains(prompt, "MUST call the update_contact tool") {
		t.Error("expected imperative update_contact directive")
	}
}

func TestPromptOmitsDirectiveWithoutFields(t *testing.T) {
	prompt := render(t, promptAgent(), nil, "", "")
	if strings.Contains(prompt, "update_contact") {
		t.Error("update_contact directive should not appear without configured fields")
	}
}

func TestPromptExplicitNoContextPhrase(t *testing.T) {
	prompt := render(t, promptAgent(), nil, "", "")
	if !strings.Contains(prompt, "No knowledge base context was found") {
		t.Error("expected explicit no-context phrase")
	}

	withContext := render(t, promptAgent(), nil, "Opening hours: 9-17 on weekdays.", "")
	if !strings.Contains(withContext, "Opening hours: 9-17") {
		t.Error("expected retrieval context embedded in prompt")
	}
	if strings.Contains(withContext, "No knowledge base context was found") {
		t.Error("no-context phrase must not appear when context exists")
	}
}

func TestPromptReplyLanguageInstruction(t *testing.T) {
	prompt := render(t, promptAgent(), nil, "", "Spanish")
	if !strings.Contains(prompt, "Reply in Spanish") {
		t.Error("expected reply-language instruction")
	}
}

func TestPromptTopicRestriction(t *testing.T) {
	agent := promptAgent()
	agent.RestrictTopics = true
	agent.AllowedTopics = "bread, pastries, orders"

	prompt := render(t, agent, nil, "", "")
	if !strings.Contains(prompt, "bread, pastries, orders") {
		t.Error("expected allowed topics in prompt")
	}
	if !strings.Contains(prompt, "Politely decline") {
		t.Error("expected restriction instruction in prompt")
	}
}

func TestDetectLanguage(t *testing.T) {
	if lang := DetectLanguage("quiero agendar una visita para mañana por la tarde"); lang != "Spanish" {
		t.Errorf("expected Spanish, got %q", lang)
	}
	if lang := DetectLanguage("hi"); lang != "" {
		t.Errorf("expected empty for too-short text, got %q", lang)
	}
}
