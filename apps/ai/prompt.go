package ai

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/CloudyKit/jet/v6"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// DefaultAgentPromptTemplate is the Jet template the system instruction is
// rendered from. Operators can override it via the ai.prompt_template setting.
const DefaultAgentPromptTemplate = `# Identity
You are **{{AgentName}}**, an AI assistant working for the following business:
{{BusinessDescription}}

{{if Persona != ""}}
## Persona
{{Persona}}
{{end}}

## Role
{{JobDescription}}

## Communication Style
- {{StyleDescription}}
{{if UseEmojis}}
- Use emojis appropriately in responses
{{else}}
- Do not use emojis
{{end}}
{{if ReplyLanguage != ""}}
- The visitor is writing in {{ReplyLanguage}}. Reply in {{ReplyLanguage}}.
{{end}}
{{if SignatureEnabled && Signature != ""}}
- End every reply with the signature: {{Signature}}
{{end}}

## Current Time
{{LocalTime}} ({{Timezone}})

{{if RestrictTopics}}
## Topic Restrictions
Only discuss topics related to: {{AllowedTopics}}. Politely decline anything else.
{{end}}
{{if HumanTransferEnabled}}
## Human Transfer
A human team member can take over this conversation. When you cannot help, tell the visitor a team member will follow up.
{{end}}
{{if CalendarEnabled}}
## Scheduling
You can check availability and book appointments with the check_availability and book_event tools.
{{end}}

## Knowledge
{{if KnowledgeContext != ""}}
{{KnowledgeContext}}
Answer using this information when relevant.
{{else}}
No knowledge base context was found for this message. Answer from the business description only and say so when you are unsure.
{{end}}
{{if CustomFieldList != ""}}

## Contact Information Collection
During the conversation, try to collect the following details from the visitor:
{{CustomFieldList}}
Whenever the visitor provides any of these values, or their name, email or phone, you MUST call the update_contact tool with the collected data. This is not optional.
{{end}}`

// PromptData holds everything the prompt template can reference
type PromptData struct {
	AgentName            string
	Persona              string
	BusinessDescription  string
	JobDescription       string
	StyleDescription     string
	LocalTime            string
	Timezone             string
	UseEmojis            bool
	SignatureEnabled     bool
	Signature            string
	RestrictTopics       bool
	AllowedTopics        string
	HumanTransferEnabled bool
	CalendarEnabled      bool
	KnowledgeContext     string
	CustomFieldList      string
	ReplyLanguage        string
}

// jobDescriptions maps the agent job type to its role instruction
var jobDescriptions = map[string]string{
	models.AgentJobSupport:   "You provide customer support: answer questions, troubleshoot issues and guide visitors to a resolution.",
	models.AgentJobSales:     "You are a sales assistant: understand what the visitor needs, present relevant offerings and move them toward a purchase.",
	models.AgentJobBooking:   "You handle appointment booking: help visitors find a suitable time and schedule it.",
	models.AgentJobAssistant: "You are a general-purpose assistant for visitors of this business.",
}

// styleDescriptions maps the communication style enum to a descriptive phrase
var styleDescriptions = map[string]string{
	models.AgentStyleFormal:       "Formal and precise, no slang",
	models.AgentStyleCasual:       "Casual and relaxed, like chatting with a friend",
	models.AgentStyleFriendly:     "Warm, friendly and approachable",
	models.AgentStyleProfessional: "Professional, courteous and to the point",
	models.AgentStylePlayful:      "Playful and lighthearted while staying helpful",
}

// BuildPromptData assembles template data from the agent configuration, the
// retrieval context and the detected visitor language.
func BuildPromptData(agent *models.Agent, fields []models.CustomFieldDefinition, knowledgeContext, replyLanguage string) PromptData {
	jobDesc := jobDescriptions[agent.JobType]
	if jobDesc == "" {
		jobDesc = jobDescriptions[models.AgentJobAssistant]
	}

	styleDesc := styleDescriptions[agent.CommunicationStyle]
	if styleDesc == "" {
		styleDesc = styleDescriptions[models.AgentStyleFriendly]
	}

	loc, err := time.LoadLocation(agent.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localTime := time.Now().In(loc).Format("Monday, 2 January 2006 15:04")

	tz := agent.Timezone
	if tz == "" {
		tz = "UTC"
	}

	var fieldLines []string
	for _, field := range fields {
		line := fmt.Sprintf("- %s (%s)", field.Label, field.Key)
		if field.Description != "" {
			line += ": " + field.Description
		}
		fieldLines = append(fieldLines, line)
	}

	return PromptData{
		AgentName:            agent.Name,
		Persona:              strings.TrimSpace(agent.Persona),
		BusinessDescription:  strings.TrimSpace(agent.BusinessDescription),
		JobDescription:       jobDesc,
		StyleDescription:     styleDesc,
		LocalTime:            localTime,
		Timezone:             tz,
		UseEmojis:            agent.UseEmojis,
		SignatureEnabled:     agent.SignatureEnabled,
		Signature:            strings.TrimSpace(agent.Signature),
		RestrictTopics:       agent.RestrictTopics,
		AllowedTopics:        strings.TrimSpace(agent.AllowedTopics),
		HumanTransferEnabled: agent.HumanTransferEnabled,
		CalendarEnabled:      agent.CalendarEnabled,
		KnowledgeContext:     strings.TrimSpace(knowledgeContext),
		CustomFieldList:      strings.Join(fieldLines, "\n"),
		ReplyLanguage:        replyLanguage,
	}
}

// GenerateSystemPrompt renders the system instruction for one turn using the
// operator-configured template, falling back to the default one.
func GenerateSystemPrompt(agent *models.Agent, fields []models.CustomFieldDefinition, knowledgeContext, replyLanguage string) string {
	return GenerateSystemPromptWithTemplate(
		models.GetSettingValue("ai.prompt_template", ""),
		agent, fields, knowledgeContext, replyLanguage)
}

// GenerateSystemPromptWithTemplate renders the system instruction from an
// explicit template, empty meaning the default
func GenerateSystemPromptWithTemplate(templateContent string, agent *models.Agent, fields []models.CustomFieldDefinition, knowledgeContext, replyLanguage string) string {
	data := BuildPromptData(agent, fields, knowledgeContext, replyLanguage)

	if templateContent == "" {
		templateContent = DefaultAgentPromptTemplate
	}

	prompt, err := RenderAgentPrompt(templateContent, data)
	if err != nil {
		// Fall back to the default template on a broken custom template
		prompt, _ = RenderAgentPrompt(DefaultAgentPromptTemplate, data)
	}
	return prompt
}

// RenderAgentPrompt renders a Jet template with the given data
func RenderAgentPrompt(templateContent string, data PromptData) (string, error) {
	loader := jet.NewInMemLoader()
	loader.Set("prompt", templateContent)

	set := jet.NewSet(loader)
	tmpl, err := set.GetTemplate("prompt")
	if err != nil {
		return "", err
	}

	vars := make(jet.VarMap)
	vars.Set("AgentName", data.AgentName)
	vars.Set("Persona", data.Persona)
	vars.Set("BusinessDescription", data.BusinessDescription)
	vars.Set("JobDescription", data.JobDescription)
	vars.Set("StyleDescription", data.StyleDescription)
	vars.Set("LocalTime", data.LocalTime)
	vars.Set("Timezone", data.Timezone)
	vars.Set("UseEmojis", data.UseEmojis)
	vars.Set("SignatureEnabled", data.SignatureEnabled)
	vars.Set("Signature", data.Signature)
	vars.Set("RestrictTopics", data.RestrictTopics)
	vars.Set("AllowedTopics", data.AllowedTopics)
	vars.Set("HumanTransferEnabled", data.HumanTransferEnabled)
	vars.Set("CalendarEnabled", data.CalendarEnabled)
	vars.Set("KnowledgeContext", data.KnowledgeContext)
	vars.Set("CustomFieldList", data.CustomFieldList)
	vars.Set("ReplyLanguage", data.ReplyLanguage)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars, nil); err != nil {
		return "", err
	}

	return cleanupTemplateOutput(buf.String()), nil
}

// cleanupTemplateOutput collapses the blank lines left behind by unrendered
// template branches
func cleanupTemplateOutput(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	prevEmpty := false

	for _, line := range lines {
		isEmpty := strings.TrimSpace(line) == ""
		if isEmpty && prevEmpty {
			continue
		}
		result = append(result, line)
		prevEmpty = isEmpty
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
