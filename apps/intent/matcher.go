package intent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
)

// WebhookDispatcher posts intent trigger notifications to external endpoints
type WebhookDispatcher interface {
	Dispatch(intent *models.Intent, conv *models.Conversation, messageText string) error
}

// Matcher scans inbound user messages for configured trigger keywords and
// fires the matched intent's side action. Matching is advisory: it runs
// before the model turn and never replaces or blocks the reply.
type Matcher struct {
	DB      *gorm.DB
	Webhook WebhookDispatcher
}

func NewMatcher(db *gorm.DB) *Matcher {
	return &Matcher{DB: db, Webhook: NewWebhookSender()}
}

// Detect returns the first enabled intent whose keyword appears in the text.
// Intents are evaluated in list order; the comparison is case-insensitive
// containment against the raw message.
func (m *Matcher) Detect(agentID uint, text string) (*models.Intent, error) {
	var intents []models.Intent
	err := m.DB.Where("agent_id = ? AND enabled = ?", agentID, true).
		Order("position ASC, id ASC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(text)
	for idx := range intents {
		for _, keyword := range intents[idx].KeywordList() {
			if strings.Contains(lowered, keyword) {
				return &intents[idx], nil
			}
		}
	}
	return nil, nil
}

// Process runs detection and, on a match, records the trigger and dispatches
// the side action. Every failure is logged and swallowed; the returned intent
// (or nil) is context for the caller, never a verdict.
func (m *Matcher) Process(agentID uint, conv *models.Conversation, text string) *models.Intent {
	matched, err := m.Detect(agentID, text)
	if err != nil {
		log.Warning("Intent detection failed for agent %d: %v", agentID, err)
		return nil
	}
	if matched == nil {
		return nil
	}

	// Detection counts as a trigger even when the side action fails
	now := time.Now()
	err = m.DB.Model(matched).Updates(map[string]interface{}{
		"trigger_count":  gorm.Expr("trigger_count + 1"),
		"last_triggered": now,
	}).Error
	if err != nil {
		log.Warning("Failed to record trigger for intent %d: %v", matched.ID, err)
	}
	matched.TriggerCount++
	matched.LastTriggered = &now

	m.dispatch(matched, conv, text)
	return matched
}

func (m *Matcher) dispatch(matched *models.Intent, conv *models.Conversation, text string) {
	switch matched.ActionType {
	case models.IntentActionWebhook:
		if matched.WebhookURL == "" {
			log.Warning("Intent %d has webhook action but no URL", matched.ID)
			return
		}
		if m.Webhook == nil {
			return
		}
		if err := m.Webhook.Dispatch(matched, conv, text); err != nil {
			log.Warning("Intent %d webhook dispatch failed: %v", matched.ID, err)
		}

	case models.IntentActionInternal:
		if err := RunInternalAction(matched, conv, text); err != nil {
			log.Warning("Intent %d internal action %q failed: %v", matched.ID, matched.InternalAction, err)
		}

	case models.IntentActionForm:
		if err := m.flagForm(matched, conv); err != nil {
			log.Warning("Intent %d form flag failed: %v", matched.ID, err)
		}

	default:
		log.Warning("Intent %d has unknown action type %q", matched.ID, matched.ActionType)
	}
}

// flagForm records the requested form on the conversation's custom fields so
// the operator UI can render it
func (m *Matcher) flagForm(matched *models.Intent, conv *models.Conversation) error {
	fields := map[string]interface{}{}
	if len(conv.CustomFields) > 0 {
		if err := json.Unmarshal(conv.CustomFields, &fields); err != nil {
			fields = map[string]interface{}{}
		}
	}
	fields["requested_form"] = matched.FormID

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := m.DB.Model(conv).Update("custom_fields", data).Error; err != nil {
		return err
	}
	conv.CustomFields = data
	return nil
}
