package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/calendar"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/storage"
	"gorm.io/gorm"
)

// CalendarResolver resolves an agent's calendar integration into a provider
type CalendarResolver interface {
	ProviderFor(agentID uint) (calendar.Provider, error)
}

// AgentContext carries everything tool handlers need for one turn. Tool
// handlers write their side effects through it; SelectedMedia is picked up by
// the orchestrator and attached to the final agent message.
type AgentContext struct {
	DB           *gorm.DB
	Agent        *models.Agent
	Channel      *models.Channel
	Conversation *models.Conversation
	Contact      *models.Contact
	Calendar     CalendarResolver

	SelectedMedia *models.Attachment
}

// toolHandler executes one tool call. Results are always returned as strings
// for the model; failures become structured error results, they are never
// propagated past this boundary.
type toolHandler func(actx *AgentContext, args json.RawMessage) string

var toolHandlers = map[string]toolHandler{
	"update_contact":     handleUpdateContact,
	"check_availability": handleCheckAvailability,
	"book_event":         handleBookEvent,
	"search_media":       handleSearchMedia,
}

// BuildTools returns the tool definitions offered to the model for an agent
func BuildTools(agent *models.Agent) []ToolDefinition {
	tools := []ToolDefinition{
		buildUpdateContactTool(),
		buildSearchMediaTool(),
	}
	if agent.CalendarEnabled {
		tools = append(tools, buildCheckAvailabilityTool(), buildBookEventTool())
	}
	return tools
}

// ExecuteTool routes a tool call to its handler. Unknown tool names produce an
// error result for the model instead of failing the turn.
func ExecuteTool(actx *AgentContext, call ToolCall) string {
	handler, ok := toolHandlers[call.Function.Name]
	if !ok {
		return toolError(fmt.Sprintf("unknown tool %q", call.Function.Name))
	}
	return handler(actx, json.RawMessage(call.Function.Arguments))
}

func toolError(message string) string {
	data, _ := json.Marshal(map[string]string{"status": "error", "error": message})
	return string(data)
}

func toolOK(fields map[string]interface{}) string {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = "ok"
	data, _ := json.Marshal(fields)
	return string(data)
}

// ========== update_contact ==========

func buildUpdateContactTool() ToolDefinition {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"updates": {
				"type": "object",
				"description": "Contact fields to store, e.g. {\"name\": \"Ana\", \"email\": \"ana@example.com\"}. Keys are field names, values are the collected data.",
				"additionalProperties": {"type": "string"}
			}
		},
		"required": ["updates"]
	}`)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "update_contact",
			Description: "Store contact information the visitor has provided, such as their name, email, phone or any requested custom field. Call this every time the visitor shares such data.",
			Parameters:  params,
		},
	}
}

// reshapeContactArgs normalizes the update_contact arguments. Model output is
// not contractually reliable: field names arrive in mixed casing and known
// contact fields are regularly emitted at the top level instead of inside
// "updates". This shim lowercases keys and relocates misplaced top-level
// fields into the nested object.
func reshapeContactArgs(args json.RawMessage) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	updates := map[string]interface{}{}
	if nested, ok := raw["updates"].(map[string]interface{}); ok {
		for key, value := range nested {
			updates[strings.ToLower(strings.TrimSpace(key))] = value
		}
	}

	for key, value := range raw {
		lowered := strings.ToLower(strings.TrimSpace(key))
		if lowered == "updates" {
			continue
		}
		if _, exists := updates[lowered]; exists {
			continue
		}
		updates[lowered] = value
	}

	return updates, nil
}

func handleUpdateContact(actx *AgentContext, args json.RawMessage) string {
	updates, err := reshapeContactArgs(args)
	if err != nil {
		return toolError(err.Error())
	}
	if len(updates) == 0 {
		return toolError("no contact fields provided")
	}

	contact := actx.Contact
	if contact == nil {
		contact = &models.Contact{WorkspaceID: actx.Agent.WorkspaceID}
		if err := actx.DB.Create(contact).Error; err != nil {
			return toolError(fmt.Sprintf("failed to create contact: %v", err))
		}
		if err := actx.DB.Model(actx.Conversation).Update("contact_id", contact.ID).Error; err != nil {
			return toolError(fmt.Sprintf("failed to link contact: %v", err))
		}
		actx.Conversation.ContactID = &contact.ID
		actx.Contact = contact
	}

	columns := map[string]interface{}{}
	extra := map[string]interface{}{}
	if len(contact.Data) > 0 {
		if err := json.Unmarshal(contact.Data, &extra); err != nil {
			extra = map[string]interface{}{}
		}
	}

	var applied []string
	for key, value := range updates {
		str := fmt.Sprintf("%v", value)
		switch key {
		case "name":
			columns["name"] = str
		case "email":
			columns["email"] = str
		case "phone":
			columns["phone"] = str
		default:
			extra[key] = value
		}
		applied = append(applied, key)
	}
	sort.Strings(applied)

	if len(extra) > 0 {
		data, err := json.Marshal(extra)
		if err != nil {
			return toolError(fmt.Sprintf("failed to encode custom fields: %v", err))
		}
		columns["data"] = data
	}

	if err := actx.DB.Model(contact).Updates(columns).Error; err != nil {
		return toolError(fmt.Sprintf("failed to update contact: %v", err))
	}
	if name, ok := columns["name"].(string); ok {
		contact.Name = name
	}
	if email, ok := columns["email"].(string); ok {
		contact.Email = email
	}
	if phone, ok := columns["phone"].(string); ok {
		contact.Phone = phone
	}

	// Mirror the name onto the conversation only after the contact write
	// succeeded
	if name, ok := columns["name"].(string); ok && name != "" {
		if err := actx.DB.Model(actx.Conversation).Update("contact_name", name).Error; err != nil {
			log.Warning("Failed to mirror contact name onto conversation %d: %v", actx.Conversation.ID, err)
		} else {
			actx.Conversation.ContactName = name
		}
	}

	return toolOK(map[string]interface{}{"updated": applied})
}

// ========== check_availability / book_event ==========

func buildCheckAvailabilityTool() ToolDefinition {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {
				"type": "string",
				"description": "The date to check, formatted YYYY-MM-DD"
			}
		},
		"required": ["date"]
	}`)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "check_availability",
			Description: "Check the calendar for busy time slots on a given date before proposing an appointment time.",
			Parameters:  params,
		},
	}
}

func buildBookEventTool() ToolDefinition {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {
				"type": "string",
				"description": "Short title of the appointment"
			},
			"start": {
				"type": "string",
				"description": "Start time in RFC3339 format, e.g. 2024-05-01T14:00:00Z"
			},
			"end": {
				"type": "string",
				"description": "End time in RFC3339 format"
			},
			"attendee": {
				"type": "string",
				"description": "Optional attendee email address"
			}
		},
		"required": ["summary", "start", "end"]
	}`)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "book_event",
			Description: "Book an appointment on the calendar after the visitor confirmed a time.",
			Parameters:  params,
		},
	}
}

func (actx *AgentContext) calendarProvider() (calendar.Provider, error) {
	if actx.Calendar == nil {
		return nil, calendar.ErrNoIntegration
	}
	return actx.Calendar.ProviderFor(actx.Agent.ID)
}

func handleCheckAvailability(actx *AgentContext, args json.RawMessage) string {
	var params struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return toolError("invalid arguments")
	}

	loc, err := time.LoadLocation(actx.Agent.Timezone)
	if err != nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", params.Date, loc)
	if err != nil {
		return toolError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", params.Date))
	}

	provider, err := actx.calendarProvider()
	if err != nil {
		return toolError("calendar is not available for this agent")
	}

	cctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	busy, err := provider.FreeBusy(cctx, day, day.Add(24*time.Hour))
	if err != nil {
		log.Warning("Calendar freebusy failed for agent %d: %v", actx.Agent.ID, err)
		return toolError("failed to read the calendar")
	}

	if len(busy) == 0 {
		return toolOK(map[string]interface{}{"date": params.Date, "busy": []string{}, "note": "the whole day is free"})
	}

	var slots []string
	for _, slot := range busy {
		slots = append(slots, fmt.Sprintf("%s - %s",
			slot.Start.In(loc).Format("15:04"), slot.End.In(loc).Format("15:04")))
	}
	return toolOK(map[string]interface{}{"date": params.Date, "busy": slots})
}

func handleBookEvent(actx *AgentContext, args json.RawMessage) string {
	var params struct {
		Summary  string `json:"summary"`
		Start    string `json:"start"`
		End      string `json:"end"`
		Attendee string `json:"attendee"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return toolError("invalid arguments")
	}

	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return toolError(fmt.Sprintf("invalid start time %q, expected RFC3339", params.Start))
	}
	end, err := time.Parse(time.RFC3339, params.End)
	if err != nil {
		return toolError(fmt.Sprintf("invalid end time %q, expected RFC3339", params.End))
	}
	if !end.After(start) {
		return toolError("end time must be after start time")
	}

	provider, err := actx.calendarProvider()
	if err != nil {
		return toolError("calendar is not available for this agent")
	}

	cctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	link, err := provider.CreateEvent(cctx, calendar.Event{
		Summary:  params.Summary,
		Start:    start,
		End:      end,
		Attendee: params.Attendee,
	})
	if err != nil {
		log.Warning("Calendar booking failed for agent %d: %v", actx.Agent.ID, err)
		return toolError("failed to book the event")
	}

	return toolOK(map[string]interface{}{"booked": params.Summary, "link": link})
}

// ========== search_media ==========

func buildSearchMediaTool() ToolDefinition {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "What kind of media to look for, e.g. 'product brochure' or 'pricing chart'"
			}
		},
		"required": ["query"]
	}`)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "search_media",
			Description: "Search the agent's media library for an image, video or document to share with the visitor. The selected media is attached to your reply automatically, do not paste its URL into the text.",
			Parameters:  params,
		},
	}
}

func handleSearchMedia(actx *AgentContext, args json.RawMessage) string {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return toolError("invalid arguments")
	}

	var items []models.MediaItem
	err := actx.DB.Where("agent_id = ?", actx.Agent.ID).Order("id ASC").Find(&items).Error
	if err != nil {
		return toolError("failed to search the media library")
	}
	if len(items) == 0 {
		return toolError("not found: the media library is empty")
	}

	best := pickMediaItem(items, params.Query)

	url := best.URL
	if best.S3Key != nil && *best.S3Key != "" && storage.IsEnabled() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		signed, err := storage.PresignDownloadURL(cctx, *best.S3Key, 0)
		cancel()
		if err != nil {
			log.Warning("Failed to presign media %d: %v", best.ID, err)
		} else {
			url = signed
		}
	}

	actx.SelectedMedia = &models.Attachment{
		Type:    best.Type,
		URL:     url,
		AltText: best.Name,
	}

	return toolOK(map[string]interface{}{
		"name":        best.Name,
		"description": best.Description,
		"type":        best.Type,
		"note":        "the media will be attached to your reply",
	})
}

// pickMediaItem scores items by token overlap between the query and the item
// name plus description, falling back to the first item when nothing matches.
func pickMediaItem(items []models.MediaItem, query string) *models.MediaItem {
	queryTokens := tokenize(query)

	best := &items[0]
	bestScore := 0
	for i := range items {
		itemTokens := tokenize(items[i].Name + " " + items[i].Description)
		score := 0
		for token := range queryTokens {
			if itemTokens[token] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &items[i]
		}
	}
	return best
}

func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,!?;:\"'()")
		if len(token) > 1 {
			tokens[token] = true
		}
	}
	return tokens
}
