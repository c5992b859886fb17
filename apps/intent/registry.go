package intent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/nats"
)

// InternalHandler executes a named in-process side effect for a triggered intent
type InternalHandler func(matched *models.Intent, conv *models.Conversation, messageText string) error

var (
	internalActions = map[string]InternalHandler{}
	registryLock    sync.RWMutex
)

// RegisterInternalAction adds a named internal action to the registry
func RegisterInternalAction(name string, handler InternalHandler) {
	registryLock.Lock()
	defer registryLock.Unlock()
	internalActions[name] = handler
}

// RunInternalAction executes the registered handler for the intent's action name
func RunInternalAction(matched *models.Intent, conv *models.Conversation, messageText string) error {
	registryLock.RLock()
	handler, ok := internalActions[matched.InternalAction]
	registryLock.RUnlock()

	if !ok {
		return fmt.Errorf("unknown internal action %q", matched.InternalAction)
	}
	return handler(matched, conv, messageText)
}

func init() {
	// notify_team fans the trigger out over NATS so operator dashboards can
	// alert in realtime
	RegisterInternalAction("notify_team", func(matched *models.Intent, conv *models.Conversation, messageText string) error {
		data, err := json.Marshal(map[string]any{
			"event":           "intent.notify_team",
			"intent_name":     matched.Name,
			"conversation_id": conv.ID,
			"message":         messageText,
		})
		if err != nil {
			return err
		}
		return nats.Publish(fmt.Sprintf("conversation.%d", conv.ID), data)
	})
}
