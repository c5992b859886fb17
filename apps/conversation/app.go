package conversation

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type App struct{}

// Default is the session manager bound to the application database
var Default *Manager

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.Get("/api/conversations/:id/messages", controller.GetMessages)
	evo.Post("/api/conversations/:id/assign", controller.AssignConversation)
	evo.Post("/api/conversations/:id/close", controller.CloseConversation)

	return nil
}

func (a App) WhenReady() error {
	Default = NewManager(models.DB())
	return nil
}

func (a App) Name() string {
	return "conversation"
}

var _ application.Application = (*App)(nil)
