package gateway

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/ai"
	"github.com/talkbase-io/talkbase-backend/apps/conversation"
	"github.com/talkbase-io/talkbase-backend/apps/credits"
	"github.com/talkbase-io/talkbase-backend/apps/intent"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/redis"
)

type App struct{}

// Default is the inbound pipeline bound to the application database
var Default *Pipeline

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.Use("/api/channels", redis.EvoRateLimitMiddleware("gateway"))
	evo.Post("/api/channels/:channel/messages", controller.PostMessage)

	return nil
}

func (a App) WhenReady() error {
	redis.LoadRateLimitSettings("gateway")

	Default = NewPipeline(models.DB())
	Default.Sessions = conversation.Default
	Default.Credits = credits.Default
	Default.Intents = intent.Default
	Default.Orchestrator = ai.Default
	return nil
}

func (a App) Name() string {
	return "gateway"
}

var _ application.Application = (*App)(nil)
