package ai

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/calendar"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/rag"
)

type App struct{}

// Default is the orchestrator bound to the application database
var Default *Orchestrator

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	return nil
}

func (a App) WhenReady() error {
	// Knowledge retrieval embeds through the OpenAI embeddings endpoint.
	// Without a credential retrieval degrades to empty context.
	cfg := ResolveProviders()
	if cfg.OpenAI.Usable() {
		rag.SetEmbedder(NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, cfg.OpenAI.Model))
	} else {
		log.Warning("OpenAI credential missing, knowledge retrieval embedding disabled")
	}

	Default = NewOrchestrator(models.DB())
	Default.Retriever = rag.DefaultRetriever
	Default.Calendar = calendar.Default
	return nil
}

func (a App) Name() string {
	return "ai"
}

var _ application.Application = (*App)(nil)
