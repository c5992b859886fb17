package rag

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type App struct{}

var (
	// DefaultRetriever serves prompt-context lookups for the orchestrator
	DefaultRetriever *Retriever
	// DefaultIndexer ingests knowledge sources
	DefaultIndexer *Indexer
)

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.Post("/api/agents/:agent/knowledge", controller.CreateSource)
	evo.Get("/api/agents/:agent/knowledge", controller.ListSources)
	evo.Post("/api/knowledge/:id/reindex", controller.ReindexSource)
	evo.Delete("/api/knowledge/:id", controller.DeleteSource)
	evo.Get("/api/rag/config", controller.GetConfig)
	evo.Put("/api/rag/config", controller.UpdateConfig)

	return nil
}

func (a App) WhenReady() error {
	if err := InitQdrant(); err != nil {
		return err
	}
	ReloadConfig()

	gdb := models.DB()

	DefaultRetriever = NewRetriever(gdb)
	DefaultRetriever.Index = GetQdrantClient()

	DefaultIndexer = NewIndexer(gdb)
	DefaultIndexer.Store = GetQdrantClient()

	return nil
}

func (a App) Name() string {
	return "rag"
}

var _ application.Application = (*App)(nil)
