package models

import (
	"github.com/getevo/evo/v2/lib/args"
	"github.com/getevo/evo/v2/lib/db"
)

type App struct{}

func (a App) Register() error {
	// Workspace and billing models
	db.UseModel(Workspace{})
	db.UseModel(CreditBalance{})
	db.UseModel(UsageLog{})

	// Agent configuration models
	db.UseModel(Agent{})
	db.UseModel(CustomFieldDefinition{})
	db.UseModel(CalendarIntegration{})
	db.UseModel(MediaItem{})
	db.UseModel(Intent{})

	// Conversation models
	db.UseModel(Channel{})
	db.UseModel(Conversation{})
	db.UseModel(Message{})
	db.UseModel(Contact{})

	// Knowledge base models for RAG
	db.UseModel(KnowledgeSource{})
	db.UseModel(DocumentChunk{})

	// Settings model
	db.UseModel(Setting{})

	return nil
}

func (a App) Router() error {
	return nil
}

func (a App) WhenReady() error {
	if args.Exists("--migration-do") {
		err := db.DoMigration()
		if err != nil {
			return err
		}
	}
	return nil
}

func (a App) Name() string {
	return "models"
}
