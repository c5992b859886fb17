package credits

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type App struct{}

// Default is the ledger bound to the application database
var Default *Ledger

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.Get("/api/workspaces/:workspace/credits", controller.GetBalance)
	evo.Get("/api/workspaces/:workspace/usage", controller.ListUsage)

	return nil
}

func (a App) WhenReady() error {
	Default = NewLedger(models.DB())
	return nil
}

func (a App) Name() string {
	return "credits"
}

var _ application.Application = (*App)(nil)
