package intent

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type App struct{}

// Default is the matcher bound to the application database
var Default *Matcher

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	return nil
}

func (a App) WhenReady() error {
	Default = NewMatcher(models.DB())
	return nil
}

func (a App) Name() string {
	return "intent"
}

var _ application.Application = (*App)(nil)
