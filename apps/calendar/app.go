package calendar

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

type App struct{}

// Default is the calendar service bound to the application database
var Default *Service

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	return nil
}

func (a App) WhenReady() error {
	Default = NewService(models.DB())
	return nil
}

func (a App) Name() string {
	return "calendar"
}

var _ application.Application = (*App)(nil)
