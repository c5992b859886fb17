package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
)

// ErrNoIntegration indicates the agent has no enabled calendar integration
var ErrNoIntegration = fmt.Errorf("no enabled calendar integration")

// BusySlot is an occupied interval on the calendar
type BusySlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event describes a booking request
type Event struct {
	Summary  string
	Start    time.Time
	End      time.Time
	Attendee string
}

// Provider is a calendar backend. Implementations are per vendor; the tool
// executor only talks to this interface.
type Provider interface {
	FreeBusy(ctx context.Context, from, to time.Time) ([]BusySlot, error)
	CreateEvent(ctx context.Context, event Event) (string, error)
}

// Service resolves an agent's calendar integration into a provider
type Service struct {
	DB *gorm.DB

	// newProvider builds a provider from an integration row, overridable in
	// tests
	newProvider func(integration *models.CalendarIntegration) (Provider, error)
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db, newProvider: buildProvider}
}

// ProviderFor returns the calendar backend of an agent, ErrNoIntegration when
// none is enabled.
func (s *Service) ProviderFor(agentID uint) (Provider, error) {
	var integration models.CalendarIntegration
	err := s.DB.Where("agent_id = ? AND enabled = ?", agentID, true).First(&integration).Error
	if err != nil {
		return nil, ErrNoIntegration
	}

	build := s.newProvider
	if build == nil {
		build = buildProvider
	}
	return build(&integration)
}

func buildProvider(integration *models.CalendarIntegration) (Provider, error) {
	switch integration.Provider {
	case models.CalendarProviderGoogle:
		return NewGoogleProvider(integration)
	default:
		return nil, fmt.Errorf("unsupported calendar provider %q", integration.Provider)
	}
}
