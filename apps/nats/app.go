package nats

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// App represents the NATS application module
type App struct{}

func (App) Register() error {
	return nil
}

func (App) Router() error {
	return nil
}

// WhenReady connects to NATS after the application is fully initialized
func (App) WhenReady() error {
	reconnectWait, _ := settings.Get("NATS.RECONNECT_WAIT", "2s").Duration()
	pingInterval, _ := settings.Get("NATS.PING_INTERVAL", "20s").Duration()
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "30s").Duration()

	config := Config{
		URL:            settings.Get("NATS.URL", "nats://localhost:4222").String(),
		MaxReconnects:  int(settings.Get("NATS.MAX_RECONNECTS", 60).Int64()),
		ReconnectWait:  reconnectWait,
		PingInterval:   pingInterval,
		MaxPingsOut:    int(settings.Get("NATS.MAX_PINGS_OUT", 2).Int64()),
		AllowReconnect: settings.Get("NATS.ALLOW_RECONNECT", true).Bool(),
		DrainTimeout:   drainTimeout,
	}

	if err := Connect(config); err != nil {
		// Realtime fanout is best effort, the pipeline works without it
		log.Error("Failed to connect to NATS: %v", err)
		return nil
	}

	log.Info("NATS app ready")
	return nil
}

func (App) Name() string {
	return "nats"
}

// Shutdown gracefully closes the NATS connection
func (App) Shutdown() error {
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "30s").Duration()
	return Close(drainTimeout)
}

var _ application.Application = (*App)(nil)
