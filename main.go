package main

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/talkbase-io/talkbase-backend/apps/ai"
	"github.com/talkbase-io/talkbase-backend/apps/calendar"
	"github.com/talkbase-io/talkbase-backend/apps/conversation"
	"github.com/talkbase-io/talkbase-backend/apps/credits"
	"github.com/talkbase-io/talkbase-backend/apps/gateway"
	"github.com/talkbase-io/talkbase-backend/apps/intent"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/apps/nats"
	"github.com/talkbase-io/talkbase-backend/apps/rag"
	"github.com/talkbase-io/talkbase-backend/apps/redis"
	"github.com/talkbase-io/talkbase-backend/apps/storage"
)

func main() {
	evo.Setup()

	var apps = application.GetInstance()

	// ai wires rag and calendar in WhenReady, gateway wires everything;
	// registration order matters
	apps.Register(
		models.App{},
		nats.App{},
		redis.App{},
		storage.App{},
		credits.App{},
		conversation.App{},
		rag.App{},
		intent.App{},
		calendar.App{},
		ai.App{},
		gateway.App{},
	)

	evo.Run()
}
