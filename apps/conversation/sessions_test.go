package conversation

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.Workspace{},
		&models.Agent{},
		&models.Channel{},
		&models.Contact{},
		&models.Conversation{},
		&models.Message{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func seedChannel(t *testing.T, gdb *gorm.DB) *models.Channel {
	t.Helper()
	ws := models.Workspace{Name: "acme"}
	if err := gdb.Create(&ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	agent := models.Agent{WorkspaceID: ws.ID, Name: "support-bot"}
	if err := gdb.Create(&agent).Error; err != nil {
		t.Fatalf("create agent: %v", err)
	}
	channel := models.Channel{ID: "web-widget", AgentID: agent.ID, Name: "Web Widget", IsActive: true}
	if err := gdb.Create(&channel).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return &channel
}

func TestResolveReusesOpenConversation(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	first, err := manager.Resolve(channel, "visitor-1", "Alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for i := 0; i < 5; i++ {
		conv, err := manager.Resolve(channel, "visitor-1", "Alice")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if conv.ID != first.ID {
			t.Fatalf("expected conversation %d, got %d", first.ID, conv.ID)
		}
	}

	var count int64
	gdb.Model(&models.Conversation{}).
		Where("channel_id = ? AND visitor_external_id = ?", channel.ID, "visitor-1").
		Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one conversation, got %d", count)
	}
}

func TestResolveSeparatesVisitorsAndChannels(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	other := models.Channel{ID: "instagram", AgentID: channel.AgentID, Name: "Instagram", IsActive: true}
	if err := gdb.Create(&other).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}

	a, _ := manager.Resolve(channel, "visitor-1", "")
	b, _ := manager.Resolve(channel, "visitor-2", "")
	c, _ := manager.Resolve(&other, "visitor-1", "")

	if a.ID == b.ID || a.ID == c.ID || b.ID == c.ID {
		t.Errorf("expected three distinct conversations, got %d/%d/%d", a.ID, b.ID, c.ID)
	}
}

func TestCloseReleasesOpenSlot(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	first, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := manager.Close(first); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve after close: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh conversation after close")
	}
	if second.Status != models.ConversationStatusOpen {
		t.Errorf("expected open status, got %s", second.Status)
	}

	var closed models.Conversation
	if err := gdb.Where("id = ?", first.ID).First(&closed).Error; err != nil {
		t.Fatalf("fetch closed conversation: %v", err)
	}
	if closed.Status != models.ConversationStatusClosed || closed.Active != nil {
		t.Errorf("closed conversation not released: status=%s active=%v", closed.Status, closed.Active)
	}
	if closed.ClosedAt == nil {
		t.Error("expected closed_at to be set")
	}
}

func TestHandoverSuppressesBot(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	conv, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.IsHandedOver() {
		t.Fatal("fresh conversation should not be handed over")
	}

	operator := uuid.New()
	if err := manager.Handover(conv, operator); err != nil {
		t.Fatalf("handover: %v", err)
	}
	if !conv.IsHandedOver() {
		t.Error("expected conversation to be handed over")
	}
	if conv.Status != models.ConversationStatusPending {
		t.Errorf("expected pending status, got %s", conv.Status)
	}

	// Handed-over conversations still accept messages
	if _, err := manager.AppendMessage(conv, models.MessageRoleUser, "hello?", nil); err != nil {
		t.Fatalf("append after handover: %v", err)
	}
}

func TestAppendMessageEchoesAttachment(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	conv, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	attachment := &models.Attachment{Type: "image", URL: "https://cdn.example.com/cat.jpg", AltText: "a cat"}
	msg, err := manager.AppendMessage(conv, models.MessageRoleUser, "look at this", attachment)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	var stored models.Message
	if err := gdb.Where("id = ?", msg.ID).First(&stored).Error; err != nil {
		t.Fatalf("fetch message: %v", err)
	}
	echo := stored.AttachmentFromMetadata()
	if echo == nil {
		t.Fatal("expected attachment metadata")
	}
	if echo.Type != "image" || echo.URL != attachment.URL || echo.AltText != "a cat" {
		t.Errorf("attachment echo mismatch: %+v", echo)
	}
}

func TestHistoryIsChronologicalAndCapped(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	conv, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, body := range bodies {
		if _, err := manager.AppendMessage(conv, models.MessageRoleUser, body, nil); err != nil {
			t.Fatalf("append %q: %v", body, err)
		}
	}

	history, err := manager.History(conv, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"three", "four", "five"} {
		if history[i].Body != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Body, want)
		}
	}
}

func TestResolveConvergesUnderConcurrentFirstMessages(t *testing.T) {
	gdb := testDB(t)
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps sqlite from rejecting concurrent writers while the
	// goroutines still interleave through Resolve.
	sqlDB.SetMaxOpenConns(1)

	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	const workers = 8
	ids := make(chan uint, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := manager.Resolve(channel, "visitor-1", "Alice")
			if err != nil {
				errs <- err
				return
			}
			ids <- conv.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("resolve: %v", err)
	}
	first := uint(0)
	for id := range ids {
		if first == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected all resolves to converge on conversation %d, got %d", first, id)
		}
	}

	var open int64
	gdb.Model(&models.Conversation{}).
		Where("channel_id = ? AND visitor_external_id = ? AND active IS NOT NULL", channel.ID, "visitor-1").
		Count(&open)
	if open != 1 {
		t.Errorf("expected exactly one open conversation, got %d", open)
	}
}

func TestResolveCreatesContactForFirstTimeVisitor(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	conv, err := manager.Resolve(channel, "brand-new-visitor", "Bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.ContactID == nil {
		t.Fatal("expected a contact to be created and linked on first resolve")
	}

	var agent models.Agent
	if err := gdb.Where("id = ?", channel.AgentID).First(&agent).Error; err != nil {
		t.Fatalf("fetch agent: %v", err)
	}
	var contact models.Contact
	if err := gdb.Where("id = ?", *conv.ContactID).First(&contact).Error; err != nil {
		t.Fatalf("fetch contact: %v", err)
	}
	if contact.WorkspaceID != agent.WorkspaceID {
		t.Errorf("contact workspace = %s, want %s", contact.WorkspaceID, agent.WorkspaceID)
	}
	if contact.Name != "Bob" {
		t.Errorf("contact name = %q, want %q", contact.Name, "Bob")
	}

	var stored models.Conversation
	if err := gdb.Where("id = ?", conv.ID).First(&stored).Error; err != nil {
		t.Fatalf("fetch conversation: %v", err)
	}
	if stored.ContactID == nil || *stored.ContactID != contact.ID {
		t.Errorf("expected conversation to persist contact link %s, got %v", contact.ID, stored.ContactID)
	}
}

func TestResolveSurvivesContactCreateFailure(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	if err := gdb.Migrator().DropTable(&models.Contact{}); err != nil {
		t.Fatalf("drop contacts: %v", err)
	}

	conv, err := manager.Resolve(channel, "visitor-1", "Alice")
	if err != nil {
		t.Fatalf("expected resolve to survive contact failure, got %v", err)
	}
	if conv.ContactID != nil {
		t.Errorf("expected no contact link, got %v", conv.ContactID)
	}
}

func TestResolveAutolinksContactFromPreviousConversation(t *testing.T) {
	gdb := testDB(t)
	manager := NewManager(gdb)
	channel := seedChannel(t, gdb)

	var agent models.Agent
	if err := gdb.Where("id = ?", channel.AgentID).First(&agent).Error; err != nil {
		t.Fatalf("fetch agent: %v", err)
	}
	contact := models.Contact{WorkspaceID: agent.WorkspaceID, Name: "Alice", Email: "alice@example.com"}
	if err := gdb.Create(&contact).Error; err != nil {
		t.Fatalf("create contact: %v", err)
	}

	first, err := manager.Resolve(channel, "visitor-1", "Alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := gdb.Model(first).Update("contact_id", contact.ID).Error; err != nil {
		t.Fatalf("link contact: %v", err)
	}
	if err := manager.Close(first); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := manager.Resolve(channel, "visitor-1", "")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if second.ContactID == nil || *second.ContactID != contact.ID {
		t.Errorf("expected contact %s to carry forward, got %v", contact.ID, second.ContactID)
	}
}
