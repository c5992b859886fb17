package credits

import (
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
	if err := gdb.AutoMigrate(&models.Workspace{}, &models.CreditBalance{}, &models.UsageLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func TestChargeDebitsBalanceAndLogsUsage(t *testing.T) {
	gdb := testDB(t)
	ledger := NewLedger(gdb)

	ws := models.Workspace{Name: "acme"}
	if err := gdb.Create(&ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if err := ledger.Grant(ws.ID, 10); err != nil {
		t.Fatalf("grant: %v", err)
	}

	err := ledger.Charge(Usage{
		WorkspaceID:      ws.ID,
		ConversationID:   1,
		Model:            "gpt-4o-mini",
		PromptTokens:     120,
		CompletionTokens: 40,
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	balance, err := ledger.Balance(ws.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 9 {
		t.Errorf("expected balance 9, got %d", balance)
	}

	var cb models.CreditBalance
	if err := gdb.Where("workspace_id = ?", ws.ID).First(&cb).Error; err != nil {
		t.Fatalf("fetch balance row: %v", err)
	}
	if cb.TotalUsed != 1 {
		t.Errorf("expected total_used 1, got %d", cb.TotalUsed)
	}

	var logs []models.UsageLog
	if err := gdb.Where("workspace_id = ?", ws.ID).Find(&logs).Error; err != nil {
		t.Fatalf("fetch usage logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 usage log, got %d", len(logs))
	}
	if logs[0].TotalTokens != 160 {
		t.Errorf("expected 160 total tokens, got %d", logs[0].TotalTokens)
	}
	if logs[0].Credits != 1 {
		t.Errorf("expected 1 credit charged, got %d", logs[0].Credits)
	}
}

func TestChargeRollsBackWhenUsageLogFails(t *testing.T) {
	gdb := testDB(t)
	ledger := NewLedger(gdb)

	ws := models.Workspace{Name: "acme"}
	if err := gdb.Create(&ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if err := ledger.Grant(ws.ID, 5); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// Make the usage log insert fail so the transaction must roll back
	if err := gdb.Migrator().DropTable(&models.UsageLog{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	err := ledger.Charge(Usage{WorkspaceID: ws.ID, ConversationID: 1})
	if err == nil {
		t.Fatal("expected charge to fail")
	}

	balance, err := ledger.Balance(ws.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5 {
		t.Errorf("expected balance unchanged at 5, got %d", balance)
	}
}

func TestChargeFailsWithoutBalanceRow(t *testing.T) {
	gdb := testDB(t)
	ledger := NewLedger(gdb)

	err := ledger.Charge(Usage{WorkspaceID: uuid.New(), ConversationID: 1})
	if err == nil {
		t.Fatal("expected charge to fail for unknown workspace")
	}
}

func TestHasCredit(t *testing.T) {
	gdb := testDB(t)
	ledger := NewLedger(gdb)

	ws := models.Workspace{Name: "acme"}
	if err := gdb.Create(&ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	if ledger.HasCredit(ws.ID) {
		t.Error("workspace without balance row should have no credit")
	}

	if err := ledger.Grant(ws.ID, 1); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !ledger.HasCredit(ws.ID) {
		t.Error("workspace with positive balance should have credit")
	}

	if err := ledger.Charge(Usage{WorkspaceID: ws.ID, ConversationID: 1}); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ledger.HasCredit(ws.ID) {
		t.Error("workspace with zero balance should have no credit")
	}

	// Balance can transiently dip below zero under concurrent turns
	if err := ledger.Charge(Usage{WorkspaceID: ws.ID, ConversationID: 1}); err != nil {
		t.Fatalf("charge below zero: %v", err)
	}
	balance, _ := ledger.Balance(ws.ID)
	if balance != -1 {
		t.Errorf("expected balance -1, got %d", balance)
	}
}
