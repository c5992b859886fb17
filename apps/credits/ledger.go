package credits

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"gorm.io/gorm"
)

// ErrNoCredits indicates the workspace balance is exhausted
var ErrNoCredits = fmt.Errorf("workspace has no message credits left")

// Usage describes one billed AI turn
type Usage struct {
	WorkspaceID      uuid.UUID
	ConversationID   uint
	MessageID        *uint
	Model            string
	PromptTokens     int
	CompletionTokens int
	Credits          int
}

// Ledger debits workspace credit balances and records usage
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// HasCredit reports whether the workspace has at least one credit left. Used
// as a cheap precheck before the pipeline does any expensive work. A missing
// balance row counts as exhausted.
func (l *Ledger) HasCredit(workspaceID uuid.UUID) bool {
	var balance models.CreditBalance
	err := l.DB.Where("workspace_id = ?", workspaceID).First(&balance).Error
	if err != nil {
		return false
	}
	return balance.Balance > 0
}

// Charge atomically debits the workspace balance and appends a usage log row.
// Both writes happen in one transaction: either the turn is billed and logged,
// or neither. The balance may go negative when concurrent turns passed the
// precheck together; the next precheck stops the workspace.
func (l *Ledger) Charge(usage Usage) error {
	if usage.Credits <= 0 {
		usage.Credits = 1
	}

	return l.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CreditBalance{}).
			Where("workspace_id = ?", usage.WorkspaceID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", usage.Credits),
				"total_used": gorm.Expr("total_used + ?", usage.Credits),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("no credit balance for workspace %s", usage.WorkspaceID)
		}

		entry := models.UsageLog{
			WorkspaceID:      usage.WorkspaceID,
			ConversationID:   usage.ConversationID,
			MessageID:        usage.MessageID,
			Model:            usage.Model,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.PromptTokens + usage.CompletionTokens,
			Credits:          usage.Credits,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return nil
	})
}

// Grant adds credits to a workspace, creating the balance row when missing
func (l *Ledger) Grant(workspaceID uuid.UUID, amount int64) error {
	var balance models.CreditBalance
	err := l.DB.Where("workspace_id = ?", workspaceID).First(&balance).Error
	if err != nil {
		balance = models.CreditBalance{
			WorkspaceID: workspaceID,
			Balance:     amount,
		}
		return l.DB.Create(&balance).Error
	}

	return l.DB.Model(&models.CreditBalance{}).
		Where("workspace_id = ?", workspaceID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// Balance returns the current credit balance of a workspace
func (l *Ledger) Balance(workspaceID uuid.UUID) (int64, error) {
	var balance models.CreditBalance
	err := l.DB.Where("workspace_id = ?", workspaceID).First(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance.Balance, nil
}
