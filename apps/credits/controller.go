package credits

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/pagination"
	"github.com/google/uuid"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

type Controller struct{}

// GetBalance returns the current credit balance of a workspace
func (c Controller) GetBalance(request *evo.Request) any {
	workspaceID, err := uuid.Parse(request.Param("workspace").String())
	if err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	var balance models.CreditBalance
	if err := db.Where("workspace_id = ?", workspaceID).First(&balance).Error; err != nil {
		return response.Error(response.ErrNotFound)
	}

	return response.OK(balance)
}

// ListUsage returns the paginated usage log of a workspace, newest first
func (c Controller) ListUsage(request *evo.Request) any {
	workspaceID, err := uuid.Parse(request.Param("workspace").String())
	if err != nil {
		return response.Error(response.ErrInvalidInput)
	}

	var logs []models.UsageLog
	query := db.Where("workspace_id = ?", workspaceID).Order("created_at DESC")

	p, err := pagination.New(query, request, &logs, pagination.Options{MaxSize: 100})
	if err != nil {
		return response.Error(response.ErrInternalError)
	}

	return response.OKWithMeta(logs, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}
