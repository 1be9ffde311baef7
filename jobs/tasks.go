package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/masterdata/rates"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskApprovalRescan re-evaluates discount approval flags on a document
	// after discount limits change.
	TaskApprovalRescan = "approval:rescan"
	// TaskRatesRefresh reloads the official exchange rate cache.
	TaskRatesRefresh = "rates:refresh"
)

// ApprovalRescanPayload names the document whose line flags to recompute.
// DocumentID zero means every editable document.
type ApprovalRescanPayload struct {
	DocumentID int64 `json:"documentId"`
}

// NewApprovalRescanTask constructs an approval rescan task.
func NewApprovalRescanTask(payload ApprovalRescanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovalRescan, data), nil
}

// NewRatesRefreshTask constructs a rate refresh task.
func NewRatesRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRatesRefresh, nil)
}

// FlagRefresher recomputes persisted line approval flags.
type FlagRefresher interface {
	RefreshApprovalFlags(ctx context.Context, documentID int64) error
	ListEditableIDs(ctx context.Context) ([]int64, error)
}

// RateRefresher reloads official rates into the cache.
type RateRefresher interface {
	Refresh(ctx context.Context) ([]rates.OfficialRate, error)
}

// NewApprovalRescanHandler builds the handler for TaskApprovalRescan.
func NewApprovalRescanHandler(refresher FlagRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ApprovalRescanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		ids := []int64{payload.DocumentID}
		if payload.DocumentID == 0 {
			var err error
			ids, err = refresher.ListEditableIDs(ctx)
			if err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := refresher.RefreshApprovalFlags(ctx, id); err != nil {
				logger.Error("approval rescan failed",
					slog.Int64("document_id", id),
					slog.Any("error", err))
				return err
			}
		}
		logger.Info("approval rescan done", slog.Int("documents", len(ids)))
		return nil
	}
}

// NewRatesRefreshHandler builds the handler for TaskRatesRefresh.
func NewRatesRefreshHandler(refresher RateRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		current, err := refresher.Refresh(ctx)
		if err != nil {
			logger.Error("rates refresh failed", slog.Any("error", err))
			return err
		}
		logger.Info("official rates refreshed", slog.Int("currencies", len(current)))
		return nil
	}
}
