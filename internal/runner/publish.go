package runner

import (
	"context"
	"fmt"

	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/report"
)

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, r *models.RunReport) error
}

// Notifier announces finished runs.
type Notifier interface {
	Send(r *models.RunReport) error
}

// Publish writes the report file (when reportPath is set), stores the run
// (when store is non-nil) and sends a notification (when notifier is
// non-nil). Notification failures are logged and do not fail the call.
func Publish(ctx context.Context, rep *models.RunReport, reportPath string, store RunStore, notifier Notifier) error {
	if reportPath != "" {
		if err := report.WriteJSON(reportPath, rep, report.DefaultFilePermissions, report.DefaultDirPermissions); err != nil {
			return err
		}
		logger.Info("Wrote report to %s", reportPath)
	}

	if store != nil {
		if err := store.SaveRun(ctx, rep); err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}
		logger.Debug("Stored run %s", rep.ID)
	}

	if notifier != nil {
		if err := notifier.Send(rep); err != nil {
			logger.Error("Failed to send notification: %v", err)
		} else {
			logger.Info("Sent notification for run %s", rep.ID)
		}
	}
	return nil
}
