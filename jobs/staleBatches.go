package jobs

import (
	"context"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/sirupsen/logrus"
)

const staleAfter = 24 * time.Hour

// RunStaleBatchSweep fails batches stuck in processing longer than the
// window. The move goes through the same transition table as user-driven
// updates, so a concurrent completion wins and the sweep skips the batch.
func RunStaleBatchSweep(ctx context.Context) error {
	logger := config.GetLogger()
	cutoff := time.Now().UTC().Add(-staleAfter)

	stale, err := models.StaleProcessingBatches(ctx, cutoff)
	if err != nil {
		return err
	}
	db := config.GetDB()
	swept := 0
	for _, batch := range stale {
		if err := models.AttemptTransition(batch.Status, models.BatchStatusQcFailed); err != nil {
			continue
		}
		notes := batch.Notes
		if notes != "" {
			notes += "\n"
		}
		notes += "Automatically marked as QC failed due to processing timeout."

		// Guard on the previous status so a racing completion is not undone.
		result := db.WithContext(ctx).Model(&models.Batch{}).
			Where("id = ? AND status = ?", batch.ID, models.BatchStatusProcessing).
			Updates(map[string]interface{}{
				"status":    models.BatchStatusQcFailed,
				"qc_status": models.QcStatusFailed,
				"notes":     notes,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			swept++
		}
	}
	logger.WithFields(logrus.Fields{
		"field": "jobs", "job": "stale-batches", "candidates": len(stale), "swept": swept,
	}).Info("stale batch sweep finished")
	return nil
}
