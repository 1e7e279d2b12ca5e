package jobs

import (
	"context"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/workflow"
	"github.com/sirupsen/logrus"
)

const backfillBatchSize = 25

// RunWorkOrderBackfill retries remote work order creation for batches whose
// create-time attempt failed. The mirror row's empty external id marks the
// debt; filling it settles it.
func RunWorkOrderBackfill(ctx context.Context, gateway netsuite.Gateway) error {
	logger := config.GetLogger()

	unsynced, err := models.UnsyncedWorkOrders(ctx, backfillBatchSize)
	if err != nil {
		return err
	}
	created := 0
	for _, mirror := range unsynced {
		batch, err := models.GetBatch(ctx, mirror.BatchId)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": "jobs", "job": "work-order-backfill", "batch_id": mirror.BatchId,
			}).Warn("batch lookup failed: " + err.Error())
			continue
		}
		if models.IsTerminalStatus(batch.Status) {
			// Too late for a work order; close out the mirror.
			_ = models.UpdateWorkOrderMirror(ctx, mirror.BatchId, "", models.WorkOrderStatusCancelled, "batch reached terminal status before sync")
			continue
		}
		req, err := workflow.BuildWorkOrderRequest(ctx, batch)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": "jobs", "job": "work-order-backfill", "batch_id": mirror.BatchId,
			}).Warn("work order request build failed: " + err.Error())
			continue
		}
		externalId, err := gateway.CreateWorkOrder(ctx, req)
		if err != nil {
			_ = models.UpdateWorkOrderMirror(ctx, mirror.BatchId, "", mirror.Status, err.Error())
			continue
		}
		status := models.WorkOrderStatusPlanned
		if batch.Status == models.BatchStatusProcessing {
			status = models.WorkOrderStatusInProgress
		}
		if err := models.UpdateWorkOrderMirror(ctx, mirror.BatchId, externalId, status, ""); err != nil {
			return err
		}
		created++
	}
	logger.WithFields(logrus.Fields{
		"field": "jobs", "job": "work-order-backfill", "candidates": len(unsynced), "created": created,
	}).Info("work order backfill finished")
	return nil
}
