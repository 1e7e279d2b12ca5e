// Package workflow orchestrates multi-step batch operations: the dual-system
// availability protocol, stock consumption inside one transaction, and the
// remote mirror via direct push with an outbox fallback.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BatchResult struct {
	Batch *models.Batch `json:"batch"`
	// Warnings report best-effort steps that failed without failing the
	// operation (work order sync, direct inventory push).
	Warnings []string `json:"warnings,omitempty"`
}

// CreateBatch runs the full creation protocol:
//
//  1. validate input and load the active recipe
//  2. check local availability, then remote availability (hard failure)
//  3. create the batch row in pending
//  4. create the remote work order, best effort
//  5. consume ingredient stock and write ledger rows in one transaction
//  6. mirror the consumption to the remote, outbox fallback on failure
//
// Stock is consumed at creation so the batch owns its inputs from the start.
func CreateBatch(ctx context.Context, gateway netsuite.Gateway, input models.NewBatch, createdBy string) (*BatchResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.PlannedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("planned quantity must be positive")
	}

	recipe, err := models.GetRecipe(ctx, input.RecipeId)
	if err != nil {
		return nil, err
	}
	if recipe.IsActive != nil && !*recipe.IsActive {
		return nil, utils.NewValidationError("recipe is inactive")
	}
	product, err := models.GetProduct(ctx, recipe.ProductId)
	if err != nil {
		return nil, err
	}
	ingredients, err := loadRecipeIngredients(ctx, recipe)
	if err != nil {
		return nil, err
	}

	requirements, err := CheckAvailability(ctx, gateway, recipe, ingredients, input.PlannedQuantity)
	if err != nil {
		return nil, err
	}

	if err := governance.Consume(ctx, governance.OpCreate); err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	batch := models.Batch{
		RecipeId:        recipe.ID,
		ProductId:       recipe.ProductId,
		PlannedQuantity: input.PlannedQuantity,
		Status:          models.BatchStatusPending,
		QcStatus:        models.QcStatusPending,
		Notes:           input.Notes,
		CreatedBy:       createdBy,
	}
	db := config.GetDB()
	if err := models.InsertBatch(db, ctx, &batch); err != nil {
		return nil, err
	}

	result := &BatchResult{Batch: &batch}

	// Work order creation is best effort. A missing remote work order is
	// repaired by the scheduled backfill; a missing batch is not repairable.
	woReq := netsuite.WorkOrderRequest{
		BatchNumber: batch.BatchNumber,
		Item:        product.Sku,
		Quantity:    input.PlannedQuantity,
	}
	for _, req := range requirements {
		woReq.Components = append(woReq.Components, netsuite.WorkOrderComponent{
			Item:     req.Sku,
			Quantity: req.Required,
		})
	}
	mirror := models.WorkOrder{
		BatchId:   batch.ID,
		ProductId: recipe.ProductId,
		Quantity:  input.PlannedQuantity,
		Status:    models.WorkOrderStatusPlanned,
	}
	externalId, woErr := gateway.CreateWorkOrder(ctx, woReq)
	if woErr != nil {
		mirror.LastPushErr = woErr.Error()
		result.Warnings = append(result.Warnings, "work order not created in external system: "+woErr.Error())
		logWarn("CreateBatch", "remote work order", batch.BatchNumber, woErr)
	} else {
		mirror.ExternalId = externalId
	}
	if err := models.CreateWorkOrderMirror(db, ctx, &mirror); err != nil {
		return nil, err
	}

	deltas := make([]models.RemoteStockDelta, 0, len(requirements))
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, req := range requirements {
			if err := governance.Consume(ctx, governance.OpUpdate); err != nil {
				return err
			}
			if err := models.DecrementIngredientStock(tx, ctx, req.IngredientId, req.Required); err != nil {
				return err
			}
			row := models.InventoryTransaction{
				Type:          models.TransactionTypeProductionInput,
				BatchId:       batch.ID,
				IngredientId:  req.IngredientId,
				Quantity:      req.Required.Neg(),
				Reason:        "batch " + batch.BatchNumber,
				CorrelationId: correlationId,
				CreatedBy:     createdBy,
			}
			if err := models.RecordInventoryTransaction(tx, ctx, &row); err != nil {
				return err
			}
			ingredient := ingredients[req.IngredientId]
			deltas = append(deltas, models.RemoteStockDelta{
				ExternalItemId: remoteItemId(ingredient.ExternalSystemId, ingredient.Sku),
				Quantity:       req.Required.Neg().String(),
			})
		}
		return nil
	})
	if err != nil {
		// Stock never moved; remove the shell batch so a retry starts clean.
		db.WithContext(ctx).Where("batch_id = ?", batch.ID).Delete(&models.WorkOrder{})
		db.WithContext(ctx).Delete(&models.Batch{}, batch.ID)
		return nil, err
	}

	result.Warnings = append(result.Warnings,
		pushOrEnqueue(ctx, gateway, batch.ID, deltas, correlationId)...)
	return result, nil
}

// UpdateBatchStatus moves a batch through its lifecycle. Completing a batch
// records actual output, credits the product, and mirrors both to the remote.
func UpdateBatchStatus(ctx context.Context, gateway netsuite.Gateway, batchId int, update models.BatchStatusUpdate, userName string) (*BatchResult, error) {
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}
	batch, err := models.GetBatch(ctx, batchId)
	if err != nil {
		return nil, err
	}
	if err := models.AttemptTransition(batch.Status, update.Status); err != nil {
		return nil, err
	}
	if err := governance.Consume(ctx, governance.OpUpdate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	result := &BatchResult{Batch: batch}
	db := config.GetDB()

	switch update.Status {
	case models.BatchStatusCompleted:
		if update.ActualQuantity == nil || update.ActualQuantity.LessThanOrEqual(decimal.Zero) {
			return nil, utils.NewValidationError("completing a batch requires a positive actual quantity")
		}
		actual := *update.ActualQuantity
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			updates := map[string]interface{}{
				"status":          models.BatchStatusCompleted,
				"actual_quantity": actual,
				"end_date":        now,
			}
			if update.QcStatus != "" {
				updates["qc_status"] = update.QcStatus
			}
			if update.Notes != "" {
				updates["notes"] = update.Notes
			}
			if err := guardedStatusUpdate(tx, ctx, batch, updates); err != nil {
				return err
			}
			row := models.InventoryTransaction{
				Type:          models.TransactionTypeProductionOutput,
				BatchId:       batch.ID,
				ProductId:     batch.ProductId,
				Quantity:      actual,
				Reason:        "batch " + batch.BatchNumber + " completed",
				CorrelationId: correlationId,
				CreatedBy:     userName,
			}
			if err := models.RecordInventoryTransaction(tx, ctx, &row); err != nil {
				return err
			}
			return models.IncrementProductStock(tx, ctx, batch.ProductId, actual)
		})
		if err != nil {
			return nil, err
		}
		batch.Status = models.BatchStatusCompleted
		batch.ActualQuantity = &actual
		batch.EndDate = &now

		if product, perr := models.GetProduct(ctx, batch.ProductId); perr == nil {
			deltas := []models.RemoteStockDelta{{
				ExternalItemId: remoteItemId(product.ExternalSystemId, product.Sku),
				Quantity:       actual.String(),
			}}
			result.Warnings = append(result.Warnings,
				pushOrEnqueue(ctx, gateway, batch.ID, deltas, correlationId)...)
		}
		result.Warnings = append(result.Warnings,
			syncWorkOrderStatus(ctx, gateway, batch.ID, models.WorkOrderStatusClosed)...)

	case models.BatchStatusProcessing:
		updates := map[string]interface{}{
			"status":     models.BatchStatusProcessing,
			"start_date": now,
		}
		if update.Notes != "" {
			updates["notes"] = update.Notes
		}
		if err := guardedStatusUpdate(db, ctx, batch, updates); err != nil {
			return nil, err
		}
		batch.Status = models.BatchStatusProcessing
		batch.StartDate = &now
		result.Warnings = append(result.Warnings,
			syncWorkOrderStatus(ctx, gateway, batch.ID, models.WorkOrderStatusInProgress)...)

	case models.BatchStatusCancelled:
		updates := map[string]interface{}{
			"status":   models.BatchStatusCancelled,
			"end_date": now,
		}
		if update.Notes != "" {
			updates["notes"] = update.Notes
		}
		if err := guardedStatusUpdate(db, ctx, batch, updates); err != nil {
			return nil, err
		}
		batch.Status = models.BatchStatusCancelled
		batch.EndDate = &now
		result.Warnings = append(result.Warnings,
			syncWorkOrderStatus(ctx, gateway, batch.ID, models.WorkOrderStatusCancelled)...)

	default: // qc_failed, reprocessing
		updates := map[string]interface{}{"status": update.Status}
		if update.Status == models.BatchStatusQcFailed {
			updates["qc_status"] = models.QcStatusFailed
		}
		if update.Notes != "" {
			updates["notes"] = update.Notes
		}
		if err := guardedStatusUpdate(db, ctx, batch, updates); err != nil {
			return nil, err
		}
		batch.Status = update.Status
	}

	return result, nil
}

// guardedStatusUpdate applies a status change only while the batch still
// holds the status the transition was validated against. Zero rows affected
// means a concurrent writer moved the batch first; without the guard two
// racing completes would each append an output row and credit the product.
func guardedStatusUpdate(tx *gorm.DB, ctx context.Context, batch *models.Batch, updates map[string]interface{}) error {
	res := tx.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ? AND status = ?", batch.ID, batch.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewAppError(utils.KindInvalidTransition,
			"batch "+batch.BatchNumber+" is no longer "+string(batch.Status))
	}
	return nil
}

// DeleteBatch removes a pending or processing batch and returns its consumed
// stock. Restoration replays the batch's own ledger rows, not the current
// recipe, so a recipe edited since creation cannot skew the refund. Ledger
// rows stay; each refund writes an offsetting reversal row, keeping the
// production_input sum an honest record of what the batch consumed.
func DeleteBatch(ctx context.Context, gateway netsuite.Gateway, batchId int, userName string) (*BatchResult, error) {
	batch, err := models.GetBatch(ctx, batchId)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusPending && batch.Status != models.BatchStatusProcessing {
		return nil, utils.NewAppError(utils.KindInvalidTransition,
			fmt.Sprintf("cannot delete a batch in status %s", batch.Status))
	}
	if err := governance.Consume(ctx, governance.OpDelete); err != nil {
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	var deltas []models.RemoteStockDelta
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inputs, err := models.BatchInputTransactions(tx, ctx, batch.ID)
		if err != nil {
			return err
		}
		byIngredient := map[int]decimal.Decimal{}
		for _, row := range inputs {
			byIngredient[row.IngredientId] = byIngredient[row.IngredientId].Add(row.Quantity.Neg())
		}
		for ingredientId, consumed := range byIngredient {
			if consumed.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if err := models.RestoreIngredientStock(tx, ctx, ingredientId, consumed); err != nil {
				return err
			}
			row := models.InventoryTransaction{
				Type:          models.TransactionTypeReversal,
				BatchId:       batch.ID,
				IngredientId:  ingredientId,
				Quantity:      consumed,
				Reason:        "batch " + batch.BatchNumber + " deleted",
				CorrelationId: correlationId,
				CreatedBy:     userName,
			}
			if err := models.RecordInventoryTransaction(tx, ctx, &row); err != nil {
				return err
			}
			var ingredient models.Ingredient
			if err := tx.First(&ingredient, ingredientId).Error; err != nil {
				return err
			}
			deltas = append(deltas, models.RemoteStockDelta{
				ExternalItemId: remoteItemId(ingredient.ExternalSystemId, ingredient.Sku),
				Quantity:       consumed.String(),
			})
		}
		if err := tx.Where("batch_id = ?", batch.ID).Delete(&models.WorkOrder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Batch{}, batch.ID).Error
	})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Batch: batch}
	result.Warnings = append(result.Warnings,
		pushOrEnqueue(ctx, gateway, batch.ID, deltas, correlationId)...)
	return result, nil
}

// pushOrEnqueue tries a direct remote push, falling back to the outbox so the
// remote eventually converges. Returns warnings, never an error.
func pushOrEnqueue(ctx context.Context, gateway netsuite.Gateway, batchId int, deltas []models.RemoteStockDelta, correlationId string) []string {
	if len(deltas) == 0 {
		return nil
	}
	remote := make([]netsuite.InventoryDelta, 0, len(deltas))
	for _, d := range deltas {
		remote = append(remote, netsuite.InventoryDelta{Item: d.ExternalItemId, Quantity: d.Quantity})
	}
	pushErr := gateway.PushInventory(ctx, remote)
	if pushErr == nil {
		return nil
	}
	logWarn("pushOrEnqueue", "direct inventory push", batchId, pushErr)

	payload := models.RemotePushPayload{Deltas: deltas, CorrelationId: correlationId}
	if err := models.EnqueueRemotePush(config.GetDB(), ctx, models.RemotePushKindInventory, batchId, payload); err != nil {
		logWarn("pushOrEnqueue", "outbox enqueue", batchId, err)
		return []string{"inventory push failed and could not be queued: " + err.Error()}
	}
	return []string{"inventory push deferred to retry queue: " + pushErr.Error()}
}

// syncWorkOrderStatus mirrors a batch status change onto the remote work
// order, best effort.
func syncWorkOrderStatus(ctx context.Context, gateway netsuite.Gateway, batchId int, status models.WorkOrderStatus) []string {
	wo, err := models.GetWorkOrderByBatch(ctx, batchId)
	if err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			return nil
		}
		return []string{"work order lookup failed: " + err.Error()}
	}
	if wo.ExternalId == "" {
		// Backfill job owes the remote a work order; nothing to update yet.
		if err := models.UpdateWorkOrderMirror(ctx, batchId, "", status, wo.LastPushErr); err != nil {
			return []string{"work order mirror update failed: " + err.Error()}
		}
		return nil
	}
	if err := gateway.UpdateWorkOrderStatus(ctx, wo.ExternalId, string(status)); err != nil {
		logWarn("syncWorkOrderStatus", "remote work order update", batchId, err)
		_ = models.UpdateWorkOrderMirror(ctx, batchId, wo.ExternalId, status, err.Error())
		return []string{"work order status not updated in external system: " + err.Error()}
	}
	if err := models.UpdateWorkOrderMirror(ctx, batchId, wo.ExternalId, status, ""); err != nil {
		return []string{"work order mirror update failed: " + err.Error()}
	}
	return nil
}

// BuildWorkOrderRequest reconstructs the remote work order payload for an
// existing batch, used by the backfill job when the create-time attempt
// failed.
func BuildWorkOrderRequest(ctx context.Context, batch *models.Batch) (netsuite.WorkOrderRequest, error) {
	recipe, err := models.GetRecipe(ctx, batch.RecipeId)
	if err != nil {
		return netsuite.WorkOrderRequest{}, err
	}
	product, err := models.GetProduct(ctx, batch.ProductId)
	if err != nil {
		return netsuite.WorkOrderRequest{}, err
	}
	ingredients, err := loadRecipeIngredients(ctx, recipe)
	if err != nil {
		return netsuite.WorkOrderRequest{}, err
	}
	requirements, err := BuildRequirements(recipe, ingredients, batch.PlannedQuantity)
	if err != nil {
		return netsuite.WorkOrderRequest{}, err
	}
	req := netsuite.WorkOrderRequest{
		BatchNumber: batch.BatchNumber,
		Item:        product.Sku,
		Quantity:    batch.PlannedQuantity,
	}
	for _, r := range requirements {
		req.Components = append(req.Components, netsuite.WorkOrderComponent{Item: r.Sku, Quantity: r.Required})
	}
	return req, nil
}

func loadRecipeIngredients(ctx context.Context, recipe *models.Recipe) (map[int]*models.Ingredient, error) {
	ingredients := make(map[int]*models.Ingredient, len(recipe.Items))
	for _, item := range recipe.Items {
		ingredient, err := models.GetIngredient(ctx, item.IngredientId)
		if err != nil {
			return nil, err
		}
		ingredients[item.IngredientId] = ingredient
	}
	return ingredients, nil
}

// remoteItemId prefers the mapped external id, falling back to the sku.
func remoteItemId(externalId, sku string) string {
	if externalId != "" {
		return externalId
	}
	return sku
}

func logWarn(funcName string, step string, data interface{}, err error) {
	logger := config.GetLogger()
	config.LogError(logger, "workflow", funcName, step, data, err)
}
