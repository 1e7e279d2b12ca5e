package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/sirupsen/logrus"
)

// RunInventoryAudit records an audit ledger row for every ingredient sitting
// at or below its minimum stock, then compares local stock against the remote
// snapshot and logs drift. Audit rows are written at most once per ingredient
// per UTC day so reruns are safe.
func RunInventoryAudit(ctx context.Context, gateway netsuite.Gateway) error {
	logger := config.GetLogger()
	now := time.Now().UTC()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	lowStock, err := models.LowStockIngredients(ctx)
	if err != nil {
		return err
	}
	db := config.GetDB()
	flagged := 0
	for _, ingredient := range lowStock {
		done, err := models.AuditAdjustedToday(ctx, ingredient.ID, now)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		row := models.InventoryTransaction{
			Type:         models.TransactionTypeAudit,
			IngredientId: ingredient.ID,
			Quantity:     ingredient.Stock,
			Reason: fmt.Sprintf("low stock alert: current stock (%s) at or below minimum (%s)",
				ingredient.Stock.String(), ingredient.MinStock.String()),
			CorrelationId: correlationId,
			CreatedBy:     userName,
		}
		if err := models.RecordInventoryTransaction(db, ctx, &row); err != nil {
			return err
		}
		flagged++
	}

	drift, err := auditRemoteDrift(ctx, gateway)
	if err != nil {
		// Remote drift reporting is advisory; the low stock pass already ran.
		logger.WithFields(logrus.Fields{"field": "jobs", "job": "inventory-audit"}).
			Warn("remote drift check skipped: " + err.Error())
		drift = -1
	}

	logger.WithFields(logrus.Fields{
		"field": "jobs", "job": "inventory-audit",
		"low_stock": len(lowStock), "flagged": flagged, "drifted": drift,
	}).Info("inventory audit finished")
	return nil
}

// auditRemoteDrift fetches remote availability for every active ingredient
// and counts items whose local stock disagrees with the remote.
func auditRemoteDrift(ctx context.Context, gateway netsuite.Gateway) (int, error) {
	logger := config.GetLogger()
	var ingredients []models.Ingredient
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("is_active = true").Find(&ingredients).Error; err != nil {
		return 0, err
	}
	if len(ingredients) == 0 {
		return 0, nil
	}
	skus := make([]string, 0, len(ingredients))
	for _, ingredient := range ingredients {
		skus = append(skus, ingredient.Sku)
	}
	remote, err := gateway.GetItemAvailability(ctx, skus)
	if err != nil {
		return 0, err
	}
	available := make(map[string]netsuite.ItemAvailability, len(remote))
	for _, item := range remote {
		available[item.Sku] = item
	}
	drift := 0
	for _, ingredient := range ingredients {
		item, ok := available[ingredient.Sku]
		if !ok {
			continue
		}
		if !item.Available.Equal(ingredient.Stock) {
			drift++
			logger.WithFields(logrus.Fields{
				"field": "jobs", "job": "inventory-audit",
				"sku": ingredient.Sku, "local": ingredient.Stock.String(), "remote": item.Available.String(),
			}).Warn("local and remote stock disagree")
		}
	}
	return drift, nil
}
