package models

import (
	"context"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryTransaction is the append-only stock ledger. Quantity is signed:
// negative for consumption, positive for output and upward adjustments. Rows
// are never updated or deleted; reversals get their own rows.
type InventoryTransaction struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Type          TransactionType `gorm:"index;size:30;not null" json:"type"`
	BatchId       int             `gorm:"index" json:"batch_id"`
	IngredientId  int             `gorm:"index" json:"ingredient_id"`
	ProductId     int             `gorm:"index" json:"product_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason        string          `gorm:"size:255" json:"reason"`
	CorrelationId string          `gorm:"index;size:100" json:"correlation_id"`
	CreatedBy     string          `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func RecordInventoryTransaction(tx *gorm.DB, ctx context.Context, row *InventoryTransaction) error {
	return tx.WithContext(ctx).Create(row).Error
}

// BatchInputTransactions returns the production_input rows of a batch, the
// authoritative record of what the batch actually consumed.
func BatchInputTransactions(tx *gorm.DB, ctx context.Context, batchId int) ([]InventoryTransaction, error) {
	var rows []InventoryTransaction
	err := tx.WithContext(ctx).
		Where("batch_id = ? AND type = ?", batchId, TransactionTypeProductionInput).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func ListInventoryTransactions(ctx context.Context, batchId int, page int, limit int) ([]InventoryTransaction, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if page <= 0 {
		page = 1
	}
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&InventoryTransaction{})
	if batchId > 0 {
		query = query.Where("batch_id = ?", batchId)
	}
	var rows []InventoryTransaction
	err := query.
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// AuditAdjustedToday reports whether an audit row was already written for the
// ingredient in the given UTC day, keeping the daily audit idempotent.
func AuditAdjustedToday(ctx context.Context, ingredientId int, now time.Time) (bool, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&InventoryTransaction{}).
		Where("ingredient_id = ? AND type = ? AND created_at >= ?",
			ingredientId, TransactionTypeAudit, dayStart).
		Count(&count).Error
	return count > 0, err
}
