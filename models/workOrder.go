package models

import (
	"context"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrder mirrors the work order the external system holds for a batch.
// ExternalId empty means the remote create never succeeded and the backfill
// job still owes the remote a work order.
type WorkOrder struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BatchId     int             `gorm:"uniqueIndex;not null" json:"batch_id"`
	ExternalId  string          `gorm:"index;size:100" json:"external_id"`
	Status      WorkOrderStatus `gorm:"size:20;not null;default:'planned'" json:"status"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	LastPushErr string          `gorm:"size:255" json:"last_push_err"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateWorkOrderMirror(tx *gorm.DB, ctx context.Context, wo *WorkOrder) error {
	return tx.WithContext(ctx).Create(wo).Error
}

func GetWorkOrderByBatch(ctx context.Context, batchId int) (*WorkOrder, error) {
	var wo WorkOrder
	db := config.GetDB()
	err := db.WithContext(ctx).Where("batch_id = ?", batchId).First(&wo).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("work order")
		}
		return nil, err
	}
	return &wo, nil
}

func UpdateWorkOrderMirror(ctx context.Context, batchId int, externalId string, status WorkOrderStatus, pushErr string) error {
	db := config.GetDB()
	updates := map[string]interface{}{
		"status":        status,
		"last_push_err": pushErr,
	}
	if externalId != "" {
		updates["external_id"] = externalId
	}
	return db.WithContext(ctx).Model(&WorkOrder{}).
		Where("batch_id = ?", batchId).
		Updates(updates).Error
}

// UnsyncedWorkOrders returns mirrors that never reached the remote, for the
// scheduled backfill. Cancelled mirrors are skipped.
func UnsyncedWorkOrders(ctx context.Context, limit int) ([]WorkOrder, error) {
	var orders []WorkOrder
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("external_id = '' AND status <> ?", WorkOrderStatusCancelled).
		Order("id").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
