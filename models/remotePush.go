package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/utils"
	"gorm.io/gorm"
)

const (
	RemotePushKindInventory = "inventory"
	RemotePushKindWorkOrder = "work_order"
)

// RemotePush is the transactional outbox for remote inventory updates. A row
// is written in the same transaction as the local stock movement it mirrors,
// so a crash between commit and push can never lose the remote update.
type RemotePush struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Kind          string     `gorm:"size:30;not null" json:"kind"`
	BatchId       int        `gorm:"index" json:"batch_id"`
	Payload       []byte     `gorm:"type:json;not null" json:"payload"`
	Status        string     `gorm:"index;size:20;not null;default:'PENDING'" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LastError     *string    `gorm:"size:500" json:"last_error"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RemotePushPayload is what the dispatcher replays against the gateway.
type RemotePushPayload struct {
	Deltas        []RemoteStockDelta `json:"deltas"`
	CorrelationId string             `json:"correlation_id"`
}

// RemoteStockDelta is one signed stock movement keyed by the remote item id.
type RemoteStockDelta struct {
	ExternalItemId string `json:"external_item_id"`
	Quantity       string `json:"quantity"`
}

// EnqueueRemotePush writes an outbox row inside the caller's transaction.
func EnqueueRemotePush(tx *gorm.DB, ctx context.Context, kind string, batchId int, payload RemotePushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := RemotePush{
		Kind:    kind,
		BatchId: batchId,
		Payload: body,
		Status:  RemotePushStatusPending,
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func (r *RemotePush) DecodePayload() (RemotePushPayload, error) {
	var payload RemotePushPayload
	err := json.Unmarshal(r.Payload, &payload)
	return payload, err
}

type RemotePushSummary struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// RemotePushStatusSummary groups outbox rows by status for the ops endpoint.
func RemotePushStatusSummary(ctx context.Context) ([]RemotePushSummary, error) {
	var rows []RemotePushSummary
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&RemotePush{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

// ReplayDeadRemotePushes moves DEAD rows back to PENDING with a reset attempt
// counter so the dispatcher picks them up again. Used by the ops replay
// endpoint after the underlying remote fault is fixed.
func ReplayDeadRemotePushes(ctx context.Context, ids []int) (int64, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&RemotePush{}).
		Where("status = ?", RemotePushStatusDead)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	result := query.Updates(map[string]interface{}{
		"status":          RemotePushStatusPending,
		"attempts":        0,
		"next_attempt_at": nil,
		"last_error":      nil,
		"locked_at":       nil,
		"locked_by":       nil,
	})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 && len(ids) > 0 {
		return 0, utils.NewNotFoundError("dead remote push")
	}
	return result.RowsAffected, nil
}
