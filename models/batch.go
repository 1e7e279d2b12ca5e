package models

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var batchNumberPattern = regexp.MustCompile(`^BATCH-\d{8}-\d{4}$`)

type Batch struct {
	ID              int              `gorm:"primary_key" json:"id"`
	BatchNumber     string           `gorm:"uniqueIndex;size:100;not null" json:"batch_number"`
	RecipeId        int              `gorm:"index;not null" json:"recipe_id"`
	ProductId       int              `gorm:"index;not null" json:"product_id"`
	PlannedQuantity decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"planned_quantity"`
	ActualQuantity  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"actual_quantity"`
	Status          BatchStatus      `gorm:"index;size:20;not null;default:'pending'" json:"status"`
	QcStatus        QcStatus         `gorm:"size:20;not null;default:'pending'" json:"qc_status"`
	Notes           string           `gorm:"type:text" json:"notes"`
	StartDate       *time.Time       `json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	CreatedBy       string           `gorm:"size:100" json:"created_by"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBatch struct {
	RecipeId        int             `json:"recipe_id" binding:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" binding:"required"`
	Notes           string          `json:"notes"`
}

type BatchStatusUpdate struct {
	Status         BatchStatus      `json:"status" binding:"required"`
	ActualQuantity *decimal.Decimal `json:"actual_quantity"`
	QcStatus       QcStatus         `json:"qc_status"`
	Notes          string           `json:"notes"`
}

func ValidBatchNumber(number string) bool {
	return batchNumberPattern.MatchString(number)
}

// GenerateBatchNumber issues BATCH-YYYYMMDD-NNNN where NNNN counts batches
// created that UTC day. The unique index on batch_number is the real guard;
// callers retry once on a duplicate before giving up.
func GenerateBatchNumber(tx *gorm.DB, ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	var count int64
	err := tx.WithContext(ctx).Model(&Batch{}).
		Where("batch_number LIKE ?", "BATCH-"+day+"-%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BATCH-%s-%04d", day, count+1), nil
}

// InsertBatch assigns a batch number and creates the row. The day counter can
// race with a concurrent create, so a duplicate key gets one regenerate-and-
// retry before surfacing as a constraint violation.
func InsertBatch(tx *gorm.DB, ctx context.Context, batch *Batch) error {
	for attempt := 0; attempt < 2; attempt++ {
		number, err := GenerateBatchNumber(tx, ctx, time.Now())
		if err != nil {
			return err
		}
		batch.BatchNumber = number
		err = tx.WithContext(ctx).Create(batch).Error
		if err == nil {
			return nil
		}
		if !isDuplicateKeyError(err) {
			return err
		}
		batch.ID = 0
	}
	return utils.NewAppError(utils.KindConstraintViolation, "could not allocate a unique batch number")
}

func GetBatch(ctx context.Context, id int) (*Batch, error) {
	if err := governance.Consume(ctx, governance.OpRead); err != nil {
		return nil, err
	}
	var batch Batch
	db := config.GetDB()
	err := db.WithContext(ctx).First(&batch, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("batch")
		}
		return nil, err
	}
	return &batch, nil
}

func GetBatchByNumber(ctx context.Context, number string) (*Batch, error) {
	if err := governance.Consume(ctx, governance.OpRead); err != nil {
		return nil, err
	}
	if !ValidBatchNumber(number) {
		return nil, utils.NewValidationError("malformed batch number")
	}
	var batch Batch
	db := config.GetDB()
	err := db.WithContext(ctx).Where("batch_number = ?", number).First(&batch).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("batch")
		}
		return nil, err
	}
	return &batch, nil
}

type BatchFilter struct {
	Status   BatchStatus
	RecipeId int
	Page     int
	Limit    int
}

func ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, int64, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !ValidBatchStatus(filter.Status) {
		return nil, 0, utils.NewValidationError(fmt.Sprintf("unknown batch status %q", filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Batch{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RecipeId > 0 {
		query = query.Where("recipe_id = ?", filter.RecipeId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var batches []Batch
	err := query.
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&batches).Error
	return batches, total, err
}

// StaleProcessingBatches returns batches sitting in processing longer than
// the cutoff, used by the scheduled sweep.
func StaleProcessingBatches(ctx context.Context, cutoff time.Time) ([]Batch, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	var batches []Batch
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", BatchStatusProcessing, cutoff).
		Order("id").
		Find(&batches).Error
	return batches, err
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
