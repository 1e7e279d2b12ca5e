package models

import (
	"context"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku              string          `gorm:"uniqueIndex;size:100;not null" json:"sku" binding:"required"`
	Unit             string          `gorm:"size:20;not null;default:'unit'" json:"unit"`
	Stock            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock"`
	ExternalSystemId string          `gorm:"index;size:100" json:"external_system_id"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name             string          `json:"name" binding:"required"`
	Sku              string          `json:"sku" binding:"required"`
	Unit             string          `json:"unit"`
	Stock            decimal.Decimal `json:"stock"`
	ExternalSystemId string          `json:"external_system_id"`
}

func CreateProduct(ctx context.Context, input NewProduct) (*Product, error) {
	if err := governance.Consume(ctx, governance.OpCreate); err != nil {
		return nil, err
	}
	if input.Unit == "" {
		input.Unit = "unit"
	}
	product := Product{
		Name:             input.Name,
		Sku:              input.Sku,
		Unit:             input.Unit,
		Stock:            input.Stock,
		ExternalSystemId: input.ExternalSystemId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	if err := governance.Consume(ctx, governance.OpRead); err != nil {
		return nil, err
	}
	var product Product
	db := config.GetDB()
	err := db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("product")
		}
		return nil, err
	}
	return &product, nil
}

func ListProducts(ctx context.Context, page int, limit int) ([]Product, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if page <= 0 {
		page = 1
	}
	var products []Product
	db := config.GetDB()
	err := db.WithContext(ctx).
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	return products, err
}

// IncrementProductStock adds finished goods from a completed batch.
func IncrementProductStock(tx *gorm.DB, ctx context.Context, id int, qty decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("product")
	}
	return nil
}
