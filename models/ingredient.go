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

type Ingredient struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku              string          `gorm:"uniqueIndex;size:100;not null" json:"sku" binding:"required"`
	Unit             string          `gorm:"size:20;not null;default:'kg'" json:"unit"`
	Stock            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock"`
	MinStock         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_stock"`
	ExternalSystemId string          `gorm:"index;size:100" json:"external_system_id"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name             string          `json:"name" binding:"required"`
	Sku              string          `json:"sku" binding:"required"`
	Unit             string          `json:"unit"`
	Stock            decimal.Decimal `json:"stock"`
	MinStock         decimal.Decimal `json:"min_stock"`
	ExternalSystemId string          `json:"external_system_id"`
}

func CreateIngredient(ctx context.Context, input NewIngredient) (*Ingredient, error) {
	if err := governance.Consume(ctx, governance.OpCreate); err != nil {
		return nil, err
	}
	if input.Unit == "" {
		input.Unit = "kg"
	}
	ingredient := Ingredient{
		Name:             input.Name,
		Sku:              input.Sku,
		Unit:             input.Unit,
		Stock:            input.Stock,
		MinStock:         input.MinStock,
		ExternalSystemId: input.ExternalSystemId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func GetIngredient(ctx context.Context, id int) (*Ingredient, error) {
	if err := governance.Consume(ctx, governance.OpRead); err != nil {
		return nil, err
	}
	var ingredient Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).First(&ingredient, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("ingredient")
		}
		return nil, err
	}
	return &ingredient, nil
}

func ListIngredients(ctx context.Context, page int, limit int) ([]Ingredient, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if page <= 0 {
		page = 1
	}
	var ingredients []Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&ingredients).Error
	return ingredients, err
}

// DecrementIngredientStock subtracts qty atomically. The WHERE guard makes
// the decrement and the availability check one statement, so two concurrent
// batches cannot both drain the same stock.
func DecrementIngredientStock(tx *gorm.DB, ctx context.Context, id int, qty decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&Ingredient{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var ingredient Ingredient
		if err := tx.WithContext(ctx).First(&ingredient, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.NewNotFoundError("ingredient")
			}
			return err
		}
		return utils.NewInsufficientStockError([]utils.Shortfall{{
			Ingredient: ingredient.Name,
			Sku:        ingredient.Sku,
			Required:   qty,
			Available:  ingredient.Stock,
			Source:     "local",
		}})
	}
	return nil
}

// RestoreIngredientStock adds qty back, used when a batch is deleted.
func RestoreIngredientStock(tx *gorm.DB, ctx context.Context, id int, qty decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&Ingredient{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// LowStockIngredients returns active ingredients at or below their minimum.
func LowStockIngredients(ctx context.Context) ([]Ingredient, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	var ingredients []Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("is_active = true AND stock <= min_stock").
		Order("id").
		Find(&ingredients).Error
	return ingredients, err
}
