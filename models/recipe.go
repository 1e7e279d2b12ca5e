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

// Recipe is a bill of materials. Yield is the output quantity one full run of
// the recipe produces; per-batch ingredient requirements scale against it.
type Recipe struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	ProductId int             `gorm:"index;not null" json:"product_id" binding:"required"`
	Yield     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"yield" binding:"required"`
	Version   int             `gorm:"not null;default:1" json:"version"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	Items     []RecipeItem    `gorm:"foreignkey:RecipeId" json:"items"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type RecipeItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	RecipeId     int             `gorm:"index;not null" json:"recipe_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity" binding:"required"`
}

type NewRecipe struct {
	Name      string          `json:"name" binding:"required"`
	ProductId int             `json:"product_id" binding:"required"`
	Yield     decimal.Decimal `json:"yield" binding:"required"`
	Items     []NewRecipeItem `json:"items" binding:"required,min=1,dive"`
}

type NewRecipeItem struct {
	IngredientId int             `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
}

// RequiredQuantity scales one recipe item to a planned batch size:
// item quantity * planned / yield.
func RequiredQuantity(itemQty, plannedQty, yield decimal.Decimal) decimal.Decimal {
	return itemQty.Mul(plannedQty).Div(yield)
}

func CreateRecipe(ctx context.Context, input NewRecipe) (*Recipe, error) {
	if err := governance.Consume(ctx, governance.OpCreate); err != nil {
		return nil, err
	}
	if input.Yield.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("recipe yield must be positive")
	}
	for _, item := range input.Items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, utils.NewValidationError("recipe item quantity must be positive")
		}
	}
	if err := utils.ValidateResourceId[Product](ctx, input.ProductId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewNotFoundError("product")
		}
		return nil, err
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Ingredient](ctx, item.IngredientId); err != nil {
			if err == utils.ErrorRecordNotFound {
				return nil, utils.NewNotFoundError("ingredient")
			}
			return nil, err
		}
	}

	recipe := Recipe{
		Name:      input.Name,
		ProductId: input.ProductId,
		Yield:     input.Yield,
	}
	for _, item := range input.Items {
		recipe.Items = append(recipe.Items, RecipeItem{
			IngredientId: item.IngredientId,
			Quantity:     item.Quantity,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// GetRecipe loads a recipe with items, redis-cached by id. Recipes are
// read-heavy and only change by versioning, so stale reads are bounded by the
// cache lifespan.
func GetRecipe(ctx context.Context, id int) (*Recipe, error) {
	if err := governance.Consume(ctx, governance.OpRead); err != nil {
		return nil, err
	}
	cached, err := utils.RetrieveRedis[Recipe](id)
	if err == nil && cached != nil {
		return cached, nil
	}

	var recipe Recipe
	db := config.GetDB()
	err = db.WithContext(ctx).Preload("Items").First(&recipe, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("recipe")
		}
		return nil, err
	}
	if err := utils.StoreRedis[Recipe](&recipe, id); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "GetRecipe", "cache store", recipe.ID, err)
	}
	return &recipe, nil
}

func ListRecipes(ctx context.Context, page int, limit int) ([]Recipe, error) {
	if err := governance.Consume(ctx, governance.OpSearch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if page <= 0 {
		page = 1
	}
	var recipes []Recipe
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Items").
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&recipes).Error
	return recipes, err
}

// DeactivateRecipe flips is_active off. Batches already created keep working;
// new batches must reference an active recipe.
func DeactivateRecipe(ctx context.Context, id int) error {
	if err := governance.Consume(ctx, governance.OpUpdate); err != nil {
		return err
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Recipe{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("recipe")
	}
	return utils.RemoveRedis[Recipe](id)
}
