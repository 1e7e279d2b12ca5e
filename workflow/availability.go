package workflow

import (
	"context"
	"fmt"

	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
)

// Requirement is one ingredient scaled to a planned batch.
type Requirement struct {
	IngredientId int
	Name         string
	Sku          string
	Required     decimal.Decimal
}

// BuildRequirements scales every recipe item to the planned quantity.
func BuildRequirements(recipe *models.Recipe, ingredients map[int]*models.Ingredient, plannedQty decimal.Decimal) ([]Requirement, error) {
	if recipe.Yield.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("recipe yield must be positive")
	}
	requirements := make([]Requirement, 0, len(recipe.Items))
	for _, item := range recipe.Items {
		ingredient, ok := ingredients[item.IngredientId]
		if !ok {
			return nil, utils.NewNotFoundError(fmt.Sprintf("ingredient %d", item.IngredientId))
		}
		requirements = append(requirements, Requirement{
			IngredientId: ingredient.ID,
			Name:         ingredient.Name,
			Sku:          ingredient.Sku,
			Required:     models.RequiredQuantity(item.Quantity, plannedQty, recipe.Yield),
		})
	}
	return requirements, nil
}

// LocalShortfalls compares requirements against current local stock. This is
// advisory; the authoritative guard is the atomic decrement at consumption
// time.
func LocalShortfalls(requirements []Requirement, ingredients map[int]*models.Ingredient) []utils.Shortfall {
	var shortfalls []utils.Shortfall
	for _, req := range requirements {
		ingredient := ingredients[req.IngredientId]
		if ingredient == nil {
			continue
		}
		if ingredient.Stock.LessThan(req.Required) {
			shortfalls = append(shortfalls, utils.Shortfall{
				Ingredient: req.Name,
				Sku:        req.Sku,
				Required:   req.Required,
				Available:  ingredient.Stock,
				Source:     "local",
			})
		}
	}
	return shortfalls
}

// RemoteShortfalls compares requirements against the remote availability
// snapshot. An item the remote does not report counts as zero available.
func RemoteShortfalls(requirements []Requirement, remote []netsuite.ItemAvailability) []utils.Shortfall {
	available := make(map[string]decimal.Decimal, len(remote))
	for _, item := range remote {
		available[item.Sku] = item.Available
	}
	var shortfalls []utils.Shortfall
	for _, req := range requirements {
		got := available[req.Sku]
		if got.LessThan(req.Required) {
			shortfalls = append(shortfalls, utils.Shortfall{
				Ingredient: req.Name,
				Sku:        req.Sku,
				Required:   req.Required,
				Available:  got,
				Source:     "remote",
			})
		}
	}
	return shortfalls
}

// CheckAvailability runs the dual-system availability check for a planned
// batch: local stock first, then the remote. A remote failure here is a hard
// failure so both systems are known consistent before any stock moves.
func CheckAvailability(ctx context.Context, gateway netsuite.Gateway, recipe *models.Recipe, ingredients map[int]*models.Ingredient, plannedQty decimal.Decimal) ([]Requirement, error) {
	requirements, err := BuildRequirements(recipe, ingredients, plannedQty)
	if err != nil {
		return nil, err
	}
	if shortfalls := LocalShortfalls(requirements, ingredients); len(shortfalls) > 0 {
		return nil, utils.NewInsufficientStockError(shortfalls)
	}

	skus := make([]string, 0, len(requirements))
	for _, req := range requirements {
		skus = append(skus, req.Sku)
	}
	remote, err := gateway.GetItemAvailability(ctx, skus)
	if err != nil {
		return nil, err
	}
	if shortfalls := RemoteShortfalls(requirements, remote); len(shortfalls) > 0 {
		return nil, utils.NewInsufficientRemoteStockError(shortfalls)
	}
	return requirements, nil
}
