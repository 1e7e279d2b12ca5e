// seed-demo loads a small demo dataset: two ingredients, one product, and a
// chocolate recipe wired together, ready for batch creation against a dev DB.
//
// Usage (from the repo root):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "seed-demo")

	cocoa, err := ensureIngredient(ctx, models.NewIngredient{
		Name:     "Cocoa Powder",
		Sku:      "ING-COCOA",
		Unit:     "kg",
		Stock:    decimal.NewFromInt(50),
		MinStock: decimal.NewFromInt(10),
	})
	exitOn(err)
	sugar, err := ensureIngredient(ctx, models.NewIngredient{
		Name:     "Sugar",
		Sku:      "ING-SUGAR",
		Unit:     "kg",
		Stock:    decimal.NewFromInt(80),
		MinStock: decimal.NewFromInt(20),
	})
	exitOn(err)

	product, err := ensureProduct(ctx, models.NewProduct{
		Name: "Dark Chocolate Bar",
		Sku:  "PROD-CHOC-DARK",
		Unit: "unit",
	})
	exitOn(err)

	var count int64
	exitOn(db.WithContext(ctx).Model(&models.Recipe{}).Where("product_id = ?", product.ID).Count(&count).Error)
	if count == 0 {
		// Yield 100 bars per 0.7kg cocoa + 0.3kg sugar.
		_, err = models.CreateRecipe(ctx, models.NewRecipe{
			Name:      "Dark Chocolate 70%",
			ProductId: product.ID,
			Yield:     decimal.NewFromInt(100),
			Items: []models.NewRecipeItem{
				{IngredientId: cocoa.ID, Quantity: decimal.NewFromFloat(0.7)},
				{IngredientId: sugar.ID, Quantity: decimal.NewFromFloat(0.3)},
			},
		})
		exitOn(err)
	}

	fmt.Println("demo data seeded")
}

func ensureIngredient(ctx context.Context, input models.NewIngredient) (*models.Ingredient, error) {
	db := config.GetDB()
	var existing models.Ingredient
	err := db.WithContext(ctx).Where("sku = ?", input.Sku).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	return models.CreateIngredient(ctx, input)
}

func ensureProduct(ctx context.Context, input models.NewProduct) (*models.Product, error) {
	db := config.GetDB()
	var existing models.Product
	err := db.WithContext(ctx).Where("sku = ?", input.Sku).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	return models.CreateProduct(ctx, input)
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
