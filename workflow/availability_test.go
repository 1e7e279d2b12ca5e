package workflow

import (
	"testing"

	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Chocolate recipe: 100 bars per run from 0.7kg cocoa and 0.3kg sugar.
func chocolateRecipe() (*models.Recipe, map[int]*models.Ingredient) {
	recipe := &models.Recipe{
		ID:        1,
		ProductId: 10,
		Yield:     dec("100"),
		Items: []models.RecipeItem{
			{RecipeId: 1, IngredientId: 1, Quantity: dec("0.7")},
			{RecipeId: 1, IngredientId: 2, Quantity: dec("0.3")},
		},
	}
	ingredients := map[int]*models.Ingredient{
		1: {ID: 1, Name: "Cocoa Powder", Sku: "ING-COCOA", Stock: dec("50")},
		2: {ID: 2, Name: "Sugar", Sku: "ING-SUGAR", Stock: dec("80")},
	}
	return recipe, ingredients
}

func TestBuildRequirements_ScalesByYield(t *testing.T) {
	recipe, ingredients := chocolateRecipe()

	reqs, err := BuildRequirements(recipe, ingredients, dec("100"))
	if err != nil {
		t.Fatalf("BuildRequirements: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("got %d requirements, want 2", len(reqs))
	}
	// Planned 100 at yield 100: exactly one recipe's worth.
	if !reqs[0].Required.Equal(dec("0.7")) {
		t.Fatalf("cocoa required = %s, want 0.7", reqs[0].Required)
	}
	if !reqs[1].Required.Equal(dec("0.3")) {
		t.Fatalf("sugar required = %s, want 0.3", reqs[1].Required)
	}

	// Planned 250 at yield 100: 2.5 recipes.
	reqs, err = BuildRequirements(recipe, ingredients, dec("250"))
	if err != nil {
		t.Fatalf("BuildRequirements: %v", err)
	}
	if !reqs[0].Required.Equal(dec("1.75")) {
		t.Fatalf("cocoa required = %s, want 1.75", reqs[0].Required)
	}
	if !reqs[1].Required.Equal(dec("0.75")) {
		t.Fatalf("sugar required = %s, want 0.75", reqs[1].Required)
	}
}

func TestBuildRequirements_RejectsZeroYield(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	recipe.Yield = decimal.Zero
	if _, err := BuildRequirements(recipe, ingredients, dec("100")); err == nil {
		t.Fatal("expected error for zero yield")
	}
}

func TestBuildRequirements_MissingIngredient(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	delete(ingredients, 2)
	_, err := BuildRequirements(recipe, ingredients, dec("100"))
	if err == nil {
		t.Fatal("expected error for missing ingredient")
	}
	if utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("kind = %s, want NotFound", utils.KindOf(err))
	}
}

func TestLocalShortfalls(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	ingredients[1].Stock = dec("1")

	reqs, err := BuildRequirements(recipe, ingredients, dec("500"))
	if err != nil {
		t.Fatalf("BuildRequirements: %v", err)
	}
	shortfalls := LocalShortfalls(reqs, ingredients)
	if len(shortfalls) != 1 {
		t.Fatalf("got %d shortfalls, want 1", len(shortfalls))
	}
	sf := shortfalls[0]
	if sf.Sku != "ING-COCOA" || sf.Source != "local" {
		t.Fatalf("unexpected shortfall: %+v", sf)
	}
	if !sf.Required.Equal(dec("3.5")) || !sf.Available.Equal(dec("1")) {
		t.Fatalf("shortfall quantities = %s/%s, want 3.5/1", sf.Required, sf.Available)
	}
}

func TestLocalShortfalls_ExactStockIsEnough(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	ingredients[1].Stock = dec("0.7")
	ingredients[2].Stock = dec("0.3")

	reqs, err := BuildRequirements(recipe, ingredients, dec("100"))
	if err != nil {
		t.Fatalf("BuildRequirements: %v", err)
	}
	if shortfalls := LocalShortfalls(reqs, ingredients); len(shortfalls) != 0 {
		t.Fatalf("exact stock reported shortfalls: %+v", shortfalls)
	}
}

func TestRemoteShortfalls_MissingItemCountsAsZero(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	reqs, err := BuildRequirements(recipe, ingredients, dec("100"))
	if err != nil {
		t.Fatalf("BuildRequirements: %v", err)
	}
	remote := []netsuite.ItemAvailability{
		{Sku: "ING-COCOA", Available: dec("10")},
		// sugar absent from the remote snapshot
	}
	shortfalls := RemoteShortfalls(reqs, remote)
	if len(shortfalls) != 1 {
		t.Fatalf("got %d shortfalls, want 1", len(shortfalls))
	}
	if shortfalls[0].Sku != "ING-SUGAR" || shortfalls[0].Source != "remote" {
		t.Fatalf("unexpected shortfall: %+v", shortfalls[0])
	}
	if !shortfalls[0].Available.IsZero() {
		t.Fatalf("missing remote item available = %s, want 0", shortfalls[0].Available)
	}
}

func TestRequiredQuantity_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 style cases stay exact under decimal arithmetic.
	got := models.RequiredQuantity(dec("0.1"), dec("3"), dec("1"))
	if !got.Equal(dec("0.3")) {
		t.Fatalf("RequiredQuantity = %s, want 0.3", got)
	}
}
