package models

import (
	"log"

	"github.com/Vatscode/Mini-ERP/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Ingredient{}, &Product{},
		&Recipe{}, &RecipeItem{},
		&Batch{}, &InventoryTransaction{},
		&WorkOrder{}, &RemotePush{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
