package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/utils"
)

func pagination(c *gin.Context) (page int, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	return page, limit
}

func registerInventoryRoutes(r *gin.Engine) {
	r.POST("/ingredients", func(c *gin.Context) {
		var input models.NewIngredient
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		ingredient, err := models.CreateIngredient(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ingredient)
	})

	r.GET("/ingredients", func(c *gin.Context) {
		page, limit := pagination(c)
		ingredients, err := models.ListIngredients(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredients)
	})

	r.GET("/ingredients/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ingredient, err := models.GetIngredient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredient)
	})

	r.POST("/products", func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	})

	r.GET("/products", func(c *gin.Context) {
		page, limit := pagination(c)
		products, err := models.ListProducts(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	})

	r.GET("/products/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	})

	r.POST("/recipes", func(c *gin.Context) {
		var input models.NewRecipe
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		recipe, err := models.CreateRecipe(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, recipe)
	})

	r.GET("/recipes", func(c *gin.Context) {
		page, limit := pagination(c)
		recipes, err := models.ListRecipes(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, recipes)
	})

	r.GET("/recipes/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		recipe, err := models.GetRecipe(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, recipe)
	})

	r.DELETE("/recipes/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeactivateRecipe(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/inventory/transactions", func(c *gin.Context) {
		page, limit := pagination(c)
		batchId, _ := strconv.Atoi(c.DefaultQuery("batch_id", "0"))
		rows, err := models.ListInventoryTransactions(c.Request.Context(), batchId, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	})

	// Ops tooling: inspect and replay the remote push outbox.
	r.GET("/internal/ops/remote-push/status", func(c *gin.Context) {
		summary, err := models.RemotePushStatusSummary(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	r.POST("/internal/ops/remote-push/replay", func(c *gin.Context) {
		var req struct {
			Ids []int `json:"ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		replayed, err := models.ReplayDeadRemotePushes(c.Request.Context(), req.Ids)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replayed": replayed})
	})
}
