package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/Vatscode/Mini-ERP/workflow"
)

// respondError maps the error taxonomy onto HTTP. Unclassified errors are
// internal and deliberately unspecific in the response body.
func respondError(c *gin.Context, err error) {
	kind := utils.KindOf(err)
	if kind == "" {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error(), "kind": kind}
	var appErr *utils.AppError
	if errors.As(err, &appErr) && len(appErr.Shortfalls) > 0 {
		body["shortfalls"] = appErr.Shortfalls
	}
	c.JSON(utils.HTTPStatus(kind), body)
}

func userName(c *gin.Context) string {
	name, _ := utils.GetUserNameFromContext(c.Request.Context())
	return name
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func registerBatchRoutes(r *gin.Engine, gateway netsuite.Gateway) {
	r.POST("/batches", func(c *gin.Context) {
		var input models.NewBatch
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		result, err := workflow.CreateBatch(c.Request.Context(), gateway, input, userName(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	r.GET("/batches", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		recipeId, _ := strconv.Atoi(c.DefaultQuery("recipe_id", "0"))
		filter := models.BatchFilter{
			Status:   models.BatchStatus(c.Query("status")),
			RecipeId: recipeId,
			Page:     page,
			Limit:    limit,
		}
		batches, total, err := models.ListBatches(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"batches": batches, "total": total})
	})

	r.GET("/batches/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		batch, err := models.GetBatch(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	})

	r.GET("/batches/number/:number", func(c *gin.Context) {
		batch, err := models.GetBatchByNumber(c.Request.Context(), c.Param("number"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	})

	r.PUT("/batches/:id/status", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var update models.BatchStatusUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			respondError(c, utils.NewValidationError(err.Error()))
			return
		}
		result, err := workflow.UpdateBatchStatus(c.Request.Context(), gateway, id, update, userName(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.DELETE("/batches/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := workflow.DeleteBatch(c.Request.Context(), gateway, id, userName(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.GET("/batches/:id/work-order", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		wo, err := models.GetWorkOrderByBatch(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, wo)
	})
}
