package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finlog/backend/internal/services"
)

type BudgetHandler struct {
	budgets *services.BudgetService
	limits  *services.CategoryLimitService
}

func NewBudgetHandler(budgets *services.BudgetService, limits *services.CategoryLimitService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, limits: limits}
}

func (h *BudgetHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	b, err := h.budgets.Get(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type setBudgetRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

func (h *BudgetHandler) Set(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req setBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.budgets.Set(userID, *req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListLimits handles GET /budget/limits and returns {"<category_id>": limit}.
func (h *BudgetHandler) ListLimits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limits, err := h.limits.List(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make(map[string]float64, len(limits))
	for id, amount := range limits {
		out[strconv.FormatUint(uint64(id), 10)] = amount
	}
	c.JSON(http.StatusOK, out)
}

type setLimitRequest struct {
	CategoryID uint     `json:"categoryId" binding:"required"`
	Limit      *float64 `json:"limit" binding:"required"`
}

func (h *BudgetHandler) SetLimit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req setLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.limits.Set(userID, req.CategoryID, *req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_id": snap.CategoryID, "limit": snap.LimitAmount})
}
