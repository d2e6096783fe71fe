package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
)

type TransactionHandler struct {
	service *services.TransactionService
	loc     *time.Location
}

func NewTransactionHandler(service *services.TransactionService, loc *time.Location) *TransactionHandler {
	return &TransactionHandler{service: service, loc: loc}
}

func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	f, err := ledger.ParseFilter("", "", c.Query("dateRange"), c.Query("startDate"), c.Query("endDate"), h.loc)
	if err != nil {
		respondError(c, err)
		return
	}
	q := services.TransactionQuery{
		Range:  f,
		Type:   models.TransactionType(c.Query("type")),
		Search: c.Query("search"),
	}
	if raw := c.Query("category"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category must be a numeric id"})
			return
		}
		cid := uint(id)
		q.CategoryID = &cid
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	txs, total, err := h.service.List(userID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": total})
}

func (h *TransactionHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.TransactionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tx, err := h.service.Create(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

type transactionUpdateRequest struct {
	ID uint `json:"id" binding:"required"`
	services.TransactionPatch
}

func (h *TransactionHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req transactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tx, err := h.service.Update(userID, req.ID, req.TransactionPatch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Delete(userID, req.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}
