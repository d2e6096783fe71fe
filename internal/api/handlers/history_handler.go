package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/services"
)

// HistoryHandler serves the action-history ledger.
type HistoryHandler struct {
	history *services.HistoryService
	undo    *services.UndoService
}

func NewHistoryHandler(history *services.HistoryService, undo *services.UndoService) *HistoryHandler {
	return &HistoryHandler{history: history, undo: undo}
}

// List handles GET /history?actionType=&entityType=&dateRange=&startDate=&endDate=.
func (h *HistoryHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	f, err := ledger.ParseFilter(
		c.Query("actionType"),
		c.Query("entityType"),
		c.Query("dateRange"),
		c.Query("startDate"),
		c.Query("endDate"),
		h.history.Location(),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.history.List(userID, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Add handles POST /history/add.
func (h *HistoryHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.RecordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.history.Record(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          rec.ID,
		"action_type": rec.ActionType,
		"entity_type": rec.EntityType,
		"entity_id":   rec.EntityID,
		"timestamp":   rec.Timestamp,
	})
}

// Undo handles POST /history/undo.
func (h *HistoryHandler) Undo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.undo.Undo(userID, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Action undone",
		"restored_entity": res.Restored,
	})
}
