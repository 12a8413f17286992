package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/service"
)

type YieldHandler struct {
	svc *service.YieldService
}

func NewYieldHandler(svc *service.YieldService) *YieldHandler {
	return &YieldHandler{svc: svc}
}

func (h *YieldHandler) Cut(c *gin.Context) {
	var req service.CutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	userID, _ := c.Get("user_id")
	result, err := h.svc.Cut(c.Request.Context(), req, userID.(string))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}

func (h *YieldHandler) Uncut(c *gin.Context) {
	var req service.CutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	userID, _ := c.Get("user_id")
	result, err := h.svc.Uncut(c.Request.Context(), req, userID.(string))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}
