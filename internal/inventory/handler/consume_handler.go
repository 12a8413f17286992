package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/service"
)

type ConsumeHandler struct {
	svc *service.ConsumeService
}

func NewConsumeHandler(svc *service.ConsumeService) *ConsumeHandler {
	return &ConsumeHandler{svc: svc}
}

func (h *ConsumeHandler) Consume(c *gin.Context) {
	var req service.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	userID, _ := c.Get("user_id")
	result, err := h.svc.Consume(c.Request.Context(), req, userID.(string))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}

func (h *ConsumeHandler) Reverse(c *gin.Context) {
	var req service.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	userID, _ := c.Get("user_id")
	if err := h.svc.Reverse(c.Request.Context(), req, userID.(string)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// DecodeSerial 序列号解析为类型化构型
func (h *ConsumeHandler) DecodeSerial(c *gin.Context) {
	v, err := h.svc.DecodeSerial(c.Param("serial"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": gin.H{
		"base":  v.Base,
		"size":  v.Size,
		"color": v.Color,
	}})
}

// NextSerial 某机型的下一个可用序列号
func (h *ConsumeHandler) NextSerial(c *gin.Context) {
	unitType := c.Query("unit_type")
	if unitType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": "unit_type不能为空"})
		return
	}
	size := serial.Size(c.DefaultQuery("size", string(serial.SizeStandard)))
	color := serial.Color(c.DefaultQuery("color", string(serial.ColorDefault)))
	next, err := h.svc.NextSerial(unitType, size, color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": gin.H{"serial": next}})
}

func (h *ConsumeHandler) ListCompletions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	items, total, err := h.svc.ListCompletions(c.Query("unit_type"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": gin.H{"items": items, "total": total, "page": page, "size": size}})
}
