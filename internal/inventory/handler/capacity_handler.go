package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/service"
)

type CapacityHandler struct {
	svc *service.CapacityService
}

func NewCapacityHandler(svc *service.CapacityService) *CapacityHandler {
	return &CapacityHandler{svc: svc}
}

func (h *CapacityHandler) Capacity(c *gin.Context) {
	unitType := c.Query("unit_type")
	if unitType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": "unit_type不能为空"})
		return
	}
	size := serial.Size(c.DefaultQuery("size", string(serial.SizeStandard)))
	result, err := h.svc.Capacity(unitType, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}

func (h *CapacityHandler) Deficit(c *gin.Context) {
	pair := c.Query("pair")
	if pair == "" {
		// 不指定时返回全部平衡对
		results, err := h.svc.Deficits()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": results})
		return
	}
	result, err := h.svc.Deficit(pair)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 10002, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}
