package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/service"
)

// Handlers 库存引擎HTTP处理器集合
type Handlers struct {
	Inventory *InventoryHandler
	Consume   *ConsumeHandler
	Yield     *YieldHandler
	Capacity  *CapacityHandler
	Report    *ReportHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Inventory: NewInventoryHandler(services.Inventory),
		Consume:   NewConsumeHandler(services.Consume),
		Yield:     NewYieldHandler(services.Yield),
		Capacity:  NewCapacityHandler(services.Capacity),
		Report:    NewReportHandler(services.Report),
	}
}

// respondError 把引擎的类型化错误映射到HTTP状态码
func respondError(c *gin.Context, err error) {
	var insufficient *service.InsufficientStockError
	var duplicate *service.DuplicateSerialError
	var conflict *service.YieldConflictError

	switch {
	case errors.As(err, &insufficient), errors.As(err, &duplicate), errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": 40901, "message": err.Error()})
	case errors.Is(err, recipe.ErrUnknownRecipe):
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": 50001, "message": err.Error()})
	}
}
