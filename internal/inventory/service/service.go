package service

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/shared/notify"
)

// Services 库存引擎服务集合。所有写路径共享同一把互斥锁，
// 保证触及重叠部件的消耗/冲销/开料事务串行化。
type Services struct {
	Inventory *InventoryService
	Consume   *ConsumeService
	Yield     *YieldService
	Capacity  *CapacityService
	Report    *ReportService
	Gate      *LowStockGate
}

func NewServices(db *gorm.DB, repos *repository.Repositories, registry *recipe.Registry, gate *LowStockGate, notifier notify.Notifier, logger *zap.Logger) *Services {
	var writeMu sync.Mutex

	capacity := NewCapacityService(repos, registry)
	return &Services{
		Inventory: NewInventoryService(db, repos, registry, &writeMu),
		Consume:   NewConsumeService(db, repos, registry, gate, notifier, logger, &writeMu),
		Yield:     NewYieldService(db, repos, registry, gate, logger, &writeMu),
		Capacity:  capacity,
		Report:    NewReportService(repos, registry, capacity),
		Gate:      gate,
	}
}
