package service

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
)

// InventoryService 台账读侧查询与盘点入库
type InventoryService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	registry *recipe.Registry
	mu       *sync.Mutex
}

func NewInventoryService(db *gorm.DB, repos *repository.Repositories, registry *recipe.Registry, mu *sync.Mutex) *InventoryService {
	return &InventoryService{db: db, repos: repos, registry: registry, mu: mu}
}

// StockView 部件当前库存
type StockView struct {
	Part      string  `json:"part"`
	Count     float64 `json:"count"`
	Threshold int     `json:"threshold"`
}

// Current 当前库存，无快照视为0
func (s *InventoryService) Current(part string) (*StockView, error) {
	count, err := s.repos.Ledger.Current(part)
	if err != nil {
		return nil, fmt.Errorf("读取库存失败: %w", err)
	}
	return &StockView{Part: part, Count: count, Threshold: s.registry.Threshold(part)}, nil
}

// AsOfView 历史时点库存
type AsOfView struct {
	Part           string     `json:"part"`
	Count          float64    `json:"count"`
	AsOf           time.Time  `json:"as_of"`
	LastRecordedAt *time.Time `json:"last_recorded_at,omitempty"`
}

// CurrentAsOf 指定时点的库存（审计查询）
func (s *InventoryService) CurrentAsOf(part string, at time.Time) (*AsOfView, error) {
	count, recordedAt, err := s.repos.Ledger.CurrentAsOf(part, at)
	if err != nil {
		return nil, fmt.Errorf("读取库存失败: %w", err)
	}
	return &AsOfView{Part: part, Count: count, AsOf: at, LastRecordedAt: recordedAt}, nil
}

// History 快照时间线
func (s *InventoryService) History(part string, page, size int) ([]entity.StockSnapshot, int64, error) {
	return s.repos.Ledger.History(part, page, size)
}

type RestockRequest struct {
	Part  string  `json:"part" binding:"required"`
	Count float64 `json:"count" binding:"min=0"`
	Notes string  `json:"notes"`
}

// Restock 盘点入库：直接追加一条新的库存快照。
// 负数计数在绑定层就被拒绝，台账里的快照永远非负。
func (s *InventoryService) Restock(req RestockRequest, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		ledger := s.repos.Ledger.WithTx(tx)
		return ledger.Record(req.Part, req.Count, time.Now(), entity.RefTypeRestock, req.Notes, userID)
	})
}

type UsageOverrideRequest struct {
	UnitType string  `json:"unit_type" binding:"required"`
	Part     string  `json:"part" binding:"required"`
	Qty      float64 `json:"qty" binding:"required,gt=0"`
}

// OverrideUsage 运行期调整单台用量（仅管理员）
func (s *InventoryService) OverrideUsage(req UsageOverrideRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.SetUsage(req.UnitType, req.Part, req.Qty)
}
