package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
)

// YieldService 出材引擎。一次开料消耗1张板材，按规则产出若干长/短件；
// 冲销是精确镜像，副产品不够回收时整笔拒绝。
type YieldService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	registry *recipe.Registry
	gate     *LowStockGate
	logger   *zap.Logger
	mu       *sync.Mutex
}

func NewYieldService(db *gorm.DB, repos *repository.Repositories, registry *recipe.Registry, gate *LowStockGate, logger *zap.Logger, mu *sync.Mutex) *YieldService {
	return &YieldService{db: db, repos: repos, registry: registry, gate: gate, logger: logger, mu: mu}
}

type CutRequest struct {
	Sheet      string `json:"sheet" binding:"required"`
	Size       string `json:"size" binding:"required"`
	Cut        string `json:"cut" binding:"required,oneof=long short"`
	Multiplier int    `json:"multiplier"`
}

// CutResult 一次开料的台账变动
type CutResult struct {
	Batch    string     `json:"batch"`
	Sheet    string     `json:"sheet"`
	Consumed float64    `json:"consumed"`
	Outputs  []CutLine  `json:"outputs"`
	Warnings []*Warning `json:"warnings,omitempty"`
}

type CutLine struct {
	Part string  `json:"part"`
	Qty  float64 `json:"qty"`
}

// Cut 执行开料：扣板材、按产出表入账。multiplier>1时整批等比放大，同样全有或全无。
func (s *YieldService) Cut(ctx context.Context, req CutRequest, userID string) (*CutResult, error) {
	rule, err := s.registry.Yield(req.Sheet, serial.Size(req.Size), recipe.Cut(req.Cut))
	if err != nil {
		return nil, err
	}
	mult := req.Multiplier
	if mult < 1 {
		mult = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &CutResult{
		Batch:    uuid.New().String()[:8],
		Sheet:    req.Sheet,
		Consumed: float64(mult),
	}

	// 低库存判定在事务提交之后，回滚的扣减不占用通知节流窗口
	var oldSheet, newSheet float64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ledger := s.repos.Ledger.WithTx(tx)

		sheetStock, err := ledger.Current(req.Sheet)
		if err != nil {
			return fmt.Errorf("读取库存失败: %w", err)
		}
		if sheetStock < float64(mult) {
			return &InsufficientStockError{Part: req.Sheet, Required: float64(mult), Available: sheetStock}
		}

		now := time.Now()
		oldSheet, newSheet = sheetStock, sheetStock-float64(mult)
		if err := ledger.Record(req.Sheet, newSheet, now, entity.RefTypeCut, result.Batch, userID); err != nil {
			return fmt.Errorf("写入台账失败: %w", err)
		}

		// 产出各自独立入账，审计时间线能看到来源批次
		for _, out := range rule.Outputs {
			qty := out.Qty * float64(mult)
			cur, err := ledger.Current(out.Part)
			if err != nil {
				return fmt.Errorf("读取库存失败: %w", err)
			}
			if err := ledger.Record(out.Part, cur+qty, now, entity.RefTypeCut, result.Batch, userID); err != nil {
				return fmt.Errorf("写入台账失败: %w", err)
			}
			result.Outputs = append(result.Outputs, CutLine{Part: out.Part, Qty: qty})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if w := s.gate.Evaluate(ctx, req.Sheet, oldSheet, newSheet); w != nil {
		result.Warnings = append(result.Warnings, w)
	}
	return result, nil
}

// Uncut 冲销一次开料：回补板材、收回产出。
// 任一产出的当前库存低于应回收数量（已被独立消耗）则整笔拒绝，绝不部分冲销。
func (s *YieldService) Uncut(ctx context.Context, req CutRequest, userID string) (*CutResult, error) {
	rule, err := s.registry.Yield(req.Sheet, serial.Size(req.Size), recipe.Cut(req.Cut))
	if err != nil {
		return nil, err
	}
	mult := req.Multiplier
	if mult < 1 {
		mult = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &CutResult{
		Batch:    uuid.New().String()[:8],
		Sheet:    req.Sheet,
		Consumed: -float64(mult),
	}

	// 低库存判定在事务提交之后，回滚的扣减不占用通知节流窗口
	type claim struct {
		part     string
		qty      float64
		oldCount float64
	}
	var claims []claim
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ledger := s.repos.Ledger.WithTx(tx)

		// 第一阶段：校验每个产出都够收回
		for _, out := range rule.Outputs {
			qty := out.Qty * float64(mult)
			cur, err := ledger.Current(out.Part)
			if err != nil {
				return fmt.Errorf("读取库存失败: %w", err)
			}
			if cur < qty {
				return &YieldConflictError{Part: out.Part, Required: qty, Available: cur}
			}
			claims = append(claims, claim{part: out.Part, qty: qty, oldCount: cur})
		}

		// 第二阶段：收回产出、回补板材
		now := time.Now()
		for _, cl := range claims {
			if err := ledger.Record(cl.part, cl.oldCount-cl.qty, now, entity.RefTypeUncut, result.Batch, userID); err != nil {
				return fmt.Errorf("写入台账失败: %w", err)
			}
			result.Outputs = append(result.Outputs, CutLine{Part: cl.part, Qty: -cl.qty})
		}

		sheetStock, err := ledger.Current(req.Sheet)
		if err != nil {
			return fmt.Errorf("读取库存失败: %w", err)
		}
		return ledger.Record(req.Sheet, sheetStock+float64(mult), now, entity.RefTypeUncut, result.Batch, userID)
	})
	if err != nil {
		return nil, err
	}

	for _, cl := range claims {
		if w := s.gate.Evaluate(ctx, cl.part, cl.oldCount, cl.oldCount-cl.qty); w != nil {
			result.Warnings = append(result.Warnings, w)
		}
	}
	return result, nil
}
