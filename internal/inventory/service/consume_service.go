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
	"github.com/bitfantasy/nimo-inventory/internal/shared/notify"
)

// ConsumeService 消耗事务执行器。完工事件按配方原子扣料：
// 全部部件校验通过才写台账，任何一项不足则整笔拒绝。
type ConsumeService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	registry *recipe.Registry
	gate     *LowStockGate
	notifier notify.Notifier
	logger   *zap.Logger

	// 写路径互斥锁，与开料引擎共享：重叠部件的并发事务必须串行化，
	// 避免两笔都按过期读数通过校验导致库存为负
	mu *sync.Mutex
}

func NewConsumeService(db *gorm.DB, repos *repository.Repositories, registry *recipe.Registry, gate *LowStockGate, notifier notify.Notifier, logger *zap.Logger, mu *sync.Mutex) *ConsumeService {
	return &ConsumeService{
		db:       db,
		repos:    repos,
		registry: registry,
		gate:     gate,
		notifier: notifier,
		logger:   logger,
		mu:       mu,
	}
}

type ConsumeRequest struct {
	UnitType string `json:"unit_type" binding:"required"`
	Serial   string `json:"serial" binding:"required"`
}

// ConsumeResult 扣料结果：解码后的构型与收集到的低库存告警
type ConsumeResult struct {
	Serial   string       `json:"serial"`
	UnitType string       `json:"unit_type"`
	Size     serial.Size  `json:"size"`
	Color    serial.Color `json:"color"`
	Warnings []*Warning   `json:"warnings,omitempty"`
}

type deduction struct {
	part     string
	oldCount float64
	newCount float64
}

// Consume 执行一次完工扣料。尺寸/颜色只从序列号解码一次，
// 后续全程传递类型化的构型，不再二次解析字符串。
func (s *ConsumeService) Consume(ctx context.Context, req ConsumeRequest, userID string) (*ConsumeResult, error) {
	v, err := s.registry.SerialTable().Decode(req.Serial)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &ConsumeResult{
		Serial:   req.Serial,
		UnitType: req.UnitType,
		Size:     v.Size,
		Color:    v.Color,
	}

	// 低库存判定在事务提交之后，回滚的扣减不占用通知节流窗口
	var deductions []deduction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ledger := s.repos.Ledger.WithTx(tx)
		counters := s.repos.Counter.WithTx(tx)
		completions := s.repos.Completion.WithTx(tx)

		existing, err := completions.GetBySerial(req.Serial)
		if err != nil {
			return fmt.Errorf("查询完工记录失败: %w", err)
		}
		if existing != nil {
			return &DuplicateSerialError{Serial: req.Serial}
		}

		items, err := s.registry.Resolve(req.UnitType, v.Size)
		if err != nil {
			return err
		}

		now := time.Now()

		// 第一阶段：全部校验，不写任何快照
		var rolls []*entity.ConsumableRoll
		for _, it := range items {
			if it.WrapEvery > 0 {
				roll, err := ledger.GetOrCreateRoll(it.Part, it.WrapEvery)
				if err != nil {
					return fmt.Errorf("读取耗材卷计数失败: %w", err)
				}
				// 计数为0表示要开新卷，整卷扣减一次
				if roll.UsedCount == 0 {
					stock, err := ledger.Current(it.Part)
					if err != nil {
						return fmt.Errorf("读取库存失败: %w", err)
					}
					if stock < 1 {
						return &InsufficientStockError{Part: it.Part, Required: 1, Available: stock}
					}
					deductions = append(deductions, deduction{part: it.Part, oldCount: stock, newCount: stock - 1})
				}
				rolls = append(rolls, roll)
				continue
			}
			if it.Qty <= 0 {
				continue
			}
			stock, err := ledger.Current(it.Part)
			if err != nil {
				return fmt.Errorf("读取库存失败: %w", err)
			}
			if stock < it.Qty {
				return &InsufficientStockError{Part: it.Part, Required: it.Qty, Available: stock}
			}
			deductions = append(deductions, deduction{part: it.Part, oldCount: stock, newCount: stock - it.Qty})
		}

		// 第二阶段：提交扣减
		for _, d := range deductions {
			if err := ledger.Record(d.part, d.newCount, now, entity.RefTypeConsume, req.Serial, userID); err != nil {
				return fmt.Errorf("写入台账失败: %w", err)
			}
		}
		for _, roll := range rolls {
			roll.UsedCount++
			if roll.UsedCount >= roll.Capacity {
				roll.UsedCount = 0
			}
			if err := ledger.SaveRoll(roll); err != nil {
				return fmt.Errorf("保存耗材卷计数失败: %w", err)
			}
		}

		if err := counters.Increment(req.UnitType, string(v.Size), string(v.Color)); err != nil {
			return fmt.Errorf("成品计数更新失败: %w", err)
		}
		return completions.Create(&entity.Completion{
			ID:         uuid.New().String(),
			Serial:     req.Serial,
			BaseNumber: v.Base,
			UnitType:   req.UnitType,
			Size:       string(v.Size),
			Color:      string(v.Color),
			CreatedBy:  userID,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, d := range deductions {
		if w := s.gate.Evaluate(ctx, d.part, d.oldCount, d.newCount); w != nil {
			result.Warnings = append(result.Warnings, w)
		}
	}
	s.deliverWarnings(result.Warnings)
	return result, nil
}

type ReverseRequest struct {
	UnitType string `json:"unit_type" binding:"required"`
	Serial   string `json:"serial" binding:"required"`
}

// Reverse 冲销一次完工：按序列号解码出的构型解析同一配方，
// 全额回补每个部件并回退成品计数。
func (s *ConsumeService) Reverse(ctx context.Context, req ReverseRequest, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		ledger := s.repos.Ledger.WithTx(tx)
		counters := s.repos.Counter.WithTx(tx)
		completions := s.repos.Completion.WithTx(tx)

		completion, err := completions.GetBySerial(req.Serial)
		if err != nil {
			return fmt.Errorf("查询完工记录失败: %w", err)
		}
		if completion == nil {
			return fmt.Errorf("序列号 %s 没有完工记录", req.Serial)
		}
		if completion.UnitType != req.UnitType {
			return fmt.Errorf("序列号 %s 属于机型 %s，不是 %s", req.Serial, completion.UnitType, req.UnitType)
		}

		items, err := s.registry.Resolve(completion.UnitType, serial.Size(completion.Size))
		if err != nil {
			return err
		}

		now := time.Now()
		for _, it := range items {
			if it.WrapEvery > 0 {
				roll, err := ledger.GetOrCreateRoll(it.Part, it.WrapEvery)
				if err != nil {
					return fmt.Errorf("读取耗材卷计数失败: %w", err)
				}
				// 正向的精确镜像：回退到0表示这台开了新卷，整卷回补
				if roll.UsedCount == 0 {
					roll.UsedCount = roll.Capacity
				}
				roll.UsedCount--
				if roll.UsedCount == 0 {
					stock, err := ledger.Current(it.Part)
					if err != nil {
						return fmt.Errorf("读取库存失败: %w", err)
					}
					if err := ledger.Record(it.Part, stock+1, now, entity.RefTypeReverse, req.Serial, userID); err != nil {
						return fmt.Errorf("写入台账失败: %w", err)
					}
				}
				if err := ledger.SaveRoll(roll); err != nil {
					return fmt.Errorf("保存耗材卷计数失败: %w", err)
				}
				continue
			}
			if it.Qty <= 0 {
				continue
			}
			stock, err := ledger.Current(it.Part)
			if err != nil {
				return fmt.Errorf("读取库存失败: %w", err)
			}
			if err := ledger.Record(it.Part, stock+it.Qty, now, entity.RefTypeReverse, req.Serial, userID); err != nil {
				return fmt.Errorf("写入台账失败: %w", err)
			}
		}

		if err := counters.Decrement(completion.UnitType, completion.Size, completion.Color); err != nil {
			return err
		}
		return completions.Delete(completion.ID)
	})
}

// DecodeSerial 用注册表的后缀表解析序列号。与扣料路径共用同一张表，
// 配置覆盖后缀后两边的分类保持一致。
func (s *ConsumeService) DecodeSerial(sn string) (serial.Variant, error) {
	return s.registry.SerialTable().Decode(sn)
}

// NextSerial 某机型的下一个序列号编号（已用最大编号+1）
func (s *ConsumeService) NextSerial(unitType string, size serial.Size, color serial.Color) (string, error) {
	max, err := s.repos.Completion.MaxBase(unitType)
	if err != nil {
		return "", fmt.Errorf("查询序列号失败: %w", err)
	}
	return s.registry.SerialTable().Encode(serial.Variant{Base: max + 1, Size: size, Color: color}), nil
}

// ListCompletions 完工记录列表
func (s *ConsumeService) ListCompletions(unitType string, page, size int) ([]entity.Completion, int64, error) {
	return s.repos.Completion.List(unitType, page, size)
}

// deliverWarnings 对外推送需要通知的告警。尽力而为，失败不影响已提交的事务。
func (s *ConsumeService) deliverWarnings(warnings []*Warning) {
	for _, w := range warnings {
		if !w.ShouldNotify {
			continue
		}
		w := w
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.Send(ctx, "低库存告警", w.Message); err != nil {
				s.logger.Warn("low-stock notification failed", zap.String("part", w.Part), zap.Error(err))
			}
		}()
	}
}
