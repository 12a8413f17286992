package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
)

type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// WithTx 返回绑定到事务的仓库实例
func (r *CounterRepository) WithTx(tx *gorm.DB) *CounterRepository {
	return &CounterRepository{db: tx}
}

// Get 读取成品计数，不存在返回计数为0的空行
func (r *CounterRepository) Get(unitType, size, color string) (*entity.FinishedGoodsCounter, error) {
	var c entity.FinishedGoodsCounter
	err := r.db.Where("unit_type = ? AND size = ? AND color = ?", unitType, size, color).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entity.FinishedGoodsCounter{UnitType: unitType, Size: size, Color: color}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Increment 成品计数+1，行不存在则创建
func (r *CounterRepository) Increment(unitType, size, color string) error {
	res := r.db.Model(&entity.FinishedGoodsCounter{}).
		Where("unit_type = ? AND size = ? AND color = ?", unitType, size, color).
		UpdateColumn("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		c := &entity.FinishedGoodsCounter{
			ID:       uuid.New().String(),
			UnitType: unitType,
			Size:     size,
			Color:    color,
			Count:    1,
		}
		return r.db.Create(c).Error
	}
	return nil
}

// Decrement 成品计数-1，仅当当前计数>0时生效
func (r *CounterRepository) Decrement(unitType, size, color string) error {
	res := r.db.Model(&entity.FinishedGoodsCounter{}).
		Where("unit_type = ? AND size = ? AND color = ? AND count > 0", unitType, size, color).
		UpdateColumn("count", gorm.Expr("count - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("成品计数已为0，无法回退: %s/%s/%s", unitType, size, color)
	}
	return nil
}

// SumByVariant 某机型/尺寸的成品总数（跨颜色汇总，平衡对计算用）
func (r *CounterRepository) SumByVariant(unitType, size string) (int, error) {
	var result struct{ Total int }
	err := r.db.Model(&entity.FinishedGoodsCounter{}).
		Select("COALESCE(SUM(count), 0) as total").
		Where("unit_type = ? AND size = ?", unitType, size).
		Scan(&result).Error
	return result.Total, err
}

// List 全部成品计数（报表用）
func (r *CounterRepository) List() ([]entity.FinishedGoodsCounter, error) {
	var counters []entity.FinishedGoodsCounter
	err := r.db.Order("unit_type, size, color").Find(&counters).Error
	return counters, err
}
