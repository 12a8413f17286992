package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx 返回绑定到事务的仓库实例
func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// Current 当前库存 = 最新快照的数量；无快照视为0。
// 排序规则：先时间降序，再自增ID降序（同一时刻后插入者为准）。
func (r *LedgerRepository) Current(part string) (float64, error) {
	var snap entity.StockSnapshot
	err := r.db.Where("part_name = ?", part).
		Order("recorded_at DESC, id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return snap.Count, nil
}

// CurrentAsOf 指定时点的库存及最后记录时间（审计查询）
func (r *LedgerRepository) CurrentAsOf(part string, at time.Time) (float64, *time.Time, error) {
	var snap entity.StockSnapshot
	err := r.db.Where("part_name = ? AND recorded_at <= ?", part, at).
		Order("recorded_at DESC, id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return snap.Count, &snap.RecordedAt, nil
}

// Record 追加一条快照。不做非负校验，调用方（执行器）负责在写入前验证。
func (r *LedgerRepository) Record(part string, count float64, at time.Time, refType, reference, createdBy string) error {
	snap := &entity.StockSnapshot{
		PartName:   part,
		Count:      count,
		RecordedAt: at,
		RefType:    refType,
		Reference:  reference,
		CreatedBy:  createdBy,
	}
	return r.db.Create(snap).Error
}

// History 某部件的快照时间线，最新在前
func (r *LedgerRepository) History(part string, page, size int) ([]entity.StockSnapshot, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	query := r.db.Model(&entity.StockSnapshot{}).Where("part_name = ?", part)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var snaps []entity.StockSnapshot
	err := query.Order("recorded_at DESC, id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&snaps).Error
	return snaps, total, err
}

// Parts 台账中出现过的全部部件名（报表用）
func (r *LedgerRepository) Parts() ([]string, error) {
	var parts []string
	err := r.db.Model(&entity.StockSnapshot{}).
		Distinct("part_name").
		Order("part_name").
		Pluck("part_name", &parts).Error
	return parts, err
}

// GetOrCreateRoll 读取共享耗材的当前卷计数，不存在则按容量初始化
func (r *LedgerRepository) GetOrCreateRoll(part string, capacity int) (*entity.ConsumableRoll, error) {
	var roll entity.ConsumableRoll
	err := r.db.Where("part_name = ?", part).First(&roll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		roll = entity.ConsumableRoll{PartName: part, UsedCount: 0, Capacity: capacity}
		if err := r.db.Create(&roll).Error; err != nil {
			return nil, err
		}
		return &roll, nil
	}
	if err != nil {
		return nil, err
	}
	// 配置调整后以最新容量为准
	if roll.Capacity != capacity {
		roll.Capacity = capacity
	}
	return &roll, nil
}

// SaveRoll 保存卷计数
func (r *LedgerRepository) SaveRoll(roll *entity.ConsumableRoll) error {
	return r.db.Save(roll).Error
}
