package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
)

type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// WithTx 返回绑定到事务的仓库实例
func (r *CompletionRepository) WithTx(tx *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: tx}
}

func (r *CompletionRepository) Create(c *entity.Completion) error {
	return r.db.Create(c).Error
}

// GetBySerial 按序列号查完工记录；不存在返回 (nil, nil)
func (r *CompletionRepository) GetBySerial(serial string) (*entity.Completion, error) {
	var c entity.Completion
	err := r.db.Where("serial = ?", serial).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete 冲销时删除完工记录
func (r *CompletionRepository) Delete(id string) error {
	return r.db.Delete(&entity.Completion{}, "id = ?", id).Error
}

// MaxBase 某机型已用的最大序列号编号，无记录返回0
func (r *CompletionRepository) MaxBase(unitType string) (int, error) {
	var result struct{ Max int }
	err := r.db.Model(&entity.Completion{}).
		Select("COALESCE(MAX(base_number), 0) as max").
		Where("unit_type = ?", unitType).
		Scan(&result).Error
	return result.Max, err
}

// List 完工记录列表，最新在前
func (r *CompletionRepository) List(unitType string, page, size int) ([]entity.Completion, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	query := r.db.Model(&entity.Completion{})
	if unitType != "" {
		query = query.Where("unit_type = ?", unitType)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var completions []entity.Completion
	err := query.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&completions).Error
	return completions, total, err
}
