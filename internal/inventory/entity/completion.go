package entity

import "time"

// FinishedGoodsCounter 成品计数，按（机型、尺寸、颜色）一行。
// 只由完工/冲销修改，任何时刻不为负。
type FinishedGoodsCounter struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UnitType  string    `json:"unit_type" gorm:"size:32;not null;uniqueIndex:idx_inv_counters_key,priority:1"`
	Size      string    `json:"size" gorm:"size:16;not null;uniqueIndex:idx_inv_counters_key,priority:2"`
	Color     string    `json:"color" gorm:"size:16;not null;uniqueIndex:idx_inv_counters_key,priority:3"`
	Count     int       `json:"count" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FinishedGoodsCounter) TableName() string {
	return "inv_finished_goods_counters"
}

// Completion 完工记录，序列号唯一保证每台最多一次完工。
// 冲销时整行删除，计数器同步回退。
type Completion struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid"`
	Serial     string    `json:"serial" gorm:"size:32;not null;uniqueIndex"`
	BaseNumber int       `json:"base_number" gorm:"not null;index"`
	UnitType   string    `json:"unit_type" gorm:"size:32;not null;index"`
	Size       string    `json:"size" gorm:"size:16;not null"`
	Color      string    `json:"color" gorm:"size:16;not null"`
	CreatedBy  string    `json:"created_by" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Completion) TableName() string {
	return "inv_completions"
}
