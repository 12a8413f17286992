package entity

import "time"

// RefType 台账变动来源
const (
	RefTypeConsume = "CONSUME" // 完工扣料
	RefTypeReverse = "REVERSE" // 完工冲销
	RefTypeCut     = "CUT"     // 开料产出
	RefTypeUncut   = "UNCUT"   // 开料冲销
	RefTypeRestock = "RESTOCK" // 入库盘点
)

// StockSnapshot 库存快照台账，只追加不修改。
// 某部件的当前库存 = 最新一条快照的数量；同一时刻以后插入者为准，
// 由自增主键保证。
type StockSnapshot struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartName   string    `json:"part_name" gorm:"size:64;not null;index:idx_inv_snapshots_part_time,priority:1"`
	Count      float64   `json:"count" gorm:"type:decimal(12,4);not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index:idx_inv_snapshots_part_time,priority:2"`
	RefType    string    `json:"ref_type" gorm:"size:20;not null"`
	Reference  string    `json:"reference" gorm:"size:64"` // 序列号或开料批次
	CreatedBy  string    `json:"created_by" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StockSnapshot) TableName() string {
	return "inv_stock_snapshots"
}

// ConsumableRoll 共享耗材的当前卷计数。
// counter==0 时下一次消耗开新卷（整卷扣减），达到容量后归零。
type ConsumableRoll struct {
	PartName  string    `json:"part_name" gorm:"primaryKey;size:64"`
	UsedCount int       `json:"used_count" gorm:"not null;default:0"`
	Capacity  int       `json:"capacity" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ConsumableRoll) TableName() string {
	return "inv_consumable_rolls"
}
