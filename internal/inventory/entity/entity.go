package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有库存引擎表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 台账
		&StockSnapshot{},
		&ConsumableRoll{},

		// 成品
		&FinishedGoodsCounter{},
		&Completion{},
	)
}
