package repository

import "gorm.io/gorm"

// Repositories 库存引擎仓库集合
type Repositories struct {
	Ledger     *LedgerRepository
	Counter    *CounterRepository
	Completion *CompletionRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ledger:     NewLedgerRepository(db),
		Counter:    NewCounterRepository(db),
		Completion: NewCompletionRepository(db),
	}
}
