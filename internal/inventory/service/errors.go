package service

import "fmt"

// InsufficientStockError 某部件库存不足，整笔事务回滚。
// 报错必须指明部件与需求/可用数量，方便操作员补货。
type InsufficientStockError struct {
	Part      string
	Required  float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("部件 %s 库存不足: 需要%.4f, 可用%.4f", e.Part, e.Required, e.Available)
}

// DuplicateSerialError 序列号已有完工记录，扣料前拒绝
type DuplicateSerialError struct {
	Serial string
}

func (e *DuplicateSerialError) Error() string {
	return fmt.Sprintf("序列号 %s 已有完工记录", e.Serial)
}

// YieldConflictError 开料冲销时副产品库存已被独立消耗，不允许部分冲销
type YieldConflictError struct {
	Part      string
	Required  float64
	Available float64
}

func (e *YieldConflictError) Error() string {
	return fmt.Sprintf("开料冲销冲突: 部件 %s 当前库存%.4f, 低于应回收的%.4f", e.Part, e.Available, e.Required)
}
