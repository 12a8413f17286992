package service

import (
	"fmt"
	"math"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
)

// CapacityService 产能与平衡对的纯读侧计算，不阻塞写事务
type CapacityService struct {
	repos    *repository.Repositories
	registry *recipe.Registry
}

func NewCapacityService(repos *repository.Repositories, registry *recipe.Registry) *CapacityService {
	return &CapacityService{repos: repos, registry: registry}
}

// CapacityLine 单个部件的可建台数
type CapacityLine struct {
	Part       string  `json:"part"`
	Stock      float64 `json:"stock"`
	QtyPerUnit float64 `json:"qty_per_unit"`
	Buildable  int     `json:"buildable"`
}

// CapacityResult 某机型/尺寸的产能：各部件可建数的最小值及瓶颈部件
type CapacityResult struct {
	UnitType    string         `json:"unit_type"`
	Size        serial.Size    `json:"size"`
	Capacity    int            `json:"capacity"`
	Bottlenecks []string       `json:"bottlenecks"`
	Lines       []CapacityLine `json:"lines"`
}

// Capacity 按当前库存计算还能建多少台。缺货部件视为库存0；
// 同一部件在不同尺寸变体下独立评估。
func (s *CapacityService) Capacity(unitType string, size serial.Size) (*CapacityResult, error) {
	items, err := s.registry.Resolve(unitType, size)
	if err != nil {
		return nil, err
	}

	result := &CapacityResult{UnitType: unitType, Size: size}
	first := true
	for _, it := range items {
		var qtyPerUnit float64
		switch {
		case it.WrapEvery > 0:
			qtyPerUnit = 1 / float64(it.WrapEvery)
		case it.Qty > 0:
			qtyPerUnit = it.Qty
		default:
			continue
		}

		stock, err := s.repos.Ledger.Current(it.Part)
		if err != nil {
			return nil, fmt.Errorf("读取库存失败: %w", err)
		}
		// 浮点除法容差
		buildable := int(math.Floor(stock/qtyPerUnit + 1e-9))
		if buildable < 0 {
			buildable = 0
		}

		result.Lines = append(result.Lines, CapacityLine{
			Part:       it.Part,
			Stock:      stock,
			QtyPerUnit: qtyPerUnit,
			Buildable:  buildable,
		})
		if first || buildable < result.Capacity {
			result.Capacity = buildable
		}
		first = false
	}

	for _, line := range result.Lines {
		if line.Buildable == result.Capacity {
			result.Bottlenecks = append(result.Bottlenecks, line.Part)
		}
	}
	return result, nil
}

// DeficitStatus 平衡对状态
type DeficitStatus string

const (
	DeficitEmpty      DeficitStatus = "empty"
	DeficitBalanced   DeficitStatus = "balanced"
	DeficitLeftShort  DeficitStatus = "left_short"
	DeficitRightShort DeficitStatus = "right_short"
)

// DeficitResult 成对部件的平衡判定
type DeficitResult struct {
	Pair    string        `json:"pair"`
	Left    int           `json:"left"`
	Right   int           `json:"right"`
	Status  DeficitStatus `json:"status"`
	Sets    int           `json:"sets"`
	Deficit int           `json:"deficit"`
	Message string        `json:"message"`
}

// classifyPair 两个整数计数的纯判定函数
func classifyPair(name string, left, right int, leftLabel, rightLabel string) DeficitResult {
	r := DeficitResult{Pair: name, Left: left, Right: right}
	switch {
	case left == 0 && right == 0:
		r.Status = DeficitEmpty
		r.Message = "双方均无库存"
	case left == right:
		r.Status = DeficitBalanced
		r.Sets = left
		r.Message = fmt.Sprintf("平衡，可组装%d套", left)
	case left < right:
		r.Status = DeficitLeftShort
		r.Sets = left
		r.Deficit = right - left
		r.Message = fmt.Sprintf("还差%d件%s", right-left, leftLabel)
	default:
		r.Status = DeficitRightShort
		r.Sets = right
		r.Deficit = left - right
		r.Message = fmt.Sprintf("还差%d件%s", left-right, rightLabel)
	}
	return r
}

// Deficit 计算某个平衡对的状态
func (s *CapacityService) Deficit(pairName string) (*DeficitResult, error) {
	pair, ok := s.registry.Pair(pairName)
	if !ok {
		return nil, fmt.Errorf("平衡对未配置: %s", pairName)
	}
	left, err := s.repos.Counter.SumByVariant(pair.Left.UnitType, pair.Left.Size)
	if err != nil {
		return nil, fmt.Errorf("读取成品计数失败: %w", err)
	}
	right, err := s.repos.Counter.SumByVariant(pair.Right.UnitType, pair.Right.Size)
	if err != nil {
		return nil, fmt.Errorf("读取成品计数失败: %w", err)
	}

	leftLabel := pair.Left.Label
	if leftLabel == "" {
		leftLabel = pair.Left.UnitType
	}
	rightLabel := pair.Right.Label
	if rightLabel == "" {
		rightLabel = pair.Right.UnitType
	}
	result := classifyPair(pairName, left, right, leftLabel, rightLabel)
	return &result, nil
}

// Deficits 全部平衡对的状态（报表/巡检用）
func (s *CapacityService) Deficits() ([]DeficitResult, error) {
	var results []DeficitResult
	for _, pair := range s.registry.Pairs() {
		r, err := s.Deficit(pair.Name)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}
