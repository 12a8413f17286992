package service

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
)

// ReportService 库存/产能报表导出
type ReportService struct {
	repos    *repository.Repositories
	registry *recipe.Registry
	capacity *CapacityService
}

func NewReportService(repos *repository.Repositories, registry *recipe.Registry, capacity *CapacityService) *ReportService {
	return &ReportService{repos: repos, registry: registry, capacity: capacity}
}

// Export 生成多工作表的xlsx报表：当前库存、产能、成品计数、平衡对
func (s *ReportService) Export() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := s.writeStockSheet(f); err != nil {
		return nil, err
	}
	if err := s.writeCapacitySheet(f); err != nil {
		return nil, err
	}
	if err := s.writeCounterSheet(f); err != nil {
		return nil, err
	}
	if err := s.writePairSheet(f); err != nil {
		return nil, err
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func (s *ReportService) writeStockSheet(f *excelize.File) error {
	const sheet = "库存"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"部件", "当前库存", "低库存阈值", "导出时间"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	parts, err := s.repos.Ledger.Parts()
	if err != nil {
		return fmt.Errorf("读取部件列表失败: %w", err)
	}
	now := time.Now().Format("2006-01-02 15:04")
	for i, part := range parts {
		count, err := s.repos.Ledger.Current(part)
		if err != nil {
			return err
		}
		row := []interface{}{part, count, s.registry.Threshold(part), now}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReportService) writeCapacitySheet(f *excelize.File) error {
	const sheet = "产能"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"机型", "尺寸", "可建台数", "瓶颈部件"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	row := 2
	for _, unitType := range s.registry.UnitTypes() {
		for _, size := range s.registry.Sizes() {
			result, err := s.capacity.Capacity(unitType, size)
			if err != nil {
				return err
			}
			bottlenecks := ""
			for i, b := range result.Bottlenecks {
				if i > 0 {
					bottlenecks += ", "
				}
				bottlenecks += b
			}
			line := []interface{}{unitType, string(size), result.Capacity, bottlenecks}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &line); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func (s *ReportService) writeCounterSheet(f *excelize.File) error {
	const sheet = "成品"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"机型", "尺寸", "颜色", "数量"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	counters, err := s.repos.Counter.List()
	if err != nil {
		return fmt.Errorf("读取成品计数失败: %w", err)
	}
	for i, c := range counters {
		row := []interface{}{c.UnitType, c.Size, c.Color, c.Count}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReportService) writePairSheet(f *excelize.File) error {
	const sheet = "平衡"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"平衡对", "左侧", "右侧", "状态", "说明"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	results, err := s.capacity.Deficits()
	if err != nil {
		return err
	}
	for i, r := range results {
		row := []interface{}{r.Pair, r.Left, r.Right, string(r.Status), r.Message}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}
