package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
)

func TestCutAndUncut(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 5})
	ctx := context.Background()

	result, err := e.services.Yield.Cut(ctx, CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long"}, "test-user")
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	if result.Consumed != 1 {
		t.Errorf("Expected 1 sheet consumed, got %v", result.Consumed)
	}
	if got := e.current(t, "timber_sheet"); got != 4 {
		t.Errorf("Expected timber_sheet 4, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 8 {
		t.Errorf("Expected long_cushion 8, got %v", got)
	}
	if got := e.current(t, "short_cushion"); got != 3 {
		t.Errorf("Expected short_cushion offcut 3, got %v", got)
	}

	if _, err := e.services.Yield.Uncut(ctx, CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long"}, "test-user"); err != nil {
		t.Fatalf("Uncut failed: %v", err)
	}
	if got := e.current(t, "timber_sheet"); got != 5 {
		t.Errorf("Expected timber_sheet restored to 5, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 0 {
		t.Errorf("Expected long_cushion reclaimed to 0, got %v", got)
	}
	if got := e.current(t, "short_cushion"); got != 0 {
		t.Errorf("Expected short_cushion reclaimed to 0, got %v", got)
	}
}

func TestCutMultiplier(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 5})

	result, err := e.services.Yield.Cut(context.Background(), CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long", Multiplier: 2}, "test-user")
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	if result.Consumed != 2 {
		t.Errorf("Expected 2 sheets consumed, got %v", result.Consumed)
	}
	if got := e.current(t, "timber_sheet"); got != 3 {
		t.Errorf("Expected timber_sheet 3, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 16 {
		t.Errorf("Expected long_cushion 16, got %v", got)
	}
	if got := e.current(t, "short_cushion"); got != 6 {
		t.Errorf("Expected short_cushion 6, got %v", got)
	}
}

func TestCutSixFootRule(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 5})

	if _, err := e.services.Yield.Cut(context.Background(), CutRequest{Sheet: "timber_sheet", Size: "6ft", Cut: "long"}, "test-user"); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	// 6ft规则的产出是6ft部件，副产品只有2件
	if got := e.current(t, "long_cushion_6ft"); got != 8 {
		t.Errorf("Expected long_cushion_6ft 8, got %v", got)
	}
	if got := e.current(t, "short_cushion_6ft"); got != 2 {
		t.Errorf("Expected short_cushion_6ft 2, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 0 {
		t.Errorf("7ft outputs should be untouched, got %v", got)
	}
}

func TestCutInsufficientSheet(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 2})

	_, err := e.services.Yield.Cut(context.Background(), CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long", Multiplier: 3}, "test-user")
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if got := e.current(t, "timber_sheet"); got != 2 {
		t.Errorf("Sheet stock should be untouched, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 0 {
		t.Errorf("No outputs should be credited, got %v", got)
	}
}

func TestUncutRejectsWhenOutputsConsumed(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 5})
	ctx := context.Background()

	if _, err := e.services.Yield.Cut(ctx, CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long"}, "test-user"); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	// Someone used two of the offcuts independently: only 1 of 3 remains
	if err := e.repos.Ledger.Record("short_cushion", 1, time.Now(), entity.RefTypeConsume, "manual", "test-user"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	_, err := e.services.Yield.Uncut(ctx, CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "long"}, "test-user")
	var conflict *YieldConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected YieldConflictError, got %v", err)
	}
	if conflict.Part != "short_cushion" {
		t.Errorf("Expected short_cushion conflict, got %s", conflict.Part)
	}
	// Nothing reversed on rejection
	if got := e.current(t, "timber_sheet"); got != 4 {
		t.Errorf("Sheet should stay at 4, got %v", got)
	}
	if got := e.current(t, "long_cushion"); got != 8 {
		t.Errorf("long_cushion should stay at 8, got %v", got)
	}
}

func TestCutUnknownRule(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{"timber_sheet": 5})

	_, err := e.services.Yield.Cut(context.Background(), CutRequest{Sheet: "timber_sheet", Size: "7ft", Cut: "short"}, "test-user")
	if !errors.Is(err, recipe.ErrUnknownRecipe) {
		t.Fatalf("Expected ErrUnknownRecipe for unconfigured cut, got %v", err)
	}
}
