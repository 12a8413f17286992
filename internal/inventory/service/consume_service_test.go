package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/testutil"
	"github.com/bitfantasy/nimo-inventory/internal/shared/notify"
)

type testEngine struct {
	db       *gorm.DB
	repos    *repository.Repositories
	services *Services
}

func setupEngine(t *testing.T) *testEngine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	registry := testutil.TestRegistry(t)
	gate := NewLowStockGate(registry, NewMemoryThrottleStore(), time.Hour, zap.NewNop())
	services := NewServices(db, repos, registry, gate, &notify.Nop{}, zap.NewNop())
	return &testEngine{db: db, repos: repos, services: services}
}

func (e *testEngine) seed(t *testing.T, parts map[string]float64) {
	t.Helper()
	for part, count := range parts {
		seedStock(t, e.repos, part, count)
	}
}

func (e *testEngine) current(t *testing.T, part string) float64 {
	t.Helper()
	count, err := e.repos.Ledger.Current(part)
	if err != nil {
		t.Fatalf("Current(%s) failed: %v", part, err)
	}
	return count
}

func TestConsumeAndReverse(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
		"leg_set":       5,
	})
	ctx := context.Background()

	result, err := e.services.Consume.Consume(ctx, ConsumeRequest{UnitType: "body", Serial: "101"}, "test-user")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if result.Size != serial.SizeStandard || result.Color != serial.ColorDefault {
		t.Errorf("Expected 7ft black from serial 101, got %s/%s", result.Size, result.Color)
	}
	// cloth_roll 跌破阈值，低库存告警随结果返回
	hasClothWarning := false
	for _, w := range result.Warnings {
		if w.Part == "cloth_roll" {
			hasClothWarning = true
		}
	}
	if !hasClothWarning {
		t.Error("Expected low-stock warning for cloth_roll")
	}

	checks := map[string]float64{
		"mdf_sheet":     8,
		"long_cushion":  8,
		"short_cushion": 8,
		"cloth_roll":    2, // 开新卷扣整卷
		"leg_set":       4,
	}
	for part, want := range checks {
		if got := e.current(t, part); got != want {
			t.Errorf("After consume, %s = %v, want %v", part, got, want)
		}
	}
	roll, err := e.repos.Ledger.GetOrCreateRoll("cloth_roll", 7)
	if err != nil {
		t.Fatalf("GetOrCreateRoll failed: %v", err)
	}
	if roll.UsedCount != 1 {
		t.Errorf("Expected roll counter 1, got %d", roll.UsedCount)
	}
	if n, err := e.repos.Counter.SumByVariant("body", "7ft"); err != nil || n != 1 {
		t.Errorf("Expected finished goods counter 1, got %d (err=%v)", n, err)
	}
	completion, err := e.repos.Completion.GetBySerial("101")
	if err != nil || completion == nil {
		t.Fatalf("Completion record missing after consume: %v", err)
	}

	if err := e.services.Consume.Reverse(ctx, ReverseRequest{UnitType: "body", Serial: "101"}, "test-user"); err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}

	restored := map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
		"leg_set":       5,
	}
	for part, want := range restored {
		if got := e.current(t, part); got != want {
			t.Errorf("After reverse, %s = %v, want %v", part, got, want)
		}
	}
	roll, _ = e.repos.Ledger.GetOrCreateRoll("cloth_roll", 7)
	if roll.UsedCount != 0 {
		t.Errorf("Expected roll counter restored to 0, got %d", roll.UsedCount)
	}
	if n, _ := e.repos.Counter.SumByVariant("body", "7ft"); n != 0 {
		t.Errorf("Expected finished goods counter back to 0, got %d", n)
	}
	if completion, _ := e.repos.Completion.GetBySerial("101"); completion != nil {
		t.Error("Completion record should be deleted after reverse")
	}
}

func TestConsumeInsufficientStockRejectsWhole(t *testing.T) {
	e := setupEngine(t)
	// leg_set missing entirely: the whole transaction must be rejected
	e.seed(t, map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
	})

	_, err := e.services.Consume.Consume(context.Background(), ConsumeRequest{UnitType: "body", Serial: "101"}, "test-user")
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if insufficient.Part != "leg_set" {
		t.Errorf("Expected leg_set to be reported short, got %s", insufficient.Part)
	}

	// No partial deductions
	if got := e.current(t, "mdf_sheet"); got != 10 {
		t.Errorf("mdf_sheet should be untouched, got %v", got)
	}
	if got := e.current(t, "cloth_roll"); got != 3 {
		t.Errorf("cloth_roll should be untouched, got %v", got)
	}
	if n, _ := e.repos.Counter.SumByVariant("body", "7ft"); n != 0 {
		t.Errorf("Finished goods counter should be untouched, got %d", n)
	}
	if completion, _ := e.repos.Completion.GetBySerial("101"); completion != nil {
		t.Error("No completion record should exist after rejected consume")
	}
}

func TestConsumeDuplicateSerial(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
		"leg_set":       5,
	})
	ctx := context.Background()

	if _, err := e.services.Consume.Consume(ctx, ConsumeRequest{UnitType: "body", Serial: "101"}, "test-user"); err != nil {
		t.Fatalf("First consume failed: %v", err)
	}
	_, err := e.services.Consume.Consume(ctx, ConsumeRequest{UnitType: "body", Serial: "101"}, "test-user")
	var duplicate *DuplicateSerialError
	if !errors.As(err, &duplicate) {
		t.Fatalf("Expected DuplicateSerialError, got %v", err)
	}
	// The duplicate must not deduct anything
	if got := e.current(t, "mdf_sheet"); got != 8 {
		t.Errorf("Expected mdf_sheet 8 after single consume, got %v", got)
	}
}

func TestConsumeSixFootOverride(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{
		"mdf_sheet":         10,
		"long_cushion":      10,
		"short_cushion":     10,
		"long_cushion_6ft":  10,
		"short_cushion_6ft": 10,
		"cloth_roll":        3,
		"leg_set":           5,
	})

	result, err := e.services.Consume.Consume(context.Background(), ConsumeRequest{UnitType: "body", Serial: "45SF"}, "test-user")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if result.Size != serial.SizeSixFoot {
		t.Errorf("Expected 6ft from serial 45SF, got %s", result.Size)
	}

	// 6ft substitutes its own cushion parts, the 7ft ones stay untouched
	if got := e.current(t, "long_cushion"); got != 10 {
		t.Errorf("7ft long_cushion should be untouched, got %v", got)
	}
	if got := e.current(t, "long_cushion_6ft"); got != 8 {
		t.Errorf("Expected long_cushion_6ft 8, got %v", got)
	}
	if n, _ := e.repos.Counter.SumByVariant("body", "6ft"); n != 1 {
		t.Errorf("Expected 6ft counter 1, got %d", n)
	}
}

func TestWrapRollCounter(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{
		"mdf_sheet":     100,
		"long_cushion":  100,
		"short_cushion": 100,
		"cloth_roll":    2,
		"leg_set":       100,
	})
	ctx := context.Background()

	// 1卷包7台：第1台开卷扣1，第2~7台不扣，第8台再开新卷
	for i := 1; i <= 8; i++ {
		sn := fmt.Sprintf("%d", 200+i)
		if _, err := e.services.Consume.Consume(ctx, ConsumeRequest{UnitType: "body", Serial: sn}, "test-user"); err != nil {
			t.Fatalf("Consume %s failed: %v", sn, err)
		}
		var wantStock float64
		switch {
		case i < 8:
			wantStock = 1
		default:
			wantStock = 0
		}
		if got := e.current(t, "cloth_roll"); got != wantStock {
			t.Errorf("After %d consumes, cloth_roll = %v, want %v", i, got, wantStock)
		}
	}
	roll, _ := e.repos.Ledger.GetOrCreateRoll("cloth_roll", 7)
	if roll.UsedCount != 1 {
		t.Errorf("Expected second roll at count 1, got %d", roll.UsedCount)
	}

	// Reversing the 8th completion re-credits the whole second roll
	if err := e.services.Consume.Reverse(ctx, ReverseRequest{UnitType: "body", Serial: "208"}, "test-user"); err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if got := e.current(t, "cloth_roll"); got != 1 {
		t.Errorf("Expected cloth_roll 1 after reversing roll-opening consume, got %v", got)
	}
	roll, _ = e.repos.Ledger.GetOrCreateRoll("cloth_roll", 7)
	if roll.UsedCount != 0 {
		t.Errorf("Expected roll counter 0, got %d", roll.UsedCount)
	}
}

func TestReverseUnknownSerial(t *testing.T) {
	e := setupEngine(t)
	err := e.services.Consume.Reverse(context.Background(), ReverseRequest{UnitType: "body", Serial: "999"}, "test-user")
	if err == nil {
		t.Error("Expected error reversing a serial that was never consumed")
	}
}

func TestNextSerial(t *testing.T) {
	e := setupEngine(t)
	e.seed(t, map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
		"leg_set":       5,
	})
	ctx := context.Background()

	next, err := e.services.Consume.NextSerial("body", serial.SizeStandard, serial.ColorDefault)
	if err != nil {
		t.Fatalf("NextSerial failed: %v", err)
	}
	if next != "1" {
		t.Errorf("Expected first serial 1, got %s", next)
	}

	if _, err := e.services.Consume.Consume(ctx, ConsumeRequest{UnitType: "body", Serial: "101"}, "test-user"); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	next, err = e.services.Consume.NextSerial("body", serial.SizeSixFoot, serial.ColorGreen)
	if err != nil {
		t.Fatalf("NextSerial failed: %v", err)
	}
	if next != "102SFG" {
		t.Errorf("Expected 102SFG, got %s", next)
	}
}

func TestConcurrentConsumeSerializes(t *testing.T) {
	e := setupEngine(t)
	// Exactly one leg_set: of two concurrent completions only one can commit
	e.seed(t, map[string]float64{
		"mdf_sheet":     10,
		"long_cushion":  10,
		"short_cushion": 10,
		"cloth_roll":    3,
		"leg_set":       1,
	})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sn := fmt.Sprintf("%d", 301+i)
			_, err := e.services.Consume.Consume(context.Background(), ConsumeRequest{UnitType: "body", Serial: sn}, "test-user")
			results[i] = err
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			rejected++
		} else {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Errorf("Expected exactly one success and one rejection, got %d/%d", succeeded, rejected)
	}
	if got := e.current(t, "leg_set"); got != 0 {
		t.Errorf("Expected leg_set 0, got %v", got)
	}
}

// 扣减先于成品计数写入，事务失败回滚后节流窗口必须保持空闲，
// 下一次真实越线仍然对外通知。
func TestConsumeRollbackKeepsThrottleWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	// 机型名超出计数表列宽，成品计数写入必然失败，整笔回滚
	longType := strings.Repeat("x", 40)
	registry, err := recipe.New(
		[]recipe.Recipe{{UnitType: longType, Items: []recipe.Item{{Part: "felt_pad", Qty: 1}}}},
		nil, map[string]int{"felt_pad": 10}, nil, nil, nil,
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	gate := NewLowStockGate(registry, NewMemoryThrottleStore(), time.Hour, zap.NewNop())
	services := NewServices(db, repos, registry, gate, &notify.Nop{}, zap.NewNop())
	seedStock(t, repos, "felt_pad", 5)

	ctx := context.Background()
	if _, err := services.Consume.Consume(ctx, ConsumeRequest{UnitType: longType, Serial: "301"}, "test-user"); err == nil {
		t.Fatal("expected consume to fail on counter write")
	}
	if got, _ := repos.Ledger.Current("felt_pad"); got != 5 {
		t.Fatalf("rolled-back consume must not change stock, got %v", got)
	}

	w := gate.Evaluate(ctx, "felt_pad", 5, 4)
	if w == nil || !w.ShouldNotify {
		t.Fatalf("throttle window burned by rolled-back consume: %+v", w)
	}
}
