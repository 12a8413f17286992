package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/testutil"
)

func TestLowStockGateEvaluate(t *testing.T) {
	registry := testutil.TestRegistry(t)
	store := NewMemoryThrottleStore()
	gate := NewLowStockGate(registry, store, time.Hour, nil)
	ctx := context.Background()

	// cloth_roll threshold is 10: dropping to 8 must warn and notify
	w := gate.Evaluate(ctx, "cloth_roll", 12, 8)
	if w == nil {
		t.Fatal("Expected warning when dropping below threshold")
	}
	if !w.ShouldNotify {
		t.Error("First crossing should trigger notification")
	}
	if w.Threshold != 10 {
		t.Errorf("Expected threshold 10, got %d", w.Threshold)
	}
	if !strings.Contains(w.Message, "cloth_roll") {
		t.Errorf("Warning message should name the part, got %q", w.Message)
	}

	// Still low within the throttle window: warn again, but do not notify
	w = gate.Evaluate(ctx, "cloth_roll", 8, 6)
	if w == nil {
		t.Fatal("Expected warning while still below threshold")
	}
	if w.ShouldNotify {
		t.Error("Second warning within throttle window should not notify")
	}
}

func TestLowStockGateBoundary(t *testing.T) {
	registry := testutil.TestRegistry(t)
	gate := NewLowStockGate(registry, NewMemoryThrottleStore(), time.Hour, nil)
	ctx := context.Background()

	// Landing exactly on the threshold counts as low
	if w := gate.Evaluate(ctx, "cloth_roll", 12, 10); w == nil {
		t.Error("Count equal to threshold should warn")
	}
	// One above the threshold is fine
	if w := gate.Evaluate(ctx, "leg_set", 5, 4); w != nil {
		t.Errorf("Count above threshold should not warn, got %+v", w)
	}
}

func TestLowStockGateRecoveryResetsThrottle(t *testing.T) {
	registry := testutil.TestRegistry(t)
	gate := NewLowStockGate(registry, NewMemoryThrottleStore(), time.Hour, nil)
	ctx := context.Background()

	if w := gate.Evaluate(ctx, "cloth_roll", 12, 8); w == nil || !w.ShouldNotify {
		t.Fatal("Expected notifying warning on first crossing")
	}
	// Restock back above the threshold clears the alert state
	if w := gate.Evaluate(ctx, "cloth_roll", 8, 20); w != nil {
		t.Fatalf("Recovery above threshold should return nil, got %+v", w)
	}
	// A fresh crossing after recovery notifies again
	if w := gate.Evaluate(ctx, "cloth_roll", 20, 9); w == nil || !w.ShouldNotify {
		t.Error("Crossing after recovery should notify again")
	}
}

func TestLowStockGateUnconfiguredPart(t *testing.T) {
	registry := testutil.TestRegistry(t)
	gate := NewLowStockGate(registry, NewMemoryThrottleStore(), time.Hour, nil)

	if w := gate.Evaluate(context.Background(), "mdf_sheet", 3, 0); w != nil {
		t.Errorf("Part without threshold should never warn, got %+v", w)
	}
}

type failingThrottleStore struct{}

func (failingThrottleStore) Admit(ctx context.Context, part string, window time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingThrottleStore) Clear(ctx context.Context, part string) error {
	return errors.New("redis down")
}

func TestLowStockGateStoreFailure(t *testing.T) {
	registry := testutil.TestRegistry(t)
	gate := NewLowStockGate(registry, failingThrottleStore{}, time.Hour, nil)

	// Throttle state unavailable: the in-band warning still comes back,
	// outbound notification is suppressed
	w := gate.Evaluate(context.Background(), "cloth_roll", 12, 8)
	if w == nil {
		t.Fatal("Expected warning even when throttle store fails")
	}
	if w.ShouldNotify {
		t.Error("Store failure must not trigger outbound notification")
	}
}
