package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
)

// ThrottleStore 低库存通知节流状态。显式注入而非进程级单例，
// 由调用方决定用redis还是内存实现。
type ThrottleStore interface {
	// Admit 若该部件距上次对外通知已超过节流窗口，则记录本次发送并返回true
	Admit(ctx context.Context, part string, window time.Duration) (bool, error)
	// Clear 库存回到阈值以上时清除告警状态
	Clear(ctx context.Context, part string) error
}

// RedisThrottleStore 基于SET NX + TTL的节流实现
type RedisThrottleStore struct {
	client *redis.Client
}

func NewRedisThrottleStore(client *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{client: client}
}

func throttleKey(part string) string {
	return "inv:lowstock:" + part
}

func (s *RedisThrottleStore) Admit(ctx context.Context, part string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, throttleKey(part), time.Now().Format(time.RFC3339), window).Result()
}

func (s *RedisThrottleStore) Clear(ctx context.Context, part string) error {
	return s.client.Del(ctx, throttleKey(part)).Err()
}

// MemoryThrottleStore 进程内实现，测试及未配置redis时使用
type MemoryThrottleStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryThrottleStore() *MemoryThrottleStore {
	return &MemoryThrottleStore{last: make(map[string]time.Time)}
}

func (s *MemoryThrottleStore) Admit(ctx context.Context, part string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.last[part]; ok && time.Since(at) < window {
		return false, nil
	}
	s.last[part] = time.Now()
	return true, nil
}

func (s *MemoryThrottleStore) Clear(ctx context.Context, part string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, part)
	return nil
}

// Warning 低库存告警。消息始终返回给调用方用于页面内展示，
// ShouldNotify=true 才触发对外通知（节流窗口内只发一次）。
type Warning struct {
	Part         string  `json:"part"`
	Count        float64 `json:"count"`
	Threshold    int     `json:"threshold"`
	Message      string  `json:"message"`
	ShouldNotify bool    `json:"should_notify"`
}

// LowStockGate 低库存判定。无状态决策函数，节流状态在注入的store里。
type LowStockGate struct {
	registry *recipe.Registry
	store    ThrottleStore
	window   time.Duration
	logger   *zap.Logger
}

func NewLowStockGate(registry *recipe.Registry, store ThrottleStore, window time.Duration, logger *zap.Logger) *LowStockGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 4 * time.Hour
	}
	return &LowStockGate{registry: registry, store: store, window: window, logger: logger}
}

// Evaluate 扣减后判定。阈值未配置或<=0时永不告警；
// 回到阈值以上时清除告警状态并返回nil。
func (g *LowStockGate) Evaluate(ctx context.Context, part string, oldCount, newCount float64) *Warning {
	threshold := g.registry.Threshold(part)
	if threshold <= 0 {
		return nil
	}
	if newCount > float64(threshold) {
		if err := g.store.Clear(ctx, part); err != nil {
			g.logger.Warn("failed to clear low-stock state", zap.String("part", part), zap.Error(err))
		}
		return nil
	}

	w := &Warning{
		Part:      part,
		Count:     newCount,
		Threshold: threshold,
		Message:   fmt.Sprintf("低库存: 部件 %s 仅剩%.4g（阈值%d）", part, newCount, threshold),
	}
	admit, err := g.store.Admit(ctx, part, g.window)
	if err != nil {
		// 节流状态不可用时不对外发送，页面内告警照常返回
		g.logger.Warn("throttle store unavailable", zap.String("part", part), zap.Error(err))
		return w
	}
	w.ShouldNotify = admit
	return w
}
