package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/shared/notify"
)

// Scheduler 定时任务：每日低库存巡检，汇总推送一条摘要
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	repos    *repository.Repositories
	registry *recipe.Registry
	notifier notify.Notifier
	logger   *zap.Logger
}

func New(spec string, repos *repository.Repositories, registry *recipe.Registry, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		spec:     spec,
		repos:    repos,
		registry: registry,
		notifier: notifier,
		logger:   logger,
	}
}

// Start 注册并启动巡检任务；spec为空时不启用
func (s *Scheduler) Start() {
	if s.spec == "" {
		return
	}
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		s.logger.Error("failed to schedule low-stock sweep", zap.Error(err))
		return
	}
	s.cron.Start()
	s.logger.Info("low-stock sweep scheduled", zap.String("cron", s.spec))
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweep 遍历全部配置了阈值的部件，汇总低于阈值的部件推送摘要
func (s *Scheduler) sweep() {
	thresholds := s.registry.Thresholds()
	parts := make([]string, 0, len(thresholds))
	for part := range thresholds {
		parts = append(parts, part)
	}
	sort.Strings(parts)

	var lines []string
	for _, part := range parts {
		threshold := thresholds[part]
		if threshold <= 0 {
			continue
		}
		count, err := s.repos.Ledger.Current(part)
		if err != nil {
			s.logger.Warn("sweep failed to read stock", zap.String("part", part), zap.Error(err))
			continue
		}
		if count <= float64(threshold) {
			lines = append(lines, fmt.Sprintf("%s: %.4g（阈值%d）", part, count, threshold))
		}
	}
	if len(lines) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	message := "以下部件低于库存阈值:\n" + strings.Join(lines, "\n")
	if err := s.notifier.Send(ctx, "每日低库存巡检", message); err != nil {
		s.logger.Warn("sweep notification failed", zap.Error(err))
	}
}
