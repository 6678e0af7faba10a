package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"stock_screener/internal/config"
)

// 单轮刷新异常后的兜底等待时长
const defaultRetryInterval = time.Hour

// Scheduler 每日定时刷新任务：在每个截止时刻强制刷新一次并写入缓存，
// 随进程启动，Stop 可随时终止。
type Scheduler struct {
	cron          *gocron.Scheduler
	screener      *Screener
	logger        *zap.Logger
	cutoff        string
	retryInterval time.Duration
	stop          chan struct{}
}

// NewScheduler 创建定时刷新任务，每日触发时刻取调度配置的截止时刻
func NewScheduler(cfg *config.ScheduleConfig, screener *Screener, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:          gocron.NewScheduler(time.Local),
		screener:      screener,
		logger:        logger,
		cutoff:        cfg.Cutoff,
		retryInterval: defaultRetryInterval,
		stop:          make(chan struct{}),
	}
}

// Start 注册每日刷新任务并启动调度
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At(s.cutoff).Do(s.refreshJob); err != nil {
		return fmt.Errorf("注册定时任务失败: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info("后台定时更新任务已启动", zap.String("at", s.cutoff))
	return nil
}

// Stop 停止调度并中断兜底等待
func (s *Scheduler) Stop() {
	close(s.stop)
	s.cron.Stop()
	s.logger.Info("后台定时更新任务已停止")
}

// refreshJob 单日刷新任务：异常后等待兜底时长再补一次
func (s *Scheduler) refreshJob() {
	if s.refreshOnce() {
		return
	}
	select {
	case <-s.stop:
		return
	case <-time.After(s.retryInterval):
	}
	s.refreshOnce()
}

// refreshOnce 执行一轮强制刷新。仅异常视为失败；
// 空结果只告警，下一次触发仍是明日的截止时刻。
func (s *Scheduler) refreshOnce() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("定时刷新异常", zap.Any("panic", r))
			ok = false
		}
	}()

	s.logger.Info("开始自动更新今日股票数据")
	rows := s.screener.GetActiveStocks(context.Background(), false, true, true)
	if len(rows) == 0 {
		s.logger.Warn("自动更新完成，但未获取到股票数据")
		return true
	}
	s.logger.Info("自动更新完成", zap.Int("count", len(rows)))
	return true
}
