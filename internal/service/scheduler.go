package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// SweepRunner 由 *Sweeper 实现
type SweepRunner interface {
	Run(ctx context.Context, opts RunOptions) SweepResult
}

// Scheduler 定时 + 手动触发扫描。同一时刻只有一次扫描在跑。
type Scheduler struct {
	sweeper  SweepRunner
	settings repository.SettingRepository
	interval time.Duration
	trigger  chan struct{}
	now      func() time.Time

	mu   sync.Mutex
	last *SweepResult
}

func NewScheduler(sweeper SweepRunner, settings repository.SettingRepository, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		sweeper:  sweeper,
		settings: settings,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start 立即执行一次扫描，之后按 tick 或手动触发执行，返回 stop 函数
// stop 等待进行中的扫描，直到 ctx 结束
func (s *Scheduler) Start() func(context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.loop(runCtx)
	}()
	return func(ctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.trigger:
			s.RunOnce(ctx)
		}
	}
}

// Trigger 非阻塞请求一次扫描，已有待处理请求时返回 false
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		logger.Warn("sweep already pending, drop trigger")
		return false
	}
}

// RunOnce 读取 bot 开关与配置，扫描后记录 bot 状态
func (s *Scheduler) RunOnce(ctx context.Context) SweepResult {
	enabled, err := s.settings.GetBool(ctx, model.SettingBotEnabled, false)
	if err != nil {
		logger.Error("read bot flag failed", zap.Error(err))
		return SweepResult{Skipped: true}
	}
	opts := RunOptions{BotEnabled: enabled, Settings: DefaultSettings()}
	if enabled {
		if opts.Settings, err = LoadSettings(ctx, s.settings); err != nil {
			logger.Error("load settings failed", zap.Error(err))
			return SweepResult{Skipped: true}
		}
	}

	res := s.sweeper.Run(ctx, opts)
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if res.Skipped {
		return res
	}
	// status writes must survive shutdown cancelling ctx
	wctx := context.WithoutCancel(ctx)
	if err := s.settings.Set(wctx, model.SettingBotLastRunAt, s.now().Format(time.RFC3339)); err != nil {
		logger.Warn("write bot status failed", zap.Error(err))
	}
	if payload, err := json.Marshal(res); err == nil {
		if err := s.settings.Set(wctx, model.SettingBotLastResult, string(payload)); err != nil {
			logger.Warn("write bot status failed", zap.Error(err))
		}
	}
	return res
}

// Last 最近一次扫描结果，首次扫描前为 nil
func (s *Scheduler) Last() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
