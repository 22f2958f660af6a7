package job

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultCronExpr = "0 7 * * *"

// RunFunc 是一次定时对账。
type RunFunc func(context.Context) error

// Scheduler 按 cron 表达式触发对账，上一轮未结束时跳过本轮。
type Scheduler struct {
	cronExpr string
	logger   *zap.Logger
	cron     *cron.Cron
	runFunc  RunFunc
	parent   context.Context
	mu       sync.Mutex
	running  bool
}

// NewScheduler 构建调度器，cronExpr 为空时使用每天 07:00。
func NewScheduler(cronExpr string, runFunc RunFunc, logger *zap.Logger) *Scheduler {
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" {
		cronExpr = defaultCronExpr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cronExpr: cronExpr, logger: logger, runFunc: runFunc}
}

// CronExpr 返回生效的 cron 表达式。
func (s *Scheduler) CronExpr() string {
	return s.cronExpr
}

// Start 启动调度器，返回用于停止任务的函数。
func (s *Scheduler) Start(parent context.Context) context.CancelFunc {
	if s == nil {
		return func() {}
	}
	s.parent = parent
	c := cron.New()
	id, err := c.AddFunc(s.cronExpr, func() { s.RunOnce() })
	if err != nil {
		s.logger.Error("failed to register cron job", zap.String("cron", s.cronExpr), zap.Error(err))
		return func() {}
	}
	s.cron = c
	c.Start()
	s.logger.Info("job scheduler started", zap.String("cron", s.cronExpr), zap.Time("next", c.Entry(id).Next))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			<-s.cron.Stop().Done()
			s.logger.Info("job scheduler stopped")
		})
	}
	go func() {
		<-parent.Done()
		stop()
	}()
	return stop
}

// RunOnce 立即执行一轮，返回是否真正执行。
func (s *Scheduler) RunOnce() bool {
	if s.runFunc == nil {
		s.logger.Warn("run function not configured")
		return false
	}
	if !s.tryStart() {
		s.logger.Warn("previous run still in progress, skip current schedule")
		return false
	}
	defer s.finish()

	runCtx := context.Background()
	if s.parent != nil {
		if s.parent.Err() != nil {
			s.logger.Info("scheduler context cancelled, skip run")
			return false
		}
		runCtx = s.parent
	}

	start := time.Now()
	err := s.runFunc(runCtx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		s.logger.Info("scheduled run completed", zap.Duration("duration", elapsed))
	}
	return true
}

func (s *Scheduler) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
