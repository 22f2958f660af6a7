package ioc

import (
	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/internal/job"
)

// InitScheduler 构建定时对账调度器。
func InitScheduler(cfg app.Config, svc *app.Service, logger *zap.Logger) *job.Scheduler {
	var runFn job.RunFunc
	if svc != nil {
		runFn = svc.RunBranches
	}
	return job.NewScheduler(cfg.Sync.JobCron, runFn, logger)
}
