package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kevgir/internal/catalog"
	"kevgir/internal/pipeline"
)

// Service 负责装配 RunFlow 并提供统一入口。
type Service struct {
	cfg     Config
	RunFlow *RunFlow
	closers []func()
	logger  *zap.Logger
}

// NewService 根据配置与已构建的 RunFlow 创建 Service。closers 在 Close 时逆序调用。
func NewService(cfg Config, flow *RunFlow, logger *zap.Logger, closers ...func()) (*Service, error) {
	if flow == nil {
		return nil, errors.New("必须提供 run flow")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, RunFlow: flow, closers: closers, logger: logger}, nil
}

// Close 释放资源。
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if s.closers[i] != nil {
			s.closers[i]()
		}
	}
	_ = s.logger.Sync()
}

// Reconcile 对单个分店执行一次对账。
func (s *Service) Reconcile(ctx context.Context, branch string) (pipeline.Report, error) {
	if s == nil || s.RunFlow == nil {
		return pipeline.Report{}, errors.New("未初始化 run flow")
	}
	return s.RunFlow.Run(ctx, branch)
}

// Keys 返回某分店在表格中的 key 及被跳过的行。
func (s *Service) Keys(ctx context.Context, branch string) (catalog.Result, error) {
	if s == nil || s.RunFlow == nil {
		return catalog.Result{}, errors.New("未初始化 run flow")
	}
	return s.RunFlow.Keys(ctx, branch)
}

// RunBranches 依次对配置中的所有分店对账，返回遇到的全部前置错误。
func (s *Service) RunBranches(ctx context.Context) error {
	if len(s.cfg.Sync.Branches) == 0 {
		s.logger.Warn("未配置任何分店, 跳过对账")
		return nil
	}
	var errs []error
	for _, branch := range s.cfg.Sync.Branches {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := s.Reconcile(ctx, branch)
		if err != nil {
			s.logger.Error("branch run failed", zap.String("branch", branch), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", branch, err))
			continue
		}
		s.logger.Info("branch run completed",
			zap.String("branch", branch),
			zap.String("run_id", report.RunID),
			zap.Int("succeeded", report.Succeeded()),
			zap.Int("failed", report.Failed()),
			zap.Int("skipped_rows", report.Skipped))
	}
	return errors.Join(errs...)
}
