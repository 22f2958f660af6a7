package ioc

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/internal/sink"
	"kevgir/internal/store"
)

// InitPostgres 构建 Postgres 存储，未配置 dsn 时返回 nil。
func InitPostgres(ctx context.Context, cfg app.Config, logger *zap.Logger) (*store.Postgres, func(), error) {
	if strings.TrimSpace(cfg.Postgres.DSN) == "" {
		logger.Warn("postgres dsn 未配置, 期望状态为空且不落库")
		return nil, func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, store.Config{
		DSN:           cfg.Postgres.DSN,
		Schema:        cfg.Postgres.Schema,
		FlagsTable:    cfg.Postgres.FlagsTable,
		OutcomesTable: cfg.Postgres.OutcomesTable,
		MaxConns:      cfg.Postgres.MaxConns,
		BatchSize:     cfg.Postgres.BatchSize,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// InitAuditSink 构建阶段结果审计文件，未配置时返回 nil。
func InitAuditSink(cfg app.Config, logger *zap.Logger) (*sink.Sink, func(), error) {
	if strings.TrimSpace(cfg.Log.AuditFile) == "" {
		return nil, func() {}, nil
	}
	s, err := sink.NewFile(sink.FileConfig{Path: cfg.Log.AuditFile, Compress: true}, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("close audit sink failed", zap.Error(err))
		}
	}, nil
}
