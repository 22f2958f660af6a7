package ioc

import (
	"context"

	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/internal/pipeline"
	"kevgir/internal/platform"
	"kevgir/internal/sheet"
	"kevgir/internal/sink"
	"kevgir/internal/store"
)

// InitRunFlow 装配单分店对账流程。
func InitRunFlow(cfg app.Config, ts sheet.TokenSource, sheets *sheet.Client, client platform.Client,
	pg *store.Postgres, audit *sink.Sink, logger *zap.Logger) *app.RunFlow {
	flow := &app.RunFlow{
		Tokens:   ts,
		Sheet:    sheets,
		Report:   sheets,
		Finder:   sheets,
		Platform: client,
		Flags:    &store.StaticFlagSource{},
		Pipeline: pipeline.Config{
			Concurrency: cfg.Sync.Concurrency,
			Retry:       pipeline.RetryPolicy{Attempts: cfg.Sync.Retry.Attempts, Delay: cfg.RetryDelay()},
		},
		Logger:          logger,
		SpreadsheetID:   cfg.Sheet.SpreadsheetID,
		SpreadsheetName: cfg.Sheet.SpreadsheetName,
		FolderID:        cfg.Sheet.FolderID,
		KeysRange:       cfg.Sheet.KeysRange,
		ReportRange:     cfg.Sheet.ReportRange,

		ReportClearRange: cfg.Sheet.ReportClearRange,
		ReplaceOutcomes:  cfg.Postgres.ReplaceOutcomes,
	}
	if pg != nil {
		flow.Flags = pg
		flow.Outcomes = pg
	}
	if audit != nil {
		flow.Audit = audit
	}
	return flow
}

// InitAppService 构建对账服务。
func InitAppService(cfg app.Config, flow *app.RunFlow, logger *zap.Logger) (*app.Service, error) {
	return app.NewService(cfg, flow, logger)
}

// NewService 按 InitApp 相同的顺序装配 Service，供命令行复用。
func NewService(ctx context.Context, cfg app.Config, logger *zap.Logger) (*app.Service, func(), error) {
	ts, err := InitTokenSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	sheets, err := InitSheetClient(ctx, ts)
	if err != nil {
		return nil, nil, err
	}
	client, err := InitPlatformClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	pg, closePG, err := InitPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	audit, closeAudit, err := InitAuditSink(cfg, logger)
	if err != nil {
		closePG()
		return nil, nil, err
	}
	flow := InitRunFlow(cfg, ts, sheets, client, pg, audit, logger)
	svc, err := InitAppService(cfg, flow, logger)
	if err != nil {
		closeAudit()
		closePG()
		return nil, nil, err
	}
	return svc, func() {
		closeAudit()
		closePG()
	}, nil
}
