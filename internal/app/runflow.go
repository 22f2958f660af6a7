package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kevgir/internal/catalog"
	"kevgir/internal/domain"
	"kevgir/internal/metrics"
	"kevgir/internal/pipeline"
	"kevgir/internal/platform"
	"kevgir/internal/sheet"
	"kevgir/internal/sink"
)

// OutcomeStore 持久化一次运行的全部阶段结果。
type OutcomeStore interface {
	SaveOutcomes(ctx context.Context, outcomes []domain.StageOutcome) error
	ResetOutcomes(ctx context.Context) error
}

// SpreadsheetFinder 按名称在目录中定位表格。
type SpreadsheetFinder interface {
	FindSpreadsheet(ctx context.Context, name, folderID string) (string, error)
}

// RunFlow 负责单个分店的一次对账: 读表 → 过滤 → 流水线 → 落库 → 写报表。
type RunFlow struct {
	Tokens   sheet.TokenSource
	Sheet    sheet.Reader
	Report   sheet.Writer
	Finder   SpreadsheetFinder
	Platform platform.Client
	Flags    pipeline.FlagSource
	Audit    sink.Recorder
	Outcomes OutcomeStore
	Pipeline pipeline.Config
	Logger   *zap.Logger

	SpreadsheetID   string
	SpreadsheetName string
	FolderID        string
	KeysRange       string
	ReportRange     string

	// ReportClearRange 非空时写报表前先清空。
	ReportClearRange string
	// ReplaceOutcomes 为 true 时落库前先清空结果表。
	ReplaceOutcomes  bool
}

func (f *RunFlow) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// Keys 读取并过滤某分店的 key，不触发任何平台调用。
func (f *RunFlow) Keys(ctx context.Context, branch string) (catalog.Result, error) {
	if f == nil || f.Sheet == nil {
		return catalog.Result{}, errors.New("run flow 未初始化")
	}
	if f.Tokens != nil {
		if _, err := f.Tokens.Token(ctx); err != nil {
			return catalog.Result{}, fmt.Errorf("获取表格 token 失败: %w", err)
		}
	}
	id, err := f.spreadsheetID(ctx)
	if err != nil {
		return catalog.Result{}, err
	}
	keysRange := f.KeysRange
	if keysRange == "" {
		keysRange = DefaultKeysRange
	}
	rows, err := f.Sheet.Values(ctx, id, keysRange)
	if err != nil {
		return catalog.Result{}, fmt.Errorf("读取 key 表失败: %w", err)
	}
	return catalog.FilterByBranch(rows, branch), nil
}

// Run 执行一次对账。token 或表格读取失败直接返回错误，单个 key 的失败记录在报告中。
func (f *RunFlow) Run(ctx context.Context, branch string) (pipeline.Report, error) {
	if f == nil {
		return pipeline.Report{}, errors.New("run flow 未初始化")
	}
	if f.Platform == nil || f.Flags == nil {
		return pipeline.Report{}, errors.New("run flow 依赖未注入完整")
	}
	logger := f.logger()
	start := time.Now()
	runID := uuid.NewString()

	result, err := f.Keys(ctx, branch)
	if err != nil {
		metrics.RunErrors.WithLabelValues(branch).Inc()
		return pipeline.Report{}, err
	}
	for _, skipped := range result.Skipped {
		logger.Warn("skip key row", zap.String("branch", branch), zap.Int("row", skipped.Row), zap.String("reason", skipped.Reason))
	}
	logger.Info("加载分店 key",
		zap.String("run_id", runID),
		zap.String("branch", branch),
		zap.Int("keys", len(result.Keys)),
		zap.Int("skipped", result.SkippedCount()))

	collected := &sink.Memory{}
	recorder := sink.Recorder(collected)
	if f.Audit != nil {
		recorder = sink.Tee{f.Audit, collected}
	}
	exec, err := pipeline.NewExecutor(f.Platform, f.Flags, recorder, f.Pipeline, logger)
	if err != nil {
		return pipeline.Report{}, err
	}
	report := exec.Run(ctx, runID, branch, result.Keys)
	report.Skipped = result.SkippedCount()

	if f.Outcomes != nil {
		if err := f.persist(ctx, collected.Outcomes()); err != nil {
			logger.Error("persist stage outcomes failed", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if f.Report != nil && f.ReportRange != "" {
		if err := f.writeReport(ctx, report); err != nil {
			logger.Error("append run report failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	metrics.RunDuration.WithLabelValues(branch).Observe(time.Since(start).Seconds())
	return report, nil
}

func (f *RunFlow) spreadsheetID(ctx context.Context) (string, error) {
	if f.SpreadsheetID != "" {
		return f.SpreadsheetID, nil
	}
	if f.Finder == nil || f.SpreadsheetName == "" {
		return "", errors.New("未配置表格 id 或名称")
	}
	id, err := f.Finder.FindSpreadsheet(ctx, f.SpreadsheetName, f.FolderID)
	if err != nil {
		return "", fmt.Errorf("定位表格失败: %w", err)
	}
	return id, nil
}

func (f *RunFlow) persist(ctx context.Context, outcomes []domain.StageOutcome) error {
	if f.ReplaceOutcomes {
		if err := f.Outcomes.ResetOutcomes(ctx); err != nil {
			return err
		}
	}
	return f.Outcomes.SaveOutcomes(ctx, outcomes)
}

func (f *RunFlow) writeReport(ctx context.Context, report pipeline.Report) error {
	id, err := f.spreadsheetID(ctx)
	if err != nil {
		return err
	}
	if f.ReportClearRange != "" {
		if err := f.Report.Clear(ctx, id, f.ReportClearRange); err != nil {
			return err
		}
	}
	return f.Report.Append(ctx, id, f.ReportRange, ReportRows(report))
}

// ReportRows 每个 key 生成一行汇总。
func ReportRows(report pipeline.Report) [][]string {
	rows := make([][]string, 0, len(report.Keys))
	finished := report.Finished.Format(time.RFC3339)
	for _, k := range report.Keys {
		failedAt := ""
		if k.FailedAt != nil {
			failedAt = k.FailedAt.String()
		}
		missing := make([]string, len(k.Missing))
		for i, id := range k.Missing {
			missing[i] = strconv.FormatInt(id, 10)
		}
		rows = append(rows, []string{
			finished,
			report.RunID,
			report.Branch,
			k.Key.RestaurantKey,
			strconv.FormatInt(k.Key.StoreID, 10),
			strconv.FormatInt(k.Key.MenuID, 10),
			k.State.String(),
			failedAt,
			strconv.Itoa(len(k.Planned)),
			strconv.Itoa(len(k.Applied)),
			strings.Join(missing, ","),
			k.Error,
		})
	}
	return rows
}
