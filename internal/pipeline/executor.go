package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kevgir/internal/domain"
	"kevgir/internal/flagger"
	"kevgir/internal/metrics"
	"kevgir/internal/platform"
	"kevgir/internal/sink"
	"kevgir/internal/util"
)

// FlagSource 提供某个 key 的期望状态记录。
type FlagSource interface {
	Flags(ctx context.Context, key domain.RestaurantKey) ([]domain.ActiveMenuFlag, error)
}

// RetryPolicy 控制 FetchMenu 与 Apply 阶段的重试。
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Config 控制并发与重试。Concurrency 为 0 时不限制并发。
type Config struct {
	Concurrency int
	Retry       RetryPolicy
}

// KeyReport 是单个 key 的最终结果。
type KeyReport struct {
	Key      domain.RestaurantKey  `json:"key"`
	State    State                 `json:"state"`
	FailedAt *domain.Stage         `json:"failed_at,omitempty"`
	Error    string                `json:"error,omitempty"`
	Planned  []domain.StatusChange `json:"planned,omitempty"`
	Applied  []domain.StatusChange `json:"applied,omitempty"`
	Missing  []int64               `json:"missing,omitempty"`
}

// Report 汇总一次批量运行。
type Report struct {
	RunID    string      `json:"run_id"`
	Branch   string      `json:"branch"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
	Skipped  int         `json:"skipped_rows"`
	Keys     []KeyReport `json:"keys"`
}

// Succeeded 返回走到 Done 的 key 数。
func (r Report) Succeeded() int {
	n := 0
	for _, k := range r.Keys {
		if k.State == StateDone {
			n++
		}
	}
	return n
}

// Failed 返回失败的 key 数。
func (r Report) Failed() int {
	return len(r.Keys) - r.Succeeded()
}

// Executor 为每个 key 独立运行 KeySelect → FetchMenu → Flag → Apply。
type Executor struct {
	client   platform.Client
	flags    FlagSource
	recorder sink.Recorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	stages   map[domain.Stage]stageFunc
}

type stageFunc func(ctx context.Context, run *keyRun) error

// keyRun 只属于一个 worker，不跨 key 共享。
type keyRun struct {
	key      domain.RestaurantKey
	flags    []domain.ActiveMenuFlag
	observed domain.ObservedMenuState
	diff     flagger.Result
	applied  []domain.StatusChange
}

// NewExecutor 创建执行器。
func NewExecutor(client platform.Client, flags FlagSource, recorder sink.Recorder, cfg Config, logger *zap.Logger) (*Executor, error) {
	if client == nil || flags == nil || recorder == nil {
		return nil, errors.New("执行器依赖未注入完整")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 1
	}
	e := &Executor{
		client:   client,
		flags:    flags,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	e.stages = map[domain.Stage]stageFunc{
		domain.StageKeySelect: e.selectKey,
		domain.StageFetchMenu: e.fetchMenu,
		domain.StageFlag:      e.flag,
		domain.StageApply:     e.apply,
	}
	return e, nil
}

// Run 并发处理所有 key，单个 key 的失败不会影响其他 key。
func (e *Executor) Run(ctx context.Context, runID, branch string, keys []domain.RestaurantKey) Report {
	report := Report{RunID: runID, Branch: branch, Started: e.now(), Keys: make([]KeyReport, len(keys))}

	var g errgroup.Group
	if e.cfg.Concurrency > 0 {
		g.SetLimit(e.cfg.Concurrency)
	}
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			report.Keys[i] = e.runKey(ctx, runID, branch, key)
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = e.now()
	e.logger.Info("pipeline run finished",
		zap.String("run_id", runID),
		zap.String("branch", branch),
		zap.Int("keys", len(keys)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Finished.Sub(report.Started)))
	return report
}

func (e *Executor) runKey(ctx context.Context, runID, branch string, key domain.RestaurantKey) KeyReport {
	run := &keyRun{key: key}
	out := KeyReport{Key: key}

	state := StateKeySelect
	for !state.Terminal() {
		stage, _ := state.Stage()
		err := e.stages[stage](ctx, run)
		e.record(runID, branch, run, stage, err)
		if err != nil {
			failed := stage
			out.FailedAt = &failed
			out.Error = err.Error()
			state = StateFailed
			e.logger.Warn("key pipeline halted",
				zap.String("restaurant_key", key.RestaurantKey),
				zap.Int64("store_id", key.StoreID),
				zap.Stringer("stage", stage),
				zap.Error(err))
			continue
		}
		state = state.Next()
	}

	out.State = state
	out.Planned = run.diff.Changes
	out.Applied = run.applied
	out.Missing = run.diff.Missing
	return out
}

func (e *Executor) record(runID, branch string, run *keyRun, stage domain.Stage, err error) {
	outcome := domain.StageOutcome{
		RunID:   runID,
		Key:     run.key.RestaurantKey,
		Branch:  branch,
		StoreID: run.key.StoreID,
		MenuID:  run.key.MenuID,
		Stage:   stage,
		Success: err == nil,
		At:      e.now(),
	}
	switch stage {
	case domain.StageFlag:
		outcome.Changes = run.diff.Changes
		if err == nil && len(run.diff.Missing) > 0 {
			outcome.Reason = fmt.Sprintf("平台菜单缺少商品 %v", run.diff.Missing)
		}
	case domain.StageApply:
		outcome.Changes = run.applied
	}
	if err != nil {
		outcome.Reason = err.Error()
	}

	metrics.ObserveStage(stage, err == nil)
	if recErr := e.recorder.Record(outcome); recErr != nil {
		e.logger.Error("record stage outcome failed",
			zap.String("restaurant_key", run.key.RestaurantKey),
			zap.Stringer("stage", stage),
			zap.Error(recErr))
	}
}

func (e *Executor) selectKey(ctx context.Context, run *keyRun) error {
	if strings.TrimSpace(run.key.RestaurantKey) == "" {
		return errors.New("restaurant_key 为空")
	}
	if run.key.StoreID <= 0 || run.key.MenuID <= 0 {
		return fmt.Errorf("store_id/menu_id 非法: %d/%d", run.key.StoreID, run.key.MenuID)
	}
	flags, err := e.flags.Flags(ctx, run.key)
	if err != nil {
		return fmt.Errorf("读取期望状态失败: %w", err)
	}
	run.flags = flags
	return nil
}

func (e *Executor) fetchMenu(ctx context.Context, run *keyRun) error {
	apiKey := run.key.RestaurantKey
	var menu platform.MenuDetails
	attempts, err := e.retry(ctx, func() error {
		var err error
		menu, err = e.client.FetchMenuDetails(ctx, apiKey, run.key.StoreID, run.key.ChainID)
		return err
	})
	if err != nil {
		return fmt.Errorf("拉取菜单失败 (尝试 %d 次): %w", attempts, err)
	}

	var options *platform.OptionDetails
	if flagger.NeedsOptions(run.flags) {
		var opts platform.OptionDetails
		attempts, err := e.retry(ctx, func() error {
			var err error
			opts, err = e.client.FetchOptionDetails(ctx, apiKey, run.key.MenuID)
			return err
		})
		if err != nil {
			return fmt.Errorf("拉取加料失败 (尝试 %d 次): %w", attempts, err)
		}
		options = &opts
	}
	run.observed = platform.BuildObservedState(menu, options)
	return nil
}

// flag 只计算差异；缺失商品记入 Missing 与阶段原因，不视为失败。
func (e *Executor) flag(_ context.Context, run *keyRun) error {
	run.diff = flagger.Diff(run.key, run.flags, run.observed)
	return nil
}

func (e *Executor) apply(ctx context.Context, run *keyRun) error {
	apiKey := applyKey(run)
	for i, change := range run.diff.Changes {
		attempts, err := e.retry(ctx, func() error {
			_, err := e.client.ApplyStatusChange(ctx, apiKey, change)
			return err
		})
		if err != nil {
			return fmt.Errorf("下发 %s 失败 (已下发 %d/%d, 尝试 %d 次): %w", change, i, len(run.diff.Changes), attempts, err)
		}
		run.applied = append(run.applied, change)
		metrics.ChangesApplied.WithLabelValues(string(change.Target)).Inc()
	}
	return nil
}

// applyKey 优先使用期望记录上的 x_api_key，否则使用表格中的 restaurant_key。
func applyKey(run *keyRun) string {
	for _, f := range run.flags {
		if strings.TrimSpace(f.XAPIKey) != "" {
			return f.XAPIKey
		}
	}
	return run.key.RestaurantKey
}

func (e *Executor) retry(ctx context.Context, fn func() error) (int, error) {
	return util.Retry(ctx, e.cfg.Retry.Attempts, e.cfg.Retry.Delay, platform.IsRetryable, fn)
}
