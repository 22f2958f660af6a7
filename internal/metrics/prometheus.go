package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"kevgir/internal/domain"
)

var (
	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kevgir_run_duration_seconds",
		Help:    "单个分店一次对账的耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"branch"})

	RunErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kevgir_run_errors_total",
		Help: "前置步骤(token/表格)失败导致整批未执行的次数",
	}, []string{"branch"})

	StageOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kevgir_stage_outcomes_total",
		Help: "各阶段结果计数",
	}, []string{"stage", "result"})

	ChangesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kevgir_changes_applied_total",
		Help: "成功下发的状态变更数",
	}, []string{"target"})
)

// ObserveStage 记录一次阶段结果。
func ObserveStage(stage domain.Stage, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	StageOutcomes.WithLabelValues(stage.String(), result).Inc()
}

// MustRegister 注册指标，可在 main 中调用。
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(RunDuration, RunErrors, StageOutcomes, ChangesApplied)
}
