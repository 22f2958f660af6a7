package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"kevgir/internal/domain"
)

// Recorder 接收阶段结果，流水线只依赖这个接口。
type Recorder interface {
	Record(outcome domain.StageOutcome) error
}

// Sink 是多 worker 共享的只追加审计日志，每条结果写一整行。
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	count  int
	logger *zap.Logger
}

// New 包装任意 writer。
func New(w io.Writer, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{w: w, logger: logger}
}

// FileConfig 配置滚动审计文件。
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFile 创建写入滚动文件的 Sink。
func NewFile(cfg FileConfig, logger *zap.Logger) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("审计文件路径不能为空")
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return New(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, logger), nil
}

// Record 先在锁外序列化，再在锁内一次 Write 整行。
func (s *Sink) Record(outcome domain.StageOutcome) error {
	line, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("序列化阶段结果失败: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		s.logger.Error("audit write failed",
			zap.String("restaurant_key", outcome.Key),
			zap.Stringer("stage", outcome.Stage),
			zap.Error(err))
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	s.count++
	return nil
}

// Count 返回成功写入的行数。
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close 关闭底层 writer（如果可关闭）。
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Memory 在内存中收集结果，供测试与 HTTP 接口返回使用。
type Memory struct {
	mu       sync.Mutex
	outcomes []domain.StageOutcome
}

func (m *Memory) Record(outcome domain.StageOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

// Outcomes 返回已记录结果的副本。
func (m *Memory) Outcomes() []domain.StageOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StageOutcome(nil), m.outcomes...)
}

// Tee 把同一条结果依次交给多个 Recorder，返回第一个错误。
type Tee []Recorder

func (t Tee) Record(outcome domain.StageOutcome) error {
	var first error
	for _, r := range t {
		if r == nil {
			continue
		}
		if err := r.Record(outcome); err != nil && first == nil {
			first = err
		}
	}
	return first
}
