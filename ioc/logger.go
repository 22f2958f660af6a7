package ioc

import (
	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/pkg/logging"
)

// InitLogger 构建全局 logger。
func InitLogger(cfg app.Config) (*zap.Logger, error) {
	return logging.NewZapLogger(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
}
