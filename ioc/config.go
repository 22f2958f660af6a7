package ioc

import (
	"os"

	"kevgir/internal/app"
)

const defaultConfigPath = "configs/config.yaml"

// ConfigPath 返回配置文件路径，可通过 KEVGIR_CONFIG 覆盖。
func ConfigPath() string {
	if p := os.Getenv("KEVGIR_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// InitConfig 读取应用配置。
func InitConfig() (app.Config, error) {
	return app.LoadConfig(ConfigPath())
}
