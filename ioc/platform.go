package ioc

import (
	"fmt"

	"kevgir/internal/app"
	"kevgir/internal/cipher"
	"kevgir/internal/platform"
)

// InitPlatformClient 构建外卖平台客户端。
func InitPlatformClient(cfg app.Config) (platform.Client, error) {
	c, err := cipher.New([]byte(cfg.Platform.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("platform.secret_key: %w", err)
	}
	return platform.NewHTTPClient(platform.HTTPConfig{
		BaseURL:       cfg.Platform.BaseURL,
		Cipher:        c,
		Timeout:       cfg.PlatformTimeout(),
		APIKeyHeader:  cfg.Platform.APIKeyHeader,
		RatePerSecond: cfg.Platform.RatePerSecond,
		Burst:         cfg.Platform.Burst,
	})
}
