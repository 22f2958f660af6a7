package ioc

import (
	"context"
	"errors"
	"strings"
	"time"

	"kevgir/internal/app"
	"kevgir/internal/sheet"
)

// InitTokenSource 优先使用服务账号凭据，其次使用静态 token。
func InitTokenSource(cfg app.Config) (sheet.TokenSource, error) {
	if strings.TrimSpace(cfg.Sheet.CredentialsFile) != "" {
		return sheet.NewServiceAccountTokenSource(sheet.ServiceAccountConfig{
			CredentialsFile: cfg.Sheet.CredentialsFile,
			Timeout:         10 * time.Second,
		})
	}
	if cfg.Sheet.StaticToken != "" {
		return &sheet.StaticTokenSource{Value: cfg.Sheet.StaticToken}, nil
	}
	return nil, errors.New("sheet.credentials_file 与 sheet.static_token 至少填写一个")
}

// InitSheetClient 构建 Sheets/Drive 客户端。
func InitSheetClient(ctx context.Context, ts sheet.TokenSource) (*sheet.Client, error) {
	return sheet.NewClient(ctx, sheet.Config{TokenSource: ts})
}
