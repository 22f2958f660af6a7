package sheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultScopes 与表格读取、报表写入及 Drive 检索所需权限一致。
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// TokenSource 提供访问 Google API 的 bearer token。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource 返回固定 Token，适用于测试或简易场景。
type StaticTokenSource struct {
	Value string
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s == nil || s.Value == "" {
		return "", errors.New("static token 为空")
	}
	return s.Value, nil
}

// ServiceAccountConfig 配置基于服务账号的 TokenSource。
type ServiceAccountConfig struct {
	CredentialsFile string
	Credentials     []byte
	Scopes          []string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// ServiceAccountTokenSource 包装 google.Credentials，过期后由 oauth2 自动换取新 token。
type ServiceAccountTokenSource struct {
	creds *google.Credentials
	ts    oauth2.TokenSource
}

// NewServiceAccountTokenSource 读取并校验服务账号凭据。
func NewServiceAccountTokenSource(cfg ServiceAccountConfig) (*ServiceAccountTokenSource, error) {
	raw := cfg.Credentials
	if len(raw) == 0 {
		if strings.TrimSpace(cfg.CredentialsFile) == "" {
			return nil, errors.New("服务账号凭据不能为空")
		}
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("读取服务账号凭据失败: %w", err)
		}
		raw = data
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	// 刷新 token 时沿用该 ctx 中的 http client，因此不能使用请求级 ctx。
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	creds, err := google.CredentialsFromJSON(ctx, raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("解析服务账号凭据失败: %w", err)
	}
	return &ServiceAccountTokenSource{creds: creds, ts: creds.TokenSource}, nil
}

// Token 实现 TokenSource 接口，缓存与刷新交给 oauth2。
func (s *ServiceAccountTokenSource) Token(context.Context) (string, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return "", fmt.Errorf("获取 google token 失败: %w", err)
	}
	return tok.AccessToken, nil
}

// OAuth2 返回带过期时间的底层 oauth2.TokenSource。
func (s *ServiceAccountTokenSource) OAuth2() oauth2.TokenSource {
	return s.ts
}

type oauth2Provider interface {
	OAuth2() oauth2.TokenSource
}

// OAuth2 将 TokenSource 适配为 Google 客户端使用的 oauth2.TokenSource。
// 服务账号直接返回 oauth2 的实现；其他实现每次请求都回源，由其自身决定缓存。
func OAuth2(ctx context.Context, ts TokenSource) oauth2.TokenSource {
	if p, ok := ts.(oauth2Provider); ok {
		return p.OAuth2()
	}
	return &oauth2Adapter{ctx: ctx, ts: ts, now: time.Now}
}

type oauth2Adapter struct {
	ctx context.Context
	ts  TokenSource
	now func() time.Time
}

func (a *oauth2Adapter) Token() (*oauth2.Token, error) {
	value, err := a.ts.Token(a.ctx)
	if err != nil {
		return nil, err
	}
	// Expiry 为当前时间，外层 ReuseTokenSource 不会长期持有该 token。
	return &oauth2.Token{AccessToken: value, TokenType: "Bearer", Expiry: a.now()}, nil
}
