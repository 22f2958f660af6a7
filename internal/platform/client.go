package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kevgir/internal/cipher"
	"kevgir/internal/domain"
)

// Client 抽象外卖平台的菜单读取与状态切换接口。
type Client interface {
	FetchMenuDetails(ctx context.Context, apiKey string, storeID, storeGroupID int64) (MenuDetails, error)
	FetchOptionDetails(ctx context.Context, apiKey string, menuID int64) (OptionDetails, error)
	ApplyStatusChange(ctx context.Context, apiKey string, change domain.StatusChange) (ActivateResponse, error)
}

// HTTPConfig 配置平台 HTTP 客户端。
type HTTPConfig struct {
	BaseURL             string
	Cipher              *cipher.PayloadCipher
	Timeout             time.Duration
	CustomClient        *http.Client
	MenuDetailsAPI      string
	OptionsAPI          string
	ProductStatusAPI    string
	OptionActivateAPI   string
	OptionDeactivateAPI string
	APIKeyHeader        string
	// RatePerSecond 为 0 时不限速。
	RatePerSecond float64
	Burst         int
}

// HTTPClient 实现 Client，无共享可变状态，可被多个 worker 并发使用。
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	cipher     *cipher.PayloadCipher
	limiter    *rate.Limiter
	apiKeyHdr  string

	menuDetailsAPI      string
	optionsAPI          string
	productStatusAPI    string
	optionActivateAPI   string
	optionDeactivateAPI string
}

const maxBodyBytes = 16 << 20

// NewHTTPClient 根据配置创建平台客户端。
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("platform base url 不能为空")
	}
	if cfg.Cipher == nil {
		return nil, errors.New("platform cipher 不能为空")
	}
	client := cfg.CustomClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &HTTPClient{
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:          client,
		cipher:              cfg.Cipher,
		limiter:             limiter,
		apiKeyHdr:           orDefault(cfg.APIKeyHeader, "x-api-key"),
		menuDetailsAPI:      orDefault(cfg.MenuDetailsAPI, "/api/v1/menu/details"),
		optionsAPI:          orDefault(cfg.OptionsAPI, "/api/v1/menu/options"),
		productStatusAPI:    orDefault(cfg.ProductStatusAPI, "/api/v1/product/status"),
		optionActivateAPI:   orDefault(cfg.OptionActivateAPI, "/api/v1/option-item/activate"),
		optionDeactivateAPI: orDefault(cfg.OptionDeactivateAPI, "/api/v1/option-item/deactivate"),
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// FetchMenuDetails 拉取门店当前菜单及商品状态。
func (c *HTTPClient) FetchMenuDetails(ctx context.Context, apiKey string, storeID, storeGroupID int64) (MenuDetails, error) {
	var resp MenuDetailsResponse
	payload := MenuDetailsPayload{StoreID: storeID, StoreGroupID: storeGroupID}
	if err := c.postEncrypted(ctx, "menu_details", c.menuDetailsAPI, apiKey, payload, &resp); err != nil {
		return MenuDetails{}, err
	}
	return resp.Data, nil
}

// FetchOptionDetails 拉取菜单下的加料组与选项状态。
func (c *HTTPClient) FetchOptionDetails(ctx context.Context, apiKey string, menuID int64) (OptionDetails, error) {
	var resp OptionDetails
	if err := c.postEncrypted(ctx, "option_details", c.optionsAPI, apiKey, OptionsPayload{MenuID: menuID}, &resp); err != nil {
		return OptionDetails{}, err
	}
	return resp, nil
}

// ApplyStatusChange 下发一条状态变更，success=false 视为平台拒绝。
func (c *HTTPClient) ApplyStatusChange(ctx context.Context, apiKey string, change domain.StatusChange) (ActivateResponse, error) {
	var (
		path    string
		payload any
	)
	switch change.Target {
	case domain.TargetProduct:
		path = c.productStatusAPI
		payload = ProductStatusPayload{StoreID: change.StoreID, ProductID: change.TargetID, Status: string(change.Desired)}
	case domain.TargetOptionItem:
		path = c.optionDeactivateAPI
		if change.Desired == domain.StatusActive {
			path = c.optionActivateAPI
		}
		payload = OptionStatusPayload{StoreID: change.StoreID, OptionItemID: change.TargetID}
	default:
		return ActivateResponse{}, &Error{Kind: KindProtocol, Op: "apply_status", Err: fmt.Errorf("未知变更目标 %q", change.Target)}
	}

	var resp ActivateResponse
	if err := c.postEncrypted(ctx, "apply_status", path, apiKey, payload, &resp); err != nil {
		return ActivateResponse{}, err
	}
	if !resp.Success {
		return resp, &Error{Kind: KindRejection, Op: "apply_status", Rejection: &resp}
	}
	return resp, nil
}

func (c *HTTPClient) postEncrypted(ctx context.Context, op, path, apiKey string, payload, out any) error {
	body, err := c.cipher.Body(payload)
	if err != nil {
		return &Error{Kind: KindCrypto, Op: op, Err: err}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: KindCrypto, Op: op, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransport, Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return &Error{Kind: KindProtocol, Op: op, Err: fmt.Errorf("构建请求失败: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set(c.apiKeyHdr, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Kind: KindProtocol, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("平台返回 %s", snippet(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindProtocol, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	if s == "" {
		return "<empty body>"
	}
	return s
}
