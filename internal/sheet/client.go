package sheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Reader 读取表格区域，单元格统一转为字符串。
type Reader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}

// Writer 向表格区域追加行或清空区域。
type Writer interface {
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]string) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
}

// Config 控制 Google 客户端的鉴权与地址。
type Config struct {
	TokenSource TokenSource
	// Endpoint 非空时覆盖 Sheets/Drive 的服务地址。
	Endpoint   string
	HTTPClient *http.Client
}

// Client 封装 Sheets 与 Drive 服务。
type Client struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// NewClient 构建 Sheets/Drive 客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.TokenSource != nil:
		opts = append(opts, option.WithTokenSource(OAuth2(ctx, cfg.TokenSource)))
	default:
		return nil, errors.New("必须提供 token source 或 http client")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/")+"/"))
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 sheets 客户端失败: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 drive 客户端失败: %w", err)
	}
	return &Client{sheets: sheetsSvc, drive: driveSvc}, nil
}

// Values 读取区域内容。
func (c *Client) Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("读取表格 %s 失败: %w", rng, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append 以 USER_ENTERED 方式追加行。
func (c *Client) Append(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	_, err := c.sheets.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("追加表格 %s 失败: %w", rng, err)
	}
	return nil
}

// Clear 清空区域内容。
func (c *Client) Clear(ctx context.Context, spreadsheetID, rng string) error {
	if _, err := c.sheets.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("清空表格 %s 失败: %w", rng, err)
	}
	return nil
}

// FindSpreadsheet 在目录中按名称查找表格，返回第一个匹配的 id。
func (c *Client) FindSpreadsheet(ctx context.Context, name, folderID string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), spreadsheetMimeType)
	if folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(folderID))
	}
	resp, err := c.drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("查找表格 %s 失败: %w", name, err)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("未找到名为 %s 的表格", name)
	}
	return resp.Files[0].Id, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

// StaticReader 返回固定区域内容，适用于测试或本地演练。
type StaticReader struct {
	mu      sync.Mutex
	Rows    [][]string
	Err     error
	Writes  [][]string
	Cleared []string
}

func (r *StaticReader) Values(context.Context, string, string) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

// Append 记录追加的行。
func (r *StaticReader) Append(_ context.Context, _, _ string, rows [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes = append(r.Writes, rows...)
	return nil
}

// Clear 清空已记录的追加行，并记下被清空的区域。
func (r *StaticReader) Clear(_ context.Context, _, rng string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes = nil
	r.Cleared = append(r.Cleared, rng)
	return nil
}

// Appended 返回已追加的行。
func (r *StaticReader) Appended() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.Writes...)
}
