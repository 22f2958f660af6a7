package app

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Platform struct {
	BaseURL        string  `yaml:"base_url" validate:"required,url"`
	SecretKey      string  `yaml:"secret_key" validate:"required,len=32"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"gte=0"`
	RatePerSecond  float64 `yaml:"rate_per_second" validate:"gte=0"`
	Burst          int     `yaml:"burst" validate:"gte=0"`
	APIKeyHeader   string  `yaml:"api_key_header"`
}

type Sheet struct {
	CredentialsFile string `yaml:"credentials_file"`
	StaticToken     string `yaml:"static_token"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SpreadsheetName string `yaml:"spreadsheet_name"`
	FolderID        string `yaml:"folder_id"`
	KeysRange       string `yaml:"keys_range"`
	ReportRange     string `yaml:"report_range"`

	// ReportClearRange 非空时每次写报表前先清空该区域，报表只保留最近一次运行。
	ReportClearRange string `yaml:"report_clear_range"`
}

type Postgres struct {
	DSN           string `yaml:"dsn"`
	Schema        string `yaml:"schema"`
	FlagsTable    string `yaml:"flags_table"`
	OutcomesTable string `yaml:"outcomes_table"`
	MaxConns      int32  `yaml:"max_conns" validate:"gte=0"`
	BatchSize     int    `yaml:"batch_size" validate:"gte=0"`

	// ReplaceOutcomes 为 true 时落库前清空结果表。
	ReplaceOutcomes bool `yaml:"replace_outcomes"`
}

type Retry struct {
	Attempts       int `yaml:"attempts" validate:"gte=0"`
	BackoffSeconds int `yaml:"backoff_seconds" validate:"gte=0"`
}

type Sync struct {
	Branches      []string `yaml:"branches" validate:"dive,required"`
	JobCron       string   `yaml:"job_cron"`
	Concurrency   int      `yaml:"concurrency" validate:"gte=0"`
	Retry         Retry    `yaml:"retry"`
	InitialResync bool     `yaml:"initial_resync"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

type Log struct {
	Dir       string `yaml:"dir"`
	Level     string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	AuditFile string `yaml:"audit_file"`
}

type Config struct {
	Platform Platform `yaml:"platform"`
	Sheet    Sheet    `yaml:"sheet"`
	Postgres Postgres `yaml:"postgres"`
	Sync     Sync     `yaml:"sync"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
}

const DefaultKeysRange = "MİGROS!A2:I"

// LoadConfig 从文件加载配置，${VAR} 从环境变量（及 .env）展开。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置失败: %w", err)
	}
	// .env 不存在时忽略
	_ = godotenv.Load()
	return ParseConfig(data)
}

// ParseConfig 解析配置内容并补齐默认值。
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WithDefaults 返回补齐默认值后的配置。
func (c Config) WithDefaults() Config {
	if c.Platform.TimeoutSeconds == 0 {
		c.Platform.TimeoutSeconds = 15
	}
	if c.Sheet.KeysRange == "" {
		c.Sheet.KeysRange = DefaultKeysRange
	}
	if c.Sync.Retry.Attempts == 0 {
		c.Sync.Retry.Attempts = 1
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return c
}

var validate = validator.New()

// Validate 校验必填项。
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Sheet.SpreadsheetID == "" && c.Sheet.SpreadsheetName == "" {
		return fmt.Errorf("配置校验失败: sheet.spreadsheet_id 与 sheet.spreadsheet_name 至少填写一个")
	}
	return nil
}

// PlatformTimeout 返回平台请求超时。
func (c Config) PlatformTimeout() time.Duration {
	return time.Duration(c.Platform.TimeoutSeconds) * time.Second
}

// RetryDelay 返回重试间隔。
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Sync.Retry.BackoffSeconds) * time.Second
}
