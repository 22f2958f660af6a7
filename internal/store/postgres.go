package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kevgir/internal/domain"
	"kevgir/pkg/util"
)

// Config 控制 Postgres 连接与表名。
type Config struct {
	DSN           string
	Schema        string
	FlagsTable    string
	OutcomesTable string
	MaxConns      int32
	BatchSize     int
}

// Postgres 读取期望状态并落库阶段结果。
type Postgres struct {
	pool          *pgxpool.Pool
	schema        string
	flagsTable    string
	outcomesTable string
	batchSize     int
}

var outcomeColumns = []string{"run_id", "restaurant_key", "branch", "store_id", "menu_id", "stage", "success", "reason", "changes", "recorded_at"}

// NewPostgres 创建连接池并校验连通性。
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn 不能为空")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("解析 postgres dsn 失败: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 postgres 连接池失败: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres 无法连通: %w", err)
	}
	return &Postgres{
		pool:          pool,
		schema:        orDefault(cfg.Schema, "public"),
		flagsTable:    orDefault(cfg.FlagsTable, "active_menu"),
		outcomesTable: orDefault(cfg.OutcomesTable, "stage_outcomes"),
		batchSize:     cfg.BatchSize,
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Close 释放连接池。
func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema 创建结果表。
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{p.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			restaurant_key TEXT NOT NULL,
			branch TEXT NOT NULL,
			store_id BIGINT NOT NULL,
			menu_id BIGINT NOT NULL,
			stage TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			reason TEXT,
			changes JSONB,
			recorded_at TIMESTAMPTZ NOT NULL
		)`, pgx.Identifier{p.schema, p.outcomesTable}.Sanitize()),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("执行 schema 语句失败: %w", err)
		}
	}
	return nil
}

// Flags 读取 restaurant_id = key.StoreID 的期望状态，实现 pipeline.FlagSource。
func (p *Postgres) Flags(ctx context.Context, key domain.RestaurantKey) ([]domain.ActiveMenuFlag, error) {
	rows, err := p.pool.Query(ctx, flagsQuery(p.schema, p.flagsTable), key.StoreID)
	if err != nil {
		return nil, fmt.Errorf("查询期望状态失败: %w", err)
	}
	defer rows.Close()

	var out []domain.ActiveMenuFlag
	for rows.Next() {
		var (
			f        domain.ActiveMenuFlag
			kind     string
			modifier string
		)
		if err := rows.Scan(&kind, &f.RestaurantID, &f.CategoryID, &f.HeaderInfoID, &f.ProductID,
			&modifier, &f.Status, &f.UrunID, &f.Flag, &f.XAPIKey); err != nil {
			return nil, fmt.Errorf("读取期望状态失败: %w", err)
		}
		f.Kind = domain.FlagKind(kind)
		ref, err := domain.ParseModifierGroupRef(modifier)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", f.ProductID, err)
		}
		f.ModifierGroupIDs = ref
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历期望状态失败: %w", err)
	}
	return out, nil
}

// SaveOutcomes 分批多行插入阶段结果。
func (p *Postgres) SaveOutcomes(ctx context.Context, outcomes []domain.StageOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	rows, err := outcomeRows(outcomes)
	if err != nil {
		return err
	}
	batchSize := p.batchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	inserted := int64(0)
	err = util.EachBatch(rows, batchSize, func(chunk [][]any) error {
		query, args := buildInsert(p.schema, p.outcomesTable, outcomeColumns, chunk)
		tag, err := p.pool.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("写入阶段结果失败: %w", err)
		}
		inserted += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if inserted != int64(len(outcomes)) {
		return fmt.Errorf("写入阶段结果数量不符: 期望 %d, 实际 %d", len(outcomes), inserted)
	}
	return nil
}

// ResetOutcomes 清空结果表，实现 app.OutcomeStore。
func (p *Postgres) ResetOutcomes(ctx context.Context) error {
	return p.Truncate(ctx, p.outcomesTable)
}

// Truncate 清空表及其依赖。
func (p *Postgres) Truncate(ctx context.Context, table string) error {
	query := fmt.Sprintf(`TRUNCATE TABLE %s CASCADE`, pgx.Identifier{p.schema, table}.Sanitize())
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("清空表 %s 失败: %w", table, err)
	}
	return nil
}

// flagsQuery 按分类头与商品排序，变更列表的顺序由此确定。
func flagsQuery(schema, table string) string {
	return fmt.Sprintf(`SELECT type, restaurant_id, category_id, header_info_id, product_id,
		COALESCE(modifier_group_ids, '-'), status, urun_id, flag, COALESCE(x_api_key, '')
		FROM %s WHERE restaurant_id = $1 ORDER BY header_info_id, product_id`,
		pgx.Identifier{schema, table}.Sanitize())
}

func outcomeRows(outcomes []domain.StageOutcome) ([][]any, error) {
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		changes, err := json.Marshal(o.Changes)
		if err != nil {
			return nil, fmt.Errorf("序列化变更失败: %w", err)
		}
		rows = append(rows, []any{o.RunID, o.Key, o.Branch, o.StoreID, o.MenuID, o.Stage.String(), o.Success, o.Reason, string(changes), o.At})
	}
	return rows, nil
}

// buildInsert 生成 INSERT ... VALUES ($1, $2), ($3, $4) 形式的语句与参数。
func buildInsert(schema, table string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(rows)*len(columns))
	)
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", pgx.Identifier{schema, table}.Sanitize(), strings.Join(quoted, ", "))
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for i := range row {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			args = append(args, row[i])
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}
