package catalog

import (
	"fmt"
	"strconv"

	"kevgir/internal/domain"
)

// MinColumns 是一行 key 至少需要的列数。
const MinColumns = 9

// RowParseError 描述被跳过的一行，Row 从 1 开始计数。
type RowParseError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("第 %d 行解析失败: %s", e.Row, e.Reason)
}

// Result 汇总解析成功的 key 与被跳过的行。
type Result struct {
	Keys    []domain.RestaurantKey
	Skipped []RowParseError
}

// SkippedCount 返回被跳过的行数。
func (r Result) SkippedCount() int {
	return len(r.Skipped)
}

// ParseKey 将一行表格解析为 RestaurantKey。
func ParseKey(row []string) (domain.RestaurantKey, error) {
	if len(row) < MinColumns {
		return domain.RestaurantKey{}, fmt.Errorf("至少需要 %d 列, 实际 %d 列", MinColumns, len(row))
	}
	chainID, err := parseID("chain_id", row[0])
	if err != nil {
		return domain.RestaurantKey{}, err
	}
	storeID, err := parseID("store_id", row[1])
	if err != nil {
		return domain.RestaurantKey{}, err
	}
	menuID, err := parseID("menu_id", row[2])
	if err != nil {
		return domain.RestaurantKey{}, err
	}
	return domain.RestaurantKey{
		ChainID:            chainID,
		StoreID:            storeID,
		MenuID:             menuID,
		BrandName:          row[3],
		BrandNamePlatform:  row[4],
		BranchName:         row[5],
		BranchBrandName:    row[6],
		BranchNamePlatform: row[7],
		RestaurantKey:      row[8],
	}, nil
}

func parseID(field, raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s 无法转换为整数: %q", field, raw)
	}
	return v, nil
}

// Parse 逐行解析，坏行计入 Skipped 而不中断整批。
func Parse(rows [][]string) Result {
	res := Result{Keys: make([]domain.RestaurantKey, 0, len(rows))}
	for i, row := range rows {
		key, err := ParseKey(row)
		if err != nil {
			res.Skipped = append(res.Skipped, RowParseError{Row: i + 1, Reason: err.Error()})
			continue
		}
		res.Keys = append(res.Keys, key)
	}
	return res
}

// FilterByBranch 返回 branch_name 与目标完全相同的 key，保持原始行序。
func FilterByBranch(rows [][]string, branch string) Result {
	parsed := Parse(rows)
	filtered := make([]domain.RestaurantKey, 0, len(parsed.Keys))
	for _, key := range parsed.Keys {
		if key.BranchName == branch {
			filtered = append(filtered, key)
		}
	}
	parsed.Keys = filtered
	return parsed
}
