package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RestaurantKey 表示表格中一行分店/菜单配对。
type RestaurantKey struct {
	ChainID            int64  `json:"chain_id"`
	StoreID            int64  `json:"store_id"`
	MenuID             int64  `json:"menu_id"`
	BrandName          string `json:"brand_name"`
	BrandNamePlatform  string `json:"brand_name_platform"`
	BranchName         string `json:"branch_name"`
	BranchBrandName    string `json:"branch_brand_name"`
	BranchNamePlatform string `json:"branch_name_platform"`
	RestaurantKey      string `json:"restaurant_key"`
}

// NoModifiersMarker 是表格/接口中"无加料组"的占位值。
const NoModifiersMarker = "-"

// ModifierGroupRef 要么携带加料组 id 列表，要么是 "-" 占位。
type ModifierGroupRef struct {
	ids []int64
	has bool
}

// ModifierIDs 构建携带 id 的引用。
func ModifierIDs(ids ...int64) ModifierGroupRef {
	return ModifierGroupRef{ids: append([]int64(nil), ids...), has: true}
}

// NoModifiers 返回 "-" 占位引用。
func NoModifiers() ModifierGroupRef {
	return ModifierGroupRef{}
}

// IDs 返回 id 列表及是否为 id 变体。
func (r ModifierGroupRef) IDs() ([]int64, bool) {
	if !r.has {
		return nil, false
	}
	return append([]int64(nil), r.ids...), true
}

// HasIDs 仅当引用为 id 变体且非空时返回 true。
func (r ModifierGroupRef) HasIDs() bool {
	return r.has && len(r.ids) > 0
}

func (r ModifierGroupRef) String() string {
	if !r.has {
		return NoModifiersMarker
	}
	return fmt.Sprint(r.ids)
}

// MarshalJSON 输出 id 数组或 "-"。
func (r ModifierGroupRef) MarshalJSON() ([]byte, error) {
	if !r.has {
		return json.Marshal(NoModifiersMarker)
	}
	ids := r.ids
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON 只接受整数数组或字符串 "-"。
func (r *ModifierGroupRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s != NoModifiersMarker {
			return fmt.Errorf("modifier_group_ids 字符串只允许 %q, 实际为 %q", NoModifiersMarker, s)
		}
		*r = NoModifiers()
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(trimmed, &ids); err != nil {
		return fmt.Errorf("modifier_group_ids 解析失败: %w", err)
	}
	*r = ModifierIDs(ids...)
	return nil
}

// FlagKind 区分分类/标题/商品级别的期望状态记录。
type FlagKind string

const (
	FlagKindCategory FlagKind = "category"
	FlagKindHeader   FlagKind = "header"
	FlagKindProduct  FlagKind = "product"
)

// ActiveMenuFlag 是外部维护的期望状态，流水线只读。
type ActiveMenuFlag struct {
	Kind             FlagKind         `json:"type"`
	RestaurantID     int64            `json:"restaurant_id"`
	CategoryID       int64            `json:"category_id"`
	HeaderInfoID     int64            `json:"header_info_id"`
	ProductID        int64            `json:"product_id"`
	ModifierGroupIDs ModifierGroupRef `json:"modifier_group_ids"`
	Status           bool             `json:"status"`
	UrunID           *int64           `json:"urun_id,omitempty"`
	Flag             *bool            `json:"flag,omitempty"`
	XAPIKey          string           `json:"x_api_key"`
}

// ParseModifierGroupRef 解析表格/数据库中的文本形式: "-"、空串、"1,2,3" 或 "[1,2,3]"。
func ParseModifierGroupRef(raw string) (ModifierGroupRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == NoModifiersMarker {
		return NoModifiers(), nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ModifierGroupRef{}, fmt.Errorf("加料组 id 非法 %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return NoModifiers(), nil
	}
	return ModifierIDs(ids...), nil
}
