package domain

import (
	"fmt"
	"strings"
)

// Status 是平台侧的商品/选项状态。
type Status string

const (
	StatusActive  Status = "active"
	StatusPassive Status = "passive"
)

// StatusFromBool 将期望布尔值映射为平台状态。
func StatusFromBool(active bool) Status {
	if active {
		return StatusActive
	}
	return StatusPassive
}

// IsActive 大小写不敏感地判断平台返回的状态字符串。
func IsActive(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), string(StatusActive))
}

// TargetKind 标识一次状态变更的目标类型。
type TargetKind string

const (
	TargetProduct    TargetKind = "product"
	TargetOptionItem TargetKind = "option_item"
)

// StatusChange 是对账产出的一条待下发变更。
type StatusChange struct {
	Target   TargetKind `json:"target"`
	TargetID int64      `json:"target_id"`
	StoreID  int64      `json:"store_id"`
	Desired  Status     `json:"desired"`
}

func (c StatusChange) String() string {
	return fmt.Sprintf("%s:%d->%s", c.Target, c.TargetID, c.Desired)
}

// ObservedProduct 是平台菜单中一个商品的当前状态。
type ObservedProduct struct {
	ProductID  int64
	HeaderID   int64
	MenuItemID int64
	Status     string
}

// ObservedOption 是加料组中一个选项的当前状态。
type ObservedOption struct {
	OptionItemID int64
	Status       string
}

// ObservedGroup 是一个加料组（option header）及其选项。
type ObservedGroup struct {
	GroupID int64
	OwnerID int64
	Items   []ObservedOption
}

// ObservedMenuState 每个 key 每次运行临时构建，对账后丢弃。
type ObservedMenuState struct {
	Products map[int64]ObservedProduct
	Groups   map[int64]ObservedGroup
}

// NewObservedMenuState 返回空的观测状态。
func NewObservedMenuState() ObservedMenuState {
	return ObservedMenuState{
		Products: make(map[int64]ObservedProduct),
		Groups:   make(map[int64]ObservedGroup),
	}
}
