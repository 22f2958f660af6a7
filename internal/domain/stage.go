package domain

import (
	"fmt"
	"time"
)

// Stage 是单个 key 流水线的阶段，顺序固定。
type Stage int

const (
	StageKeySelect Stage = iota
	StageFetchMenu
	StageFlag
	StageApply
)

// Stages 按执行顺序列出全部阶段。
var Stages = []Stage{StageKeySelect, StageFetchMenu, StageFlag, StageApply}

func (s Stage) String() string {
	switch s {
	case StageKeySelect:
		return "key_select"
	case StageFetchMenu:
		return "fetch_menu"
	case StageFlag:
		return "flag"
	case StageApply:
		return "apply"
	default:
		return "unknown"
	}
}

// MarshalText 让 Stage 在 JSON 中以名称输出。
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 解析 MarshalText 输出的名称。
func (s *Stage) UnmarshalText(text []byte) error {
	for _, st := range Stages {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("未知阶段 %q", text)
}

// StageOutcome 记录某个 key 某个阶段的结果，创建后不再修改。
type StageOutcome struct {
	RunID   string         `json:"run_id"`
	Key     string         `json:"restaurant_key"`
	Branch  string         `json:"branch"`
	StoreID int64          `json:"store_id"`
	MenuID  int64          `json:"menu_id"`
	Stage   Stage          `json:"stage"`
	Success bool           `json:"success"`
	Reason  string         `json:"reason,omitempty"`
	Changes []StatusChange `json:"changes,omitempty"`
	At      time.Time      `json:"at"`
}
