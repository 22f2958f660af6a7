package pipeline

import (
	"fmt"

	"kevgir/internal/domain"
)

// State 是单个 key 的流水线状态。
type State int

const (
	StateKeySelect State = iota
	StateFetchMenu
	StateFlag
	StateApply
	StateDone
	StateFailed
)

// transitions 是成功时的唯一后继，失败一律进入 StateFailed。
var transitions = map[State]State{
	StateKeySelect: StateFetchMenu,
	StateFetchMenu: StateFlag,
	StateFlag:      StateApply,
	StateApply:     StateDone,
}

var stageOf = map[State]domain.Stage{
	StateKeySelect: domain.StageKeySelect,
	StateFetchMenu: domain.StageFetchMenu,
	StateFlag:      domain.StageFlag,
	StateApply:     domain.StageApply,
}

// Terminal 表示状态机已结束。
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Stage 返回该状态执行的阶段，终态返回 false。
func (s State) Stage() (domain.Stage, bool) {
	st, ok := stageOf[s]
	return st, ok
}

// Next 返回成功后的下一个状态。
func (s State) Next() State {
	if next, ok := transitions[s]; ok {
		return next
	}
	return s
}

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	if st, ok := s.Stage(); ok {
		return st.String()
	}
	return "unknown"
}

// MarshalText 让报告中的状态以名称输出。
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateKeySelect; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("未知状态 %q", text)
}
