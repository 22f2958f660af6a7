package store

import (
	"context"
	"sync"

	"kevgir/internal/domain"
)

// StaticFlagSource 用于测试或未配置数据库的场景，直接返回内存中的期望状态。
type StaticFlagSource struct {
	mu    sync.RWMutex
	Items []domain.ActiveMenuFlag
	Err   error
}

// Flags 返回 restaurant_id 等于 key.StoreID 的记录，保持原顺序。
func (s *StaticFlagSource) Flags(_ context.Context, key domain.RestaurantKey) ([]domain.ActiveMenuFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []domain.ActiveMenuFlag
	for _, f := range s.Items {
		if f.RestaurantID == key.StoreID {
			out = append(out, f)
		}
	}
	return out, nil
}

// Set 替换全部记录。
func (s *StaticFlagSource) Set(items []domain.ActiveMenuFlag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append([]domain.ActiveMenuFlag(nil), items...)
}
