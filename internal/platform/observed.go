package platform

import "kevgir/internal/domain"

// BuildObservedState 将菜单与加料响应合并为按 id 索引的观测状态。
// 同一商品出现在多个 header 时保留第一次出现。
func BuildObservedState(menu MenuDetails, options *OptionDetails) domain.ObservedMenuState {
	state := domain.NewObservedMenuState()
	for _, header := range menu.Headers {
		for _, item := range header.Items {
			if _, seen := state.Products[item.ProductID]; seen {
				continue
			}
			state.Products[item.ProductID] = domain.ObservedProduct{
				ProductID:  item.ProductID,
				HeaderID:   header.ID,
				MenuItemID: item.ID,
				Status:     item.Status,
			}
		}
	}
	if options == nil {
		return state
	}
	for _, data := range options.Data {
		for _, h := range data.OptionsInfo.Headers {
			group, ok := state.Groups[h.OptionHeader.ID]
			if !ok {
				group = domain.ObservedGroup{GroupID: h.OptionHeader.ID, OwnerID: h.OwnerID}
			}
			for _, it := range h.Items {
				group.Items = append(group.Items, domain.ObservedOption{
					OptionItemID: it.OptionItem.ID,
					Status:       it.OptionItem.Status,
				})
			}
			state.Groups[h.OptionHeader.ID] = group
		}
	}
	return state
}
