package flagger

import (
	"strings"

	"kevgir/internal/domain"
)

// Result 是一次对账的输出。Missing 为平台菜单中找不到的商品 id。
type Result struct {
	Changes []domain.StatusChange
	Missing []int64
}

type target struct {
	kind domain.TargetKind
	id   int64
}

// Diff 计算让平台状态与期望状态一致所需的变更。
// 变更顺序: 期望记录顺序，其次加料组 id 顺序与选项顺序；同一目标只保留首次出现。
func Diff(key domain.RestaurantKey, flags []domain.ActiveMenuFlag, observed domain.ObservedMenuState) Result {
	var res Result
	seen := make(map[target]struct{})
	emit := func(kind domain.TargetKind, id int64, desired domain.Status) {
		t := target{kind: kind, id: id}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		res.Changes = append(res.Changes, domain.StatusChange{Target: kind, TargetID: id, StoreID: key.StoreID, Desired: desired})
	}

	for _, f := range flags {
		if !Reconcilable(f) {
			continue
		}
		product, ok := observed.Products[f.ProductID]
		if !ok {
			res.Missing = append(res.Missing, f.ProductID)
			continue
		}
		desired := domain.StatusFromBool(f.Status)
		if domain.IsActive(product.Status) != f.Status {
			emit(domain.TargetProduct, f.ProductID, desired)
		}

		groupIDs, ok := f.ModifierGroupIDs.IDs()
		if !ok {
			continue
		}
		for _, gid := range groupIDs {
			group, ok := observed.Groups[gid]
			if !ok {
				continue
			}
			for _, item := range group.Items {
				if domain.IsActive(item.Status) != f.Status {
					emit(domain.TargetOptionItem, item.OptionItemID, desired)
				}
			}
		}
	}
	return res
}

// Reconcilable 只有商品级记录参与对账，flag=false 的记录被排除。
func Reconcilable(f domain.ActiveMenuFlag) bool {
	kind := domain.FlagKind(strings.ToLower(strings.TrimSpace(string(f.Kind))))
	if kind != "" && kind != domain.FlagKindProduct {
		return false
	}
	if f.Flag != nil && !*f.Flag {
		return false
	}
	return true
}

// NeedsOptions 判断是否有记录引用了加料组，决定是否需要拉取加料详情。
func NeedsOptions(flags []domain.ActiveMenuFlag) bool {
	for _, f := range flags {
		if Reconcilable(f) && f.ModifierGroupIDs.HasIDs() {
			return true
		}
	}
	return false
}
