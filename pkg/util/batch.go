package util

// EachBatch 按 size 切分 items 依次交给 fn，fn 出错时立即返回该错误。
// size <= 0 时整体作为一批，items 为空时不调用 fn。
func EachBatch[T any](items []T, size int, fn func(batch []T) error) error {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size > len(items) {
		size = len(items)
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end:end]); err != nil {
			return err
		}
	}
	return nil
}
