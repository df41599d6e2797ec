package util

import "github.com/procflow/procflow/model"

// Paginate slices an already filtered result set. The page request must
// be normalized by the caller.
func Paginate[T any](all []T, page model.PageRequest) *model.PageResult[T] {
	start := (page.PageNum - 1) * page.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}
	return &model.PageResult[T]{
		Total:    len(all),
		PageNum:  page.PageNum,
		PageSize: page.PageSize,
		List:     all[start:end],
	}
}
