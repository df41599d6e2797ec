package util

import (
	"testing"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, model.PageRequest{PageNum: 1, PageSize: 2}.Normalize())
	require.Equal(t, 5, page.Total)
	require.Equal(t, []int{1, 2}, page.List)

	page = Paginate(items, model.PageRequest{PageNum: 3, PageSize: 2}.Normalize())
	require.Equal(t, []int{5}, page.List)

	page = Paginate(items, model.PageRequest{PageNum: 9, PageSize: 2}.Normalize())
	require.Empty(t, page.List)

	// zero values normalize to the defaults
	page = Paginate(items, model.PageRequest{}.Normalize())
	require.Equal(t, 1, page.PageNum)
	require.Equal(t, 20, page.PageSize)
	require.Len(t, page.List, 5)
}
