package types

// PageInfo describes the window of a list result
type PageInfo struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type ListResponse[T any] struct {
	Items      []T      `json:"items"`
	Pagination PageInfo `json:"pagination"`
}

// NewListResponse wraps a page of items. A nil page is rendered as an empty array.
func NewListResponse[T any](items []T, total, limit, offset int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items: items,
		Pagination: PageInfo{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
		},
	}
}
