package service

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageInfo 分页元信息；HasMore 仅表示本页已满
type PageInfo struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// normalizePage page 从 1 开始，limit 夹在 [1, MaxPageSize]，0 取默认值
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

func pageInfo(page, limit, n int) PageInfo {
	return PageInfo{Page: page, Limit: limit, HasMore: n == limit}
}
