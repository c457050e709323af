package main

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageParams holds the requested page. Zero or negative values fall back to defaults.
type PageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize applies the default page and page size to unset values.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Page is the pagination envelope returned by every listing.
type Page[T any] struct {
	PrevPage   *int `json:"prevPage"`
	NextPage   *int `json:"nextPage"`
	TotalPages int  `json:"totalPages"`
	TotalItems int  `json:"totalItems"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Data       []T  `json:"data"`
}

// Paginate slices the already filtered and ordered items. There is no next
// page once the requested page reaches the last one.
func Paginate[T any](items []T, params PageParams) Page[T] {
	params = params.Normalize()
	total := len(items)
	totalPages := total / params.PageSize
	if total%params.PageSize != 0 {
		totalPages++
	}

	page := Page[T]{
		TotalPages: totalPages,
		TotalItems: total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		Data:       []T{},
	}
	if params.Page > 1 {
		prev := params.Page - 1
		page.PrevPage = &prev
	}
	if params.Page < totalPages {
		next := params.Page + 1
		page.NextPage = &next
	}

	// Page-1 < totalPages <= total keeps the offsets below from overflowing.
	if params.Page-1 >= totalPages {
		return page
	}
	skip := (params.Page - 1) * params.PageSize
	end := total
	if total-skip > params.PageSize {
		end = skip + params.PageSize
	}
	page.Data = append(page.Data, items[skip:end]...)
	return page
}

// MapPage converts the data of a page while keeping its metadata.
func MapPage[T, V any](p Page[T], convert func(T) V) Page[V] {
	out := Page[V]{
		PrevPage:   p.PrevPage,
		NextPage:   p.NextPage,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Data:       make([]V, 0, len(p.Data)),
	}
	for _, item := range p.Data {
		out.Data = append(out.Data, convert(item))
	}
	return out
}
