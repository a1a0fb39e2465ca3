package domain

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults, caps the limit and keeps the page low enough
// for Offset plus Limit to fit in an int.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if maxPage := math.MaxInt / p.Limit; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func NewPagination(total int, req PageRequest) Pagination {
	req = req.Normalize()
	totalPages := (total + req.Limit - 1) / req.Limit
	return Pagination{
		Total:       total,
		Page:        req.Page,
		Limit:       req.Limit,
		TotalPages:  totalPages,
		HasNextPage: req.Page < totalPages,
		HasPrevPage: req.Page > 1,
	}
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Paginate slices an already sorted collection.
func Paginate[T any](all []T, req PageRequest) Page[T] {
	req = req.Normalize()
	start := min(req.Offset(), len(all))
	end := min(start+req.Limit, len(all))
	items := make([]T, 0, end-start)
	items = append(items, all[start:end]...)
	return Page[T]{Items: items, Pagination: NewPagination(len(all), req)}
}
