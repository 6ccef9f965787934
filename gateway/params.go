package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaginationParams becomes the page, pageSize, sortBy and sortOrder query
// parameters. Unset fields are omitted.
type PaginationParams struct {
	Page      *int
	PageSize  *int
	SortBy    string
	SortOrder SortOrder
}

func (p PaginationParams) Values() url.Values {
	values := url.Values{}
	if p.Page != nil {
		values.Set("page", strconv.Itoa(*p.Page))
	}
	if p.PageSize != nil {
		values.Set("pageSize", strconv.Itoa(*p.PageSize))
	}
	if p.SortBy != "" {
		values.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		values.Set("sortOrder", string(p.SortOrder))
	}
	return values
}

// SearchParams adds a free text search and arbitrary filters. Nil filter
// values are skipped; others are formatted with fmt.Sprint.
type SearchParams struct {
	PaginationParams
	Search  string
	Filters map[string]any
}

func (s SearchParams) Values() url.Values {
	values := s.PaginationParams.Values()
	if s.Search != "" {
		values.Set("search", s.Search)
	}

	keys := make([]string, 0, len(s.Filters))
	for k := range s.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Filters[k]
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values
}

// Pagination is the paging metadata of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PaginatedResponse is returned whole by GetPaginated and Search.
type PaginatedResponse[T any] struct {
	Success    bool       `json:"success"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Message    string     `json:"message,omitempty"`
}
