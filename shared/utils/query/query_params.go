package query

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// FilterParams represents filtering parameters
type FilterParams struct {
	Filters map[string]string `json:"filters"`
	Sort    SortParams        `json:"sort"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Search  string            `json:"search"`
}

// SortParams represents sorting parameters
type SortParams struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// PaginationResponse represents pagination metadata
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	defaultLimit   = 10
	maxLimit       = 100
	defaultSortKey = "created_at"
	filterPrefix   = "filters["
)

// ParseQueryParams reads page, limit, search, filters[field] and sort[field]/sort[order].
func ParseQueryParams(c *gin.Context) FilterParams {
	return FilterParams{
		Filters: parseFilters(c.Request.URL.Query()),
		Sort:    parseSort(c.Query("sort[field]"), c.Query("sort[order]")),
		Page:    clamp(atoi(c.Query("page"), 1), 1, math.MaxInt32),
		Limit:   clamp(atoi(c.Query("limit"), defaultLimit), 1, maxLimit),
		Search:  c.Query("search"),
	}
}

func atoi(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, _ := strconv.Atoi(raw)
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func parseFilters(values url.Values) map[string]string {
	filters := make(map[string]string)
	for key, vals := range values {
		if !strings.HasPrefix(key, filterPrefix) || !strings.HasSuffix(key, "]") {
			continue
		}
		if len(vals) > 0 && vals[0] != "" {
			filters[key[len(filterPrefix):len(key)-1]] = vals[0]
		}
	}
	return filters
}

func parseSort(field, order string) SortParams {
	if field == "" {
		field = defaultSortKey
	}
	if order != "asc" {
		order = "desc"
	}
	return SortParams{Field: field, Order: order}
}

// ApplyFilters adds one equality condition per allowed filter, in field name order.
func ApplyFilters(query *gorm.DB, filters map[string]string, allowedFields map[string]string) *gorm.DB {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		dbField, allowed := allowedFields[field]
		if value := filters[field]; allowed && value != "" {
			query = query.Where(fmt.Sprintf("%s = ?", dbField), value)
		}
	}
	return query
}

// ApplySearch applies search to specified fields
func ApplySearch(query *gorm.DB, search string, searchFields []string) *gorm.DB {
	if search == "" || len(searchFields) == 0 {
		return query
	}

	conditions := make([]string, len(searchFields))
	args := make([]interface{}, len(searchFields))

	for i, field := range searchFields {
		conditions[i] = fmt.Sprintf("%s ILIKE ?", field)
		args[i] = "%" + search + "%"
	}

	whereClause := "(" + strings.Join(conditions, " OR ") + ")"
	return query.Where(whereClause, args...)
}

// ApplySort orders by an allowed field, falling back to newest first.
func ApplySort(query *gorm.DB, params SortParams, allowedSortFields map[string]string) *gorm.DB {
	dbField, allowed := allowedSortFields[params.Field]
	if !allowed {
		return query.Order("created_at DESC")
	}
	return query.Order(fmt.Sprintf("%s %s", dbField, strings.ToUpper(params.Order)))
}

func ApplyPagination(query *gorm.DB, page, limit int) *gorm.DB {
	return query.Offset((page - 1) * limit).Limit(limit)
}

// PageSlice returns the items of one page of an in-memory result.
func PageSlice[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// BoolFilter reads a true/false filter value.
func BoolFilter(filters map[string]string, field string) (value, ok bool) {
	v, present := filters[field]
	if !present {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// BuildPaginationResponse creates pagination metadata
func BuildPaginationResponse(page, limit int, total int64) PaginationResponse {
	limit = clamp(limit, 1, math.MaxInt32)
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return PaginationResponse{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(page) < totalPages,
		HasPrev:    page > 1,
	}
}
