package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 100
)

// Params holds 1-based page pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Meta is returned alongside a page of results.
type Meta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Normalize clamps the page to at least 1 and the limit to the allowed range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the number of rows skipped before the page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Trim drops the look-ahead row fetched with LimitWithBuffer and reports the page metadata.
func Trim[T any](items []T, p Params) ([]T, Meta) {
	n := p.Normalize()
	meta := Meta{Page: n.Page, Limit: n.Limit}
	if len(items) > n.Limit {
		meta.HasMore = true
		items = items[:n.Limit]
	}
	return items, meta
}

// FromQuery reads the page and limit query parameters.
func FromQuery(q url.Values) (Params, error) {
	var p Params
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = page
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Params{}, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = limit
	}
	return p.Normalize(), nil
}
