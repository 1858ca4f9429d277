// Package paging tracks the current page of a paginated list.
package paging

import (
	"fmt"

	"github.com/hay-kot/huddle/internal/core/fault"
)

// DefaultPageSize is used when a controller is created with a non-positive
// size.
const DefaultPageSize = 2

// Controller holds the page index, the fixed page size and the latest total
// count reported by the backend. It is not safe for concurrent use.
type Controller struct {
	page       int
	pageSize   int
	totalCount int
}

func New(pageSize int) *Controller {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Controller{pageSize: pageSize}
}

// SetPage moves to page n (zero based).
func (c *Controller) SetPage(n int) error {
	if n < 0 {
		return fmt.Errorf("set page %d: %w", n, fault.ErrValidation)
	}
	c.page = n
	return nil
}

// SetTotalCount records the total number of items matching the current
// predicate.
func (c *Controller) SetTotalCount(n int) error {
	if n < 0 {
		return fmt.Errorf("set total count %d: %w", n, fault.ErrValidation)
	}
	c.totalCount = n
	return nil
}

// TotalPages is ceil(totalCount / pageSize).
func (c *Controller) TotalPages() int {
	return (c.totalCount + c.pageSize - 1) / c.pageSize
}

func (c *Controller) Page() int       { return c.page }
func (c *Controller) PageSize() int   { return c.pageSize }
func (c *Controller) TotalCount() int { return c.totalCount }

// Reset returns to the first page and forgets the total count, which
// belonged to the previous predicate.
func (c *Controller) Reset() {
	c.page = 0
	c.totalCount = 0
}

// HasNext reports whether a page after the current one exists.
func (c *Controller) HasNext() bool {
	return c.page+1 < c.TotalPages()
}
