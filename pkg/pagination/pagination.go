package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 200
)

// Params is a page request clamped to sane bounds
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string. Garbage falls back to
// the defaults rather than failing the request.
func Parse(c *gin.Context) Params {
	return Clamp(atoi(c.Query("page")), atoi(c.Query("limit")))
}

// Clamp normalises a page request
func Clamp(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset is the number of rows to skip
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
