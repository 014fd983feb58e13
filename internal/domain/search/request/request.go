package request

import (
	"fmt"
	"strings"

	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 512
	DefaultPage    = 1
	DefaultLimit   = 10
	MaxLimit       = 50
)

// Request is a validated, immutable search query.
type Request struct {
	query   string
	filters filter.Filter
	page    int
	limit   int
}

// New validates and normalizes search parameters.
// Defaults: page=1, limit=10. A blank query, page < 1, or limit < 1 is
// rejected with domain.ErrInvalidQuery.
func New(query string, filters filter.Filter, page, limit int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidQuery)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if page == 0 {
		page = DefaultPage
	}
	if page < 1 {
		return Request{}, fmt.Errorf("%w: page must be >= 1, got %d", domain.ErrInvalidQuery, page)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 {
		return Request{}, fmt.Errorf("%w: limit must be >= 1, got %d", domain.ErrInvalidQuery, limit)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{query: query, filters: filters, page: page, limit: limit}, nil
}

// Query returns the trimmed search query text.
func (r *Request) Query() string { return r.query }

// Filters returns the metadata pre-filter.
func (r *Request) Filters() filter.Filter { return r.filters }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }
