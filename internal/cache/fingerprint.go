package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
)

// Fingerprint derives the deterministic cache key for a logical query.
// The query text is case-folded and whitespace-normalized, and the filter is
// encoded in a fixed field order, so identical queries always collide.
// Pagination parameters are deliberately excluded: every page of one logical
// query shares the cached full result set.
func Fingerprint(query string, f filter.Filter) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(f.Canonical()))
	return hex.EncodeToString(h.Sum(nil))
}
