// Package page slices a ranked result set into pagination windows.
package page

import "github.com/prepgenie/pyqsearch/internal/domain/search/candidate"

// Slice extracts the window for a 1-based page of the given limit.
// An offset past the end of results yields an empty window, not an error.
//
// The hasMore flag is a best-effort hint: more results are reported when
// unsliced candidates remain past a full window, or — for a result set capped
// at exactly topK by the vector index — when the window itself came back
// full, since the true total past the cap is unknown.
func Slice(results []candidate.Candidate, pageNum, limit, topK int) ([]candidate.Candidate, bool) {
	offset := (pageNum - 1) * limit
	if offset >= len(results) {
		return nil, false
	}

	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	window := results[offset:end]

	if topK > 0 && len(results) == topK {
		return window, len(window) == limit
	}
	return window, len(window) == limit && end < len(results)
}
