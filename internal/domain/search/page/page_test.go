package page

import (
	"fmt"
	"testing"

	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
)

func makeCandidates(n int) []candidate.Candidate {
	cs := make([]candidate.Candidate, n)
	for i := 0; i < n; i++ {
		cs[i] = candidate.New(fmt.Sprintf("q%d", i), "", candidate.Metadata{}, 1.0-float64(i)*0.01)
	}
	return cs
}

func TestSlice_Windows(t *testing.T) {
	results := makeCandidates(15)

	tests := []struct {
		page      int
		limit     int
		wantLen   int
		wantFirst string
		wantMore  bool
	}{
		{1, 10, 10, "q0", true},
		{2, 10, 5, "q10", false},
		{1, 5, 5, "q0", true},
		{3, 5, 5, "q10", false},
		{1, 15, 15, "q0", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d,limit=%d", tt.page, tt.limit), func(t *testing.T) {
			window, hasMore := Slice(results, tt.page, tt.limit, 50)
			if len(window) != tt.wantLen {
				t.Fatalf("expected %d items, got %d", tt.wantLen, len(window))
			}
			if window[0].ID() != tt.wantFirst {
				t.Errorf("expected first item %s, got %s", tt.wantFirst, window[0].ID())
			}
			if hasMore != tt.wantMore {
				t.Errorf("expected hasMore=%v, got %v", tt.wantMore, hasMore)
			}
		})
	}
}

// Successive pages over one cached set must be disjoint and reassemble the
// set in its original order.
func TestSlice_PagesAreDisjointAndComplete(t *testing.T) {
	results := makeCandidates(25)

	var union []string
	for pageNum := 1; pageNum <= 3; pageNum++ {
		window, _ := Slice(results, pageNum, 10, 50)
		for i := range window {
			union = append(union, window[i].ID())
		}
	}

	if len(union) != 25 {
		t.Fatalf("expected the pages to cover all 25 items, got %d", len(union))
	}
	seen := make(map[string]bool, len(union))
	for i, id := range union {
		if seen[id] {
			t.Fatalf("item %s appears in more than one page", id)
		}
		seen[id] = true
		if id != results[i].ID() {
			t.Fatalf("original order not preserved at %d: %s vs %s", i, id, results[i].ID())
		}
	}
}

func TestSlice_PastEnd(t *testing.T) {
	results := makeCandidates(15)

	window, hasMore := Slice(results, 4, 10, 50)
	if len(window) != 0 {
		t.Errorf("offset past the end should yield an empty window, got %d items", len(window))
	}
	if hasMore {
		t.Error("offset past the end should report hasMore=false")
	}
}

func TestSlice_Empty(t *testing.T) {
	window, hasMore := Slice(nil, 1, 10, 50)
	if len(window) != 0 || hasMore {
		t.Errorf("empty results should yield (empty, false), got (%d, %v)", len(window), hasMore)
	}
}

// When retrieval came back capped at exactly topK the true total is unknown,
// so a full window conservatively reports more.
func TestSlice_CappedAtTopK(t *testing.T) {
	results := makeCandidates(50)

	_, hasMore := Slice(results, 5, 10, 50)
	if !hasMore {
		t.Error("full last window of a capped result set should report hasMore=true")
	}

	window, hasMore := Slice(results, 9, 6, 50)
	if len(window) != 2 {
		t.Fatalf("expected 2 items in the final partial window, got %d", len(window))
	}
	if hasMore {
		t.Error("partial window past the cap should report hasMore=false")
	}
}
