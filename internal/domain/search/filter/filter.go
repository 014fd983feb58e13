// Package filter holds the metadata pre-filter applied to vector retrieval.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Year bounds for the archived question corpus.
const (
	MinYear = 1990
	MaxYear = 2100
)

// Filter narrows retrieval to questions matching subject, year, or paper.
// The zero value matches everything.
type Filter struct {
	subject string
	year    int
	paper   string
}

// New validates and creates a Filter. Empty fields are unset.
func New(subject string, year int, paper string) (Filter, error) {
	subject = strings.TrimSpace(subject)
	paper = strings.TrimSpace(paper)
	if year != 0 && (year < MinYear || year > MaxYear) {
		return Filter{}, fmt.Errorf("year must be between %d and %d, got %d", MinYear, MaxYear, year)
	}
	return Filter{subject: subject, year: year, paper: paper}, nil
}

// Subject returns the subject filter ("" = unset).
func (f Filter) Subject() string { return f.subject }

// Year returns the year filter (0 = unset).
func (f Filter) Year() int { return f.year }

// Paper returns the paper filter ("" = unset).
func (f Filter) Paper() string { return f.paper }

// IsEmpty reports whether no field is set.
func (f Filter) IsEmpty() bool {
	return f.subject == "" && f.year == 0 && f.paper == ""
}

// Canonical returns a deterministic encoding of the filter with a fixed field
// order, suitable for fingerprinting. Unset fields are still emitted so that
// "no filter" and "no filter" always encode identically.
func (f Filter) Canonical() string {
	var b strings.Builder
	b.WriteString("subject=")
	b.WriteString(strings.ToLower(f.subject))
	b.WriteString("\x1fyear=")
	b.WriteString(strconv.Itoa(f.year))
	b.WriteString("\x1fpaper=")
	b.WriteString(strings.ToLower(f.paper))
	return b.String()
}
