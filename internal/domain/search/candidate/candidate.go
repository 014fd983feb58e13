// Package candidate holds retrieved question candidates and their ordering.
package candidate

import "sort"

// Metadata carries the exam attributes stored alongside a question.
type Metadata struct {
	Subject    string
	Year       int
	Paper      string
	Marks      int
	WordLimit  int
	Difficulty string
	Topics     []string
}

// Candidate is a single retrieved question with its similarity score and an
// optional re-rank score.
type Candidate struct {
	id         string
	sourceText string
	meta       Metadata
	similarity float64
	rerank     *float64
}

// New creates a candidate from a vector index hit.
func New(id, sourceText string, meta Metadata, similarity float64) Candidate {
	return Candidate{id: id, sourceText: sourceText, meta: meta, similarity: similarity}
}

// ID returns the question identifier.
func (c *Candidate) ID() string { return c.id }

// SourceText returns the question text.
func (c *Candidate) SourceText() string { return c.sourceText }

// Metadata returns the exam attributes.
func (c *Candidate) Metadata() Metadata { return c.meta }

// Similarity returns the vector similarity score in [0,1].
func (c *Candidate) Similarity() float64 { return c.similarity }

// RerankScore returns the re-rank score (nil when re-ranking was skipped).
func (c *Candidate) RerankScore() *float64 { return c.rerank }

// WithRerankScore returns a copy annotated with a re-rank score.
func (c Candidate) WithRerankScore(score float64) Candidate {
	c.rerank = &score
	return c
}

// EffectiveScore is the ordering score: re-rank score if present, else
// similarity.
func (c *Candidate) EffectiveScore() float64 {
	if c.rerank != nil {
		return *c.rerank
	}
	return c.similarity
}

// SortByEffectiveScore orders candidates by effective score descending.
// Ties keep their input order, preserving the index's own ranking.
func SortByEffectiveScore(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].EffectiveScore() > cs[j].EffectiveScore()
	})
}
