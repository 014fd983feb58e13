package search

import "context"

// ContextExpander is a deterministic Expander used when the LLM expansion
// stage is disabled: it prefixes the exam-domain context that the corpus
// texts share, which measurably helps recall over embedding the bare query.
type ContextExpander struct{}

// Expand never fails.
func (ContextExpander) Expand(_ context.Context, rawQuery string) (string, error) {
	return "previous year exam questions about " + rawQuery, nil
}
