package httpapi

import (
	"net/http"
	"strings"
)

const maxSuggestions = 5

// suggestionTopics is the curated list of frequently searched exam themes
// served by the suggestions endpoint.
var suggestionTopics = []string{
	"secularism principles",
	"women in freedom struggle",
	"climate change agriculture",
	"constitutional amendments",
	"economic reforms India",
	"foreign policy challenges",
	"governance reforms",
	"social justice issues",
	"environmental conservation",
	"cultural heritage preservation",
	"urbanization problems",
	"education policy reforms",
	"healthcare system improvements",
	"judicial reforms needed",
	"electoral reforms democracy",
}

// suggestionsResponse is the wire form of the suggestions endpoint.
type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// SearchSuggestions handles GET /api/v1/search/suggestions. It filters the
// curated topic list by substring match on the q parameter.
func (s *Server) SearchSuggestions(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "q parameter is required")
		return
	}

	needle := strings.ToLower(q)
	matched := make([]string, 0, maxSuggestions)
	for _, topic := range suggestionTopics {
		if strings.Contains(strings.ToLower(topic), needle) {
			matched = append(matched, topic)
			if len(matched) == maxSuggestions {
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: matched})
}
