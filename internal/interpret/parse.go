package interpret

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ParseCandidates parses a model response into candidate transactions.
// The response is only nominally JSON: markdown fences and surrounding prose
// are stripped, and the array is decoded element by element so a single
// malformed element is skipped (and logged) instead of failing the batch.
// A response with no JSON array at all is an error.
func ParseCandidates(raw string) ([]Candidate, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Isolate the array - look for first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	text = text[startIdx : endIdx+1]

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, fmt.Errorf("unmarshaling json array: %w", err)
	}

	candidates := make([]Candidate, 0, len(elements))
	for i, element := range elements {
		var candidate Candidate
		if err := json.Unmarshal(element, &candidate); err != nil {
			slog.Warn("Skipping malformed candidate in model response", "index", i, "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
