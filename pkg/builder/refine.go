package builder

import (
	"github.com/ajitpratap0/adagent/pkg/pattern"
)

// DataPathCandidates is the cycle MissingKey refinement walks through.
var DataPathCandidates = []string{"data", "results", "items", "records", pattern.RootPath}

// Refine returns the pattern for the next attempt given the failed
// attempt's error text, along with the signatures that were applied. The
// input is never modified. Unrecognised text returns p unchanged.
func Refine(p pattern.Description, errorText string) (pattern.Description, []Signature) {
	sigs := Classify(errorText)
	next := p

	for _, sig := range sigs {
		switch sig.Kind {
		case MissingKey:
			next = next.WithDataPath(nextDataPath(next.DataPath))
		case ShapeMismatch:
			if next.Envelope.Kind == pattern.EnvelopeWrapped {
				next = next.WithEnvelope(pattern.Envelope{Kind: pattern.EnvelopeStandard})
			}
		case AuthFailure:
			next = next.WithAuthRequired(true)
		case PaginationFailure:
			if next.Pagination.Kind == pattern.PaginationCursor {
				next = next.WithPagination(pattern.Pagination{Kind: pattern.PaginationNone})
			}
		}
	}
	return next, sigs
}

// nextDataPath returns the candidate after current in DataPathCandidates,
// wrapping around. An unset path reads as "data" and moves on from there; any
// other path outside the list moves to the first candidate.
func nextDataPath(current string) string {
	if current == "" {
		current = DataPathCandidates[0]
	}
	idx := -1
	for i, c := range DataPathCandidates {
		if c == current {
			idx = i
			break
		}
	}
	return DataPathCandidates[(idx+1)%len(DataPathCandidates)]
}
