package builder

import (
	"regexp"
	"strings"
)

// SignatureKind identifies a recognised failure class.
type SignatureKind string

const (
	MissingKey        SignatureKind = "missing_key"
	ShapeMismatch     SignatureKind = "shape_mismatch"
	AuthFailure       SignatureKind = "auth_failure"
	PaginationFailure SignatureKind = "pagination_failure"
	Unrecognized      SignatureKind = "unrecognized"
)

// Signature is one recognised failure. Key is set for MissingKey when the
// error text quotes the missing key.
type Signature struct {
	Kind SignatureKind
	Key  string
}

func (s Signature) String() string {
	if s.Key != "" {
		return string(s.Kind) + "(" + s.Key + ")"
	}
	return string(s.Kind)
}

var (
	missingKeyPattern    = regexp.MustCompile(`(?i)keyerror|missing_key|not found`)
	quotedKeyPattern     = regexp.MustCompile(`['"]([\w]+)['"]`)
	shapeMismatchPattern = regexp.MustCompile(`(?i)attributeerror|object has no attribute|shape[_ ]mismatch`)
	authPattern          = regexp.MustCompile(`\b40[13]\b|(?i:unauthorized)`)
	paginationPattern    = regexp.MustCompile(`(?i)pagination|cursor`)
)

// Classify maps raw error text onto every signature it matches, in the
// order MissingKey, ShapeMismatch, AuthFailure, PaginationFailure. Text
// matching none yields a single Unrecognized signature.
func Classify(text string) []Signature {
	var sigs []Signature

	if missingKeyPattern.MatchString(text) {
		sig := Signature{Kind: MissingKey}
		if m := quotedKeyPattern.FindStringSubmatch(text); m != nil {
			sig.Key = m[1]
		}
		sigs = append(sigs, sig)
	}
	if shapeMismatchPattern.MatchString(text) {
		sigs = append(sigs, Signature{Kind: ShapeMismatch})
	}
	if authPattern.MatchString(text) {
		sigs = append(sigs, Signature{Kind: AuthFailure})
	}
	if paginationPattern.MatchString(text) {
		sigs = append(sigs, Signature{Kind: PaginationFailure})
	}

	if len(sigs) == 0 {
		return []Signature{{Kind: Unrecognized}}
	}
	return sigs
}

func joinSignatures(sigs []Signature) string {
	parts := make([]string, len(sigs))
	for i, s := range sigs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
