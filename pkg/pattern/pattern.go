// Package pattern describes what is believed about an upstream API: how it
// paginates, how its responses are enveloped, how it signals rate limits and
// where the records live in a response body.
//
// A Description is a plain value. Every field is itself a value type, so
// copying a Description copies all of it; the With* helpers return modified
// copies and never touch the receiver. This keeps each build attempt's
// snapshot intact in the attempt log.
package pattern

import (
	"fmt"
	"strings"
)

// PaginationKind identifies the pagination scheme of an API.
type PaginationKind string

const (
	PaginationNone   PaginationKind = "none"
	PaginationCursor PaginationKind = "cursor"
	PaginationOffset PaginationKind = "offset"
	PaginationPage   PaginationKind = "page"
)

// Valid reports whether k is a known pagination kind.
func (k PaginationKind) Valid() bool {
	switch k {
	case PaginationNone, PaginationCursor, PaginationOffset, PaginationPage:
		return true
	}
	return false
}

// EnvelopeKind identifies whether responses wrap their payload.
type EnvelopeKind string

const (
	EnvelopeStandard EnvelopeKind = "standard"
	EnvelopeWrapped  EnvelopeKind = "wrapped"
)

// RootPath is the data path marker for a response body that is itself the record list.
const RootPath = "$"

// DefaultPrimaryKey is used when no better candidate is found.
const DefaultPrimaryKey = "id"

// DefaultHasNextPath is the has-next flag location assumed for flat cursor APIs.
const DefaultHasNextPath = "hasNext"

// Pagination holds the kind-specific pagination fields.
type Pagination struct {
	Kind PaginationKind `json:"kind" yaml:"kind"`
	// CursorFieldPath locates the next cursor (Cursor).
	CursorFieldPath string `json:"cursor_field_path,omitempty" yaml:"cursor_field_path,omitempty"`
	// HasNextFieldPath locates the has-more flag (Cursor).
	HasNextFieldPath string `json:"has_next_field_path,omitempty" yaml:"has_next_field_path,omitempty"`
	// OffsetKey is the response key that revealed offset pagination (Offset).
	OffsetKey string `json:"offset_key,omitempty" yaml:"offset_key,omitempty"`
	// NextPageKey locates the next-page flag (Page).
	NextPageKey string `json:"next_page_key,omitempty" yaml:"next_page_key,omitempty"`
}

// Envelope describes response wrapping.
type Envelope struct {
	Kind EnvelopeKind `json:"kind" yaml:"kind"`
	// StatusFieldPath locates the envelope status (Wrapped).
	StatusFieldPath string `json:"status_field_path,omitempty" yaml:"status_field_path,omitempty"`
	// WrapperKeys are the metadata and payload keys of the wrapper (Wrapped).
	WrapperKeys [2]string `json:"wrapper_keys,omitempty" yaml:"wrapper_keys,omitempty"`
}

// RateLimit names the headers an API uses to signal its quota.
// The zero value means no rate-limit signalling was detected.
type RateLimit struct {
	LimitHeader     string `json:"limit_header,omitempty" yaml:"limit_header,omitempty"`
	RemainingHeader string `json:"remaining_header,omitempty" yaml:"remaining_header,omitempty"`
	ResetHeader     string `json:"reset_header,omitempty" yaml:"reset_header,omitempty"`
}

// Detected reports whether rate-limit headers were found.
func (r RateLimit) Detected() bool {
	return r.LimitHeader != ""
}

// Description is the probed or refined belief about a target API.
type Description struct {
	AuthRequired bool       `json:"auth_required" yaml:"auth_required"`
	Pagination   Pagination `json:"pagination" yaml:"pagination"`
	Envelope     Envelope   `json:"envelope" yaml:"envelope"`
	RateLimit    RateLimit  `json:"rate_limit" yaml:"rate_limit"`
	// DataPath is a dotted key path or RootPath; empty means unknown.
	DataPath        string `json:"data_path,omitempty" yaml:"data_path,omitempty"`
	PrimaryKeyField string `json:"primary_key_field" yaml:"primary_key_field"`
}

// Default returns the description used when nothing could be learned.
func Default() Description {
	return Description{
		Pagination:      Pagination{Kind: PaginationNone},
		Envelope:        Envelope{Kind: EnvelopeStandard},
		PrimaryKeyField: DefaultPrimaryKey,
	}
}

// HasDataPath reports whether a data path was discovered.
func (d Description) HasDataPath() bool {
	return d.DataPath != ""
}

// WithAuthRequired returns a copy with AuthRequired set.
func (d Description) WithAuthRequired(required bool) Description {
	d.AuthRequired = required
	return d
}

// WithPagination returns a copy with the given pagination.
func (d Description) WithPagination(p Pagination) Description {
	d.Pagination = p
	return d
}

// WithEnvelope returns a copy with the given envelope.
func (d Description) WithEnvelope(e Envelope) Description {
	d.Envelope = e
	return d
}

// WithRateLimit returns a copy with the given rate-limit headers.
func (d Description) WithRateLimit(r RateLimit) Description {
	d.RateLimit = r
	return d
}

// WithDataPath returns a copy with the given data path.
func (d Description) WithDataPath(path string) Description {
	d.DataPath = path
	return d
}

// WithPrimaryKey returns a copy with the given primary key field.
func (d Description) WithPrimaryKey(field string) Description {
	d.PrimaryKeyField = field
	return d
}

// Equal reports whether two descriptions are identical.
func (d Description) Equal(other Description) bool {
	return d == other
}

// String renders a one-line summary for logs.
func (d Description) String() string {
	dataPath := d.DataPath
	if dataPath == "" {
		dataPath = "unknown"
	}
	rl := "no"
	if d.RateLimit.Detected() {
		rl = "yes"
	}
	return fmt.Sprintf("pagination=%s envelope=%s rate_limit=%s data_path=%s primary_key=%s auth_required=%t",
		d.Pagination.Kind, d.Envelope.Kind, rl, dataPath, d.PrimaryKeyField, d.AuthRequired)
}

// SplitPath splits a dotted path into its keys. RootPath and "" yield nil.
func SplitPath(path string) []string {
	if path == "" || path == RootPath {
		return nil
	}
	return strings.Split(path, ".")
}
