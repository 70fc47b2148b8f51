package builder

import (
	"testing"

	"github.com/ajitpratap0/adagent/pkg/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Signature
	}{
		{
			name: "missing key with quoted name",
			text: `missing_key: key "data" not found in response`,
			want: []Signature{{Kind: MissingKey, Key: "data"}},
		},
		{
			name: "python style key error",
			text: `KeyError: 'items'`,
			want: []Signature{{Kind: MissingKey, Key: "items"}},
		},
		{
			name: "shape mismatch",
			text: "shape_mismatch: expected object at data, got array",
			want: []Signature{{Kind: ShapeMismatch}},
		},
		{
			name: "attribute error",
			text: "'list' object has no attribute 'get'",
			want: []Signature{{Kind: ShapeMismatch}},
		},
		{
			name: "unauthorized",
			text: "authentication: HTTP 401 Unauthorized",
			want: []Signature{{Kind: AuthFailure}},
		},
		{
			name: "forbidden status code",
			text: "authentication: HTTP 403 Forbidden",
			want: []Signature{{Kind: AuthFailure}},
		},
		{
			name: "status code inside a larger number is ignored",
			text: "upstream_api: request 14013 failed",
			want: []Signature{{Kind: Unrecognized}},
		},
		{
			name: "pagination",
			text: `pagination: cursor field "meta.next" missing from response`,
			want: []Signature{{Kind: PaginationFailure}},
		},
		{
			name: "several signatures in fixed order",
			text: `cursor "next" not found, got 401`,
			want: []Signature{
				{Kind: MissingKey, Key: "next"},
				{Kind: AuthFailure},
				{Kind: PaginationFailure},
			},
		},
		{
			name: "nothing recognised",
			text: "empty_result: driver produced no records",
			want: []Signature{{Kind: Unrecognized}},
		},
		{
			name: "empty text",
			text: "",
			want: []Signature{{Kind: Unrecognized}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestRefine(t *testing.T) {
	base := pattern.Default()
	wrapped := base.WithEnvelope(pattern.Envelope{
		Kind:            pattern.EnvelopeWrapped,
		StatusFieldPath: "response.status",
		WrapperKeys:     [2]string{"response", "data"},
	})
	cursor := base.WithPagination(pattern.Pagination{
		Kind:             pattern.PaginationCursor,
		CursorFieldPath:  "pagination.nextCursor",
		HasNextFieldPath: "pagination.hasNext",
	})

	tests := []struct {
		name  string
		in    pattern.Description
		text  string
		check func(t *testing.T, out pattern.Description)
	}{
		{
			name: "missing key advances data path",
			in:   base.WithDataPath("data"),
			text: `missing_key: key "data" not found in response`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "results", out.DataPath)
			},
		},
		{
			name: "missing key wraps from root to data",
			in:   base.WithDataPath(pattern.RootPath),
			text: `KeyError: 'records'`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "data", out.DataPath)
			},
		},
		{
			name: "path outside candidates starts at data",
			in:   base.WithDataPath("campaigns"),
			text: `missing_key: key "campaigns" not found in response`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "data", out.DataPath)
			},
		},
		{
			name: "dotted path starts at data",
			in:   base.WithDataPath("data.campaigns"),
			text: `missing_key: key "campaigns" not found in response`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "data", out.DataPath)
			},
		},
		{
			name: "unset path moves past data",
			in:   base,
			text: `missing_key: key "data" not found in response`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "results", out.DataPath)
			},
		},
		{
			name: "shape mismatch unwraps envelope",
			in:   wrapped,
			text: "object has no attribute 'get'",
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, pattern.EnvelopeStandard, out.Envelope.Kind)
			},
		},
		{
			name: "shape mismatch leaves a standard envelope alone",
			in:   base,
			text: "shape_mismatch: expected array",
			check: func(t *testing.T, out pattern.Description) {
				assert.True(t, out.Equal(base))
			},
		},
		{
			name: "auth failure marks auth required",
			in:   base,
			text: "authentication: HTTP 401 Unauthorized",
			check: func(t *testing.T, out pattern.Description) {
				assert.True(t, out.AuthRequired)
			},
		},
		{
			name: "pagination failure downgrades cursor to none",
			in:   cursor,
			text: "pagination: bad cursor",
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, pattern.PaginationNone, out.Pagination.Kind)
			},
		},
		{
			name: "combined signatures all apply",
			in:   wrapped.WithPagination(cursor.Pagination),
			text: `KeyError: 'data' object has no attribute cursor`,
			check: func(t *testing.T, out pattern.Description) {
				assert.Equal(t, "results", out.DataPath)
				assert.Equal(t, pattern.EnvelopeStandard, out.Envelope.Kind)
				assert.Equal(t, pattern.PaginationNone, out.Pagination.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.in
			out, sigs := Refine(tt.in, tt.text)
			require.NotEmpty(t, sigs)
			assert.True(t, before.Equal(tt.in), "input must not be modified")
			tt.check(t, out)
		})
	}
}

func TestRefine_UnrecognisedIsIdempotent(t *testing.T) {
	p := pattern.Default().WithDataPath("items")
	text := "upstream_api: HTTP 500 Internal Server Error"

	once, sigs := Refine(p, text)
	twice, _ := Refine(once, text)

	assert.Equal(t, []Signature{{Kind: Unrecognized}}, sigs)
	assert.True(t, once.Equal(p))
	assert.True(t, twice.Equal(p))
}

func TestNextDataPath_CyclesThroughCandidates(t *testing.T) {
	seen := []string{}
	current := "data"
	for range DataPathCandidates {
		current = nextDataPath(current)
		seen = append(seen, current)
	}
	assert.Equal(t, []string{"results", "items", "records", pattern.RootPath, "data"}, seen)
}

func TestNextDataPath_OutsideCandidates(t *testing.T) {
	assert.Equal(t, "data", nextDataPath("data.campaigns"))
	assert.Equal(t, "data", nextDataPath("response.items"))
	assert.Equal(t, "results", nextDataPath(""))
}

func TestSignature_String(t *testing.T) {
	assert.Equal(t, "missing_key(data)", Signature{Kind: MissingKey, Key: "data"}.String())
	assert.Equal(t, "auth_failure", Signature{Kind: AuthFailure}.String())
	assert.Equal(t, "missing_key(data),unrecognized",
		joinSignatures([]Signature{{Kind: MissingKey, Key: "data"}, {Kind: Unrecognized}}))
}
