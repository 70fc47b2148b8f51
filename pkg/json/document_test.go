package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrdered_PreservesKeyOrder(t *testing.T) {
	doc, err := DecodeOrdered([]byte(`{"zeta": 1, "alpha": {"b": [1, 2], "a": null}, "mid": "x"}`))
	require.NoError(t, err)

	obj, ok := doc.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	inner, ok := obj.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, inner.(*Object).Keys())
	assert.True(t, inner.(*Object).Has("a"))
}

func TestDecodeOrdered_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want interface{}
	}{
		{"number", `42`, float64(42)},
		{"string", `"hi"`, "hi"},
		{"bool", `true`, true},
		{"null", `null`, nil},
		{"empty array", `[]`, []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOrdered([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeOrdered_Invalid(t *testing.T) {
	_, err := DecodeOrdered([]byte(`{"a": `))
	assert.Error(t, err)

	_, err = DecodeOrdered([]byte(`{} {}`))
	assert.Error(t, err)
}
