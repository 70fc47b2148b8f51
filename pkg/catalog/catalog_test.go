package catalog

import (
	"testing"

	"github.com/ajitpratap0/adagent/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()
	assert.Equal(t, []string{"google", "meta", "seznam", "tiktok"}, c.Names())

	seznam, ok := c.Lookup("seznam")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:3004", seznam.BaseURL)
	assert.Equal(t, "/api/v2/campaigns", seznam.Endpoint)
	assert.Equal(t, "demo_api_key_12345", seznam.Headers["X-Seznam-Api-Key"])

	_, ok = c.Lookup("soap")
	assert.False(t, ok)
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(map[string]config.SourceConfig{
		"google": {BaseURL: "http://google-mock:8000"},
		"sklik":  {BaseURL: "http://localhost:3010", Endpoint: "/campaigns", Headers: map[string]string{"Authorization": "t"}},
	})

	google, ok := c.Lookup("google")
	require.True(t, ok)
	assert.Equal(t, "http://google-mock:8000", google.BaseURL)
	assert.Equal(t, "/api/v1/campaigns", google.Endpoint)

	sklik, ok := c.Lookup("sklik")
	require.True(t, ok)
	assert.Equal(t, "/campaigns", sklik.Endpoint)
	assert.Contains(t, c.Names(), "sklik")

	// Builtin catalog is not mutated.
	g, _ := Builtin().Lookup("google")
	assert.Equal(t, "http://localhost:8000", g.BaseURL)
}
