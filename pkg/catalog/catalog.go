// Package catalog lists the ad-platform APIs drivers can be built for.
package catalog

import (
	"sort"

	"github.com/ajitpratap0/adagent/pkg/config"
)

// API is a known upstream endpoint.
type API struct {
	Name     string            `json:"name" yaml:"name"`
	BaseURL  string            `json:"base_url" yaml:"base_url"`
	Endpoint string            `json:"endpoint" yaml:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Catalog maps source names to APIs.
type Catalog struct {
	apis map[string]API
}

// Builtin returns the catalog of the bundled mock platforms.
func Builtin() *Catalog {
	return &Catalog{apis: map[string]API{
		"meta": {
			Name:     "meta",
			BaseURL:  "http://localhost:3001",
			Endpoint: "/ads_archive",
		},
		"google": {
			Name:     "google",
			BaseURL:  "http://localhost:8000",
			Endpoint: "/api/v1/campaigns",
		},
		"tiktok": {
			Name:     "tiktok",
			BaseURL:  "http://localhost:3003",
			Endpoint: "/api/v1/campaigns",
		},
		"seznam": {
			Name:     "seznam",
			BaseURL:  "http://localhost:3004",
			Endpoint: "/api/v2/campaigns",
			Headers:  map[string]string{"X-Seznam-Api-Key": "demo_api_key_12345"},
		},
	}}
}

// FromConfig returns the builtin catalog with configured sources layered
// on top. A configured source replaces a builtin one of the same name;
// an empty endpoint keeps the builtin endpoint.
func FromConfig(sources map[string]config.SourceConfig) *Catalog {
	c := Builtin()
	for name, src := range sources {
		api := API{
			Name:     name,
			BaseURL:  src.BaseURL,
			Endpoint: src.Endpoint,
			Headers:  src.Headers,
		}
		if prev, ok := c.apis[name]; ok {
			if api.Endpoint == "" {
				api.Endpoint = prev.Endpoint
			}
			if api.Headers == nil {
				api.Headers = prev.Headers
			}
		}
		c.apis[name] = api
	}
	return c
}

// Lookup returns the API registered under name.
func (c *Catalog) Lookup(name string) (API, bool) {
	api, ok := c.apis[name]
	return api, ok
}

// Names returns the registered source names in order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.apis))
	for name := range c.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
