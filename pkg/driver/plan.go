// Package driver defines extraction plans, the interpreter that executes
// them against an upstream API, the artifact loader and the execution
// harness used to verify a freshly rendered driver.
//
// An artifact is a YAML document holding one or more named resources. Each
// resource is a Plan: a tagged description of how to page through an API
// and where its records live. Plans carry no code; every plan is executed
// by the same Extractor.
package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"gopkg.in/yaml.v3"
)

// ArtifactVersion is the current artifact format version.
const ArtifactVersion = 1

// WriteDispositionMerge upserts extracted records by primary key.
const WriteDispositionMerge = "merge"

// ArtifactName returns the artifact base name for a source, without extension.
func ArtifactName(source string) string {
	return source + "_ads"
}

// ArtifactPath returns where a source's artifact lives under dir.
func ArtifactPath(dir, source string) string {
	return filepath.Join(dir, ArtifactName(source)+".yaml")
}

// EntryPoint returns the resource name a source's artifact must expose.
func EntryPoint(source string) string {
	return source + "_campaigns"
}

// Artifact is the on-disk form of a driver.
type Artifact struct {
	Version   int    `yaml:"version"`
	Source    string `yaml:"source"`
	Resources []Plan `yaml:"resources"`
}

// Resource returns the plan registered under name.
func (a *Artifact) Resource(name string) (Plan, bool) {
	for _, p := range a.Resources {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// Plan describes one extraction routine.
type Plan struct {
	Name             string          `yaml:"name"`
	Source           string          `yaml:"source"`
	BaseURL          string          `yaml:"base_url"`
	Endpoint         string          `yaml:"endpoint"`
	PrimaryKey       string          `yaml:"primary_key"`
	WriteDisposition string          `yaml:"write_disposition"`
	DataPath         string          `yaml:"data_path"`
	Headers          []HeaderBinding `yaml:"headers,omitempty"`
	Pagination       PaginationPlan  `yaml:"pagination"`
	Envelope         *EnvelopePlan   `yaml:"envelope,omitempty"`
	RateLimit        *RateLimitPlan  `yaml:"rate_limit,omitempty"`
}

// HeaderBinding sends header Name with the value of parameter Param,
// defaulting to Default when the caller does not override it.
type HeaderBinding struct {
	Name    string `yaml:"name"`
	Param   string `yaml:"param"`
	Default string `yaml:"default"`
}

// PaginationPlan holds the loop parameters for one pagination kind. Only
// the fields relevant to Kind are set.
type PaginationPlan struct {
	Kind pattern.PaginationKind `yaml:"kind"`

	// Cursor and Page
	PageParam     string `yaml:"page_param,omitempty"`
	PageSizeParam string `yaml:"page_size_param,omitempty"`
	PageSize      int    `yaml:"page_size,omitempty"`

	// Cursor
	CursorParam string `yaml:"cursor_param,omitempty"`
	CursorPath  string `yaml:"cursor_path,omitempty"`
	HasNextPath string `yaml:"has_next_path,omitempty"`

	// Offset
	OffsetParam string `yaml:"offset_param,omitempty"`
	LimitParam  string `yaml:"limit_param,omitempty"`
	Limit       int    `yaml:"limit,omitempty"`

	// Page
	NextPageKey string `yaml:"next_page_key,omitempty"`

	// DelayMillis is the pause between page requests.
	DelayMillis int `yaml:"delay_ms,omitempty"`
}

// EnvelopeSuccess is the only status a wrapped cursor response may carry.
const EnvelopeSuccess = "SUCCESS"

// EnvelopePlan validates a wrapped response before records are read.
type EnvelopePlan struct {
	StatusPath    string   `yaml:"status_path"`
	MessagePath   string   `yaml:"message_path"`
	SuccessValues []string `yaml:"success_values"`
}

// RateLimitPlan pauses when the remaining quota drops below Threshold.
type RateLimitPlan struct {
	RemainingHeader string `yaml:"remaining_header"`
	Threshold       int    `yaml:"threshold"`
	PauseMillis     int    `yaml:"pause_ms"`
}

// Validate checks that a plan can be executed.
func (p Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("resource name is empty")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("resource %s: base_url is empty", p.Name)
	}
	if !p.Pagination.Kind.Valid() {
		return fmt.Errorf("resource %s: unknown pagination kind %q", p.Name, p.Pagination.Kind)
	}
	pg := p.Pagination
	switch pg.Kind {
	case pattern.PaginationCursor:
		if pg.PageSize <= 0 || pg.CursorPath == "" {
			return fmt.Errorf("resource %s: cursor pagination needs page_size and cursor_path", p.Name)
		}
	case pattern.PaginationOffset:
		if pg.Limit <= 0 {
			return fmt.Errorf("resource %s: offset pagination needs a positive limit", p.Name)
		}
	case pattern.PaginationPage:
		if pg.PageSize <= 0 || pg.NextPageKey == "" {
			return fmt.Errorf("resource %s: page pagination needs page_size and next_page_key", p.Name)
		}
	}
	if p.Envelope != nil && p.Envelope.StatusPath == "" {
		return fmt.Errorf("resource %s: envelope status_path is empty", p.Name)
	}
	if p.RateLimit != nil && p.RateLimit.RemainingHeader == "" {
		return fmt.Errorf("resource %s: rate_limit remaining_header is empty", p.Name)
	}
	for _, h := range p.Headers {
		if h.Name == "" || h.Param == "" {
			return fmt.Errorf("resource %s: header binding needs name and param", p.Name)
		}
	}
	return nil
}

// Summary renders a one-line description of the plan.
func (p Plan) Summary() string {
	envelope := string(pattern.EnvelopeStandard)
	if p.Envelope != nil {
		envelope = string(pattern.EnvelopeWrapped)
	}
	rl := "no"
	if p.RateLimit != nil {
		rl = "yes"
	}
	return fmt.Sprintf("pagination=%s envelope=%s rate_limit=%s data_path=%s",
		p.Pagination.Kind, envelope, rl, p.DataPath)
}

// MarshalArtifact encodes an artifact as YAML.
func MarshalArtifact(a *Artifact) ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// ParseArtifact decodes and validates an artifact.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "malformed driver artifact")
	}
	if a.Version != ArtifactVersion {
		return nil, errors.Newf(errors.ErrorTypeLoad, "unsupported artifact version %d", a.Version)
	}
	for _, p := range a.Resources {
		if err := p.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeLoad, "invalid driver artifact")
		}
	}
	return &a, nil
}
