// Package synth renders a probed pattern into a driver artifact.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/adagent/pkg/driver"
	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"github.com/ajitpratap0/adagent/pkg/pool"
	"go.uber.org/zap"
)

// Options holds the loop constants baked into rendered plans.
type Options struct {
	CursorPageSize     int
	OffsetLimit        int
	PagePerPage        int
	PageDelay          time.Duration
	RateLimitThreshold int
	RateLimitPause     time.Duration
}

// DefaultOptions returns the standard loop constants.
func DefaultOptions() Options {
	return Options{
		CursorPageSize:     10,
		OffsetLimit:        100,
		PagePerPage:        100,
		PageDelay:          100 * time.Millisecond,
		RateLimitThreshold: 10,
		RateLimitPause:     time.Second,
	}
}

// DriverSource is a rendered artifact.
type DriverSource struct {
	SourceName string
	EntryPoint string
	Path       string
	Plan       driver.Plan
	Text       []byte
}

// Synthesizer writes artifacts into a directory.
type Synthesizer struct {
	dir  string
	opts Options
}

// New creates a synthesizer writing to dir.
func New(dir string, opts Options) *Synthesizer {
	return &Synthesizer{dir: dir, opts: opts}
}

// Render builds the plan for a source and writes its artifact, replacing
// any previous artifact for the same source.
func (s *Synthesizer) Render(ctx context.Context, sourceName, baseURL, endpoint string, p pattern.Description, headers map[string]string) (*DriverSource, error) {
	log := logger.WithContext(ctx).With(zap.String("component", "synthesizer"))

	plan := BuildPlan(sourceName, baseURL, endpoint, p, headers, s.opts)
	if err := plan.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeGeneration, "rendered plan is invalid")
	}

	body, err := driver.MarshalArtifact(&driver.Artifact{
		Version:   driver.ArtifactVersion,
		Source:    sourceName,
		Resources: []driver.Plan{plan},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeGeneration, "failed to encode driver artifact")
	}

	text := pool.GetBuffer()
	defer pool.PutBuffer(text)
	text.WriteString(header(sourceName, plan))
	text.Write(body)

	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:gosec
		return nil, errors.Wrap(err, errors.ErrorTypeGeneration, "failed to create drivers directory")
	}
	path := driver.ArtifactPath(s.dir, sourceName)
	if err := os.WriteFile(path, text.Bytes(), 0o644); err != nil { //nolint:gosec
		return nil, errors.Wrap(err, errors.ErrorTypeGeneration, "failed to write driver artifact")
	}

	log.Info("generated driver", zap.String("path", path), zap.String("plan", plan.Summary()))
	return &DriverSource{
		SourceName: sourceName,
		EntryPoint: plan.Name,
		Path:       path,
		Plan:       plan,
		Text:       bytes.Clone(text.Bytes()),
	}, nil
}

func header(source string, plan driver.Plan) string {
	envelope := string(pattern.EnvelopeStandard)
	if plan.Envelope != nil {
		envelope = string(pattern.EnvelopeWrapped)
	}
	rl := "no"
	if plan.RateLimit != nil {
		rl = "yes"
	}
	return fmt.Sprintf(`# Code generated by adagent for %s. DO NOT EDIT.
#
# Handles:
#   pagination: %s
#   response format: %s
#   rate limiting: %s
`, source, plan.Pagination.Kind, envelope, rl)
}

// BuildPlan maps a pattern description onto an extraction plan.
func BuildPlan(sourceName, baseURL, endpoint string, p pattern.Description, headers map[string]string, opts Options) driver.Plan {
	plan := driver.Plan{
		Name:             driver.EntryPoint(sourceName),
		Source:           sourceName,
		BaseURL:          baseURL,
		Endpoint:         endpoint,
		PrimaryKey:       p.PrimaryKeyField,
		WriteDisposition: driver.WriteDispositionMerge,
		DataPath:         p.DataPath,
		Headers:          headerBindings(headers),
		Pagination:       paginationPlan(p.Pagination, opts),
	}
	if plan.PrimaryKey == "" {
		plan.PrimaryKey = pattern.DefaultPrimaryKey
	}
	if !p.HasDataPath() {
		plan.DataPath = driver.DefaultDataPath
	}

	if p.Envelope.Kind == pattern.EnvelopeWrapped {
		metaKey := p.Envelope.WrapperKeys[0]
		if metaKey == "" {
			metaKey = "responseMetadata"
		}
		statusPath := p.Envelope.StatusFieldPath
		if statusPath == "" {
			statusPath = "status"
		}
		plan.Envelope = &driver.EnvelopePlan{
			StatusPath:    statusPath,
			MessagePath:   metaKey + ".message",
			SuccessValues: []string{driver.EnvelopeSuccess},
		}
	}

	if p.RateLimit.Detected() {
		remaining := p.RateLimit.RemainingHeader
		if remaining == "" {
			remaining = "X-RateLimit-Remaining"
		}
		plan.RateLimit = &driver.RateLimitPlan{
			RemainingHeader: remaining,
			Threshold:       opts.RateLimitThreshold,
			PauseMillis:     int(opts.RateLimitPause / time.Millisecond),
		}
	}
	return plan
}

func paginationPlan(pg pattern.Pagination, opts Options) driver.PaginationPlan {
	delay := int(opts.PageDelay / time.Millisecond)

	switch pg.Kind {
	case pattern.PaginationCursor:
		cursorPath := pg.CursorFieldPath
		if cursorPath == "" {
			cursorPath = "cursor"
		}
		hasNext := pg.HasNextFieldPath
		if hasNext == "" {
			hasNext = pattern.DefaultHasNextPath
		}
		return driver.PaginationPlan{
			Kind:          pattern.PaginationCursor,
			PageParam:     "page",
			PageSizeParam: "pageSize",
			PageSize:      opts.CursorPageSize,
			CursorParam:   "cursor",
			CursorPath:    cursorPath,
			HasNextPath:   hasNext,
			DelayMillis:   delay,
		}
	case pattern.PaginationOffset:
		return driver.PaginationPlan{
			Kind:        pattern.PaginationOffset,
			OffsetParam: "offset",
			LimitParam:  "limit",
			Limit:       opts.OffsetLimit,
			DelayMillis: delay,
		}
	case pattern.PaginationPage:
		nextKey := pg.NextPageKey
		if nextKey == "" {
			nextKey = "nextPage"
		}
		return driver.PaginationPlan{
			Kind:          pattern.PaginationPage,
			PageParam:     "page",
			PageSizeParam: "per_page",
			PageSize:      opts.PagePerPage,
			NextPageKey:   nextKey,
			DelayMillis:   delay,
		}
	}
	return driver.PaginationPlan{Kind: pattern.PaginationNone}
}

func headerBindings(headers map[string]string) []driver.HeaderBinding {
	if len(headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make([]driver.HeaderBinding, 0, len(names))
	for _, name := range names {
		bindings = append(bindings, driver.HeaderBinding{
			Name:    name,
			Param:   ParamName(name),
			Default: headers[name],
		})
	}
	return bindings
}

// ParamName derives a parameter name from a header name: lower-cased,
// hyphens to underscores, leading "x_" dropped.
func ParamName(header string) string {
	name := strings.ReplaceAll(strings.ToLower(header), "-", "_")
	name = strings.TrimPrefix(name, "x_")
	if name == "" {
		return "header"
	}
	return name
}
