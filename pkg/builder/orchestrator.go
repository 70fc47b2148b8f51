// Package builder runs the probe, render and test loop that produces a
// working driver for an upstream API, refining the probed pattern from each
// failure until an attempt succeeds or the attempt budget runs out.
package builder

import (
	"context"
	"regexp"
	"time"

	"github.com/ajitpratap0/adagent/pkg/catalog"
	"github.com/ajitpratap0/adagent/pkg/clients"
	"github.com/ajitpratap0/adagent/pkg/config"
	"github.com/ajitpratap0/adagent/pkg/driver"
	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/metrics"
	"github.com/ajitpratap0/adagent/pkg/observability"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"github.com/ajitpratap0/adagent/pkg/probe"
	"github.com/ajitpratap0/adagent/pkg/synth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultMaxAttempts is used when neither the request nor the config sets one.
const DefaultMaxAttempts = 3

var sourceNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Request describes one build.
type Request struct {
	SourceName string
	BaseURL    string
	Endpoint   string
	Headers    map[string]string
	// MaxAttempts overrides the configured attempt budget when positive.
	MaxAttempts int
}

// Attempt records one generate-and-test cycle.
type Attempt struct {
	Number     int                    `json:"number"`
	Pattern    pattern.Description    `json:"pattern"`
	DriverPath string                 `json:"driver_path,omitempty"`
	Result     driver.ExecutionResult `json:"result"`
	// Signatures are those recognised in this attempt's failure.
	Signatures []Signature `json:"-"`
}

// Failed reports whether the attempt failed.
func (a Attempt) Failed() bool {
	return !a.Result.Success
}

// BuildOutcome is the result of BuildDriver.
type BuildOutcome struct {
	BuildID    string        `json:"build_id"`
	SourceName string        `json:"source_name"`
	Success    bool          `json:"success"`
	DriverPath string        `json:"driver_path,omitempty"`
	FinalError string        `json:"final_error,omitempty"`
	Probe      *probe.Result `json:"probe,omitempty"`
	Attempts   []Attempt     `json:"attempts"`
	Logs       []string      `json:"logs"`
	Duration   time.Duration `json:"duration"`
}

// Orchestrator owns the prober, synthesizer, loader and harness.
type Orchestrator struct {
	prober      *probe.Prober
	synth       *synth.Synthesizer
	loader      *driver.Loader
	harness     *driver.Harness
	catalog     *catalog.Catalog
	logger      *zap.Logger
	maxAttempts int

	driverClient *clients.HTTPClient
	probeClient  *clients.HTTPClient
}

// New wires an orchestrator from configuration.
func New(cfg *config.Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	driverClient := clients.NewHTTPClient(cfg.HTTP.ClientConfig(), log)
	probeClient := clients.NewHTTPClient(clients.DefaultHTTPConfig(), log)
	loader := driver.NewLoader(cfg.Drivers.Dir, driverClient)

	maxAttempts := cfg.Drivers.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Orchestrator{
		prober:      probe.New(probeClient, cfg.Probe.Timeout),
		synth:       synth.New(cfg.Drivers.Dir, synth.DefaultOptions()),
		loader:      loader,
		harness:     driver.NewHarness(loader, cfg.Drivers.SampleSize),
		catalog:     catalog.FromConfig(cfg.Sources),
		logger:      log.With(zap.String("component", "builder")),
		maxAttempts: maxAttempts,

		driverClient: driverClient,
		probeClient:  probeClient,
	}
}

// Close logs request totals for the probe and driver clients and releases
// their idle connections.
func (o *Orchestrator) Close() error {
	probeStats := o.probeClient.GetStats()
	driverStats := o.driverClient.GetStats()
	o.logger.Info("http client totals",
		zap.Int64("probe_requests", probeStats.TotalRequests),
		zap.Int64("probe_failed", probeStats.FailedRequests),
		zap.Int64("driver_requests", driverStats.TotalRequests),
		zap.Int64("driver_failed", driverStats.FailedRequests),
		zap.Float64("driver_success_rate", driverStats.SuccessRate))
	_ = o.probeClient.Close()
	return o.driverClient.Close()
}

// Catalog returns the API catalog used by EnsureDrivers.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// DriverExists reports whether an artifact exists for source.
func (o *Orchestrator) DriverExists(source string) bool {
	return o.loader.Exists(source)
}

// DriverPath returns where the artifact for source is written.
func (o *Orchestrator) DriverPath(source string) string {
	return o.loader.Path(source)
}

// LoadDriver returns the extractor for source, or false when no usable
// artifact exists.
func (o *Orchestrator) LoadDriver(source string) (*driver.Extractor, bool) {
	ex, err := o.loader.Load(source)
	if err != nil {
		o.logger.Debug("driver not loadable", zap.String("source", source), zap.Error(err))
		return nil, false
	}
	return ex, true
}

// ValidateRequest checks a request for caller misuse.
func ValidateRequest(req Request) error {
	if !sourceNamePattern.MatchString(req.SourceName) {
		return errors.Newf(errors.ErrorTypeValidation,
			"invalid source name %q: must match %s", req.SourceName, sourceNamePattern.String())
	}
	if req.BaseURL == "" {
		return errors.New(errors.ErrorTypeValidation, "base URL is required")
	}
	if req.MaxAttempts < 0 {
		return errors.New(errors.ErrorTypeValidation, "max attempts cannot be negative")
	}
	return nil
}

// BuildDriver probes the API, then renders and tests a driver up to the
// attempt budget, refining the pattern between attempts. Failures of the
// build itself are reported in the outcome; the error is non-nil only for
// an invalid request.
func (o *Orchestrator) BuildDriver(ctx context.Context, req Request) (*BuildOutcome, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = o.maxAttempts
	}

	start := time.Now()
	buildID := uuid.New().String()
	outcome := &BuildOutcome{BuildID: buildID, SourceName: req.SourceName}

	teed, collector := logger.Tee(o.logger, zapcore.InfoLevel)
	ctx = context.WithValue(ctx, logger.BuildIDKey, buildID)
	ctx = context.WithValue(ctx, logger.SourceKey, req.SourceName)
	ctx = logger.IntoContext(ctx, teed)
	log := logger.WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, "build_driver")
	span.SetAttribute("source", req.SourceName)
	span.SetAttribute("build_id", buildID)
	defer span.End()

	log.Info("building driver",
		zap.String("base_url", req.BaseURL),
		zap.String("endpoint", req.Endpoint),
		zap.Int("max_attempts", maxAttempts))

	probed, err := o.prober.Probe(ctx, req.BaseURL, req.Endpoint, req.Headers)
	if err != nil {
		log.Warn("probe failed, continuing with defaults", zap.Error(err))
	}
	outcome.Probe = probed
	current := probed.Pattern

	for n := 1; n <= maxAttempts; n++ {
		attempt := o.runAttempt(ctx, req, n, current)
		outcome.Attempts = append(outcome.Attempts, attempt)
		if attempt.DriverPath != "" {
			outcome.DriverPath = attempt.DriverPath
		}

		if attempt.Result.Success {
			metrics.BuildAttempts.WithLabelValues(req.SourceName, metrics.StatusSuccess).Inc()
			outcome.Success = true
			outcome.FinalError = ""
			log.Info("driver build succeeded", zap.Int("attempt", n), zap.String("path", attempt.DriverPath))
			break
		}

		metrics.BuildAttempts.WithLabelValues(req.SourceName, string(errors.TypeOf(attempt.Result.Err))).Inc()
		outcome.FinalError = attempt.Result.ErrorText
		if n == maxAttempts {
			log.Warn("driver build failed", zap.Int("attempts", n), zap.String("error", attempt.Result.ErrorText))
			break
		}

		refined, sigs := Refine(current, attempt.Result.ErrorText)
		outcome.Attempts[len(outcome.Attempts)-1].Signatures = sigs
		if refined.Equal(current) {
			log.Info("no refinement applies", zap.String("signatures", joinSignatures(sigs)))
		} else {
			log.Info("refined pattern",
				zap.String("signatures", joinSignatures(sigs)),
				zap.String("pattern", refined.String()))
		}
		current = refined
	}

	if !outcome.Success {
		span.RecordError(errors.New(errors.ErrorTypeGeneration, outcome.FinalError))
	}
	span.SetAttribute("attempts", len(outcome.Attempts))

	outcome.Duration = time.Since(start)
	metrics.BuildsTotal.WithLabelValues(req.SourceName, metrics.Status(outcome.Success)).Inc()
	metrics.BuildDuration.WithLabelValues(req.SourceName).Observe(outcome.Duration.Seconds())
	outcome.Logs = collector.Lines()
	return outcome, nil
}

func (o *Orchestrator) runAttempt(ctx context.Context, req Request, n int, current pattern.Description) Attempt {
	ctx, span := observability.StartSpan(ctx, "build_attempt")
	defer span.End()
	span.SetAttribute("attempt", n)

	log := logger.WithContext(ctx)
	log.Info("attempt started", zap.Int("attempt", n), zap.String("pattern", current.String()))

	attempt := Attempt{Number: n, Pattern: current}

	src, err := o.synth.Render(ctx, req.SourceName, req.BaseURL, req.Endpoint, current, req.Headers)
	if err != nil {
		log.Warn("driver generation failed", zap.Int("attempt", n), zap.Error(err))
		attempt.Result = driver.ExecutionResult{ErrorText: err.Error(), Err: err}
		span.RecordError(err)
		return attempt
	}
	attempt.DriverPath = src.Path
	o.loader.Invalidate(req.SourceName)

	attempt.Result = o.harness.Execute(ctx, src.Path, req.SourceName)
	if !attempt.Result.Success {
		span.RecordError(attempt.Result.Err)
		log.Info("attempt failed", zap.Int("attempt", n), zap.String("error", attempt.Result.ErrorText))
	}
	return attempt
}
