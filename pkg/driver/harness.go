package driver

import (
	"context"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/models"
	"github.com/ajitpratap0/adagent/pkg/observability"
	"go.uber.org/zap"
)

// DefaultSampleSize is how many records the harness pulls.
const DefaultSampleSize = 3

// ExecutionResult is the outcome of test-running a driver.
type ExecutionResult struct {
	Success      bool            `json:"success"`
	ItemsSampled int             `json:"items_sampled"`
	ErrorText    string          `json:"error_text,omitempty"`
	Sample       []models.Record `json:"-"`
	Err          error           `json:"-"`
}

// Harness loads an artifact and pulls a small sample from it.
type Harness struct {
	loader     *Loader
	sampleSize int
}

// NewHarness creates a harness. A non-positive sampleSize uses
// DefaultSampleSize.
func NewHarness(loader *Loader, sampleSize int) *Harness {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Harness{loader: loader, sampleSize: sampleSize}
}

// Execute loads the artifact at path, resolves the source's entry point and
// pulls at most sampleSize records. It never returns an error; failures are
// reported in the result.
func (h *Harness) Execute(ctx context.Context, path, source string) ExecutionResult {
	ctx, span := observability.StartSpan(ctx, "execute_driver")
	defer span.End()

	log := logger.WithContext(ctx).With(zap.String("component", "harness"))

	ex, err := h.loader.LoadFile(path, source)
	if err != nil {
		span.RecordError(err)
		log.Warn("driver failed to load", zap.Error(err))
		return failed(err, nil)
	}

	it := ex.Records(ctx, nil)
	defer it.Close()

	sample := make([]models.Record, 0, h.sampleSize)
	for len(sample) < h.sampleSize && it.Next() {
		sample = append(sample, it.Record())
	}
	if err := it.Err(); err != nil {
		span.RecordError(err)
		log.Warn("driver failed", zap.Error(err), zap.Int("items_sampled", len(sample)))
		return failed(err, sample)
	}
	if len(sample) == 0 {
		err := errors.New(errors.ErrorTypeEmptyResult, "driver produced no records")
		span.RecordError(err)
		log.Warn("driver produced no records")
		return failed(err, sample)
	}

	span.SetAttribute("items_sampled", len(sample))
	log.Info("driver test passed", zap.Int("items_sampled", len(sample)))
	return ExecutionResult{
		Success:      true,
		ItemsSampled: len(sample),
		Sample:       sample,
	}
}

func failed(err error, sample []models.Record) ExecutionResult {
	return ExecutionResult{
		ItemsSampled: len(sample),
		ErrorText:    err.Error(),
		Sample:       sample,
		Err:          err,
	}
}
