package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Collector is a zapcore.Core that keeps every entry as a human-readable line.
// Build runs tee their logger into a Collector so callers get the progress
// trail verbatim alongside the configured log sink.
type Collector struct {
	level  zapcore.LevelEnabler
	fields []zapcore.Field
	sink   *lineSink
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

// NewCollector creates a collector that records entries at or above level.
func NewCollector(level zapcore.LevelEnabler) *Collector {
	return &Collector{level: level, sink: &lineSink{}}
}

// Tee returns a logger writing to both base and a fresh collector.
func Tee(base *zap.Logger, level zapcore.LevelEnabler) (*zap.Logger, *Collector) {
	c := NewCollector(level)
	l := base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, c)
	}))
	return l, c
}

// Enabled implements zapcore.LevelEnabler
func (c *Collector) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

// With implements zapcore.Core
func (c *Collector) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &Collector{level: c.level, fields: merged, sink: c.sink}
}

// Check implements zapcore.Core
func (c *Collector) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core
func (c *Collector) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var b strings.Builder
	b.WriteString(ent.Message)

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		// ambient identifiers are noise in a per-build trail
		if k == "component" || k == "build_id" || k == "source" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}

	c.sink.mu.Lock()
	c.sink.lines = append(c.sink.lines, b.String())
	c.sink.mu.Unlock()
	return nil
}

// Sync implements zapcore.Core
func (c *Collector) Sync() error {
	return nil
}

// Lines returns a copy of the collected lines in emission order.
func (c *Collector) Lines() []string {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	out := make([]string, len(c.sink.lines))
	copy(out, c.sink.lines)
	return out
}
