package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/adagent/pkg/clients"
	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/json"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/metrics"
	"github.com/ajitpratap0/adagent/pkg/models"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"go.uber.org/zap"
)

// DefaultDataPath is read when a plan names no data path.
const DefaultDataPath = "data"

// Extractor executes a Plan.
type Extractor struct {
	plan   Plan
	client *clients.HTTPClient
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewExtractor creates an extractor for plan using client.
func NewExtractor(plan Plan, client *clients.HTTPClient) *Extractor {
	return &Extractor{plan: plan, client: client, sleep: sleepContext}
}

// Plan returns the plan being executed.
func (e *Extractor) Plan() Plan {
	return e.plan
}

// Params returns the header parameters and their defaults.
func (e *Extractor) Params() map[string]string {
	out := make(map[string]string, len(e.plan.Headers))
	for _, h := range e.plan.Headers {
		out[h.Param] = h.Default
	}
	return out
}

// Records starts a lazy extraction. params override header parameter
// defaults by name; unknown names are ignored. Nothing is fetched until the
// first call to Next.
func (e *Extractor) Records(ctx context.Context, params map[string]string) *RecordIterator {
	headers := make(map[string]string, len(e.plan.Headers))
	for _, h := range e.plan.Headers {
		v := h.Default
		if override, ok := params[h.Param]; ok {
			v = override
		}
		headers[h.Name] = v
	}
	return &RecordIterator{
		ex:      e,
		ctx:     ctx,
		headers: headers,
		page:    1,
		log:     logger.WithContext(ctx).With(zap.String("component", "driver"), zap.String("resource", e.plan.Name)),
	}
}

// RecordIterator yields the records of one extraction run. It is finite and
// cannot be restarted.
type RecordIterator struct {
	ex      *Extractor
	ctx     context.Context
	headers map[string]string
	log     *zap.Logger

	buf []models.Record
	pos int
	cur models.Record

	// pending is raised once buf has been drained.
	pending error
	err     error
	done    bool
	closed  bool

	fetched int
	page    int
	offset  int
	cursor  string
}

// Next advances to the next record, fetching pages as needed.
func (it *RecordIterator) Next() bool {
	for {
		if it.closed || it.err != nil {
			return false
		}
		if it.pos < len(it.buf) {
			it.cur = it.buf[it.pos]
			it.pos++
			metrics.RecordsExtracted.WithLabelValues(it.ex.plan.Source).Inc()
			return true
		}
		if it.pending != nil {
			it.err = it.pending
			return false
		}
		if it.done {
			return false
		}
		if err := it.fetch(); err != nil {
			it.err = err
			return false
		}
	}
}

// Record returns the current record.
func (it *RecordIterator) Record() models.Record {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *RecordIterator) Err() error {
	return it.err
}

// Pages returns how many pages were fetched.
func (it *RecordIterator) Pages() int {
	return it.fetched
}

// Close stops the iteration. It is safe to call more than once.
func (it *RecordIterator) Close() error {
	if !it.closed {
		it.closed = true
		it.buf = nil
		it.log.Debug("extraction closed", zap.Int("pages", it.fetched))
	}
	return nil
}

func (it *RecordIterator) fetch() error {
	plan := it.ex.plan
	pg := plan.Pagination

	if it.fetched > 0 && pg.DelayMillis > 0 {
		if err := it.ex.sleep(it.ctx, time.Duration(pg.DelayMillis)*time.Millisecond); err != nil {
			return err
		}
	}

	query := url.Values{}
	switch pg.Kind {
	case pattern.PaginationCursor:
		query.Set(pg.PageParam, strconv.Itoa(it.page))
		query.Set(pg.PageSizeParam, strconv.Itoa(pg.PageSize))
		if it.cursor != "" {
			query.Set(pg.CursorParam, it.cursor)
		}
	case pattern.PaginationOffset:
		query.Set(pg.OffsetParam, strconv.Itoa(it.offset))
		query.Set(pg.LimitParam, strconv.Itoa(pg.Limit))
	case pattern.PaginationPage:
		query.Set(pg.PageParam, strconv.Itoa(it.page))
		query.Set(pg.PageSizeParam, strconv.Itoa(pg.PageSize))
	}

	target := clients.JoinURL(plan.BaseURL, plan.Endpoint)
	resp, err := it.ex.client.Get(it.ctx, target, query, it.headers)
	if err != nil {
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "request to "+target+" timed out")
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "request to "+target+" failed")
	}
	it.fetched++

	if err := it.checkRateLimit(resp.Header); err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpstreamAPI, "response body is not valid JSON")
	}

	if pg.Kind == pattern.PaginationCursor && plan.Envelope != nil {
		if err := checkEnvelope(doc, plan.Envelope); err != nil {
			return err
		}
	}

	items, err := extractItems(doc, plan.DataPath)
	if err != nil {
		return err
	}
	records := make([]models.Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return errors.Newf(errors.ErrorTypeShapeMismatch, "record %d is %s, not an object", i, typeName(item))
		}
		records = append(records, models.NewRecord(plan.Source, m))
	}
	it.buf, it.pos = records, 0

	it.log.Debug("page fetched", zap.Int("page", it.fetched), zap.Int("records", len(records)))

	switch pg.Kind {
	case pattern.PaginationNone:
		it.finish()
	case pattern.PaginationCursor:
		if len(records) == 0 || !truthy(lookup(doc, pg.HasNextPath)) {
			it.finish()
			break
		}
		next := lookup(doc, pg.CursorPath)
		if next == nil || formatScalar(next) == "" {
			it.pending = errors.Newf(errors.ErrorTypePagination,
				"cursor missing at %q while %q is true", pg.CursorPath, pg.HasNextPath)
			it.done = true
			break
		}
		it.cursor = formatScalar(next)
		it.page++
	case pattern.PaginationOffset:
		if len(records) == 0 {
			it.finish()
			break
		}
		it.offset += pg.Limit
	case pattern.PaginationPage:
		if len(records) == 0 || !truthy(lookup(doc, pg.NextPageKey)) {
			it.finish()
			break
		}
		it.page++
	}
	return nil
}

func (it *RecordIterator) finish() {
	it.done = true
	it.log.Info(fmt.Sprintf("%s: extracted %d pages", it.ex.plan.Source, it.fetched))
}

func (it *RecordIterator) checkRateLimit(h http.Header) error {
	rl := it.ex.plan.RateLimit
	if rl == nil {
		return nil
	}
	raw := h.Get(rl.RemainingHeader)
	if raw == "" {
		return nil
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || remaining >= rl.Threshold {
		return nil
	}
	it.log.Warn("rate limit warning", zap.Int("remaining", remaining))
	metrics.RateLimitWaits.WithLabelValues(it.ex.plan.Source).Inc()
	return it.ex.sleep(it.ctx, time.Duration(rl.PauseMillis)*time.Millisecond)
}

func checkStatus(resp *clients.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrorTypeAuthentication, "HTTP 401 Unauthorized").
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrorTypeAuthentication, "HTTP 403 Forbidden").
			WithDetail("status", resp.StatusCode)
	case !resp.OK():
		return errors.Newf(errors.ErrorTypeUpstreamAPI, "HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)).
			WithDetail("status", resp.StatusCode)
	}
	return nil
}

func checkEnvelope(doc interface{}, env *EnvelopePlan) error {
	status := lookup(doc, env.StatusPath)
	if isSuccess(status, env.SuccessValues) {
		return nil
	}
	message := "Unknown error"
	if m, ok := lookup(doc, env.MessagePath).(string); ok && m != "" {
		message = m
	}
	return errors.Newf(errors.ErrorTypeUpstreamAPI, "API error: %s", message).
		WithDetail("status", status)
}

// isSuccess matches status against accepted exactly. Non-string statuses
// never match.
func isSuccess(status interface{}, accepted []string) bool {
	s, ok := status.(string)
	if !ok {
		return false
	}
	for _, a := range accepted {
		if s == a {
			return true
		}
	}
	return false
}

// extractItems walks path through doc and returns the record list. A JSON
// null at the end of the path yields no records.
func extractItems(doc interface{}, path string) ([]interface{}, error) {
	if path == "" {
		path = DefaultDataPath
	}

	cur := doc
	walked := make([]string, 0, 4)
	for _, key := range pattern.SplitPath(path) {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeShapeMismatch,
				"cannot read key %q from %s at %q", key, typeName(cur), displayPath(walked))
		}
		v, ok := obj[key]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeMissingKey, "key %q not found in response", key).
				WithDetail("path", path)
		}
		walked = append(walked, key)
		cur = v
	}

	switch v := cur.(type) {
	case []interface{}:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeShapeMismatch,
			"value at %q is %s, not a list", path, typeName(cur))
	}
}

// lookup walks a dotted path leniently; any miss yields nil.
func lookup(doc interface{}, path string) interface{} {
	if path == "" {
		return nil
	}
	cur := doc
	for _, key := range pattern.SplitPath(path) {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

func formatScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	}
	return fmt.Sprintf("%T", v)
}

func displayPath(keys []string) string {
	if len(keys) == 0 {
		return pattern.RootPath
	}
	return strings.Join(keys, ".")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
