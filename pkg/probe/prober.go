// Package probe infers the protocol of an unknown HTTP API from a single
// calibration request: pagination scheme, response envelope, rate-limit
// signalling, where the records live and which field identifies them.
//
// Probing is best effort. Anything that cannot be classified falls back to
// pattern.Default rather than failing the caller.
package probe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ajitpratap0/adagent/pkg/clients"
	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/json"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/metrics"
	"github.com/ajitpratap0/adagent/pkg/observability"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the calibration request.
const DefaultTimeout = 10 * time.Second

// Endpoint records one calibration request.
type Endpoint struct {
	Path    string `json:"path"`
	Status  int    `json:"status"`
	Success bool   `json:"success"`
}

// Result is the outcome of a probe.
type Result struct {
	Pattern   pattern.Description `json:"pattern"`
	Endpoints []Endpoint          `json:"endpoints"`
}

// Prober issues calibration requests and classifies the responses.
type Prober struct {
	client *clients.HTTPClient
}

// New creates a prober. The client is cloned with the given timeout; a
// non-positive timeout uses DefaultTimeout.
func New(client *clients.HTTPClient, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: client.WithTimeout(timeout)}
}

// Probe sends one GET to baseURL+endpoint and classifies the response.
//
// Transport failures return a probe error together with a Result holding
// the default description and the endpoint trail, so callers may carry on.
// Non-200 responses are not errors: 401/403 set AuthRequired, anything else
// yields the default description.
func (p *Prober) Probe(ctx context.Context, baseURL, endpoint string, headers map[string]string) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "probe")
	defer span.End()
	span.SetAttribute("endpoint", endpoint)

	log := logger.WithContext(ctx).With(zap.String("component", "prober"))
	target := clients.JoinURL(baseURL, endpoint)
	result := &Result{Pattern: pattern.Default()}

	log.Info("probing endpoint", zap.String("url", target))
	resp, err := p.client.Get(ctx, target, nil, headers)
	if err != nil {
		result.Endpoints = append(result.Endpoints, Endpoint{Path: endpoint})
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		log.Warn("probe request failed", zap.Error(err))
		return result, errors.Wrap(err, errors.ErrorTypeProbe, "calibration request to "+target+" failed")
	}

	result.Endpoints = append(result.Endpoints, Endpoint{
		Path:    endpoint,
		Status:  resp.StatusCode,
		Success: resp.StatusCode == http.StatusOK,
	})
	span.SetAttribute("status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Pattern = result.Pattern.WithAuthRequired(true)
		metrics.ProbesTotal.WithLabelValues("auth_required").Inc()
		log.Info("endpoint requires authentication", zap.Int("status", resp.StatusCode))
		return result, nil
	case resp.StatusCode != http.StatusOK:
		metrics.ProbesTotal.WithLabelValues("non_ok").Inc()
		log.Info("endpoint returned non-OK status, using defaults", zap.Int("status", resp.StatusCode))
		return result, nil
	}

	doc, err := json.DecodeOrdered(resp.Body)
	if err != nil {
		// Non-JSON bodies (XML included) are not analysed.
		metrics.ProbesTotal.WithLabelValues("not_json").Inc()
		log.Info("response body is not JSON, using defaults", zap.Error(err))
		result.Pattern = result.Pattern.WithRateLimit(detectRateLimit(resp.Header))
		return result, nil
	}

	result.Pattern = Analyze(doc, resp.Header)
	metrics.ProbesTotal.WithLabelValues(string(result.Pattern.Pagination.Kind)).Inc()

	d := result.Pattern
	dataPath := d.DataPath
	if dataPath == "" {
		dataPath = "unknown"
	}
	log.Info("probe complete",
		zap.String("pagination", string(d.Pagination.Kind)),
		zap.String("envelope", string(d.Envelope.Kind)),
		zap.Bool("rate_limit", d.RateLimit.Detected()),
		zap.String("data_path", dataPath),
		zap.String("primary_key", d.PrimaryKeyField),
		zap.Int("status", resp.StatusCode))

	return result, nil
}

// Analyze classifies a decoded response body (as produced by
// json.DecodeOrdered) and its headers.
func Analyze(doc interface{}, header http.Header) pattern.Description {
	d := pattern.Default().WithRateLimit(detectRateLimit(header))

	if obj, ok := doc.(*json.Object); ok {
		d = d.WithEnvelope(detectEnvelope(obj)).WithPagination(detectPagination(obj))
	}

	dataPath := findDataPath(doc)
	return d.WithDataPath(dataPath).WithPrimaryKey(detectPrimaryKey(doc, dataPath))
}

func detectEnvelope(obj *json.Object) pattern.Envelope {
	switch {
	case obj.Has("responseMetadata") || obj.Has("response_metadata"):
		return pattern.Envelope{
			Kind:            pattern.EnvelopeWrapped,
			StatusFieldPath: "responseMetadata.status",
			WrapperKeys:     [2]string{"responseMetadata", "data"},
		}
	case obj.Has("meta") && obj.Has("data"):
		return pattern.Envelope{
			Kind:            pattern.EnvelopeWrapped,
			StatusFieldPath: "meta.status",
			WrapperKeys:     [2]string{"meta", "data"},
		}
	case obj.Has("success") && obj.Has("result"):
		return pattern.Envelope{
			Kind:            pattern.EnvelopeWrapped,
			StatusFieldPath: "success",
			WrapperKeys:     [2]string{"success", "result"},
		}
	}
	return pattern.Envelope{Kind: pattern.EnvelopeStandard}
}

func detectPagination(obj *json.Object) pattern.Pagination {
	if obj.Has("cursor") || obj.Has("nextCursor") {
		cursorKey := "cursor"
		if obj.Has("nextCursor") {
			cursorKey = "nextCursor"
		}
		return pattern.Pagination{
			Kind:             pattern.PaginationCursor,
			CursorFieldPath:  cursorKey,
			HasNextFieldPath: pattern.DefaultHasNextPath,
		}
	}

	if pag, ok := objectAt(obj, "pagination"); ok {
		if nav, ok := objectAt(pag, "navigation"); ok && nav.Has("nextCursor") {
			return pattern.Pagination{
				Kind:             pattern.PaginationCursor,
				CursorFieldPath:  "pagination.navigation.nextCursor",
				HasNextFieldPath: "pagination.navigation.hasNext",
			}
		}
	}

	if obj.Has("offset") || obj.Has("page") {
		offsetKey := "page"
		if obj.Has("offset") {
			offsetKey = "offset"
		}
		return pattern.Pagination{Kind: pattern.PaginationOffset, OffsetKey: offsetKey}
	}

	if obj.Has("next_page") || obj.Has("nextPage") {
		nextKey := "next_page"
		if obj.Has("nextPage") {
			nextKey = "nextPage"
		}
		return pattern.Pagination{Kind: pattern.PaginationPage, NextPageKey: nextKey}
	}

	return pattern.Pagination{Kind: pattern.PaginationNone}
}

func detectRateLimit(header http.Header) pattern.RateLimit {
	if header.Get("X-RateLimit-Limit") != "" {
		return pattern.RateLimit{
			LimitHeader:     "X-RateLimit-Limit",
			RemainingHeader: "X-RateLimit-Remaining",
			ResetHeader:     "X-RateLimit-Reset",
		}
	}
	if header.Get("RateLimit-Limit") != "" {
		return pattern.RateLimit{
			LimitHeader:     "RateLimit-Limit",
			RemainingHeader: "RateLimit-Remaining",
		}
	}
	return pattern.RateLimit{}
}

var (
	dataKeys      = []string{"data", "results", "items", "records"}
	innerDataKeys = []string{"campaigns", "items", "results"}
	idCandidates  = []string{"id", "ID", "_id", "uuid", "campaignId", "campaign_id"}
)

func findDataPath(doc interface{}) string {
	if _, ok := doc.([]interface{}); ok {
		return pattern.RootPath
	}
	obj, ok := doc.(*json.Object)
	if !ok {
		return ""
	}

	for _, key := range dataKeys {
		v, ok := obj.Get(key)
		if !ok {
			continue
		}
		switch inner := v.(type) {
		case []interface{}:
			return key
		case *json.Object:
			for _, innerKey := range innerDataKeys {
				if iv, ok := inner.Get(innerKey); ok {
					if _, isList := iv.([]interface{}); isList {
						return key + "." + innerKey
					}
				}
			}
			return key
		}
	}

	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		switch val := v.(type) {
		case []interface{}:
			if len(val) > 0 {
				return key
			}
		case *json.Object:
			for _, innerKey := range val.Keys() {
				iv, _ := val.Get(innerKey)
				if list, isList := iv.([]interface{}); isList && len(list) > 0 {
					return key + "." + innerKey
				}
			}
		}
	}
	return ""
}

func detectPrimaryKey(doc interface{}, dataPath string) string {
	if dataPath == "" {
		return pattern.DefaultPrimaryKey
	}
	items, ok := valueAt(doc, dataPath).([]interface{})
	if !ok || len(items) == 0 {
		return pattern.DefaultPrimaryKey
	}
	first, ok := items[0].(*json.Object)
	if !ok {
		return pattern.DefaultPrimaryKey
	}

	for _, key := range idCandidates {
		if first.Has(key) {
			return key
		}
	}
	for _, key := range first.Keys() {
		if strings.Contains(strings.ToLower(key), "id") {
			return key
		}
	}
	return pattern.DefaultPrimaryKey
}

// valueAt walks a dotted path; RootPath returns doc itself.
func valueAt(doc interface{}, path string) interface{} {
	cur := doc
	for _, key := range pattern.SplitPath(path) {
		obj, ok := cur.(*json.Object)
		if !ok {
			return nil
		}
		cur, _ = obj.Get(key)
	}
	return cur
}

func objectAt(obj *json.Object, key string) (*json.Object, bool) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, false
	}
	inner, ok := v.(*json.Object)
	return inner, ok
}
