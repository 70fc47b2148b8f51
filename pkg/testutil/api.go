package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Reply is one scripted HTTP response.
type Reply struct {
	Status int
	Header map[string]string
	Body   string
}

// JSON returns a 200 reply with a JSON content type.
func JSON(body string) Reply {
	return Reply{
		Status: http.StatusOK,
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	}
}

// Status returns a reply with the given code and body.
func Status(code int, body string) Reply {
	return Reply{Status: code, Body: body}
}

// Handler decides the reply for a request.
type Handler func(r *http.Request) Reply

// Sequence replies in order, repeating the last reply once exhausted.
func Sequence(replies ...Reply) Handler {
	var mu sync.Mutex
	next := 0
	return func(*http.Request) Reply {
		mu.Lock()
		defer mu.Unlock()
		r := replies[next]
		if next < len(replies)-1 {
			next++
		}
		return r
	}
}

// ByQuery picks the reply keyed by the value of query parameter name. A
// request without the parameter gets the reply keyed by "".
func ByQuery(name string, replies map[string]Reply, fallback Reply) Handler {
	return func(r *http.Request) Reply {
		if reply, ok := replies[r.URL.Query().Get(name)]; ok {
			return reply
		}
		return fallback
	}
}

// RequireHeader wraps h so requests missing header name get a 401.
func RequireHeader(name, value string, h Handler) Handler {
	return func(r *http.Request) Reply {
		if r.Header.Get(name) != value {
			return Status(http.StatusUnauthorized, `{"error":"unauthorized"}`)
		}
		return h(r)
	}
}

// MockAPI is an httptest server that records the requests it serves.
type MockAPI struct {
	*httptest.Server

	mu      sync.Mutex
	queries []url.Values
	headers []http.Header
}

// NewMockAPI starts a server answering with h. It is closed when the test
// ends.
func NewMockAPI(t *testing.T, h Handler) *MockAPI {
	t.Helper()
	m := &MockAPI{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.queries = append(m.queries, r.URL.Query())
		m.headers = append(m.headers, r.Header.Clone())
		m.mu.Unlock()

		reply := h(r)
		for k, v := range reply.Header {
			w.Header().Set(k, v)
		}
		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply.Body))
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns how many requests have been served.
func (m *MockAPI) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// Queries returns the query of every request in arrival order.
func (m *MockAPI) Queries() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.queries))
	copy(out, m.queries)
	return out
}

// Headers returns the headers of every request in arrival order.
func (m *MockAPI) Headers() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]http.Header, len(m.headers))
	copy(out, m.headers)
	return out
}
