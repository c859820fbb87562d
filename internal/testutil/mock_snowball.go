// Package testutil provides testing utilities for the Snowball gateway.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TokenCookie is the cookie Snowball reads the session token from.
const TokenCookie = "xq_a_token"

// AuthExpiredBody is the payload Snowball returns for an expired token.
const AuthExpiredBody = `{"error_description":"遇到错误，请刷新页面或者重新登录帐号后再试","error_uri":"/v5/stock/quote.json","error_data":null,"error_code":"400016"}`

// MockResponse defines the behavior for a mock Snowball endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSnowball is a configurable mock Snowball server for testing. It serves
// every host kind (stock, web, fund) from one listener.
type MockSnowball struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	Tokens       []string
	LastRequest  *http.Request
}

// NewMockSnowball creates a new mock Snowball server.
func NewMockSnowball() *MockSnowball {
	mock := &MockSnowball{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(TokenCookie); err == nil {
			token = c.Value
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.Tokens = append(mock.Tokens, token)
		mock.LastRequest = r.Clone(r.Context())
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSnowball) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSnowball) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSnowball) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Tokens = nil
	m.LastRequest = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSnowball) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSnowball) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSequence serves the given responses in order for a path, repeating the
// last one once the sequence is exhausted.
func (m *MockSnowball) SetSequence(path string, resps ...MockResponse) {
	var (
		mu sync.Mutex
		i  int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[min(i, len(resps)-1)]
		i++
		mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
	})
}

// RequireToken rejects requests to path that do not carry one of tokens with
// the auth-expired payload, and otherwise serves body.
func (m *MockSnowball) RequireToken(path, body string, tokens ...string) {
	valid := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		valid[t] = true
	}
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		c, err := r.Cookie(TokenCookie)
		if err != nil || !valid[c.Value] {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(AuthExpiredBody))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSnowball) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokens returns the session tokens seen so far, in request order.
// Unauthenticated requests are recorded as "".
func (m *MockSnowball) GetTokens() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Tokens...)
}

// GetLastRequest returns a copy of the most recent request.
func (m *MockSnowball) GetLastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequest
}

// defaultHandler answers like Snowball does for an empty result.
func (m *MockSnowball) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	if strings.HasPrefix(r.URL.Path, "/djapi/") {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{},"result_code":0}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"data":{},"error_code":0,"error_description":""}`))
}

// NewHealthyResponse creates a standard 200 OK Snowball envelope around data.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data":` + data + `,"error_code":0,"error_description":""}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}

// NewAuthExpiredResponse creates the 400 response Snowball sends for an expired token.
func NewAuthExpiredResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       AuthExpiredBody,
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `<html><body>500 Internal Server Error</body></html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error_code":"429","error_description":"请求过于频繁"}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}
