// Package testutil provides testing utilities for the bookmeta proxy.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mocked upstream API endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock upstream book API for testing provider
// clients and the resolution pipeline.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    string
}

// NewMockAPI creates a new mock upstream server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query().Get("q")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"totalItems": 0, "items": []}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the q parameter of the most recent request.
func (m *MockAPI) GetLastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GoogleBooksVolume renders a minimal Google Books volume payload.
func GoogleBooksVolume(title, author, isbn13 string) string {
	return `{
		"totalItems": 1,
		"items": [{
			"volumeInfo": {
				"title": "` + title + `",
				"authors": ["` + author + `"],
				"publisher": "Test House",
				"publishedDate": "2001",
				"industryIdentifiers": [{"type": "ISBN_13", "identifier": "` + isbn13 + `"}],
				"imageLinks": {"thumbnail": "http://books.example/cover.jpg"},
				"language": "en"
			}
		}]
	}`
}

// OpenLibraryDoc renders a minimal Open Library search payload.
func OpenLibraryDoc(title, author, isbn13 string) string {
	return `{
		"numFound": 1,
		"docs": [{
			"title": "` + title + `",
			"author_name": ["` + author + `"],
			"isbn": ["` + isbn13 + `"],
			"publisher": ["Test House"],
			"first_publish_year": 2001,
			"cover_i": 12345,
			"language": ["eng"]
		}]
	}`
}
