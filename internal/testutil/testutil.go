// Package testutil provides test utilities for dbstudio tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/johan-st/dbstudio/internal/storage"
)

// TempStorage opens a local store in a temporary directory, closed on cleanup.
func TempStorage(t *testing.T) *storage.Local {
	t.Helper()

	store, err := storage.OpenLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewLogger returns a debug-level logger that writes through t.Log.
func NewLogger(t testing.TB) *log.Logger {
	t.Helper()
	logger := log.NewWithOptions(testWriter{t}, log.Options{Level: log.DebugLevel})
	return logger
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Backend is a fake REST backend. Register handlers on Router before issuing
// requests.
type Backend struct {
	*httptest.Server
	Router chi.Router

	mu    sync.Mutex
	calls []Call
}

// Call is a request received by the Backend.
type Call struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          string
}

// NewBackend starts a Backend, closed on cleanup.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{Router: chi.NewRouter()}
	b.Router.Use(b.record)
	b.Server = httptest.NewServer(b.Router)
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		b.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// Calls returns every request received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the requests received for method and path.
func (b *Backend) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// WriteData writes a successful envelope carrying data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, map[string]any{"success": true, "data": data})
}

// WriteError writes a failed envelope with the given error string.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{"success": false, "error": msg})
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// DecodeBody unmarshals a recorded request body.
func DecodeBody(t *testing.T, c Call, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(c.Body), v); err != nil {
		t.Fatalf("failed to decode body %q: %v", c.Body, err)
	}
}

// OutputCapture is a helper for capturing CLI output.
type OutputCapture struct {
	Out bytes.Buffer
	Err bytes.Buffer
}

// Stdout returns captured stdout as string.
func (c *OutputCapture) Stdout() string {
	return c.Out.String()
}

// Stderr returns captured stderr as string.
func (c *OutputCapture) Stderr() string {
	return c.Err.String()
}
