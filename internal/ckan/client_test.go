package ckan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ckandump/internal/transport"
)

func testTransport() *transport.Client {
	opts := transport.DefaultOptions()
	opts.MaxAttempts = 2
	opts.RetryBackoff = time.Millisecond
	opts.RetryMaxBackoff = 2 * time.Millisecond
	return transport.NewClient(opts)
}

func TestClient_CallAction_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/action/package_show" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "pkg-1" {
			t.Errorf("id = %q", r.URL.Query().Get("id"))
		}
		io.WriteString(w, `{"success": true, "result": {"id": "pkg-1", "name": "spending"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTransport(), WithGetOnly())
	raw, err := c.PackageShow(context.Background(), "pkg-1")
	if err != nil {
		t.Fatalf("PackageShow: %v", err)
	}
	if !strings.Contains(string(raw), `"id": "pkg-1"`) {
		t.Errorf("result = %s", raw)
	}
}

func TestClient_CallAction_APIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "key-123" {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `{"success": true, "result": []}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTransport(), WithAPIKey("key-123"))
	if _, err := c.GroupList(context.Background()); err != nil {
		t.Fatalf("GroupList: %v", err)
	}
}

func TestClient_CallAction_EnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "error": {"__type": "Not Found Error", "message": "Package not found"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTransport())
	_, err := c.PackageShow(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Action != "package_show" {
		t.Errorf("Action = %q", apiErr.Action)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("Type = %q, want not-found", apiErr.Type)
	}
	if apiErr.Message != "Package not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestClient_CallAction_ErrorEnvelopeAfterExhaustion(t *testing.T) {
	// A server that answers every attempt with 409 + failure envelope:
	// the retries run out, but the application error must still
	// surface instead of a bare transport failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"success": false, "error": {"__type": "Validation Error", "message": "bad id"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTransport())
	_, err := c.PackageShow(context.Background(), "bad")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Type != TypeValidation {
		t.Errorf("Type = %q", apiErr.Type)
	}
}

func TestClient_CallAction_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>definitely not json</html>")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTransport())
	_, err := c.GroupShow(context.Background(), "g1")
	if err == nil || !strings.Contains(err.Error(), "malformed response") {
		t.Errorf("err = %v, want malformed response", err)
	}
}

func TestClient_CallAction_RejectsContext(t *testing.T) {
	c := NewClient("https://example.com", testTransport())
	_, err := c.CallAction(context.Background(), "package_show", nil, &CallOptions{
		Context: map[string]any{"user": "admin"},
	})
	if err == nil || !strings.Contains(err.Error(), "context is not supported") {
		t.Errorf("err = %v, want context rejection", err)
	}
}

func TestClient_CallAction_RejectsFilesWhenGetOnly(t *testing.T) {
	c := NewClient("https://example.com", testTransport(), WithGetOnly())
	_, err := c.CallAction(context.Background(), "resource_create", nil, &CallOptions{
		Files: map[string]io.Reader{"upload": strings.NewReader("data")},
	})
	if err == nil || !strings.Contains(err.Error(), "get-only") {
		t.Errorf("err = %v, want get-only rejection", err)
	}
}

func TestClient_BasePathOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/package_list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"success": true, "result": ["a", "b"]}`)
	}))
	defer srv.Close()

	// Deployments that bake the action path into the address use an
	// empty base path, mirroring the upstream workaround.
	c := NewClient(srv.URL, testTransport(), WithBasePath(""))
	ids, err := c.PackageList(context.Background())
	if err != nil {
		t.Fatalf("PackageList: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" {
		t.Errorf("ids = %v", ids)
	}
}
