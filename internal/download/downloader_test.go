package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"ckandump/internal/errlog"
	"ckandump/internal/model"
	"ckandump/internal/progress"
	"ckandump/internal/transport"
)

func testTransport(srv *httptest.Server) *transport.Client {
	opts := transport.DefaultOptions()
	opts.HTTPClient = srv.Client()
	opts.RetryBackoff = time.Millisecond
	opts.RetryMaxBackoff = 2 * time.Millisecond
	return transport.NewClient(opts)
}

func testOptions() Options {
	return Options{
		MaxRetries:      3,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 2 * time.Millisecond,
	}
}

func TestDownloader_Download(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "col1;col2\n1;2\n")
	}))
	defer srv.Close()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	d := NewDownloader(testTransport(srv), bucket, nil, nil, nil, testOptions())
	res := model.Resource{URL: srv.URL + "/data.csv", Name: "spending.csv", MimeType: "text/csv"}

	out := d.Download(context.Background(), res, "group/pkg")
	if out.Status != StatusDownloaded {
		t.Fatalf("status = %v, err = %v", out.Status, out.Err)
	}
	if out.Bytes != int64(len("col1;col2\n1;2\n")) {
		t.Errorf("Bytes = %d", out.Bytes)
	}

	data, err := bucket.ReadAll(context.Background(), "group/pkg/spending.csv")
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "col1;col2\n1;2\n" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloader_SkipsExisting(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	bucket.WriteAll(ctx, "pkg/data.csv", []byte("already here"), nil)

	tr := progress.NewTracker(nil)
	d := NewDownloader(testTransport(srv), bucket, nil, tr, nil, testOptions())

	out := d.Download(ctx, model.Resource{URL: srv.URL + "/data.csv"}, "pkg")
	if out.Status != StatusSkipped {
		t.Fatalf("status = %v", out.Status)
	}
	if calls.Load() != 0 {
		t.Errorf("server was hit %d times, want 0", calls.Load())
	}
	if s := tr.Snapshot(); s.Skipped != 1 {
		t.Errorf("skipped counter = %d", s.Skipped)
	}
}

func TestDownloader_NameFallsBackToURLTail(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "x")
	}))
	defer srv.Close()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	d := NewDownloader(testTransport(srv), bucket, nil, nil, nil, testOptions())
	out := d.Download(context.Background(), model.Resource{URL: srv.URL + "/files/report.json"}, "pkg")
	if out.Status != StatusDownloaded {
		t.Fatalf("status = %v, err = %v", out.Status, out.Err)
	}

	if ok, _ := bucket.Exists(context.Background(), "pkg/report.json"); !ok {
		t.Error("expected pkg/report.json to exist")
	}
}

func TestDownloader_RetryBoundAndErrorLog(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	logPath := filepath.Join(t.TempDir(), "errors.log")
	el, err := errlog.Open(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer el.Close()

	tr := progress.NewTracker(nil)
	d := NewDownloader(testTransport(srv), bucket, el, tr, nil, testOptions())

	url := srv.URL + "/data.csv"
	out := d.Download(context.Background(), model.Resource{URL: url}, "pkg")
	if out.Status != StatusFailed {
		t.Fatalf("status = %v", out.Status)
	}
	if out.Err == nil {
		t.Fatal("Err must carry the last cause")
	}

	// Exactly MaxRetries attempts, exactly one error log line.
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}

	data, _ := os.ReadFile(logPath)
	if got := strings.Count(string(data), "Couldn't download "+url); got != 1 {
		t.Errorf("error log lines = %d, want 1\n%s", got, data)
	}

	if s := tr.Snapshot(); s.Failed != 1 {
		t.Errorf("failed counter = %d", s.Failed)
	}

	// The destination must not exist, so a later run retries.
	if ok, _ := bucket.Exists(context.Background(), "pkg/data.csv"); ok {
		t.Error("failed download must not leave a destination file")
	}
}

func TestDownloader_PartialBodyNotCommitted(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		io.WriteString(w, "only a bit")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Abort the connection mid-body.
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer srv.Close()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	opts := testOptions()
	opts.MaxRetries = 2
	d := NewDownloader(testTransport(srv), bucket, nil, nil, nil, opts)

	out := d.Download(context.Background(), model.Resource{URL: srv.URL + "/big.csv"}, "pkg")
	if out.Status != StatusFailed {
		t.Fatalf("status = %v", out.Status)
	}
	if ok, _ := bucket.Exists(context.Background(), "pkg/big.csv"); ok {
		t.Error("partial body must never commit under the final name")
	}
}

func TestDownloader_EmptyURLSkipped(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	d := NewDownloader(nil, bucket, nil, nil, nil, testOptions())
	out := d.Download(context.Background(), model.Resource{Name: "nameless"}, "pkg")
	if out.Status != StatusSkipped {
		t.Errorf("status = %v, want skipped", out.Status)
	}
}

func TestDownloader_CancelledContext(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	logPath := filepath.Join(t.TempDir(), "errors.log")
	el, _ := errlog.Open(logPath)
	defer el.Close()

	d := NewDownloader(testTransport(srv), bucket, el, nil, nil, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := d.Download(ctx, model.Resource{URL: srv.URL + "/data.csv"}, "pkg")
	if out.Status != StatusFailed {
		t.Fatalf("status = %v", out.Status)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", out.Err)
	}

	// Cancellation is not a permanent failure: no error log entry.
	data, _ := os.ReadFile(logPath)
	if len(data) != 0 {
		t.Errorf("error log not empty: %q", data)
	}
}
