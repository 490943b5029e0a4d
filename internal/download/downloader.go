package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"gocloud.dev/blob"

	"ckandump/internal/errlog"
	"ckandump/internal/model"
	"ckandump/internal/progress"
	"ckandump/internal/transport"
)

// Options configures the downloader.
type Options struct {
	// MaxRetries is how many times a whole streamed attempt is tried
	// before the resource is declared failed.
	// Default: 10
	MaxRetries int

	// RetryBackoff is the initial backoff between attempts.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff between attempts.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:      10,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
	}
}

// Status classifies the result of a download.
type Status int

const (
	// StatusDownloaded means the file was fetched and committed.
	StatusDownloaded Status = iota

	// StatusSkipped means the destination already existed (or the
	// resource had nothing to fetch); nothing was transferred.
	StatusSkipped

	// StatusFailed means every attempt failed; the failure is in the
	// error log and in Outcome.Err.
	StatusFailed
)

// Outcome reports what happened to one resource. Failures never
// escalate past this type: sibling downloads in the same package must
// continue unaffected.
type Outcome struct {
	Status Status
	Name   string
	Bytes  int64
	Err    error
}

// Downloader streams resources to the output bucket.
type Downloader struct {
	http    *transport.Client
	bucket  *blob.Bucket
	errors  *errlog.Log
	tracker *progress.Tracker
	logger  *slog.Logger
	opts    Options
}

// NewDownloader creates a downloader. errors and tracker may be nil.
func NewDownloader(tc *transport.Client, bucket *blob.Bucket, errors *errlog.Log, tracker *progress.Tracker, logger *slog.Logger, opts Options) *Downloader {
	def := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		http:    tc,
		bucket:  bucket,
		errors:  errors,
		tracker: tracker,
		logger:  logger,
		opts:    opts,
	}
}

// Download fetches one resource into destDir. The destination key is
// the sanitized resource name; if it already exists the download is
// skipped, which is what makes repeated runs idempotent.
func (d *Downloader) Download(ctx context.Context, res model.Resource, destDir string) Outcome {
	if res.URL == "" {
		return Outcome{Status: StatusSkipped}
	}

	name := res.FileName()
	key := path.Join(destDir, name)

	exists, err := d.bucket.Exists(ctx, key)
	if err != nil {
		return d.fail(res.HTTPSURL(), name, fmt.Errorf("check destination %s: %w", key, err))
	}
	if exists {
		d.tracker.FileSkipped()
		d.tracker.Emit(progress.LevelVerbose, fmt.Sprintf("Skipping existing: %s", name))
		return Outcome{Status: StatusSkipped, Name: name}
	}

	url := res.HTTPSURL()

	var (
		written int64
		lastErr error
	)
	for attempt := 1; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			d.tracker.Emit(progress.LevelWarning, fmt.Sprintf("Retry %d/%d for %s", attempt, d.opts.MaxRetries, name))
			if err := transport.Backoff(ctx, attempt-1, d.opts.RetryBackoff, d.opts.RetryMaxBackoff); err != nil {
				return Outcome{Status: StatusFailed, Name: name, Err: err}
			}
		}

		written, lastErr = d.attempt(ctx, url, key, attempt == 1)
		if lastErr == nil {
			d.tracker.FileDownloaded()
			d.tracker.Emit(progress.LevelVerbose, fmt.Sprintf("Downloaded: %s", name))
			return Outcome{Status: StatusDownloaded, Name: name, Bytes: written}
		}
		if ctx.Err() != nil {
			// Cancellation is not a server fault; leave the error log
			// alone so the next run simply retries.
			return Outcome{Status: StatusFailed, Name: name, Err: ctx.Err()}
		}
	}

	return d.fail(url, name, lastErr)
}

// attempt performs one streamed transfer. The blob writer's context
// is cancelled on a mid-stream error so a partial body is never
// committed under the final name.
func (d *Downloader) attempt(ctx context.Context, url, key string, first bool) (int64, error) {
	body, err := d.http.Open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if first {
		d.tracker.AddTotalBytes(body.ContentLength)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := d.bucket.NewWriter(wctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", key, err)
	}

	cw := &progress.CountingWriter{W: w, Tracker: d.tracker}
	if _, err := io.Copy(cw, body); err != nil {
		cancel()
		w.Close()
		return cw.Written, fmt.Errorf("stream %s: %w", url, err)
	}
	if err := w.Close(); err != nil {
		return cw.Written, fmt.Errorf("commit %s: %w", key, err)
	}
	return cw.Written, nil
}

func (d *Downloader) fail(url, name string, cause error) Outcome {
	d.tracker.FileFailed()
	d.tracker.Emit(progress.LevelError, fmt.Sprintf("Couldn't download %s: %v", url, cause))
	d.logger.Error("download failed", "url", url, "error", cause)

	if d.errors != nil {
		if err := d.errors.Append(url, cause); err != nil {
			d.logger.Error("append to error log", "error", err)
		}
	}
	return Outcome{Status: StatusFailed, Name: name, Err: cause}
}
