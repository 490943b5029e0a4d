// Package app assembles the crawl pipeline from configuration. It is
// the composition root shared by the CLI and the TUI.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"ckandump/internal/cache"
	"ckandump/internal/ckan"
	"ckandump/internal/config"
	"ckandump/internal/crawl"
	"ckandump/internal/download"
	"ckandump/internal/errlog"
	"ckandump/internal/filter"
	"ckandump/internal/fix"
	"ckandump/internal/progress"
	"ckandump/internal/transport"
)

// Pipeline holds the wired components for one dump run.
type Pipeline struct {
	Bucket       *blob.Bucket
	Client       *ckan.Client
	Tracker      *progress.Tracker
	Orchestrator *crawl.Orchestrator
	Fixer        *fix.Fixer

	errors *errlog.Log
}

// New builds a Pipeline against cfg. The config must already be
// validated. tracker events are delivered to onEvent when non-nil.
func New(cfg config.Config, logger *slog.Logger, onEvent func(progress.Event)) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bucket, err := fileblob.OpenBucket(cfg.OutputDir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open output dir %s: %w", cfg.OutputDir, err)
	}

	errPath := cfg.ErrorLog
	if !filepath.IsAbs(errPath) {
		errPath = filepath.Join(cfg.OutputDir, errPath)
	}
	errors, err := errlog.Open(errPath)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("open error log %s: %w", errPath, err)
	}

	topts := transport.DefaultOptions()
	topts.MaxAttempts = cfg.Retry.Attempts
	topts.Timeout = cfg.HTTP.Timeout
	topts.RetryBackoff = cfg.Retry.Backoff
	topts.RetryMaxBackoff = cfg.Retry.MaxBackoff
	topts.MaxConnections = cfg.HTTP.MaxConnections
	topts.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
	topts.UserAgent = cfg.UserAgent
	tc := transport.NewClient(topts)

	client := ckan.NewClient(cfg.Address, tc,
		ckan.WithAPIKey(cfg.APIKey),
		ckan.WithUserAgent(cfg.UserAgent),
		ckan.WithGetOnly(),
	)

	tracker := progress.NewTracker(onEvent)

	downloader := download.NewDownloader(tc, bucket, errors, tracker, logger, download.Options{
		MaxRetries:      cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
	})

	orchestrator := crawl.NewOrchestrator(
		client,
		cache.New(bucket, cfg.CacheDir+"/"),
		bucket,
		downloader,
		filter.New(cfg.MimeTypes),
		tracker,
		logger,
	)

	return &Pipeline{
		Bucket:       bucket,
		Client:       client,
		Tracker:      tracker,
		Orchestrator: orchestrator,
		Fixer:        fix.New(bucket, tracker, logger),
		errors:       errors,
	}, nil
}

// Close releases the bucket and the error log.
func (p *Pipeline) Close() error {
	errErr := p.errors.Close()
	if err := p.Bucket.Close(); err != nil {
		return err
	}
	return errErr
}
