// Package fix repairs CSV files that carry Unicode replacement
// characters left behind by lossy catalog exports.
package fix

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gocloud.dev/blob"

	"ckandump/internal/progress"
)

// replacement is U+FFFD, the marker decoders insert for bytes they
// could not interpret.
const replacement = "�"

// Result summarizes a fix run.
type Result struct {
	Scanned int
	Fixed   int
}

// Fixer scans CSV files in a bucket and rewrites the ones that contain
// replacement characters with those characters removed.
type Fixer struct {
	bucket  *blob.Bucket
	tracker *progress.Tracker
	logger  *slog.Logger
}

// New creates a Fixer over the given bucket. tracker may be nil.
func New(bucket *blob.Bucket, tracker *progress.Tracker, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{bucket: bucket, tracker: tracker, logger: logger}
}

// Run walks every .csv key under prefix and strips replacement
// characters in place. Files without them are left untouched.
func (f *Fixer) Run(ctx context.Context, prefix string) (Result, error) {
	var res Result

	iter := f.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("list bucket: %w", err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, ".csv") {
			continue
		}

		res.Scanned++
		fixed, err := f.fixFile(ctx, obj.Key)
		if err != nil {
			return res, err
		}
		if fixed {
			res.Fixed++
		}
	}

	return res, ctx.Err()
}

func (f *Fixer) fixFile(ctx context.Context, key string) (bool, error) {
	data, err := f.bucket.ReadAll(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !bytes.Contains(data, []byte(replacement)) {
		return false, nil
	}

	cleaned := bytes.ReplaceAll(data, []byte(replacement), nil)
	if err := f.bucket.WriteAll(ctx, key, cleaned, nil); err != nil {
		return false, fmt.Errorf("write %s: %w", key, err)
	}

	f.tracker.Emit(progress.LevelVerbose, fmt.Sprintf("Fixed %s", key))
	f.logger.Debug("fixed file", "key", key, "removed", len(data)-len(cleaned))
	return true, nil
}
