package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Reader loads all segments for a named source from a directory, retrying
// transient read failures with exponential backoff up to a bounded attempt
// count before surfacing a SourceReadError.
type Reader struct {
	dir         string
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
}

func NewReader(dir string, logger *slog.Logger) *Reader {
	return &Reader{
		dir:         dir,
		maxAttempts: 3,
		baseBackoff: 200 * time.Millisecond,
		logger:      logger,
	}
}

// Read returns every event for the named source, merged across all of its
// segment files (<name>.seg plus any <name>-*.seg parts).
func (r *Reader) Read(ctx context.Context, sourceName string) ([]domain.EventRecord, error) {
	var events []domain.EventRecord
	err := r.withRetry(ctx, sourceName, func() error {
		paths, err := r.segmentPaths(sourceName)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no segments found for source %q in %s", sourceName, r.dir)
		}

		events = events[:0]
		for _, p := range paths {
			seg, err := ReadSegment(p)
			if err != nil {
				return err
			}
			events = append(events, seg.Events...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Reader) segmentPaths(sourceName string) ([]string, error) {
	exact, err := filepath.Glob(filepath.Join(r.dir, sourceName+".seg"))
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	parts, err := filepath.Glob(filepath.Join(r.dir, sourceName+"-*.seg"))
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	paths := append(exact, parts...)
	sort.Strings(paths)
	return paths, nil
}

func (r *Reader) withRetry(ctx context.Context, sourceName string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}

		backoff := r.baseBackoff * time.Duration(1<<(attempt-1))
		r.logger.Warn("source read failed, retrying",
			"source", sourceName,
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return &domain.SourceReadError{Source: sourceName, Attempts: r.maxAttempts, Err: lastErr}
}
