// Package backup periodically exports every channel config as JSONL to
// one or more destinations. Secrets are masked in the export.
package backup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/metrics"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// Destination receives a complete export. Name identifies it in logs,
// results and metrics.
type Destination interface {
	Name() string
	Write(ctx context.Context, data []byte) error
}

// DestinationError is a write one destination rejected.
type DestinationError struct {
	Destination string
	Err         error
}

func (e *DestinationError) Error() string {
	return "backup to " + e.Destination + ": " + e.Err.Error()
}

func (e *DestinationError) Unwrap() error { return e.Err }

// Result reports one backup run.
type Result struct {
	Started      time.Time
	Duration     time.Duration
	Records      int
	Bytes        int
	Destinations int
	// ExportErr is set when the store could not be exported; nothing was written.
	ExportErr error
	Failures  []*DestinationError
}

// Status is metrics.BackupOK when every destination accepted the export,
// metrics.BackupPartial when some did and metrics.BackupFailed otherwise.
func (r Result) Status() string {
	switch {
	case r.ExportErr != nil, r.Destinations > 0 && len(r.Failures) == r.Destinations:
		return metrics.BackupFailed
	case len(r.Failures) > 0:
		return metrics.BackupPartial
	}
	return metrics.BackupOK
}

// Err joins the export error and every destination failure.
func (r Result) Err() error {
	errs := []error{r.ExportErr}
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Scheduler runs an export at a fixed interval.
type Scheduler struct {
	store        store.ConfigStore
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	last *Result
}

func NewScheduler(s store.ConfigStore, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start runs one export immediately and then one per interval.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for a running export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce exports and writes to every destination. One failing
// destination does not prevent the others; each failure is reported in
// the result.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	res := Result{Started: time.Now(), Destinations: len(s.destinations)}
	defer func() { s.record(res) }()

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.store, &buf)
	if err != nil {
		res.ExportErr = err
		res.Duration = time.Since(res.Started)
		s.logger.Error("backup: export failed", "err", err)
		return res
	}
	data := buf.Bytes()
	res.Records, res.Bytes = n, len(data)

	for _, dest := range s.destinations {
		name := dest.Name()
		if err := dest.Write(ctx, data); err != nil {
			res.Failures = append(res.Failures, &DestinationError{Destination: name, Err: err})
			metrics.BackupWritesTotal.WithLabelValues(name, metrics.ResultFailed).Inc()
			s.logger.Error("backup: destination write failed", "destination", name, "err", err)
			continue
		}
		metrics.BackupWritesTotal.WithLabelValues(name, metrics.ResultSent).Inc()
	}
	res.Duration = time.Since(res.Started)
	s.logger.Info("backup: export completed",
		"records", n, "bytes", len(data), "destinations", len(s.destinations),
		"failed", len(res.Failures), "duration", res.Duration)
	return res
}

// Last returns the result of the most recent run, false before the first.
func (s *Scheduler) Last() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

func (s *Scheduler) record(res Result) {
	status := res.Status()
	metrics.BackupRunsTotal.WithLabelValues(status).Inc()
	if res.ExportErr == nil {
		metrics.BackupRecords.Set(float64(res.Records))
	}
	if status == metrics.BackupOK {
		metrics.BackupLastSuccess.Set(float64(res.Started.Unix()))
	}
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}
