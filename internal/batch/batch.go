// Package batch implements the Batch Processor (C7): a bounded queue of
// records that flushes on size, count, idle-timeout, or explicit request,
// processing each flushed batch with bounded parallelism.
package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/model"
)

// ItemProcessor handles one record drained from a batch. Its error, if
// any, is recorded against the batch result but does not abort the batch.
type ItemProcessor func(ctx context.Context, record *model.LogRecord) error

// Config carries the tunables named in spec §6 under batch.*.
type Config struct {
	MaxBatchSizeBytes   int64
	MaxBatchItems       int
	ProcessingInterval  time.Duration
	IdleTimeout         time.Duration
}

// Processor is the Batch Processor. Zero value is not usable; construct
// with New.
type Processor struct {
	clk       clock.Clock
	cfg       Config
	process   ItemProcessor
	maxParallel int

	mu        sync.Mutex
	queue     []*model.LogRecord
	sizeBytes int64
	lastAdd   time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Processor. process is invoked once per drained record
// during flush, with bounded parallelism min(GOMAXPROCS, 4).
func New(clk clock.Clock, cfg Config, process ItemProcessor) *Processor {
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = 10000
	}
	if cfg.ProcessingInterval <= 0 {
		cfg.ProcessingInterval = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}

	parallel := runtime.GOMAXPROCS(0)
	if parallel > 4 {
		parallel = 4
	}
	if parallel < 1 {
		parallel = 1
	}

	return &Processor{
		clk:         clk,
		cfg:         cfg,
		process:     process,
		maxParallel: parallel,
		lastAdd:     clk.Now(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Add appends record to the queue, triggering an async flush first if the
// batch was already full. Returns false if ctx is cancelled.
func (p *Processor) Add(ctx context.Context, record *model.LogRecord) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	p.mu.Lock()
	full := p.isFullLocked()
	p.mu.Unlock()

	if full {
		go func() {
			if _, err := p.Flush(context.Background(), true); err != nil {
				logger.Warn("async flush-on-full failed", logger.Err(err))
			}
		}()
	}

	p.mu.Lock()
	p.queue = append(p.queue, record)
	p.sizeBytes += record.EstimatedBytes()
	p.lastAdd = p.clk.Now()
	p.mu.Unlock()

	return true
}

// AddRange appends records as an atomic sequence: no flush-on-full check
// is interleaved between individual appends.
func (p *Processor) AddRange(ctx context.Context, records []*model.LogRecord) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	p.mu.Lock()
	for _, r := range records {
		p.queue = append(p.queue, r)
		p.sizeBytes += r.EstimatedBytes()
	}
	p.lastAdd = p.clk.Now()
	full := p.isFullLocked()
	p.mu.Unlock()

	if full {
		go func() {
			if _, err := p.Flush(context.Background(), true); err != nil {
				logger.Warn("async flush-on-full failed", logger.Err(err))
			}
		}()
	}

	return true
}

func (p *Processor) isFullLocked() bool {
	return p.sizeBytes >= p.cfg.MaxBatchSizeBytes || len(p.queue) >= p.cfg.MaxBatchItems
}

// Flush drains the queue (if force, or if non-empty) and processes the
// drained records with bounded parallelism.
func (p *Processor) Flush(ctx context.Context, force bool) (model.BatchResult, error) {
	start := p.clk.Now()

	p.mu.Lock()
	if !force && len(p.queue) == 0 {
		p.mu.Unlock()
		return model.BatchResult{OK: true}, nil
	}
	drained := p.queue
	drainedBytes := p.sizeBytes
	p.queue = nil
	p.sizeBytes = 0
	p.mu.Unlock()

	if len(drained) == 0 {
		return model.BatchResult{OK: true, DurationMs: sinceMs(p.clk, start)}, nil
	}

	select {
	case <-ctx.Done():
		return model.BatchResult{OK: false, Err: ctx.Err()}, ctx.Err()
	default:
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	var mu sync.Mutex
	var firstErr error
	processed := 0

	for _, rec := range drained {
		rec := rec
		g.Go(func() error {
			if err := p.process(gctx, rec); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				logger.Warn("batch item processing failed", logger.Err(err))
				return nil
			}
			mu.Lock()
			processed++
			mu.Unlock()
			return nil
		})
	}

	// errgroup.Wait only returns an error if a Go func returns one; here
	// item failures are swallowed per-item so the batch never aborts.
	_ = g.Wait()

	result := model.BatchResult{
		OK:         firstErr == nil,
		Processed:  processed,
		SizeBytes:  drainedBytes,
		DurationMs: sinceMs(p.clk, start),
		Err:        firstErr,
	}

	metrics.RecordBatchFlush(drainedBytes)

	logger.Info("batch flushed",
		logger.RecordCount(processed), logger.BatchBytes(drainedBytes),
		logger.DurationMs(result.DurationMs))

	return result, nil
}

// Start launches the background loop that flushes on processing_interval
// and on idle-timeout. Runs until Stop is called.
func (p *Processor) Start(ctx context.Context) {
	go p.loop(ctx)
}

func (p *Processor) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := p.clk.NewTicker(p.cfg.ProcessingInterval)
	defer ticker.Stop()

	idleCheck := p.clk.NewTicker(p.cfg.IdleTimeout)
	defer idleCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.Chan():
			if _, err := p.Flush(ctx, true); err != nil {
				logger.Warn("periodic flush failed", logger.Err(err))
			}
		case <-idleCheck.Chan():
			p.mu.Lock()
			idle := p.clk.Now().Sub(p.lastAdd) >= p.cfg.IdleTimeout && len(p.queue) > 0
			p.mu.Unlock()
			if idle {
				if _, err := p.Flush(ctx, true); err != nil {
					logger.Warn("idle-timeout flush failed", logger.Err(err))
				}
			}
		}
	}
}

// Stop halts the background loop, performs a final forced flush bounded
// to 30s, then waits up to an additional 10s for the loop to exit.
func (p *Processor) Stop() {
	close(p.stopCh)

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := p.Flush(flushCtx, true); err != nil {
		logger.Warn("final flush on stop failed", logger.Err(err))
	}

	select {
	case <-p.doneCh:
	case <-time.After(10 * time.Second):
		logger.Warn("batch processor background loop did not exit within grace period")
	}
}

func sinceMs(clk clock.Clock, start time.Time) float64 {
	return float64(clk.Now().Sub(start).Microseconds()) / 1000.0
}
