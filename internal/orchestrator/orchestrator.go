// Package orchestrator wires the Directory Watcher, Stability Detector,
// File Processor, Batch Processor, and Upload Client together (C10) and
// owns the agent's lifecycle.
package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/edgelogd/internal/batch"
	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/dedupindex"
	"github.com/marmos91/edgelogd/internal/fileproc"
	"github.com/marmos91/edgelogd/internal/ledger"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/model"
	"github.com/marmos91/edgelogd/internal/reslife"
	"github.com/marmos91/edgelogd/internal/retention"
	"github.com/marmos91/edgelogd/internal/upload"
	"github.com/marmos91/edgelogd/internal/watch"
)

// Config carries the orchestrator's own tunables plus the sub-component
// configs it threads through.
type Config struct {
	Directories []string
	Watch       watch.Options
	Stability   watch.Config
	FileProc    fileproc.Options
	Batch       batch.Config
	Retention   retention.Config

	BlobNamePrefix string
	DeviceID       string
}

// Orchestrator owns the full pipeline's lifecycle: construction, startup,
// and graceful shutdown.
type Orchestrator struct {
	cfg Config
	clk clock.Clock

	watcher   watch.Watcher
	detector  *watch.StabilityDetector
	batcher   *batch.Processor
	uploader  *upload.Client
	retainer  *retention.Manager
	ledger    *ledger.Ledger
	dedup     *dedupindex.Index
	resources *reslife.Tracker

	jobsMu sync.Mutex
	jobs   map[string]*model.FileJob

	uploadsMu sync.Mutex
	uploads   map[string]*fileUploadState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component but does not start any background loops.
func New(
	cfg Config,
	clk clock.Clock,
	transport upload.Transport,
	retryPolicy upload.RetryPolicy,
	led *ledger.Ledger,
	dedup *dedupindex.Index,
) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:       cfg,
		clk:       clk,
		ledger:    led,
		dedup:     dedup,
		resources: reslife.New(clk, 24*time.Hour),
		jobs:      make(map[string]*model.FileJob),
		uploads:   make(map[string]*fileUploadState),
	}

	watcher, err := watch.NewFsnotifyWatcher(cfg.Watch)
	if err != nil {
		return nil, err
	}
	o.watcher = watcher

	o.detector = watch.NewStabilityDetector(clk, cfg.Stability, stabilityProbe, o.onFileStable)

	o.uploader = upload.NewClient(transport, clk, retryPolicy, cfg.BlobNamePrefix, cfg.DeviceID)

	o.batcher = batch.New(clk, cfg.Batch, o.uploadRecord)

	o.retainer = retention.New(clk, cfg.Retention)

	return o, nil
}

// ConnectionState reports the Upload Client's current connection state,
// so the health endpoint can surface it without depending on the upload
// package directly (internal/health.ConnStater).
func (o *Orchestrator) ConnectionState() model.ConnState {
	return o.uploader.ConnectionState()
}

// Connect attempts to (re)establish the Upload Client's connection. It
// backs the iothub health endpoint's on-demand connect attempt
// (internal/health.ConnStater) as well as any future manual "reconnect"
// operator command.
func (o *Orchestrator) Connect(ctx context.Context) error {
	_, err := o.uploader.Connect(ctx)
	return err
}

// Start launches every background loop and begins watching the
// configured directories.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for _, dir := range o.cfg.Directories {
		if err := o.watcher.Add(dir); err != nil {
			cancel()
			return err
		}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		watch.Pump(ctx, o.watcher, o.detector)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.detector.Run()
	}()

	o.batcher.Start(ctx)
	o.retainer.Start()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sweepResourcesLoop(ctx)
	}()

	logger.Info("orchestrator started", logger.RecordCount(len(o.cfg.Directories)))
	return nil
}

// sweepResourcesLoop periodically force-releases any tracked resource
// (open file handles from an upload that never completed its Close) that
// has sat idle past the resource tracker's timeout.
func (o *Orchestrator) sweepResourcesLoop(ctx context.Context) {
	ticker := o.clk.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			o.resources.SweepIdle()
		}
	}
}

// Stop performs a graceful shutdown in dependency order: stop accepting
// new events first, then drain the batch processor, then shut down
// retention and disconnect the upload client. Resources registered with
// the tracker are not closed here.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.detector.Stop()
	_ = o.watcher.Close()
	o.wg.Wait()

	o.batcher.Stop()
	o.retainer.Stop()

	if o.uploader.ConnectionState() == model.ConnConnected {
		_ = o.uploader.Disconnect(context.Background())
	}

	logger.Info("orchestrator stopped")
}

// onFileStable is the Stability Detector's callback: it hands the file
// off to the File Processor, then enqueues the resulting records into the
// batch processor.
func (o *Orchestrator) onFileStable(path string) {
	ctx := context.Background()

	seen, size, mtime, dedupOK := o.checkDedup(path)
	if dedupOK && seen {
		logger.Debug("orchestrator: skipping already-processed file via dedup index",
			logger.Path(path), logger.Size(size))
		return
	}

	o.transitionJob(path, model.FileParsing, 0, nil)

	state := o.registerUpload(path)

	sink := &batchSink{batcher: o.batcher}
	result := fileproc.Process(ctx, path, o.cfg.FileProc, sink)

	if !result.Success {
		o.clearUpload(path)
		o.transitionJob(path, model.FileFailed, result.FileSize, result.Err)
		logger.Warn("orchestrator: file processing failed", logger.Path(path), logger.Err(result.Err))
		return
	}

	o.transitionJob(path, model.FileUploading, result.FileSize, nil)
	logger.Info("orchestrator: file parsed, flushing batch to upload original",
		logger.Path(path), logger.RecordCount(result.ProcessedRecords))

	if _, err := o.batcher.Flush(ctx, true); err != nil {
		o.clearUpload(path)
		o.transitionJob(path, model.FileFailed, result.FileSize, err)
		logger.Warn("orchestrator: batch flush failed", logger.Path(path), logger.Err(err))
		return
	}

	// A file with no valid records never reaches uploadRecord via the
	// batch, so the once here is what actually performs the upload; a file
	// with valid records already had it performed by the flush above and
	// this is a no-op.
	state.once.Do(func() { state.err = o.uploadFile(ctx, path) })
	err := state.err
	o.clearUpload(path)

	if err != nil {
		o.transitionJob(path, model.FileFailed, result.FileSize, err)
		logger.Warn("orchestrator: file upload failed", logger.Path(path), logger.Err(err))
		return
	}

	if err := markProcessed(path); err != nil {
		logger.Warn("orchestrator: failed to mark file processed", logger.Path(path), logger.Err(err))
	}
	o.transitionJob(path, model.FileProcessed, result.FileSize, nil)
	if dedupOK {
		o.markDedup(path, size, mtime)
	}
}

// fileUploadState lets every record drained from one stabilized file share
// a single upload attempt: the batch processor may hand uploadRecord
// several records from the same SourceFile in one flush, but the spec's
// data flow is one upload call per file, not per record.
type fileUploadState struct {
	once sync.Once
	err  error
}

func (o *Orchestrator) registerUpload(path string) *fileUploadState {
	st := &fileUploadState{}
	o.uploadsMu.Lock()
	o.uploads[path] = st
	o.uploadsMu.Unlock()
	return st
}

func (o *Orchestrator) clearUpload(path string) {
	o.uploadsMu.Lock()
	delete(o.uploads, path)
	o.uploadsMu.Unlock()
}

func (o *Orchestrator) checkDedup(path string) (seen bool, size int64, mtime time.Time, ok bool) {
	if o.dedup == nil {
		return false, 0, time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, time.Time{}, false
	}
	s, err := o.dedup.Seen(path, info.Size(), info.ModTime())
	if err != nil {
		logger.Warn("orchestrator: dedup lookup failed", logger.Path(path), logger.Err(err))
		return false, info.Size(), info.ModTime(), true
	}
	return s, info.Size(), info.ModTime(), true
}

func (o *Orchestrator) markDedup(path string, size int64, mtime time.Time) {
	if o.dedup == nil {
		return
	}
	ttl := time.Duration(o.cfg.Retention.RetentionDays) * 24 * time.Hour
	if err := o.dedup.MarkProcessed(path, size, mtime, ttl); err != nil {
		logger.Warn("orchestrator: failed to mark dedup entry", logger.Path(path), logger.Err(err))
	}
}

func (o *Orchestrator) transitionJob(path string, state model.FileState, size int64, jobErr error) {
	o.jobsMu.Lock()
	job, ok := o.jobs[path]
	if !ok {
		job = &model.FileJob{Path: path, FirstSeen: o.clk.Now()}
		o.jobs[path] = job
	}
	job.State = state
	job.LastModified = o.clk.Now()
	if size > 0 {
		job.Size = size
	}
	o.jobsMu.Unlock()

	if o.ledger != nil {
		if err := o.ledger.RecordTransition(context.Background(), path, state, size, "", jobErr); err != nil {
			logger.Warn("orchestrator: ledger write failed", logger.Path(path), logger.Err(err))
		}
	}
}

// uploadRecord is the batch processor's ItemProcessor: it is the flush
// handoff point for the file that produced record. Every record flushed
// for the same SourceFile shares one fileUploadState, so the first one
// drained performs the upload and the rest observe its cached result
// (spec §4.6: one upload call per flushed file, not per record).
func (o *Orchestrator) uploadRecord(ctx context.Context, record *model.LogRecord) error {
	o.uploadsMu.Lock()
	st := o.uploads[record.SourceFile]
	o.uploadsMu.Unlock()
	if st == nil {
		return nil
	}
	st.once.Do(func() { st.err = o.uploadFile(ctx, record.SourceFile) })
	return st.err
}

// uploadFile pushes one stabilized file's bytes to the upload client.
func (o *Orchestrator) uploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	resourceID := o.resources.Register(path, f)
	defer func() { _ = o.resources.Release(resourceID) }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	result := o.uploader.UploadFile(ctx, f, info.Size(), filepath.Base(path))
	return result.Err
}

// batchSink adapts the batch Processor to fileproc.Sink.
type batchSink struct {
	batcher *batch.Processor
}

func (s *batchSink) Add(ctx context.Context, record *model.LogRecord) bool {
	return s.batcher.Add(ctx, record)
}

// stabilityProbe is the Stability Detector's non-exclusive read probe:
// open, read one byte, close.
func stabilityProbe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 1)
	_, err = f.Read(buf)
	if err == io.EOF {
		return nil
	}
	return err
}

// markProcessed renames path to path+".processed", the convention the
// Retention Manager scans for.
func markProcessed(path string) error {
	return os.Rename(path, path+".processed")
}
