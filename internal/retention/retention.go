// Package retention implements the Retention Manager (C9): disk-pressure
// and periodic cleanup over the directories the agent monitors, with
// compression, archival, and emergency ascending-age deletion.
package retention

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/model"
)

const (
	diskCheckInterval  = 30 * time.Minute
	periodicInterval   = 6 * time.Hour
	lowFreeRatio       = 0.2
	compressAfter      = time.Hour
	processedSuffix    = ".processed"
	emergencyRecheckEvery = 10
)

// Config carries the per-directory retention policy (spec §4.8, §6).
type Config struct {
	Directories            []string
	RetentionDays          int
	LargeFileRetentionDays int
	LargeFileSizeThreshold int64
	ArchiveSubdir          string
	CompressProcessedFiles bool
}

// Manager runs the two cleanup cadences against Config.Directories.
type Manager struct {
	clk    clock.Clock
	cfg    Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Manager. clk drives the scheduling ticks so tests can
// use a clock.Fake.
func New(clk clock.Clock, cfg Config) *Manager {
	return &Manager{clk: clk, cfg: cfg, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Start launches the background loop driving both cadences.
func (m *Manager) Start() {
	go m.loop()
}

// Stop halts the background loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Manager) loop() {
	defer close(m.doneCh)

	diskTicker := m.clk.NewTicker(diskCheckInterval)
	defer diskTicker.Stop()

	periodicTicker := m.clk.NewTicker(periodicInterval)
	defer periodicTicker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-diskTicker.Chan():
			m.checkDiskPressure()
		case <-periodicTicker.Chan():
			for _, dir := range m.cfg.Directories {
				m.StandardCleanup(dir)
			}
		}
	}
}

func (m *Manager) checkDiskPressure() {
	for _, dir := range m.cfg.Directories {
		ratio, err := freeRatio(dir)
		if err != nil {
			logger.Warn("retention: failed to read disk usage", logger.Directory(dir), logger.Err(err))
			continue
		}
		logger.Debug("retention: disk check", logger.Directory(dir), logger.DiskFreePercent(ratio*100))
		if ratio < lowFreeRatio {
			m.EmergencyCleanup(dir)
		}
	}
}

func freeRatio(dir string) (float64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	if usage.Total == 0 {
		return 1, nil
	}
	return float64(usage.Free) / float64(usage.Total), nil
}

// StandardCleanup runs the full compress-then-archive-or-delete pass over
// dir (spec §4.8 "Periodic cleanup").
func (m *Manager) StandardCleanup(dir string) {
	candidates := m.listProcessedCandidates(dir)

	for i, c := range candidates {
		if m.cfg.CompressProcessedFiles && !c.Compressed && m.clk.Now().Sub(c.LastModified) > compressAfter {
			if newPath, ok := m.compress(c.Path); ok {
				candidates[i].Path = newPath
				candidates[i].Compressed = true
			}
		}
	}

	for _, c := range candidates {
		m.applyRetention(dir, c)
	}
}

// EmergencyCleanup compresses everything eligible, then deletes files in
// ascending last-modified order, re-checking disk pressure every 10
// deletions (spec §4.8 "Emergency cleanup").
func (m *Manager) EmergencyCleanup(dir string) {
	logger.Warn("retention: emergency cleanup triggered", logger.Directory(dir))

	candidates := m.listProcessedCandidates(dir)
	for i, c := range candidates {
		if !c.Compressed {
			if newPath, ok := m.compress(c.Path); ok {
				candidates[i].Path = newPath
				candidates[i].Compressed = true
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastModified.Before(candidates[j].LastModified)
	})

	deleted := 0
	for _, c := range candidates {
		if err := os.Remove(c.Path); err != nil {
			logger.Warn("retention: emergency delete failed", logger.Path(c.Path), logger.Err(err))
			continue
		}
		deleted++
		metrics.RecordRetentionAction("emergency_delete")
		logger.Info("retention: emergency delete", logger.Path(c.Path), logger.BytesReclaimed(c.Size))

		if deleted%emergencyRecheckEvery == 0 {
			ratio, err := freeRatio(dir)
			if err == nil && ratio >= lowFreeRatio {
				logger.Info("retention: disk pressure relieved, stopping emergency cleanup",
					logger.Directory(dir), logger.DiskFreePercent(ratio*100))
				return
			}
		}
	}
}

// compress gzips path to path+".gz", verifies it decompresses to a
// non-empty result, then deletes the original on success. Returns the new
// path and true on success.
func (m *Manager) compress(path string) (string, bool) {
	gzPath := path + ".gz"

	if err := gzipFile(path, gzPath); err != nil {
		logger.Warn("retention: compress failed", logger.Path(path), logger.Err(err))
		_ = os.Remove(gzPath)
		return "", false
	}

	if err := verifyGzip(gzPath); err != nil {
		logger.Warn("retention: compressed file failed verification, keeping original",
			logger.Path(path), logger.Err(err))
		_ = os.Remove(gzPath)
		return "", false
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("retention: failed to remove original after successful compression",
			logger.Path(path), logger.Err(err))
	}

	metrics.RecordRetentionAction("compress")
	return gzPath, true
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func verifyGzip(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	n, err := io.Copy(io.Discard, gr)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("retention: decompressed result is empty")
	}
	return nil
}

// applyRetention archives or deletes one candidate based on its age.
func (m *Manager) applyRetention(dir string, c model.RetentionEntry) {
	retentionDays := m.cfg.RetentionDays
	if c.Size >= m.cfg.LargeFileSizeThreshold && m.cfg.LargeFileSizeThreshold > 0 {
		retentionDays = m.cfg.LargeFileRetentionDays
	}

	ageDays := int(m.clk.Now().Sub(c.LastModified).Hours() / 24)
	if ageDays <= retentionDays {
		return
	}

	if m.cfg.ArchiveSubdir == "" {
		m.deleteFile(c.Path, ageDays)
		return
	}

	archiveDir := filepath.Join(dir, m.cfg.ArchiveSubdir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		logger.Warn("retention: failed to create archive dir, falling back to delete",
			logger.Directory(archiveDir), logger.Err(err))
		m.deleteFile(c.Path, ageDays)
		return
	}

	dest := filepath.Join(archiveDir, filepath.Base(c.Path))
	if err := os.Rename(c.Path, dest); err != nil {
		logger.Warn("retention: archive move failed, falling back to delete",
			logger.Path(c.Path), logger.ArchivePath(dest), logger.Err(err))
		m.deleteFile(c.Path, ageDays)
		return
	}

	metrics.RecordRetentionAction("archive")
	logger.Info("retention: archived", logger.Path(c.Path), logger.ArchivePath(dest), logger.AgeDays(ageDays))
}

func (m *Manager) deleteFile(path string, ageDays int) {
	if err := os.Remove(path); err != nil {
		logger.Warn("retention: delete failed", logger.Path(path), logger.Err(err))
		return
	}
	metrics.RecordRetentionAction("delete")
	logger.Info("retention: deleted", logger.Path(path), logger.AgeDays(ageDays))
}

// listProcessedCandidates returns a RetentionEntry for every file under
// dir matching the processed-suffix convention.
func (m *Manager) listProcessedCandidates(dir string) []model.RetentionEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("retention: failed to list directory", logger.Directory(dir), logger.Err(err))
		return nil
	}

	var out []model.RetentionEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		compressed := strings.HasSuffix(name, processedSuffix+".gz")
		if !strings.HasSuffix(name, processedSuffix) && !compressed {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, name)
		out = append(out, model.RetentionEntry{
			Path:         path,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			Compressed:   compressed,
			Large:        info.Size() >= m.cfg.LargeFileSizeThreshold && m.cfg.LargeFileSizeThreshold > 0,
		})
	}
	return out
}
