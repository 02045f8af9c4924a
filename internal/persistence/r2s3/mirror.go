package r2s3

import (
	"context"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DroppedTotal    uint64
	UploadedTotal   uint64
	FailedTotal     uint64
	LastSuccessUnix int64
}

// Uploader is the part of Client the mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type archiveJob struct {
	gameID string
	files  []string
}

// Mirror copies finished-game archives to the bucket in the background.
// A game's files are uploaded in order; callers put meta.json last so its
// presence marks a complete archive.
type Mirror struct {
	up     Uploader
	prefix string
	logger *log.Logger

	jobs    chan archiveJob
	wg      sync.WaitGroup
	backoff time.Duration

	dropped     atomic.Uint64
	uploaded    atomic.Uint64
	failed      atomic.Uint64
	lastSuccess atomic.Int64
}

func NewMirror(up Uploader, prefix string, workers, queue int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	m := &Mirror{
		up:      up,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:  logger,
		jobs:    make(chan archiveJob, queue),
		backoff: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for j := range m.jobs {
				m.upload(j)
			}
		}()
	}
	return m
}

// Enqueue never blocks; a full queue drops the archive, which stays on disk.
func (m *Mirror) Enqueue(gameID string, files ...string) {
	if m == nil || len(files) == 0 {
		return
	}
	select {
	case m.jobs <- archiveJob{gameID: gameID, files: files}:
	default:
		n := m.dropped.Add(1)
		m.printf("archive mirror drop game=%s dropped_total=%d", gameID, n)
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(m.jobs),
		QueueCapacity:   cap(m.jobs),
		DroppedTotal:    m.dropped.Load(),
		UploadedTotal:   m.uploaded.Load(),
		FailedTotal:     m.failed.Load(),
		LastSuccessUnix: m.lastSuccess.Load(),
	}
}

// ObjectKey is where a game's archive file lands in the bucket.
func (m *Mirror) ObjectKey(gameID, localPath string) string {
	return path.Join(m.prefix, "archives", gameID, filepath.Base(localPath))
}

func (m *Mirror) upload(j archiveJob) {
	for _, f := range j.files {
		key := m.ObjectKey(j.gameID, f)
		if err := m.putWithRetry(key, f); err != nil {
			m.failed.Add(1)
			m.printf("archive mirror upload failed game=%s key=%s err=%v", j.gameID, key, err)
			// Later files (meta.json) would mark a partial archive complete.
			return
		}
		m.uploaded.Add(1)
		m.lastSuccess.Store(time.Now().UTC().Unix())
	}
	m.printf("archive mirror uploaded game=%s files=%d", j.gameID, len(j.files))
}

func (m *Mirror) putWithRetry(key, localPath string) error {
	const maxAttempts = 4
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	return err
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
