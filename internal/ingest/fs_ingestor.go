package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

const defaultMaxBytes = 50 << 20

// FSIngestor turns files from the local filesystem into submitted jobs.
type FSIngestor struct {
	jobs        Submitter
	principal   string
	courseID    string
	allowedExts map[string]struct{}
	maxBytes    int64
	logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> job id
}

type Option func(*FSIngestor)

// WithCourseID tags every submitted job with a course.
func WithCourseID(id string) Option { return func(i *FSIngestor) { i.courseID = id } }

// WithMaxBytes caps the size of an ingested file.
func WithMaxBytes(n int64) Option { return func(i *FSIngestor) { i.maxBytes = n } }

func NewFSIngestor(jobs Submitter, principal string, logger *slog.Logger, opts ...Option) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &FSIngestor{
		jobs:        jobs,
		principal:   principal,
		allowedExts: DefaultExts(),
		maxBytes:    defaultMaxBytes,
		logger:      logger,
		seen:        map[string]string{},
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// IngestPath submits one file. A file whose content was already submitted
// by this ingestor is reported as deduplicated and not submitted again.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	jobType, ok := JobTypeFor(ext)
	if !ok {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}
	out.FileExt = ext
	out.JobType = jobType.String()

	info, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	if info.Size() > i.maxBytes {
		return out, fmt.Errorf("file too large: %d bytes", info.Size())
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, dup := i.seen[out.HashHex]; dup {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Info("ingest.file.deduplicated", "path", abs, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	payload, err := json.Marshal(entity.Payload{
		CourseID: i.courseID,
		Filename: filepath.Base(abs),
		Document: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return out, err
	}
	id, err := i.jobs.Submit(ctx, out.JobType, payload, i.principal)
	if err != nil {
		return out, fmt.Errorf("submit: %w", err)
	}
	out.JobID = id.String()

	i.mu.Lock()
	i.seen[out.HashHex] = out.JobID
	i.mu.Unlock()

	i.logger.Info("ingest.file.submitted", "path", abs, "job_id", out.JobID, "type", out.JobType, "bytes", len(data))
	return out, nil
}
