package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doclingui/api/internal/chunker"
	"github.com/doclingui/api/internal/client"
	"github.com/doclingui/api/internal/extractor"
	"github.com/doclingui/api/internal/model"
	"github.com/doclingui/api/internal/storage"
	"github.com/doclingui/api/internal/websocket"
	"github.com/doclingui/api/pkg/response"
)

// ErrConflict is returned when extraction is triggered for a job that is
// already running one.
var ErrConflict = errors.New("extraction already in progress")

// Extractor is the capability interface for document extraction.
// *extractor.Runner is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, path string, report extractor.ProgressFunc) (*extractor.Result, error)
}

// JobService owns the job lifecycle: upload, background extraction, status
// and progress lookups. Job state is persisted on the filesystem; the only
// in-memory state is the set of extractions currently running in this process.
type JobService struct {
	store    *storage.Store
	runner   Extractor
	archive  client.ObjectStore // nil = archiving disabled
	hub      *websocket.Hub
	defaults model.ChunkingConfig

	mu      sync.Mutex
	running map[string]bool
}

// NewJobService creates a job service. archive may be nil.
func NewJobService(store *storage.Store, runner Extractor, archive client.ObjectStore, hub *websocket.Hub, defaults model.ChunkingConfig) *JobService {
	return &JobService{
		store:    store,
		runner:   runner,
		archive:  archive,
		hub:      hub,
		defaults: defaults.Normalized(),
		running:  make(map[string]bool),
	}
}

// CreateJob stores an uploaded document and creates its job record in queued
// state. Every upload gets a fresh identifier.
func (s *JobService) CreateJob(ctx context.Context, filename string, r io.Reader, size int64) (*model.UploadResponse, error) {
	jobID := uuid.New().String()

	dest, err := s.store.SaveUpload(jobID, filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:             jobID,
		Filename:       filepath.Base(dest),
		Status:         model.JobStatusQueued,
		ArtifactPrefix: storage.SanitizeStem(filepath.Base(dest)),
		Artifacts:      []string{},
		CreatedAt:      now,
	}
	if err := s.store.WriteMetadata(job); err != nil {
		return nil, fmt.Errorf("failed to write job metadata: %w", err)
	}

	return &model.UploadResponse{
		JobID:     jobID,
		Filename:  job.Filename,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// StartExtraction dispatches one background extraction for a job and returns
// immediately. A job that is already running rejects the second trigger.
func (s *JobService) StartExtraction(ctx context.Context, jobID string, override *model.ChunkingConfig) (*model.ExtractAcceptedResponse, error) {
	inputPath, err := s.store.UploadPath(jobID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running[jobID] {
		s.mu.Unlock()
		return nil, ErrConflict
	}
	s.running[jobID] = true
	s.mu.Unlock()

	cfg := s.defaults
	if override != nil {
		if override.TargetTokens > 0 {
			cfg.TargetTokens = override.TargetTokens
		}
		if override.OverlapTokens > 0 {
			cfg.OverlapTokens = override.OverlapTokens
		}
	}
	cfg = cfg.Normalized()
	if err := s.store.WriteRequest(jobID, cfg); err != nil {
		log.Printf("Could not record chunking request for job %s: %v", jobID, err)
	}

	prefix := storage.SanitizeStem(filepath.Base(inputPath))
	now := time.Now().UTC()

	job, rerr := s.store.ReadMetadata(jobID)
	if rerr != nil {
		job = &model.Job{
			ID:             jobID,
			Filename:       filepath.Base(inputPath),
			ArtifactPrefix: prefix,
			CreatedAt:      now,
		}
	}
	job.Status = model.JobStatusRunning
	job.Error = nil
	job.StartedAt = &now
	job.CompletedAt = nil
	if err := s.store.WriteMetadata(job); err != nil {
		s.release(jobID)
		return nil, fmt.Errorf("failed to write job metadata: %w", err)
	}
	s.reportProgress(jobID, "Starting extraction", 5)

	go s.runExtraction(jobID, inputPath, prefix, cfg)

	return &model.ExtractAcceptedResponse{
		JobID:   jobID,
		Status:  model.JobStatusRunning,
		Message: "Extraction started. Poll GET /job/{id} and GET /job/{id}/progress for status.",
	}, nil
}

// GetJob returns the job record and its downloadable artifacts.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.JobResponse, error) {
	job, err := s.store.ReadMetadata(jobID)
	artifacts := s.store.ListArtifacts(jobID)
	uploadPath, uerr := s.store.UploadPath(jobID)

	if err != nil && len(artifacts) == 0 && uerr != nil {
		return nil, storage.ErrNotFound
	}

	if job == nil {
		// Upload exists but metadata is gone: present the job as freshly queued
		job = &model.Job{
			ID:             jobID,
			Filename:       filepath.Base(uploadPath),
			Status:         model.JobStatusQueued,
			ArtifactPrefix: s.store.ArtifactPrefix(jobID),
			Artifacts:      []string{},
		}
	}

	// Outputs become downloadable only once extraction finishes; before that
	// the directory holds queued metadata or half-written files
	if job.Status != model.JobStatusComplete {
		artifacts = []string{}
	}
	if artifacts == nil {
		artifacts = []string{}
	}

	return &model.JobResponse{Metadata: job, Artifacts: artifacts}, nil
}

// GetProgress returns the current extraction progress for a known job.
func (s *JobService) GetProgress(ctx context.Context, jobID string) (*model.Progress, error) {
	if _, err := s.store.ReadMetadata(jobID); err != nil {
		if _, uerr := s.store.UploadPath(jobID); uerr != nil {
			return nil, storage.ErrNotFound
		}
	}
	p, err := s.store.ReadProgress(jobID)
	if err != nil {
		return &model.Progress{Stage: "pending", Percent: 0}, nil
	}
	return p, nil
}

// ArtifactPath resolves an artifact download path.
func (s *JobService) ArtifactPath(jobID, filename string) (string, error) {
	return s.store.ArtifactPath(jobID, filename)
}

// CleanStorage deletes every job's uploads and outputs.
func (s *JobService) CleanStorage(ctx context.Context) (*model.CleanResponse, error) {
	uploads, outputs, err := s.store.Clean()
	if err != nil {
		return nil, err
	}
	return &model.CleanResponse{RemovedUploads: uploads, RemovedOutputs: outputs}, nil
}

// FreeBytes reports free disk space under the data root.
func (s *JobService) FreeBytes() (uint64, error) {
	return s.store.FreeBytes()
}

// runExtraction is the single background unit of work for one job.
func (s *JobService) runExtraction(jobID, inputPath, prefix string, cfg model.ChunkingConfig) {
	defer s.release(jobID)
	ctx := context.Background()

	res, err := s.runner.Extract(ctx, inputPath, func(stage string, percent int) {
		s.reportProgress(jobID, stage, percent)
	})
	if err != nil {
		s.failJob(jobID, inputPath, prefix, fmt.Sprintf("Extraction failed: %v", err))
		return
	}

	s.reportProgress(jobID, "Saving outputs", 85)
	if err := s.store.WriteArtifact(jobID, prefix+".document.md", []byte(res.Markdown)); err != nil {
		s.failJob(jobID, inputPath, prefix, fmt.Sprintf("Failed to write markdown: %v", err))
		return
	}
	structured, err := json.MarshalIndent(res.Structured, "", "  ")
	if err != nil {
		structured = []byte(`{}`)
	}
	if err := s.store.WriteArtifact(jobID, prefix+".document_structured.json", structured); err != nil {
		s.failJob(jobID, inputPath, prefix, fmt.Sprintf("Failed to write structured output: %v", err))
		return
	}

	s.reportProgress(jobID, "Chunking", 90)
	var chunkBuf bytes.Buffer
	numChunks, err := chunker.WriteJSONL(&chunkBuf, res.Markdown, jobID, cfg)
	if err != nil {
		log.Printf("Chunking failed for job %s: %v", jobID, err)
	}
	if err := s.store.WriteArtifact(jobID, prefix+".chunks.jsonl", chunkBuf.Bytes()); err != nil {
		s.failJob(jobID, inputPath, prefix, fmt.Sprintf("Failed to write chunks: %v", err))
		return
	}

	artifactNames := []string{
		prefix + ".document.md",
		prefix + ".document_structured.json",
		prefix + ".chunks.jsonl",
		prefix + ".manifest.json",
		prefix + ".metadata.json",
	}
	manifest := map[string]any{
		"jobId":          jobID,
		"sourceFile":     filepath.Base(inputPath),
		"artifactPrefix": prefix,
		"artifacts":      artifactNames,
		"numChunks":      numChunks,
		"chunking": map[string]int{
			"targetTokens":  cfg.TargetTokens,
			"overlapTokens": cfg.OverlapTokens,
		},
	}
	manifestBytes, _ := json.MarshalIndent(manifest, "", "  ")
	if err := s.store.WriteArtifact(jobID, prefix+".manifest.json", manifestBytes); err != nil {
		s.failJob(jobID, inputPath, prefix, fmt.Sprintf("Failed to write manifest: %v", err))
		return
	}

	stats := map[string]any{
		"numChunks":   numChunks,
		"placeholder": res.Placeholder,
	}
	if res.PageCount > 0 {
		stats["pageCount"] = res.PageCount
	}

	now := time.Now().UTC()
	job, rerr := s.store.ReadMetadata(jobID)
	if rerr != nil {
		job = &model.Job{ID: jobID, Filename: filepath.Base(inputPath), ArtifactPrefix: prefix, CreatedAt: now}
	}
	job.Status = model.JobStatusComplete
	job.Stats = stats
	job.Error = nil
	job.CompletedAt = &now
	job.Artifacts = artifactNames
	if err := s.store.WriteMetadata(job); err != nil {
		log.Printf("Failed to write metadata for job %s: %v", jobID, err)
	}

	s.reportProgress(jobID, "Complete", 100)
	artifacts := s.store.ListArtifacts(jobID)
	if s.hub != nil {
		s.hub.BroadcastComplete(jobID, artifacts)
	}

	s.archiveArtifacts(ctx, jobID, artifacts)
}

// archiveArtifacts mirrors completed artifacts to the object store, when one
// is configured. Failures are logged, never fatal to the job.
func (s *JobService) archiveArtifacts(ctx context.Context, jobID string, artifacts []string) {
	if s.archive == nil {
		return
	}
	for _, name := range artifacts {
		data, err := s.store.ReadArtifact(jobID, name)
		if err != nil {
			log.Printf("Archive skip %s/%s: %v", jobID, name, err)
			continue
		}
		key := fmt.Sprintf("artifacts/%s/%s", jobID, name)
		if _, err := s.archive.Upload(ctx, key, bytes.NewReader(data), contentTypeFor(name)); err != nil {
			log.Printf("Archive upload failed for %s: %v", key, err)
		}
	}
}

func (s *JobService) failJob(jobID, inputPath, prefix, msg string) {
	now := time.Now().UTC()
	job, err := s.store.ReadMetadata(jobID)
	if err != nil {
		job = &model.Job{ID: jobID, Filename: filepath.Base(inputPath), ArtifactPrefix: prefix, CreatedAt: now}
	}
	job.Status = model.JobStatusFailed
	job.Error = &msg
	job.CompletedAt = &now
	if werr := s.store.WriteMetadata(job); werr != nil {
		log.Printf("Failed to record failure for job %s: %v", jobID, werr)
	}
	if s.hub != nil {
		s.hub.BroadcastError(jobID, response.CodeExtractionFailed, msg)
	}
}

func (s *JobService) reportProgress(jobID, stage string, percent int) {
	if err := s.store.WriteProgress(jobID, stage, percent); err != nil {
		log.Printf("Failed to write progress for job %s: %v", jobID, err)
	}
	if s.hub != nil {
		status := model.JobStatusRunning
		if percent >= 100 {
			status = model.JobStatusComplete
		}
		s.hub.BroadcastProgress(jobID, status, stage, percent)
	}
}

func (s *JobService) release(jobID string) {
	s.mu.Lock()
	delete(s.running, jobID)
	s.mu.Unlock()
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
