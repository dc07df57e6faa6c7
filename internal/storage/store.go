// Package storage manages the on-disk content tree for jobs:
// <root>/uploads/<jobID>/<source> and <root>/outputs/<jobID>/<prefix>.*
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/doclingui/api/internal/model"
)

// ErrNotFound is returned for unknown jobs, uploads and artifacts.
var ErrNotFound = errors.New("not found")

const (
	// Bookkeeping files written next to artifacts but never listed as one
	ProgressFilename = "progress.json"
	RequestFilename  = "processing_request.json"

	maxStemLength = 80
)

// Store is the filesystem storage layer for uploads and extraction outputs.
type Store struct {
	uploadsDir string
	outputsDir string
}

// New creates a Store rooted at dataRoot and ensures its directories exist.
func New(dataRoot string) (*Store, error) {
	s := &Store{
		uploadsDir: filepath.Join(dataRoot, "uploads"),
		outputsDir: filepath.Join(dataRoot, "outputs"),
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureDirs() error {
	for _, d := range []string{s.uploadsDir, s.outputsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

// SaveUpload stores the source file for a job and returns its path.
func (s *Store) SaveUpload(jobID, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(s.uploadsDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	dest := filepath.Join(dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// UploadPath returns the path of the single uploaded file for a job.
func (s *Store) UploadPath(jobID string) (string, error) {
	dir := filepath.Join(s.uploadsDir, jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", ErrNotFound
}

// OutputDir returns the job's output directory, creating it on demand.
func (s *Store) OutputDir(jobID string) (string, error) {
	dir := filepath.Join(s.outputsDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteArtifact writes a named artifact into the job's output directory.
func (s *Store) WriteArtifact(jobID, name string, data []byte) error {
	dir, err := s.OutputDir(jobID)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// ReadArtifact reads a named artifact from the job's output directory.
func (s *Store) ReadArtifact(jobID, name string) ([]byte, error) {
	path, err := s.ArtifactPath(jobID, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ListArtifacts lists artifact filenames for a job, excluding bookkeeping files.
func (s *Store) ListArtifacts(jobID string) []string {
	entries, err := os.ReadDir(filepath.Join(s.outputsDir, jobID))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ProgressFilename || e.Name() == RequestFilename {
			continue
		}
		out = append(out, e.Name())
	}
	return out
}

// ArtifactPath resolves an artifact filename inside the job's output directory.
// Rejects anything that could escape it.
func (s *Store) ArtifactPath(jobID, filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.outputsDir, jobID, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// ReadMetadata reads the job record from <prefix>.metadata.json.
func (s *Store) ReadMetadata(jobID string) (*model.Job, error) {
	dir := filepath.Join(s.outputsDir, jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrNotFound
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".metadata.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("corrupt metadata for job %s: %w", jobID, err)
		}
		return &job, nil
	}
	return nil, ErrNotFound
}

// WriteMetadata persists the job record to <prefix>.metadata.json.
func (s *Store) WriteMetadata(job *model.Job) error {
	prefix := job.ArtifactPrefix
	if prefix == "" {
		prefix = "document"
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	return s.WriteArtifact(job.ID, prefix+".metadata.json", data)
}

// WriteProgress records the current extraction stage for polling.
func (s *Store) WriteProgress(jobID, stage string, percent int) error {
	data, err := json.Marshal(model.Progress{Stage: stage, Percent: percent})
	if err != nil {
		return err
	}
	dir, err := s.OutputDir(jobID)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ProgressFilename), data, 0o644)
}

// ReadProgress returns the current extraction progress, or ErrNotFound if the
// job has never reported any.
func (s *Store) ReadProgress(jobID string) (*model.Progress, error) {
	data, err := os.ReadFile(filepath.Join(s.outputsDir, jobID, ProgressFilename))
	if err != nil {
		return nil, ErrNotFound
	}
	var p model.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrNotFound
	}
	return &p, nil
}

// WriteRequest records the chunking config a job was triggered with.
func (s *Store) WriteRequest(jobID string, cfg model.ChunkingConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	dir, err := s.OutputDir(jobID)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, RequestFilename), data, 0o644)
}

// Clean removes every job directory under uploads/ and outputs/,
// recreates the roots, and returns the number of entries removed.
func (s *Store) Clean() (removedUploads, removedOutputs int, err error) {
	for i, root := range []string{s.uploadsDir, s.outputsDir} {
		entries, rerr := os.ReadDir(root)
		if rerr != nil {
			continue
		}
		for _, e := range entries {
			if rerr := os.RemoveAll(filepath.Join(root, e.Name())); rerr != nil {
				err = rerr
				continue
			}
			if i == 0 {
				removedUploads++
			} else {
				removedOutputs++
			}
		}
	}
	if derr := s.ensureDirs(); derr != nil && err == nil {
		err = derr
	}
	return removedUploads, removedOutputs, err
}

// FreeBytes reports the free disk space under the uploads root.
func (s *Store) FreeBytes() (uint64, error) {
	return freeBytes(s.uploadsDir)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
var multiUnderscore = regexp.MustCompile(`_+`)

// SanitizeStem derives a filesystem-safe artifact prefix from a filename.
// Example: "User Guide v2.pdf" => "User_Guide_v2"
func SanitizeStem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || strings.HasPrefix(stem, ".") {
		return "document"
	}
	s := strings.ReplaceAll(stem, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" || !strings.ContainsFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return "document"
	}
	if len(s) > maxStemLength {
		s = s[:maxStemLength]
	}
	return s
}

// ArtifactPrefix returns the artifact prefix for a job, derived from its
// uploaded filename, or "document" when unknown.
func (s *Store) ArtifactPrefix(jobID string) string {
	path, err := s.UploadPath(jobID)
	if err != nil {
		return "document"
	}
	return SanitizeStem(filepath.Base(path))
}
