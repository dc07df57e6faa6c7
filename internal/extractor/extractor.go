// Package extractor invokes the external document converter and falls back to
// a deterministic placeholder so the pipeline stays testable without it.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/doclingui/api/internal/config"
)

// ProgressFunc receives extraction stage updates (stage name, 0-100 percent).
type ProgressFunc func(stage string, percent int)

// Result holds the output of one extraction.
type Result struct {
	Markdown    string
	Structured  map[string]any
	Placeholder bool
	PageCount   int
}

// Runner extracts documents via a converter command when one is configured.
type Runner struct {
	command string
	timeout time.Duration
}

// NewRunner creates a Runner from the extraction config.
func NewRunner(cfg *config.ExtractionConfig) *Runner {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Runner{command: cfg.Command, timeout: timeout}
}

// IsConfigured reports whether an external converter command is set.
func (r *Runner) IsConfigured() bool {
	return r.command != ""
}

// Extract runs the converter on path and returns markdown plus structured
// output. When the converter is unconfigured or fails, the placeholder result
// is returned instead so the job can still complete.
func (r *Runner) Extract(ctx context.Context, path string, report ProgressFunc) (*Result, error) {
	if report == nil {
		report = func(string, int) {}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file not found: %s", path)
	}

	if r.IsConfigured() {
		report("Converting document", 25)
		res, err := r.runConverter(ctx, path)
		if err == nil {
			report("Document converted", 60)
			return res, nil
		}
		log.Printf("Converter failed for %s, using placeholder: %v", path, err)
	}

	report("Using placeholder extraction", 50)
	return placeholderExtract(path)
}

// runConverter shells out to the converter command, which is expected to write
// <stem>.md (and optionally <stem>.json) into the given output directory.
func (r *Runner) runConverter(ctx context.Context, path string) (*Result, error) {
	outDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command,
		"--to", "md", "--to", "json", "--output", outDir, path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("converter exited: %w (%s)", err, truncate(string(out), 500))
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mdBytes, err := os.ReadFile(filepath.Join(outDir, stem+".md"))
	if err != nil {
		return nil, fmt.Errorf("converter produced no markdown: %w", err)
	}

	res := &Result{Markdown: string(mdBytes)}
	if jsonBytes, err := os.ReadFile(filepath.Join(outDir, stem+".json")); err == nil {
		var structured map[string]any
		if err := json.Unmarshal(jsonBytes, &structured); err == nil {
			res.Structured = structured
			if pages, ok := structured["pages"].([]any); ok {
				res.PageCount = len(pages)
			}
		}
	}
	if res.Structured == nil {
		res.Structured = map[string]any{"source": path, "markdown": res.Markdown}
	}
	return res, nil
}

// placeholderExtract echoes text content for plain-text types and a
// deterministic stub (filename and size) for everything else.
func placeholderExtract(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".csv", ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("placeholder read failed: %w", err)
		}
		text = string(data)
	default:
		ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
		text = fmt.Sprintf("[%s placeholder: %s - %d bytes - configure an extraction command for full extraction]",
			ext, filepath.Base(path), info.Size())
	}

	return &Result{
		Markdown: text,
		Structured: map[string]any{
			"source":      path,
			"text":        text,
			"placeholder": true,
		},
		Placeholder: true,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
