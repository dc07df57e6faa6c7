package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/doclingui/api/internal/config"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestNewRunner_Unconfigured(t *testing.T) {
	r := NewRunner(&config.ExtractionConfig{})
	if r.IsConfigured() {
		t.Error("runner with no command should be unconfigured")
	}
}

func TestExtract_MissingInput(t *testing.T) {
	r := NewRunner(&config.ExtractionConfig{})
	if _, err := r.Extract(context.Background(), "/no/such/file.pdf", nil); err == nil {
		t.Error("expected error for missing input file")
	}
}

func TestExtract_PlaceholderPassesThroughText(t *testing.T) {
	content := "# Title\n\nbody text"
	path := writeTempFile(t, "doc.md", content)

	r := NewRunner(&config.ExtractionConfig{})
	res, err := r.Extract(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Markdown != content {
		t.Errorf("markdown = %q, want source content", res.Markdown)
	}
	if !res.Placeholder {
		t.Error("expected placeholder result")
	}
	if res.Structured["placeholder"] != true {
		t.Errorf("structured placeholder flag = %v", res.Structured["placeholder"])
	}
	if res.Structured["text"] != content {
		t.Errorf("structured text = %v", res.Structured["text"])
	}
}

func TestExtract_PlaceholderStubForBinary(t *testing.T) {
	path := writeTempFile(t, "scan.pdf", "%PDF-1.4 fake")

	r := NewRunner(&config.ExtractionConfig{})
	res, err := r.Extract(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.Placeholder {
		t.Error("expected placeholder result")
	}
	if !strings.Contains(res.Markdown, "scan.pdf") {
		t.Errorf("placeholder should name the file: %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "13 bytes") {
		t.Errorf("placeholder should state the size: %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "PDF") {
		t.Errorf("placeholder should name the type: %q", res.Markdown)
	}
}

func TestExtract_PlaceholderDeterministic(t *testing.T) {
	path := writeTempFile(t, "scan.pdf", "%PDF-1.4 fake")
	r := NewRunner(&config.ExtractionConfig{})

	first, err := r.Extract(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := r.Extract(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if first.Markdown != second.Markdown {
		t.Error("placeholder output changed between runs")
	}
}

func TestExtract_BrokenConverterFallsBack(t *testing.T) {
	path := writeTempFile(t, "doc.md", "# content")

	r := NewRunner(&config.ExtractionConfig{Command: "/no/such/converter", Timeout: 5})
	res, err := r.Extract(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("expected placeholder fallback, got error: %v", err)
	}
	if !res.Placeholder {
		t.Error("expected placeholder result after converter failure")
	}
	if res.Markdown != "# content" {
		t.Errorf("markdown = %q", res.Markdown)
	}
}

func TestExtract_ReportsProgress(t *testing.T) {
	path := writeTempFile(t, "doc.txt", "plain text")

	var stages []string
	r := NewRunner(&config.ExtractionConfig{})
	_, err := r.Extract(context.Background(), path, func(stage string, percent int) {
		stages = append(stages, stage)
		if percent < 0 || percent > 100 {
			t.Errorf("percent out of range: %d", percent)
		}
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(stages) == 0 {
		t.Error("expected at least one progress report")
	}
}
