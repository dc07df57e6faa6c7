// Package chunker turns extracted document markdown into retrieval-sized
// chunks. Header-aware, token-sized, deterministic.
package chunker

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/doclingui/api/internal/model"
)

var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// ApproxTokens approximates the token count of text using the chars/4 heuristic.
func ApproxTokens(text string) int {
	return (len(text) + 3) / 4
}

// Section is a markdown slice delimited by headers. Path is the header titles
// joined by " > " ("" for content before the first header); Text includes the
// header line itself.
type Section struct {
	Path string
	Text string
}

type pathEntry struct {
	level int
	title string
}

// Sections splits markdown at header boundaries (levels 1-6), maintaining the
// header path so every section knows its place in the document outline.
func Sections(markdown string) []Section {
	var out []Section
	var path []pathEntry
	var lines []string

	flush := func() {
		if len(lines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if text == "" {
			return
		}
		titles := make([]string, len(path))
		for i, p := range path {
			titles[i] = p.title
		}
		out = append(out, Section{Path: strings.Join(titles, " > "), Text: text})
	}

	for _, line := range strings.Split(markdown, "\n") {
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			lines = append(lines, line)
			continue
		}
		level := len(m[1])
		title := strings.TrimSpace(m[2])
		flush()
		for len(path) > 0 && path[len(path)-1].level >= level {
			path = path[:len(path)-1]
		}
		path = append(path, pathEntry{level: level, title: title})
		lines = []string{line}
	}
	flush()
	return out
}

// SplitWindows splits text into overlapping token-sized windows. Windows break
// at paragraph boundaries (blank lines) so tables and paragraphs stay intact,
// and the tail paragraphs of each window are carried into the next one.
func SplitWindows(text string, targetTokens, overlapTokens int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if ApproxTokens(text) <= targetTokens {
		return []string{strings.TrimSpace(text)}
	}

	paragraphs := blankLinePattern.Split(text, -1)
	var windows []string
	var current []string
	currentTokens := 0

	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		pt := ApproxTokens(para)
		if currentTokens+pt > targetTokens && len(current) > 0 {
			window := strings.TrimSpace(strings.Join(current, "\n\n"))
			if window != "" {
				windows = append(windows, window)
			}
			// Carry the last paragraphs forward as overlap, by token count
			var overlap []string
			overlapSoFar := 0
			for i := len(current) - 1; i >= 0; i-- {
				overlap = append([]string{current[i]}, overlap...)
				overlapSoFar += ApproxTokens(current[i])
				if overlapSoFar >= overlapTokens {
					break
				}
			}
			current = overlap
			currentTokens = 0
			for _, p := range current {
				currentTokens += ApproxTokens(p)
			}
		}
		current = append(current, para)
		currentTokens += pt
	}

	if len(current) > 0 {
		window := strings.TrimSpace(strings.Join(current, "\n\n"))
		if window != "" {
			windows = append(windows, window)
		}
	}
	return windows
}

// Each walks the chunks of a markdown document in order, calling fn for every
// one. Chunk IDs are "<docID>_<index>" with a document-wide running index.
// Re-running over the same input yields the same sequence.
func Each(markdown, docID string, cfg model.ChunkingConfig, fn func(model.Chunk) error) error {
	cfg = cfg.Normalized()
	index := 0

	emit := func(sectionPath, window string) error {
		text := strings.TrimSpace(window)
		if text == "" {
			return nil
		}
		c := model.Chunk{
			ID:   docID + "_" + strconv.Itoa(index),
			Text: text,
			Meta: model.ChunkMeta{DocID: docID, Section: sectionPath},
		}
		index++
		return fn(c)
	}

	for _, sec := range Sections(markdown) {
		for _, w := range SplitWindows(sec.Text, cfg.TargetTokens, cfg.OverlapTokens) {
			if err := emit(sec.Path, w); err != nil {
				return err
			}
		}
	}

	// No headers produced anything: treat the whole document as one section
	if index == 0 && strings.TrimSpace(markdown) != "" {
		for _, w := range SplitWindows(markdown, cfg.TargetTokens, cfg.OverlapTokens) {
			if err := emit("", w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Generate collects the chunk sequence for a document.
func Generate(markdown, docID string, cfg model.ChunkingConfig) []model.Chunk {
	var out []model.Chunk
	_ = Each(markdown, docID, cfg, func(c model.Chunk) error {
		out = append(out, c)
		return nil
	})
	return out
}

// WriteJSONL streams the chunk sequence to w as one JSON object per line.
// Returns the number of chunks written.
func WriteJSONL(w io.Writer, markdown, docID string, cfg model.ChunkingConfig) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	count := 0
	err := Each(markdown, docID, cfg, func(c model.Chunk) error {
		if err := enc.Encode(c); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, bw.Flush()
}
