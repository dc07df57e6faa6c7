package model

// Chunking defaults (chars/4 token heuristic)
const (
	DefaultTargetTokens  = 1000
	DefaultOverlapTokens = 120
)

// ChunkingConfig controls how extracted markdown is split into chunks
type ChunkingConfig struct {
	TargetTokens  int `json:"targetTokens" validate:"omitempty,min=50,max=8000"`
	OverlapTokens int `json:"overlapTokens" validate:"omitempty,min=0,max=2000"`
}

// Normalized returns the config with zero values replaced by defaults and the
// overlap clamped below the target so the window step stays positive.
func (c ChunkingConfig) Normalized() ChunkingConfig {
	out := c
	if out.TargetTokens <= 0 {
		out.TargetTokens = DefaultTargetTokens
	}
	if out.OverlapTokens < 0 {
		out.OverlapTokens = DefaultOverlapTokens
	}
	if out.OverlapTokens >= out.TargetTokens {
		out.OverlapTokens = out.TargetTokens / 2
	}
	return out
}

// DefaultChunking returns the standard chunking configuration
func DefaultChunking() ChunkingConfig {
	return ChunkingConfig{
		TargetTokens:  DefaultTargetTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

// ChunkMeta is the metadata attached to every chunk. Field names are part of
// the JSONL wire format consumed by downstream retrieval pipelines.
type ChunkMeta struct {
	DocID   string `json:"doc_id"`
	Section string `json:"section"`
}

// Chunk is one retrieval-sized slice of extracted text.
// Written as one JSON object per line: {"id","text","meta":{"doc_id","section"}}
type Chunk struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Meta ChunkMeta `json:"meta"`
}
