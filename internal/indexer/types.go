// Package indexer orchestrates the scan -> chunk -> embed -> upsert
// pipeline (spec §4.4), owning per-file identity between the chunker (C1)
// and the vector index (C3), and exposing add/change/remove/reindex/clear
// operations to both the watcher (C5) and the tool-RPC layer.
package indexer

import (
	"time"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
)

// Severity classifies a per-file failure captured in Stats, per spec §4.4
// ("Failure semantics... severity {warning, error, critical}").
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// FileFailure records one file's indexing failure without aborting the run.
type FileFailure struct {
	Path     string
	Message  string
	Severity Severity
}

// Stats summarizes an indexDirectory (or single-file) run.
type Stats struct {
	FilesScanned  int
	FilesIndexed  int
	FilesSkipped  int
	ChunksCreated int
	Failures      []FileFailure
	Duration      time.Duration
}

func (s *Stats) fail(path, msg string, sev Severity) {
	s.Failures = append(s.Failures, FileFailure{Path: path, Message: msg, Severity: sev})
}

// CountBySeverity returns how many recorded failures match sev.
func (s *Stats) CountBySeverity(sev Severity) int {
	n := 0
	for _, f := range s.Failures {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// fileRecord is the indexer's own bookkeeping of what it last indexed for
// a path, used to make indexDirectory resumable (spec §4.4: "subsequent
// calls skip files whose (filePath, lastModified) are already present").
type fileRecord struct {
	ModTime time.Time
	Chunks  int
}

// IndexedChunk pairs a chunk with the embedding it was upserted with, for
// callers that need both (e.g. stats reporting, tests).
type IndexedChunk struct {
	Chunk  *chunk.Chunk
	Vector []float32
}
