package indexer

import (
	"time"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

// chunkPayload builds the point payload stored alongside a chunk's vector:
// the full Chunk minus its id (spec §3, "Point... payload ≡ Chunk minus
// id"), so downstream scroll-based consumers (the sparse scorer, the
// context assembler) can reconstruct a usable Chunk without a second
// round-trip to source. The four filterable fields keep the constant keys
// vectorindex declares payload indexes for.
func chunkPayload(c *chunk.Chunk) map[string]any {
	return map[string]any{
		vectorindex.PayloadChunkType: string(c.ChunkType),
		vectorindex.PayloadLanguage:  c.Language,
		vectorindex.PayloadFilePath:  c.FilePath,
		vectorindex.PayloadFileKind:  string(c.Metadata.FileKind),

		"content":      c.Content,
		"startLine":    c.StartLine,
		"endLine":      c.EndLine,
		"functionName": c.FunctionName,
		"className":    c.ClassName,
		"moduleName":   c.ModuleName,
		"contentHash":  c.ContentHash,

		"fileSize":     c.Metadata.FileSize,
		"lastModified": c.Metadata.LastModified.Unix(),
		"extension":    c.Metadata.Extension,
		"relativePath": c.Metadata.RelativePath,
		"isTest":       c.Metadata.IsTest,
		"complexity":   c.Metadata.Complexity,
		"dependencies": c.Metadata.Dependencies,
		"exports":      c.Metadata.Exports,
		"imports":      c.Metadata.Imports,
	}
}

// ChunkFromPayload reconstructs a Chunk from a point's id and payload, the
// inverse of chunkPayload. Backends disagree on the wire type of numeric
// fields (Qdrant round-trips integers as int64, the in-memory fake index
// keeps the Go int unchanged), so every numeric read goes through
// intFromPayload.
func ChunkFromPayload(id string, payload map[string]any) *chunk.Chunk {
	c := &chunk.Chunk{
		ID:           id,
		Content:      stringFromPayload(payload["content"]),
		FilePath:     stringFromPayload(payload[vectorindex.PayloadFilePath]),
		Language:     stringFromPayload(payload[vectorindex.PayloadLanguage]),
		StartLine:    intFromPayload(payload["startLine"]),
		EndLine:      intFromPayload(payload["endLine"]),
		ChunkType:    chunk.Type(stringFromPayload(payload[vectorindex.PayloadChunkType])),
		FunctionName: stringFromPayload(payload["functionName"]),
		ClassName:    stringFromPayload(payload["className"]),
		ModuleName:   stringFromPayload(payload["moduleName"]),
		ContentHash:  stringFromPayload(payload["contentHash"]),
	}
	c.Metadata = chunk.Metadata{
		FileSize:     int64(intFromPayload(payload["fileSize"])),
		Extension:    stringFromPayload(payload["extension"]),
		RelativePath: stringFromPayload(payload["relativePath"]),
		IsTest:       boolFromPayload(payload["isTest"]),
		Complexity:   intFromPayload(payload["complexity"]),
		Dependencies: stringSliceFromPayload(payload["dependencies"]),
		Exports:      stringSliceFromPayload(payload["exports"]),
		Imports:      stringSliceFromPayload(payload["imports"]),
		FileKind:     chunk.Kind(stringFromPayload(payload[vectorindex.PayloadFileKind])),
	}
	if ts := intFromPayload(payload["lastModified"]); ts != 0 {
		c.Metadata.LastModified = time.Unix(int64(ts), 0).UTC()
	}
	return c
}

func stringFromPayload(v any) string {
	s, _ := v.(string)
	return s
}

func boolFromPayload(v any) bool {
	b, _ := v.(bool)
	return b
}

func intFromPayload(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stringSliceFromPayload(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
