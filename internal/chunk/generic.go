package chunk

// genericChunks implements the generic fallback strategy (spec §4.1): fixed
// 50-line windows with 5-line overlap, used whenever a language is
// unsupported, AST parsing fails, or no symbol nodes are found. Each line
// window then goes through enforceSizePolicy like an AST chunk: windows
// under MinChunkChars are dropped and windows over MaxChunkChars are split.
func genericChunks(file *FileInput) []*Chunk {
	content := string(file.Content)
	if content == "" {
		return nil
	}

	var windows []window
	for _, lw := range lineWindows(content, 1, GenericWindowLines, GenericOverlapLines) {
		windows = append(windows, enforceSizePolicy(lw)...)
	}
	chunks := make([]*Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, &Chunk{
			ID:          GenerateID(file.Path, w.startLine, w.endLine, TypeGeneric),
			Content:     w.content,
			FilePath:    file.Path,
			Language:    file.Language,
			StartLine:   w.startLine,
			EndLine:     w.endLine,
			ChunkType:   TypeGeneric,
			ContentHash: ContentHash(w.content),
			Metadata:    buildMetadata(file, w.content, nil),
		})
	}
	return chunks
}
