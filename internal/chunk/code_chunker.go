package chunk

import (
	"context"
	"log/slog"
	"strings"
)

// CodeChunker implements AST-guided chunking over tree-sitter grammars for
// the declared set of supported languages (spec §4.1).
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	logger   *slog.Logger
}

// NewCodeChunker creates a code chunker against the default language registry.
func NewCodeChunker(logger *slog.Logger) *CodeChunker {
	if logger == nil {
		logger = slog.Default()
	}
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
		logger:   logger,
	}
}

// Close releases parser resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into AST-guided chunks, falling back to the generic
// line-window strategy whenever the language is unsupported, parsing
// fails, or no symbol node matched (spec §4.1 "Generic fallback" and
// "Failure": the chunker never returns an error, it degrades instead; only
// a parse failure is logged).
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	cfg, ok := c.registry.GetByName(file.Language)
	if !ok {
		return genericChunks(file), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		c.logger.Warn("AST parse failed, falling back to generic chunking",
			slog.String("path", file.Path), slog.String("error", err.Error()))
		return genericChunks(file), nil
	}

	symbolNodes := findSymbolNodes(tree, cfg)
	if len(symbolNodes) == 0 {
		return genericChunks(file), nil
	}

	var chunks []*Chunk
	for _, sn := range symbolNodes {
		chunks = append(chunks, c.chunksFromNode(sn, tree, file, cfg)...)
	}
	if len(chunks) == 0 {
		return genericChunks(file), nil
	}
	return chunks, nil
}

func (c *CodeChunker) chunksFromNode(sn symbolNode, tree *Tree, file *FileInput, cfg *LanguageConfig) []*Chunk {
	node := sn.node
	start := int(node.StartByte)
	end := int(node.EndByte)

	docStart := extendForDocComment(tree.Source, start, cfg.CommentPrefix)
	content := string(tree.Source[docStart:end])
	startLine := lineNumberAt(tree.Source, docStart)
	endLine := int(node.EndPoint.Row) + 1

	name := cfg.NamePattern.Extract(string(tree.Source[start:end]))

	windows := enforceSizePolicy(window{content: content, startLine: startLine, endLine: endLine})
	chunks := make([]*Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, c.buildChunk(file, w, sn.chunkType, name, cfg))
	}
	return chunks
}

func (c *CodeChunker) buildChunk(file *FileInput, w window, chunkType Type, name string, cfg *LanguageConfig) *Chunk {
	ch := &Chunk{
		ID:          GenerateID(file.Path, w.startLine, w.endLine, chunkType),
		Content:     w.content,
		FilePath:    file.Path,
		Language:    file.Language,
		StartLine:   w.startLine,
		EndLine:     w.endLine,
		ChunkType:   chunkType,
		ContentHash: ContentHash(w.content),
		Metadata:    buildMetadata(file, w.content, cfg),
	}

	switch chunkType {
	case TypeClass, TypeInterface, TypeEnum:
		ch.ClassName = name
	case TypeTypeDef, TypeNamespace, TypeModule:
		ch.ModuleName = name
	default:
		ch.FunctionName = name
	}
	return ch
}

// extendForDocComment walks backward from a node's start byte over
// contiguous preceding single-line comments in the language's comment
// style, so a function's doc comment travels with its chunk (spec §4.1
// "Metadata" is silent on this; grounded in the teacher's
// extractDocComment, which does the same walk).
func extendForDocComment(source []byte, nodeStart int, commentPrefix string) int {
	if commentPrefix == "" {
		return nodeStart
	}

	lineStart := startOfLine(source, nodeStart)
	cursor := lineStart

	for cursor > 0 {
		prevLineEnd := cursor - 1 // the newline itself
		prevLineStart := startOfLine(source, prevLineEnd)
		line := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))

		if line == "" {
			break
		}
		if !strings.HasPrefix(line, commentPrefix) {
			break
		}
		cursor = prevLineStart
	}
	return cursor
}

func startOfLine(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineNumberAt(source []byte, pos int) int {
	line := 1
	for i := 0; i < pos && i < len(source); i++ {
		if source[i] == '\n' {
			line++
		}
	}
	return line
}
