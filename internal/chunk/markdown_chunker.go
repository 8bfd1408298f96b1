package chunk

import (
	"context"
	"regexp"
	"strings"
)

// Regex patterns for markdown structural parsing (grounded in the teacher's
// header/frontmatter/code-block/table patterns).
var (
	mdHeaderPattern      = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	mdFrontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)
	mdCodeFencePattern   = regexp.MustCompile("^```")
	mdTableRowPattern    = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	mdListItemPattern    = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+`)
	mdBlockquotePattern  = regexp.MustCompile(`^\s*>`)
)

// MarkdownChunker splits Markdown/MDX documents into header-scoped sections,
// further broken into typed structural blocks (code fences, tables, lists,
// blockquotes, paragraphs), each subject to the same size policy as code
// chunks.
type MarkdownChunker struct{}

// NewMarkdownChunker creates a markdown chunker.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{}
}

// Close is a no-op; MarkdownChunker holds no resources.
func (c *MarkdownChunker) Close() {}

// SupportedExtensions returns file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx"}
}

// mdSection is a header-delimited region of a document.
type mdSection struct {
	headerPath string
	content    string
	startLine  int // 1-based line of the section's first line (header or body)
}

// Chunk splits a markdown file into semantic chunks.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lineOffset := 1
	if fm := mdFrontmatterPattern.FindString(content); fm != "" {
		content = content[len(fm):]
		lineOffset += strings.Count(fm, "\n")
	}

	sections := c.parseSections(content, lineOffset)

	var chunks []*Chunk
	for _, sec := range sections {
		blocks := splitMarkdownBlocks(sec.content, sec.startLine)
		for _, b := range blocks {
			for _, w := range enforceSizePolicy(window{content: b.content, startLine: b.startLine, endLine: b.endLine}) {
				chunks = append(chunks, c.buildChunk(file, w, b.blockType, sec.headerPath))
			}
		}
	}
	return chunks, nil
}

func (c *MarkdownChunker) buildChunk(file *FileInput, w window, blockType Type, headerPath string) *Chunk {
	return &Chunk{
		ID:          GenerateID(file.Path, w.startLine, w.endLine, blockType),
		Content:     w.content,
		FilePath:    file.Path,
		Language:    "markdown",
		StartLine:   w.startLine,
		EndLine:     w.endLine,
		ChunkType:   blockType,
		ModuleName:  headerPath,
		ContentHash: ContentHash(w.content),
		Metadata:    buildMetadata(file, w.content, nil),
	}
}

// parseSections splits content on ATX headers, tracking a " > "-joined
// header path for nested headings (grounded in the teacher's header-stack
// approach in parseSections/createSectionChunks).
func (c *MarkdownChunker) parseSections(content string, lineOffset int) []mdSection {
	lines := strings.Split(content, "\n")
	headerStack := make([]string, 6)

	var sections []mdSection
	var body strings.Builder
	headerPath := ""
	sectionStart := lineOffset

	flush := func() {
		if body.Len() == 0 {
			return
		}
		sections = append(sections, mdSection{
			headerPath: headerPath,
			content:    body.String(),
			startLine:  sectionStart,
		})
		body.Reset()
	}

	for i, line := range lines {
		if m := mdHeaderPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			headerStack[level-1] = title
			for j := level; j < 6; j++ {
				headerStack[j] = ""
			}
			var parts []string
			for _, h := range headerStack[:level] {
				if h != "" {
					parts = append(parts, h)
				}
			}
			headerPath = strings.Join(parts, " > ")
			sectionStart = lineOffset + i
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

// mdBlock is a typed structural unit within a section's body.
type mdBlock struct {
	content   string
	blockType Type
	startLine int
	endLine   int
}

// splitMarkdownBlocks walks a section's lines and groups them into
// contiguous typed blocks: fenced code, tables, lists, blockquotes, and
// plain-text paragraphs separated by blank lines.
func splitMarkdownBlocks(content string, startLine int) []mdBlock {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	var blocks []mdBlock

	var cur []string
	curType := TypeParagraph
	curStart := startLine
	lineNum := startLine
	inFence := false

	flush := func(endLine int) {
		text := strings.TrimSpace(strings.Join(cur, "\n"))
		if text != "" {
			blocks = append(blocks, mdBlock{content: text, blockType: curType, startLine: curStart, endLine: endLine})
		}
		cur = nil
	}

	classify := func(line string) Type {
		switch {
		case mdTableRowPattern.MatchString(line):
			return TypeTable
		case mdListItemPattern.MatchString(line):
			return TypeList
		case mdBlockquotePattern.MatchString(line):
			return TypeBlockquote
		default:
			return TypeParagraph
		}
	}

	for _, line := range lines {
		if mdCodeFencePattern.MatchString(strings.TrimSpace(line)) {
			if inFence {
				cur = append(cur, line)
				flush(lineNum)
				inFence = false
				curType = TypeParagraph
				curStart = lineNum + 1
				lineNum++
				continue
			}
			flush(lineNum - 1)
			inFence = true
			curType = TypeCodeBlock
			curStart = lineNum
			cur = append(cur, line)
			lineNum++
			continue
		}

		if inFence {
			cur = append(cur, line)
			lineNum++
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush(lineNum - 1)
			curType = TypeParagraph
			curStart = lineNum + 1
			lineNum++
			continue
		}

		lineType := classify(line)
		if len(cur) > 0 && lineType != curType {
			flush(lineNum - 1)
			curStart = lineNum
		}
		if len(cur) == 0 {
			curStart = lineNum
		}
		curType = lineType
		cur = append(cur, line)
		lineNum++
	}
	flush(lineNum - 1)

	return blocks
}
