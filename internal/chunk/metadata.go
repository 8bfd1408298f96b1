package chunk

import (
	"path/filepath"
	"regexp"
	"strings"
)

// complexityKeywords is the fixed keyword set whose occurrences drive the
// complexity metric (spec §4.1: "1 + count of occurrences of a fixed
// keyword set").
var complexityKeywords = []string{
	"if", "else", "for", "while", "switch", "case", "catch",
	"&&", "||", "?", "elif", "except", "match",
}

// computeComplexity returns 1 + the number of complexity-keyword
// occurrences found in content.
func computeComplexity(content string) int {
	complexity := 1
	for _, kw := range complexityKeywords {
		complexity += strings.Count(content, kw)
	}
	return complexity
}

var testPathPattern = regexp.MustCompile(`(?i)(_test\.|\.test\.|\.spec\.|/tests?/|/__tests__/)`)

// isTestPath reports whether a file path looks like a test file.
func isTestPath(path string) bool {
	return testPathPattern.MatchString(path)
}

var docsPathPattern = regexp.MustCompile(`(?i)(readme|changelog|^docs/|/docs/|\.md$|\.mdx$|\.markdown$)`)

// fileKindFor classifies a file as code or docs based on its extension and
// path, per spec §4.1 ("docs for Markdown and paths containing README,
// docs/, or similar; otherwise code").
func fileKindFor(path, language string) Kind {
	if language == "markdown" || docsPathPattern.MatchString(path) {
		return KindDocs
	}
	return KindCode
}

// extractDependencies, extractImports and extractExports apply the
// language profile's regex patterns over a chunk's own text (spec §4.1:
// "extracted via language-specific regexes on the chunk text").
func extractImports(content string, cfg *LanguageConfig) []string {
	if cfg == nil {
		return nil
	}
	return dedupe(cfg.ImportPattern.ExtractAll(content))
}

func extractDependencies(content string, cfg *LanguageConfig) []string {
	// Dependencies are the same import surface, named separately because
	// the data model tracks them as a distinct metadata field (spec §3).
	return extractImports(content, cfg)
}

func extractExports(content string, cfg *LanguageConfig) []string {
	if cfg == nil {
		return nil
	}
	return dedupe(cfg.ExportPattern.ExtractAll(content))
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func buildMetadata(file *FileInput, content string, cfg *LanguageConfig) Metadata {
	return Metadata{
		FileSize:     file.Size,
		LastModified: file.ModTime,
		Extension:    filepath.Ext(file.Path),
		RelativePath: file.Path,
		IsTest:       isTestPath(file.Path),
		Complexity:   computeComplexity(content),
		Dependencies: extractDependencies(content, cfg),
		Exports:      extractExports(content, cfg),
		Imports:      extractImports(content, cfg),
		FileKind:     fileKindFor(file.Path, file.Language),
	}
}
