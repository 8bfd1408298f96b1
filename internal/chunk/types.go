// Package chunk turns source files into an ordered list of semantically
// meaningful fragments with stable identity, bounded size, and metadata.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Size policy bounds enforced on every emitted chunk (spec invariant I3).
const (
	MinChunkChars = 100
	MaxChunkChars = 1000
	OverlapChars  = 100
)

// Generic line-window fallback used when no language profile applies or
// AST extraction yields nothing.
const (
	GenericWindowLines  = 50
	GenericOverlapLines = 5
)

// Type is the kind of symbol or structural unit a chunk represents.
type Type string

const (
	TypeFunction    Type = "function"
	TypeClass       Type = "class"
	TypeMethod      Type = "method"
	TypeInterface   Type = "interface"
	TypeTypeDef     Type = "type"
	TypeEnum        Type = "enum"
	TypeNamespace   Type = "namespace"
	TypeDecorator   Type = "decorator"
	TypeConstructor Type = "constructor"
	TypeProperty    Type = "property"
	TypeVariable    Type = "variable"
	TypeImport      Type = "import"
	TypeComment     Type = "comment"
	TypeModule      Type = "module"
	TypeSection     Type = "section"
	TypeCodeBlock   Type = "code_block"
	TypeParagraph   Type = "paragraph"
	TypeList        Type = "list"
	TypeTable       Type = "table"
	TypeBlockquote  Type = "blockquote"
	TypeGeneric     Type = "generic"
)

// Kind distinguishes code files from documentation files for retrieval
// boosting and payload filters.
type Kind string

const (
	KindCode Kind = "code"
	KindDocs Kind = "docs"
)

// Metadata carries auxiliary, per-chunk information derived from the file
// it came from.
type Metadata struct {
	FileSize     int64     `json:"fileSize"`
	LastModified time.Time `json:"lastModified"`
	Extension    string    `json:"extension"`
	RelativePath string    `json:"relativePath"`
	IsTest       bool      `json:"isTest"`
	Complexity   int       `json:"complexity"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Exports      []string  `json:"exports,omitempty"`
	Imports      []string  `json:"imports,omitempty"`
	FileKind     Kind      `json:"fileKind"`
}

// Chunk is a retrievable, bounded fragment of a source file.
type Chunk struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	FilePath  string `json:"filePath"`
	Language  string `json:"language"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	ChunkType Type   `json:"chunkType"`

	FunctionName string `json:"functionName,omitempty"`
	ClassName    string `json:"className,omitempty"`
	ModuleName   string `json:"moduleName,omitempty"`

	ContentHash string   `json:"contentHash"`
	Metadata    Metadata `json:"metadata"`
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
	ModTime  time.Time
	Size     int64
}

// Chunker splits a file into semantic chunks.
type Chunker interface {
	// Chunk splits a file into semantic chunks. It never returns an error
	// for malformed input; parse failures degrade to a generic chunking
	// strategy and are only logged.
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles.
	SupportedExtensions() []string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds the declarative profile for a supported language:
// which AST node kinds map to which chunkType, and the regex used to pull
// a name out of a matched node's own text.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// NodeTypes maps a tree-sitter node type to the chunkType it produces.
	NodeTypes map[string]Type

	// NamePattern extracts a symbol's name from the matched node's source
	// text; group 1 is the name. Nil means no name is recorded.
	NamePattern *namePattern

	// ImportPattern matches whole import/require lines within a chunk's
	// content for dependency extraction; the first non-empty capture group
	// is the imported path.
	ImportPattern *namePattern

	// ExportPattern matches exported-symbol declarations; group 1 is the
	// exported name.
	ExportPattern *namePattern

	// CommentPrefix is the language's single-line comment marker, used to
	// capture a doc-comment block preceding a symbol.
	CommentPrefix string
}

// idNamespace seeds the deterministic chunk-id derivation (spec: "a pure
// function of (filePath, startLine, endLine, chunkType)"). Any fixed UUID
// works as the namespace; it only needs to be stable across builds.
var idNamespace = uuid.MustParse("8f14e45f-ceea-467e-bd2a-9d5c331b2e44")

// GenerateID derives a chunk's deterministic UUIDv5-shaped identity from its
// (filePath, startLine, endLine, chunkType) tuple (spec invariant I1).
// Reindexing an unchanged file reproduces the same id set byte for byte.
func GenerateID(filePath string, startLine, endLine int, chunkType Type) string {
	data := fmt.Sprintf("%s:%d:%d:%s", filePath, startLine, endLine, chunkType)
	return uuid.NewSHA1(idNamespace, []byte(data)).String()
}

// ContentHash returns the SHA-256 hex digest of a chunk's final content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
