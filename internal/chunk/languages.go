package chunk

import (
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// namePattern extracts a name from matched node text via a compiled regex
// whose first capture group is the name.
type namePattern struct {
	re *regexp.Regexp
}

func newNamePattern(expr string) *namePattern {
	return &namePattern{re: regexp.MustCompile(expr)}
}

// firstGroup returns the first non-empty capture group among a regex match,
// so patterns with multiple alternative groups (e.g. "from X import" vs.
// "import X") both resolve to a single name.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

// Extract returns the first non-empty capture group, or "" if the pattern
// doesn't match.
func (p *namePattern) Extract(text string) string {
	if p == nil {
		return ""
	}
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return firstGroup(m)
}

// ExtractAll returns every first-non-empty-capture-group match in text.
func (p *namePattern) ExtractAll(text string) []string {
	if p == nil {
		return nil
	}
	matches := p.re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if g := firstGroup(m); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// LanguageRegistry manages supported languages and their declarative
// chunking profiles.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a new registry with default language configurations.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()

	return r
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}

	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter language for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all supported file extensions.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

// LanguageForExtension maps a file extension to the language name used for
// chunking, scanning, and payload metadata.
func LanguageForExtension(ext string) (string, bool) {
	cfg, ok := DefaultRegistry().GetByExtension(ext)
	if !ok {
		return "", false
	}
	return cfg.Name, true
}

func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang

	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		NodeTypes: map[string]Type{
			"function_declaration": TypeFunction,
			"method_declaration":   TypeMethod,
			"type_declaration":     TypeTypeDef,
			"const_declaration":    TypeVariable,
			"var_declaration":      TypeVariable,
		},
		NamePattern:   newNamePattern(`(?:func\s+(?:\([^)]*\)\s*)?|type\s+|var\s+|const\s+)(\w+)`),
		ImportPattern: newNamePattern(`"([^"]+)"`),
		// Go has no export keyword; a declared name is exported iff it
		// starts uppercase, so the capture itself is constrained to that.
		ExportPattern: newNamePattern(`(?:func\s+(?:\([^)]*\)\s*)?|type\s+|var\s+|const\s+)([A-Z]\w*)`),
		CommentPrefix: "//",
	}
	r.registerLanguage(config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
		NodeTypes: map[string]Type{
			"function_declaration":   TypeFunction,
			"method_definition":      TypeMethod,
			"class_declaration":      TypeClass,
			"interface_declaration":  TypeInterface,
			"type_alias_declaration": TypeTypeDef,
			"lexical_declaration":    TypeVariable,
			"variable_declaration":   TypeVariable,
			"enum_declaration":       TypeEnum,
		},
		NamePattern:   newNamePattern(`(?:function\s*\*?\s*|class\s+|interface\s+|type\s+|enum\s+|(?:const|let|var)\s+)(\w+)`),
		ImportPattern: newNamePattern(`from\s+['"]([^'"]+)['"]`),
		ExportPattern: newNamePattern(`export\s+(?:default\s+)?(?:function|class|interface|type|const|let|enum)\s+(\w+)`),
		CommentPrefix: "//",
	}
	r.registerLanguage(tsConfig, typescript.GetLanguage())

	tsxConfig := &LanguageConfig{
		Name:          "tsx",
		Extensions:    []string{".tsx"},
		NodeTypes:     tsConfig.NodeTypes,
		NamePattern:   tsConfig.NamePattern,
		ImportPattern: tsConfig.ImportPattern,
		ExportPattern: tsConfig.ExportPattern,
		CommentPrefix: tsConfig.CommentPrefix,
	}
	r.registerLanguage(tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs"},
		NodeTypes: map[string]Type{
			"function_declaration": TypeFunction,
			"function":             TypeFunction,
			"method_definition":    TypeMethod,
			"class_declaration":    TypeClass,
			"lexical_declaration":  TypeVariable,
			"variable_declaration": TypeVariable,
		},
		NamePattern:   newNamePattern(`(?:function\s*\*?\s*|class\s+|(?:const|let|var)\s+)(\w+)`),
		ImportPattern: newNamePattern(`(?:from\s+|require\()['"]([^'"]+)['"]`),
		ExportPattern: newNamePattern(`export\s+(?:default\s+)?(?:function|class|const|let)\s+(\w+)`),
		CommentPrefix: "//",
	}
	r.registerLanguage(jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name:          "jsx",
		Extensions:    []string{".jsx"},
		NodeTypes:     jsConfig.NodeTypes,
		NamePattern:   jsConfig.NamePattern,
		ImportPattern: jsConfig.ImportPattern,
		ExportPattern: jsConfig.ExportPattern,
		CommentPrefix: jsConfig.CommentPrefix,
	}
	r.registerLanguage(jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	config := &LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		NodeTypes: map[string]Type{
			"function_definition": TypeFunction,
			"class_definition":    TypeClass,
			"decorated_definition": TypeDecorator,
			"assignment":          TypeVariable,
		},
		NamePattern:   newNamePattern(`(?:def\s+|class\s+)(\w+)`),
		ImportPattern: newNamePattern(`(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`),
		ExportPattern: newNamePattern(`^(\w+)\s*=`),
		CommentPrefix: "#",
	}
	r.registerLanguage(config, python.GetLanguage())
}

// defaultRegistry is the global language registry.
var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the global language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
