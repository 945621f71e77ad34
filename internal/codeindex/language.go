package codeindex

import (
	"path/filepath"
	"strings"
	"unsafe"

	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// DetectLanguage determines the indexable language from a file path, empty
// when the file is not indexed.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py", ".pyw":
		return "python"
	case ".ts", ".js", ".mjs":
		return "typescript"
	case ".tsx", ".jsx":
		return "tsx"
	case ".sh", ".bash", ".zsh":
		return "bash"
	default:
		return ""
	}
}

// grammarFor returns the tree-sitter grammar pointer for a language.
func grammarFor(language string) (unsafe.Pointer, bool) {
	switch language {
	case "go":
		return tree_sitter_go.Language(), true
	case "python":
		return tree_sitter_python.Language(), true
	case "typescript":
		return tree_sitter_typescript.LanguageTypescript(), true
	case "tsx":
		return tree_sitter_typescript.LanguageTSX(), true
	case "bash":
		return tree_sitter_bash.Language(), true
	default:
		return nil, false
	}
}
