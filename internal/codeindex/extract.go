package codeindex

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Symbol is one definition found in the source tree.
type Symbol struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// definitionKinds maps tree-sitter node kinds to symbol kinds per language.
var definitionKinds = map[string]map[string]string{
	"go": {
		"function_declaration": "func",
		"method_declaration":   "method",
		"type_spec":            "type",
	},
	"python": {
		"function_definition": "func",
		"class_definition":    "class",
	},
	"typescript": {
		"function_declaration":   "func",
		"class_declaration":      "class",
		"method_definition":      "method",
		"interface_declaration":  "interface",
		"type_alias_declaration": "type",
		"enum_declaration":       "enum",
	},
	"bash": {
		"function_definition": "func",
	},
}

func init() {
	// The TSX grammar is a superset of the TypeScript one.
	definitionKinds["tsx"] = definitionKinds["typescript"]
}

// extractSymbols parses source and collects the definitions it declares.
func extractSymbols(file, language string, source []byte) ([]Symbol, error) {
	grammar, ok := grammarFor(language)
	if !ok {
		return nil, fmt.Errorf("language not indexed: %s", language)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(grammar)); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree for %s", file)
	}
	defer tree.Close()

	kinds := definitionKinds[language]
	var symbols []Symbol

	var traverse func(*tree_sitter.Node)
	traverse = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}

		if kind, found := kinds[n.Kind()]; found {
			if name := nodeName(n, source); name != "" {
				pos := n.StartPosition()
				symbols = append(symbols, Symbol{
					Name:     name,
					Kind:     kind,
					Language: language,
					File:     file,
					Line:     int(pos.Row) + 1,
					Column:   int(pos.Column) + 1,
				})
			}
		}

		childCount := n.ChildCount()
		for i := uint(0); i < childCount; i++ {
			traverse(n.Child(i))
		}
	}

	traverse(tree.RootNode())
	return symbols, nil
}

// nodeName extracts the declared identifier from a definition node. Most
// grammars expose it as the "name" field; bash nests it one level deeper.
func nodeName(n *tree_sitter.Node, source []byte) string {
	name := n.ChildByFieldName("name")
	if name == nil {
		childCount := n.ChildCount()
		for i := uint(0); i < childCount; i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			if kind := child.Kind(); kind == "word" || kind == "identifier" {
				name = child
				break
			}
		}
	}
	if name == nil {
		return ""
	}

	start, end := name.StartByte(), name.EndByte()
	if start >= end || end > uint(len(source)) {
		return ""
	}
	return strings.TrimSpace(string(source[start:end]))
}
