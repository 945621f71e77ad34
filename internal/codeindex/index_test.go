package codeindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func newTestIndex(t *testing.T, root string) *Index {
	t.Helper()
	idx, err := New(root, filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"main.go", "go"},
		{"script.py", "python"},
		{"app.ts", "typescript"},
		{"component.tsx", "tsx"},
		{"setup.sh", "bash"},
		{"README.md", ""},
		{"data.json", ""},
	}

	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.expected {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestExtractSymbols_Go(t *testing.T) {
	source := []byte(`package demo

type Router struct{}

func (r *Router) Converse() error { return nil }

func NewRouter() *Router { return &Router{} }
`)

	symbols, err := extractSymbols("router.go", "go", source)
	if err != nil {
		t.Fatalf("extractSymbols failed: %v", err)
	}

	byName := make(map[string]Symbol)
	for _, sym := range symbols {
		byName[sym.Name] = sym
	}

	if sym, ok := byName["Router"]; !ok || sym.Kind != "type" {
		t.Errorf("expected type Router, got %+v", byName)
	}
	if sym, ok := byName["Converse"]; !ok || sym.Kind != "method" {
		t.Errorf("expected method Converse, got %+v", byName)
	}
	if sym, ok := byName["NewRouter"]; !ok || sym.Kind != "func" {
		t.Errorf("expected func NewRouter, got %+v", byName)
	}
	if byName["NewRouter"].Line != 7 {
		t.Errorf("expected NewRouter on line 7, got %d", byName["NewRouter"].Line)
	}
}

func TestExtractSymbols_Python(t *testing.T) {
	source := []byte("class Dispatcher:\n    def dispatch(self):\n        pass\n")

	symbols, err := extractSymbols("dispatcher.py", "python", source)
	if err != nil {
		t.Fatalf("extractSymbols failed: %v", err)
	}

	kinds := make(map[string]string)
	for _, sym := range symbols {
		kinds[sym.Name] = sym.Kind
	}
	if kinds["Dispatcher"] != "class" || kinds["dispatch"] != "func" {
		t.Errorf("unexpected symbols %v", kinds)
	}
}

func TestExtractSymbols_Bash(t *testing.T) {
	source := []byte("#!/bin/bash\nrun_tests() {\n  true\n}\n")

	symbols, err := extractSymbols("run.sh", "bash", source)
	if err != nil {
		t.Fatalf("extractSymbols failed: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Name != "run_tests" {
		t.Errorf("expected run_tests, got %+v", symbols)
	}
}

func TestIndexRefreshAndQuery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Dispatch() {}\n")
	writeFile(t, root, "util.py", "def dispatch_all():\n    pass\n")

	idx := newTestIndex(t, root)

	matches, err := idx.Query(context.Background(), "Dispatch")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %+v", matches)
	}
	if matches[0].File != "main.go" || matches[0].Kind != "func" {
		t.Errorf("unexpected match %+v", matches[0])
	}

	matches, err = idx.Query(context.Background(), "missing_symbol")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestIndexPicksUpChanges(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "main.go", "package main\n\nfunc Old() {}\n")

	idx := newTestIndex(t, root)

	if _, err := idx.Query(context.Background(), "Old"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("package main\n\nfunc Renamed() {}\n"), 0644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	matches, err := idx.Query(context.Background(), "Renamed")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected renamed symbol indexed, got %+v", matches)
	}

	matches, _ = idx.Query(context.Background(), "Old")
	if len(matches) != 0 {
		t.Errorf("expected old symbol dropped, got %+v", matches)
	}
}

func TestIndexDropsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "gone.go", "package main\n\nfunc Ephemeral() {}\n")

	idx := newTestIndex(t, root)
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	matches, err := idx.Query(context.Background(), "Ephemeral")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected symbols of deleted file dropped, got %+v", matches)
	}
}

func TestIndexSkipsVendoredDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join("node_modules", "dep.ts"), "export function hidden() {}\n")
	writeFile(t, root, "app.ts", "export function visible() {}\n")

	idx := newTestIndex(t, root)

	matches, err := idx.Query(context.Background(), "hidden")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("vendored directory must not be indexed, got %+v", matches)
	}

	matches, err = idx.Query(context.Background(), "visible")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected project file indexed, got %+v", matches)
	}
}
