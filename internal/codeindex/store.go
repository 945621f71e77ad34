package codeindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// store persists fingerprints and symbols in SQLite so unchanged files are
// not reparsed across refreshes or process restarts.
type store struct {
	db *sql.DB
}

func openStore(dbPath string) (*store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	s := &store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return s, nil
}

func (s *store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		language TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		language TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		column INTEGER NOT NULL,
		FOREIGN KEY (file) REFERENCES files(path) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
	`
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	_, err := s.db.Exec(schema)
	return err
}

func (s *store) Close() error {
	return s.db.Close()
}

// fileHash returns the stored fingerprint for a path, "" when unknown.
func (s *store) fileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// knownFiles returns all indexed paths.
func (s *store) knownFiles() (map[string]struct{}, error) {
	rows, err := s.db.Query("SELECT path FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

// replaceFile updates a file's fingerprint and symbols in one transaction.
func (s *store) replaceFile(path, hash, language string, symbols []Symbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM symbols WHERE file = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO files (path, hash, language) VALUES (?, ?, ?) ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, language = excluded.language",
		path, hash, language,
	); err != nil {
		return err
	}

	for _, sym := range symbols {
		if _, err := tx.Exec(
			"INSERT INTO symbols (name, kind, language, file, line, column) VALUES (?, ?, ?, ?, ?, ?)",
			sym.Name, sym.Kind, sym.Language, sym.File, sym.Line, sym.Column,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// removeFile drops a file and its symbols.
func (s *store) removeFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM symbols WHERE file = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return err
	}
	return tx.Commit()
}

// query returns all symbols with the given name, ordered for determinism.
func (s *store) query(name string) ([]Symbol, error) {
	rows, err := s.db.Query(
		"SELECT name, kind, language, file, line, column FROM symbols WHERE name = ? ORDER BY file, line",
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.Name, &sym.Kind, &sym.Language, &sym.File, &sym.Line, &sym.Column); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
