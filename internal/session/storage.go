package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/lockfile"
	"github.com/codefionn/agentschnell/internal/logger"
)

const (
	mainLogFile = "conversation.jsonl"
	branchesDir = "branches"
)

// Metadata describes a stored conversation without loading its full log.
type Metadata struct {
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store locates conversations on disk. Each conversation is a directory
// holding an append-only JSONL log per branch.
type Store struct {
	baseDir string
}

// NewStore opens a store rooted at dir, creating it if needed. An empty dir
// selects the platform default under the user's state directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = defaultStoreDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}
	return &Store{baseDir: dir}, nil
}

// defaultStoreDir follows XDG_STATE_HOME with a ~/.local/state fallback.
func defaultStoreDir() (string, error) {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "agentschnell", "conversations"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "state", "agentschnell", "conversations"), nil
}

// Open loads a conversation by name, creating it if it does not exist. The
// conversation directory is locked for the lifetime of the returned session.
func (st *Store) Open(name string) (*Session, error) {
	name = sanitizeName(name)
	if name == "" {
		name = fmt.Sprintf("conversation-%d", time.Now().Unix())
	}

	dir := filepath.Join(st.baseDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversation %s: %w", name, err)
	}

	lock := lockfile.ForDir(dir)
	if err := lock.TryAcquire(); err != nil {
		return nil, fmt.Errorf("failed to lock conversation %s: %w", name, err)
	}

	messages, err := readLog(branchPath(dir, MainBranch))
	if err != nil {
		lock.Release()
		return nil, err
	}

	logger.Debug("Opened conversation %s with %d messages", name, len(messages))
	return &Session{
		Name:     name,
		Dir:      dir,
		branch:   MainBranch,
		messages: messages,
		lock:     lock,
	}, nil
}

// List returns metadata for every conversation in the store, most recently
// updated first.
func (st *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(st.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	var out []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		logPath := branchPath(filepath.Join(st.baseDir, entry.Name()), MainBranch)
		info, err := os.Stat(logPath)
		if err != nil {
			continue
		}
		count, err := countLines(logPath)
		if err != nil {
			logger.Warn("Skipping unreadable conversation %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, Metadata{
			Name:         entry.Name(),
			MessageCount: count,
			UpdatedAt:    info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a conversation and all of its branches. Deleting a missing
// conversation is not an error.
func (st *Store) Delete(name string) error {
	name = sanitizeName(name)
	if name == "" {
		return fmt.Errorf("conversation name must not be empty")
	}
	if err := os.RemoveAll(filepath.Join(st.baseDir, name)); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", name, err)
	}
	return nil
}

func branchPath(dir, branch string) string {
	if branch == MainBranch {
		return filepath.Join(dir, mainLogFile)
	}
	return filepath.Join(dir, branchesDir, branch+".jsonl")
}

func listBranches(dir string) ([]string, error) {
	branches := []string{MainBranch}
	entries, err := os.ReadDir(filepath.Join(dir, branchesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return branches, nil
		}
		return nil, fmt.Errorf("failed to read branches: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		branches = append(branches, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}
	sort.Strings(branches[1:])
	return branches, nil
}

// appendMessage adds one JSONL line to a branch log.
func appendMessage(path string, msg *Message) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// readLog loads a branch log. A missing file is an empty conversation.
func readLog(path string) ([]*Message, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	var messages []*Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, consts.BufferSize64KB), consts.BufferSize1MB)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("%w at %s:%d: %v", ErrCorruptLog, path, lineNo, err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return messages, nil
}

// writeLog atomically replaces a branch log with the given messages.
func writeLog(path string, messages []*Message) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp log: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to encode message: %w", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write log: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to flush log: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace log: %w", err)
	}
	return nil
}

func countLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, consts.BufferSize64KB), consts.BufferSize1MB)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	return count, scanner.Err()
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeName produces a filesystem-safe conversation name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	name = unsafeNameChars.ReplaceAllString(name, "-")
	return strings.Trim(name, "-.")
}

func sanitizeBranchName(name string) string {
	return sanitizeName(name)
}

// ErrCorruptLog is kept for callers that want to distinguish a damaged log
// from an I/O failure.
var ErrCorruptLog = errors.New("corrupt conversation log")
