// Package session manages a conversation: its append-only message log on
// disk, its branches, and the collaborators (browser, terminal, code index)
// whose lifetime is tied to it.
package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/codefionn/agentschnell/internal/llm"
	"github.com/codefionn/agentschnell/internal/lockfile"
	"github.com/codefionn/agentschnell/internal/logger"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// MainBranch is the name of the default conversation branch.
const MainBranch = "main"

// Message is one entry in a conversation log.
type Message struct {
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	ToolCalls []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolID    string                   `json:"tool_id,omitempty"`
	ToolName  string                   `json:"tool_name,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// ToLLM converts the stored message into the wire shape providers consume.
func (m *Message) ToLLM() *llm.Message {
	return &llm.Message{
		Role:      m.Role,
		Content:   m.Content,
		ToolCalls: m.ToolCalls,
		ToolID:    m.ToolID,
		ToolName:  m.ToolName,
	}
}

// FromLLM wraps a provider message for persistence.
func FromLLM(msg *llm.Message) *Message {
	return &Message{
		Role:      msg.Role,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		ToolID:    msg.ToolID,
		ToolName:  msg.ToolName,
		Timestamp: time.Now(),
	}
}

// Session is an open conversation. It holds the in-memory message list for
// the active branch and appends every new message to the branch's log file.
type Session struct {
	Name string
	Dir  string

	mu       sync.RWMutex
	branch   string
	messages []*Message
	lock     *lockfile.Lockfile
	closers  []io.Closer
	closed   bool
}

// Append records a message in memory and on disk.
func (s *Session) Append(msg *Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.Name)
	}
	if err := appendMessage(branchPath(s.Dir, s.branch), msg); err != nil {
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the active branch's messages.
func (s *Session) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// History returns the active branch in provider wire shape.
func (s *Session) History() []*llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*llm.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.ToLLM()
	}
	return out
}

// Len returns the number of messages on the active branch.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Branch returns the active branch name.
func (s *Session) Branch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branch
}

// Fork snapshots the active branch into a new branch and switches to it.
func (s *Session) Fork(name string) error {
	name = sanitizeBranchName(name)
	if name == "" {
		return fmt.Errorf("branch name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.Name)
	}
	if name == s.branch {
		return nil
	}
	if err := writeLog(branchPath(s.Dir, name), s.messages); err != nil {
		return fmt.Errorf("failed to fork branch %s: %w", name, err)
	}
	s.branch = name
	logger.Debug("Forked conversation %s to branch %s", s.Name, name)
	return nil
}

// SwitchBranch loads another branch's log and makes it active.
func (s *Session) SwitchBranch(name string) error {
	name = sanitizeBranchName(name)
	if name == "" {
		return fmt.Errorf("branch name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.Name)
	}
	if name == s.branch {
		return nil
	}
	messages, err := readLog(branchPath(s.Dir, name))
	if err != nil {
		return fmt.Errorf("failed to load branch %s: %w", name, err)
	}
	s.branch = name
	s.messages = messages
	return nil
}

// Branches lists the branches recorded for this conversation.
func (s *Session) Branches() ([]string, error) {
	return listBranches(s.Dir)
}

// Own registers a collaborator whose Close is tied to this session.
// Collaborators are released in reverse registration order.
func (s *Session) Own(c io.Closer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// Close releases all owned collaborators and the conversation lock. The first
// collaborator error is returned, but every closer still runs.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	lock := s.lock
	s.mu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("Failed to release collaborator for session %s: %v", s.Name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if lock != nil {
		if err := lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
