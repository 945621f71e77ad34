// Package terminal owns a persistent shell for the terminal-command tool.
// Working directory and environment survive between commands; each command's
// output is delimited by a sentinel carrying the exit status.
package terminal

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/logger"
)

// commandSentinel returns a fresh delimiter for one command. The nonce keeps
// command output from terminating its own capture or forging an exit status.
func commandSentinel() string {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Sprintf("__DONE_%d__", time.Now().UnixNano())
	}
	return "__DONE_" + hex.EncodeToString(nonce[:]) + "__"
}

// Session is a long-lived shell. One session belongs to one conversation; it
// must be closed when the conversation ends.
type Session struct {
	mu       sync.Mutex
	shell    string
	workDir  string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan string
	readDone chan struct{}
	closed   bool
}

// NewSession starts a shell in workDir. An empty workDir uses the process's
// current directory.
func NewSession(workDir string) (*Session, error) {
	s := &Session{
		shell:   defaultShell(),
		workDir: workDir,
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

func (s *Session) start() error {
	cmd := exec.Command(s.shell)
	if s.workDir != "" {
		cmd.Dir = s.workDir
	}
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open shell stdin: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to open shell output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("failed to start shell %s: %w", s.shell, err)
	}
	pw.Close() // the child holds its own copy

	s.cmd = cmd
	s.stdin = stdin
	s.lines = make(chan string, consts.DefaultChannelBufferSize)
	s.readDone = make(chan struct{})

	go func(lines chan<- string, done chan<- struct{}) {
		defer close(done)
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, consts.BufferSize64KB), consts.BufferSize1MB)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		pr.Close()
	}(s.lines, s.readDone)

	return nil
}

// Run executes one command and returns its combined output. A nonzero exit
// status is an error that still carries the output collected so far.
// Cancellation or a deadline kills the shell; the next Run starts a fresh
// one, losing shell state but never blocking the caller.
func (s *Session) Run(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("terminal session is closed")
	}
	if s.cmd == nil {
		if err := s.start(); err != nil {
			return "", err
		}
	}

	// The braces keep multi-line commands as one unit; the printf runs
	// regardless of the command's own exit path.
	sentinel := commandSentinel()
	wrapped := fmt.Sprintf("{ %s\n}\nprintf '%s %%d\\n' \"$?\"\n", command, sentinel)
	if _, err := io.WriteString(s.stdin, wrapped); err != nil {
		s.teardownLocked()
		return "", fmt.Errorf("failed to send command to shell: %w", err)
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			s.teardownLocked()
			return sb.String(), fmt.Errorf("command timed out: %w", ctx.Err())
		case line, ok := <-s.lines:
			if !ok {
				s.teardownLocked()
				return sb.String(), fmt.Errorf("shell exited unexpectedly")
			}
			if rest, found := strings.CutPrefix(line, sentinel); found {
				exitCode, err := strconv.Atoi(strings.TrimSpace(rest))
				if err != nil {
					exitCode = -1
				}
				if exitCode != 0 {
					return sb.String(), fmt.Errorf("exit status %d", exitCode)
				}
				return sb.String(), nil
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
}

// teardownLocked kills the shell so a poisoned session cannot swallow the
// next command. Caller holds the mutex.
func (s *Session) teardownLocked() {
	if s.cmd == nil {
		return
	}
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	go func(cmd *exec.Cmd, done <-chan struct{}) {
		<-done
		if err := cmd.Wait(); err != nil {
			logger.Debug("terminal: shell wait: %v", err)
		}
	}(s.cmd, s.readDone)
	s.cmd = nil
	s.stdin = nil
}

// Close terminates the shell. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.teardownLocked()
	return nil
}
