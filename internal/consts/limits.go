package consts

import "time"

// Buffer sizes for streaming reads
const (
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize256KB is 256 kilobytes
	BufferSize256KB = 256 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
	// DefaultChannelBufferSize is the default capacity for internal line and
	// event channels
	DefaultChannelBufferSize = 256
)

// LLM default configurations
const (
	// DefaultMaxTokens is the default maximum tokens for LLM responses
	DefaultMaxTokens = 4096
)

// Timeouts for various operations
const (
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout60Seconds is a 60 second timeout (1 minute)
	Timeout60Seconds = 60 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)

// Retry and conversation limits
const (
	// DefaultMaxAttempts is the default number of attempts for one provider call,
	// including the first. Tuned so that brief upstream connection resets are
	// absorbed without materially slowing the caller.
	DefaultMaxAttempts = 3
	// DefaultRetryBaseDelay is the base delay for exponential backoff between attempts
	DefaultRetryBaseDelay = 500 * time.Millisecond
	// DefaultMaxToolTurns bounds the number of model turns that may carry tool
	// calls within a single conversation
	DefaultMaxToolTurns = 25
)

// Collaborator timeouts
const (
	// DefaultTerminalCommandTimeout bounds a single terminal command
	DefaultTerminalCommandTimeout = 60 * time.Second
	// DefaultBrowserActionTimeout bounds a single browser action
	DefaultBrowserActionTimeout = 30 * time.Second
	// DefaultCodeSearchTimeout bounds a single code index query
	DefaultCodeSearchTimeout = 10 * time.Second
)
