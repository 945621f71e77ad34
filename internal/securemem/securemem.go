// Package securemem keeps provider credentials in memory-protected buffers
// so API keys resolved from the environment cannot be read via memory dump
// or swap.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// String stores a sensitive value in an encrypted, locked buffer.
type String struct {
	buf     *memguard.LockedBuffer
	invalid bool
}

// NewString creates a secure string from the given plaintext.
func NewString(plaintext string) *String {
	return &String{
		buf: memguard.NewBufferFromBytes([]byte(plaintext)),
	}
}

// String returns the plaintext value.
// WARNING: the returned copy lives in regular memory.
func (s *String) String() string {
	if s == nil || s.invalid || s.buf == nil {
		return ""
	}
	return string(s.buf.Bytes())
}

// IsEmpty returns true if the string is empty or already destroyed.
func (s *String) IsEmpty() bool {
	if s == nil || s.invalid || s.buf == nil {
		return true
	}
	return len(s.buf.Bytes()) == 0
}

// Len returns the length of the stored value.
func (s *String) Len() int {
	if s == nil || s.invalid || s.buf == nil {
		return 0
	}
	return len(s.buf.Bytes())
}

// Equal compares against a plaintext string in constant time.
func (s *String) Equal(other string) bool {
	if s == nil || s.invalid || s.buf == nil {
		return other == ""
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// Clone creates a copy in a fresh locked buffer.
func (s *String) Clone() *String {
	if s == nil || s.invalid || s.buf == nil {
		return NewString("")
	}
	return NewString(string(s.buf.Bytes()))
}

// Destroy securely wipes the value. The string must not be used afterwards.
func (s *String) Destroy() {
	if s == nil || s.invalid {
		return
	}
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
	s.invalid = true
}

// SecureWipe wipes a byte slice from memory.
func SecureWipe(data []byte) {
	memguard.WipeBytes(data)
}
