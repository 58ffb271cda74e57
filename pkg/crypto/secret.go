package crypto

import "sync"

// SecretBuffer owns a sensitive byte payload and zeroes its backing storage
// deterministically when destroyed. It replaces ad-hoc []byte handling for
// the master key and serialized plaintext so every exit path has one wipe
// point. Protection is bounded by what the OS guarantees for process memory
// (no mlock is attempted here); that boundary is outside this type's contract.
type SecretBuffer struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

// NewSecretBuffer takes ownership of data. The caller must not retain or
// reuse the slice after handing it over.
func NewSecretBuffer(data []byte) *SecretBuffer {
	return &SecretBuffer{data: data}
}

// Bytes returns the underlying payload, or nil after Destroy.
// The returned slice aliases the protected storage; callers must not hold it
// past the buffer's lifetime.
func (s *SecretBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	return s.data
}

// Len reports the payload length, 0 after Destroy.
func (s *SecretBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return 0
	}
	return len(s.data)
}

// Destroy zeroes the backing array and drops the reference. Safe to call more
// than once; every call after the first is a no-op.
func (s *SecretBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	SecureWipe(s.data)
	s.data = nil
	s.destroyed = true
}

// Destroyed reports whether the buffer has been wiped.
func (s *SecretBuffer) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
