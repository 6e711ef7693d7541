package testfixtures

import (
	"fmt"
	"sync"
)

// RequestIDs hands out predictable request identifiers so HTTP tests can
// assert on the X-Request-ID header and log lines.
type RequestIDs struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewRequestIDs returns a source of identifiers of the form prefix-N.
// When prefix is empty, "req" is used.
func NewRequestIDs(prefix string) *RequestIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &RequestIDs{prefix: prefix}
}

// Next returns the next identifier and records it.
func (r *RequestIDs) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("%s-%d", r.prefix, len(r.issued)+1)
	r.issued = append(r.issued, id)
	return id
}

// Issued returns a copy of every identifier handed out so far.
func (r *RequestIDs) Issued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.issued...)
}
