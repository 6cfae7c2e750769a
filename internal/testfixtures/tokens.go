package testfixtures

import (
	"fmt"
	"sync"
)

// Tokens hands out predictable session and quote tokens ("tok-0001", "tok-0002", ...)
// in place of random UUIDs.
type Tokens struct {
	mu     sync.Mutex
	issued []string
}

// NewTokens returns an empty token sequence.
func NewTokens() *Tokens {
	return &Tokens{}
}

// Next issues the next token.
func (t *Tokens) Next() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	token := fmt.Sprintf("tok-%04d", len(t.issued)+1)
	t.issued = append(t.issued, token)
	return token
}

// Func returns Next for injection into services.
func (t *Tokens) Func() func() string {
	return t.Next
}

// Last returns the most recently issued token, or "" when none was issued.
func (t *Tokens) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.issued) == 0 {
		return ""
	}
	return t.issued[len(t.issued)-1]
}
