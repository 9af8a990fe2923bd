package pipeline

import (
	"sync"
	"time"
)

// Token is a request-scoped cancellation signal. Exactly one writer (a
// timeout timer or an explicit abort) sets it; any number of readers observe
// it. Setting is idempotent and one-way: once cancelled, a Token never
// clears. The zero value is not usable; use NewToken.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken creates an unset Token
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. Safe to call more than once and from multiple
// goroutines.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the token has been set
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is set
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// CancelAfter arms a timer that sets the token after d. The returned stop
// function releases the timer; call it when the request completes first.
func (t *Token) CancelAfter(d time.Duration) (stop func()) {
	timer := time.AfterFunc(d, t.Cancel)
	return func() { timer.Stop() }
}
