package client

import (
	"context"
	"sync"
)

// inbox is the hand-off between the read loop and the caller: a FIFO of
// complete lines, a FIFO of transport errors, and a blocking take. The
// read loop is the only producer, the caller the only consumer.
//
// Errors outrank lines: a pending transport error is always surfaced
// before any line still queued behind it. wake is closed and replaced on
// every change, which is what suspended consumers block on instead of
// polling.
type inbox struct {
	mu     sync.Mutex
	lines  [][]byte
	errs   []error
	closed bool
	wake   chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{})}
}

// wait returns a channel that closes on the next change. Grab it before
// rechecking state, otherwise a change can slip between the check and the
// wait.
func (b *inbox) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.wake
}

// wakeAll must be called with mu held.
func (b *inbox) wakeAll() {
	close(b.wake)
	b.wake = make(chan struct{})
}

func (b *inbox) putLine(line []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.lines = append(b.lines, line)
	b.wakeAll()
}

func (b *inbox) putErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.errs = append(b.errs, err)
	b.wakeAll()
}

// takeErr pops the oldest pending transport error, nil when there is
// none.
func (b *inbox) takeErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.errs) == 0 {
		return nil
	}

	err := b.errs[0]
	b.errs = b.errs[1:]

	return err
}

// peekErr returns the oldest pending error without consuming it.
func (b *inbox) peekErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.errs) == 0 {
		return nil
	}

	return b.errs[0]
}

// take blocks until something is available and pops it, preferring errors
// over lines. Once the inbox is closed every take fails with ErrClosed.
func (b *inbox) take(ctx context.Context) ([]byte, error) {
	for {
		b.mu.Lock()

		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		if len(b.errs) > 0 {
			err := b.errs[0]
			b.errs = b.errs[1:]
			b.mu.Unlock()

			return nil, err
		}

		if len(b.lines) > 0 {
			line := b.lines[0]
			b.lines = b.lines[1:]
			b.mu.Unlock()

			return line, nil
		}

		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close drops everything queued and wakes every waiter. Waiters, and all
// puts from then on, observe the closed state.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.lines = nil
	b.errs = nil
	b.wakeAll()
}
