package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// Operator commands. CommandContinue is the only one that executes a trade.
const (
	CommandContinue = "CONTINUE"
	CommandSkip     = "SKIP"
)

// ErrNoConfirmation is returned by Race when every source failed without
// producing a command.
var ErrNoConfirmation = errors.New("engine: no confirmation source produced a command")

// Source yields one confirmation command. Next must return promptly once ctx
// is cancelled.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// NormalizeCommand trims and upper-cases an operator command.
func NormalizeCommand(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Race waits on all sources at once and returns the first command produced.
// A source that fails (for example stdin at EOF) drops out of the race; the
// race only fails once every source has failed. Losers are cancelled and have
// returned before Race does.
func Race(ctx context.Context, sources ...Source) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoConfirmation
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		cmd string
		err error
	}
	results := make(chan result, len(sources))
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			cmd, err := src.Next(ctx)
			results <- result{cmd: cmd, err: err}
		}(src)
	}

	var lastErr error
	for range sources {
		r := <-results
		if r.err == nil {
			cancel()
			wg.Wait()
			return NormalizeCommand(r.cmd), nil
		}
		lastErr = r.err
	}
	wg.Wait()
	return "", lastErr
}

// QueueSource reads commands from a channel fed by the HTTP control surface.
type QueueSource struct {
	ch <-chan string
}

// NewQueueSource wraps ch.
func NewQueueSource(ch <-chan string) *QueueSource {
	return &QueueSource{ch: ch}
}

// Next blocks until a command is queued or ctx ends.
func (q *QueueSource) Next(ctx context.Context) (string, error) {
	select {
	case cmd := <-q.ch:
		return cmd, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LineSource reads operator commands from a terminal. One goroutine owns the
// reader for the process lifetime so a cancelled wait never leaves a blocked
// read behind. A line is only handed to a wait that is armed when the line
// arrives; lines typed between waits are dropped, and so is every line after
// the first within one wait.
type LineSource struct {
	r    io.Reader
	done chan struct{}

	mu     sync.Mutex
	waiter chan string
	err    error
}

// NewLineSource creates a LineSource over r (usually os.Stdin) and starts
// its reader goroutine.
func NewLineSource(r io.Reader) *LineSource {
	l := &LineSource{r: r, done: make(chan struct{})}
	go l.read()
	return l
}

func (l *LineSource) read() {
	sc := bufio.NewScanner(l.r)
	for sc.Scan() {
		l.deliver(sc.Text())
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	close(l.done)
}

func (l *LineSource) deliver(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waiter == nil {
		return // no wait armed
	}
	l.waiter <- text // capacity 1, only ever written once
	l.waiter = nil
}

// Next arms a wait and returns the first line entered after the call started.
func (l *LineSource) Next(ctx context.Context) (string, error) {
	w := make(chan string, 1)
	l.mu.Lock()
	if l.err != nil {
		err := l.err
		l.mu.Unlock()
		return "", err
	}
	l.waiter = w
	l.mu.Unlock()
	defer l.disarm(w)

	select {
	case text := <-w:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-l.done:
		select {
		case text := <-w:
			return text, nil
		default:
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		return "", l.err
	}
}

func (l *LineSource) disarm(w chan string) {
	l.mu.Lock()
	if l.waiter == w {
		l.waiter = nil
	}
	l.mu.Unlock()
}
