package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{ err error }

func (f failingSource) Next(context.Context) (string, error) { return "", f.err }

func TestRaceFirstSourceWinsAndLoserIsCancelled(t *testing.T) {
	loser := newBlockingSource()
	cmd, err := Race(context.Background(), loser, staticSource("  continue\n"))
	require.NoError(t, err)
	assert.Equal(t, CommandContinue, cmd)

	select {
	case <-loser.cancelled:
	default:
		t.Fatal("losing source still running after Race returned")
	}
}

func TestRaceIgnoresFailedSource(t *testing.T) {
	ch := make(chan string, 1)
	q := NewQueueSource(ch)
	go func() {
		time.Sleep(10 * time.Millisecond)
		ch <- "skip"
	}()
	cmd, err := Race(context.Background(), failingSource{err: io.EOF}, q)
	require.NoError(t, err)
	assert.Equal(t, "SKIP", cmd)
}

func TestRaceFailsWhenAllSourcesFail(t *testing.T) {
	boom := errors.New("boom")
	_, err := Race(context.Background(), failingSource{err: io.EOF}, failingSource{err: boom})
	require.Error(t, err)

	_, err = Race(context.Background())
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestRaceHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Race(ctx, newBlockingSource())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineSourceReadsLineEnteredDuringWait(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr)

	got := make(chan string, 1)
	go func() {
		cmd, _ := src.Next(context.Background())
		got <- cmd
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := pw.Write([]byte("continue\n"))
	require.NoError(t, err)

	select {
	case cmd := <-got:
		assert.Equal(t, "continue", cmd)
	case <-time.After(time.Second):
		t.Fatal("line not delivered")
	}
}

func TestLineSourceDiscardsStaleLines(t *testing.T) {
	src := NewLineSource(strings.NewReader("CONTINUE\n"))
	time.Sleep(20 * time.Millisecond)

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	// EOF is sticky.
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineSourceDropsEveryLineTypedBetweenWaits(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr)

	// Both lines arrive while no wait is armed.
	_, err := pw.Write([]byte("skip\ncontinue\n"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cmd, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, cmd)

	got := make(chan string, 1)
	go func() {
		cmd, _ := src.Next(context.Background())
		got <- cmd
	}()
	time.Sleep(20 * time.Millisecond)
	_, err = pw.Write([]byte("skip\n"))
	require.NoError(t, err)

	select {
	case cmd := <-got:
		assert.Equal(t, "skip", cmd)
	case <-time.After(time.Second):
		t.Fatal("line not delivered")
	}
}

func TestLineSourceDeliversOnlyFirstLineOfBurst(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr)

	got := make(chan string, 1)
	go func() {
		cmd, _ := src.Next(context.Background())
		got <- cmd
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := pw.Write([]byte("skip\ncontinue\n"))
	require.NoError(t, err)
	assert.Equal(t, "skip", <-got)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineSourceCancelledWaitLeavesReaderRunning(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	got := make(chan string, 1)
	go func() {
		cmd, _ := src.Next(context.Background())
		got <- cmd
	}()
	time.Sleep(20 * time.Millisecond)
	_, err = pw.Write([]byte("skip\n"))
	require.NoError(t, err)
	assert.Equal(t, "skip", <-got)
}
