package notify

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const suggestionTimeLayout = "2006-01-02 15:04:05"

// SuggestionLog is the append-only, human-readable record of buy signals.
type SuggestionLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSuggestionLog returns a log writing to path. The file is created on
// the first append.
func NewSuggestionLog(path string) *SuggestionLog {
	return &SuggestionLog{path: path, now: time.Now}
}

// Path returns the file location.
func (l *SuggestionLog) Path() string {
	return l.path
}

// FormatSuggestion renders one entry, terminated by a 50-dash separator.
func FormatSuggestion(at time.Time, b domain.TradeBrief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] SIGNAL DETECTED\n", at.Format(suggestionTimeLayout))
	fmt.Fprintf(&sb, "Action: %s | Confidence: %.2f\n", b.Action, b.Confidence)
	fmt.Fprintf(&sb, "Price: $%.2f | Token: %s\n", b.LimitPrice, b.TokenID)
	fmt.Fprintf(&sb, "Reasoning: %s\n", b.Reasoning)
	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")
	return sb.String()
}

// Append writes one entry for b.
func (l *SuggestionLog) Append(b domain.TradeBrief) error {
	entry := FormatSuggestion(l.now(), b)

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("notify: open suggestion log: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return fmt.Errorf("notify: write suggestion log: %w", err)
	}
	return f.Close()
}

// Tail returns the last n lines without their newlines. A missing file is
// an empty log.
func (l *SuggestionLog) Tail(n int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: open suggestion log: %w", err)
	}
	defer f.Close()

	lines := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if n <= 0 {
			continue
		}
		if len(lines) == n {
			lines = append(lines[:0], lines[1:]...)
		}
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("notify: read suggestion log: %w", err)
	}
	return lines, nil
}
