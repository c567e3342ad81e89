// Package discussion keeps the running transcript of agent turns and the
// whiteboard derived from the latest one.
package discussion

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Turn is one appended contribution.
type Turn struct {
	Speaker   string
	Text      string
	UserInput string
	At        time.Time
}

// Log is append-only until Reset. It is safe for concurrent readers while
// a single driver appends.
type Log struct {
	mu          sync.RWMutex
	history     strings.Builder
	turns       []Turn
	whiteboard  string
	lastSpeaker string
	lastComment string
	now         func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Restore returns a log seeded with a previously saved transcript. Turns
// before the restore point are not reconstructed.
func Restore(history string) *Log {
	l := NewLog()
	l.history.WriteString(history)
	return l
}

// FormatTurn renders a turn block as it appears in the history.
func FormatTurn(speaker, text string) string {
	return fmt.Sprintf("%s:\n\n%s\n\n===\n\n", speaker, text)
}

// Append records text from speaker. A non-empty userInput is written
// ahead of the turn block. The whiteboard is recomputed from text alone.
func (l *Log) Append(speaker, text, userInput string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if userInput != "" {
		fmt.Fprintf(&l.history, "\n\n\n\n%s\n\n", userInput)
	}
	block := FormatTurn(speaker, text)
	l.history.WriteString(block)

	l.turns = append(l.turns, Turn{Speaker: speaker, Text: text, UserInput: userInput, At: l.now()})
	l.whiteboard = ExtractCode(text)
	l.lastSpeaker = speaker
	l.lastComment = block
}

func (l *Log) History() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.history.String()
}

// Tail returns at most the last maxRunes characters of the history.
func (l *Log) Tail(maxRunes int) string {
	h := l.History()
	if utf8.RuneCountInString(h) <= maxRunes {
		return h
	}
	cut := len(h)
	for n := 0; n < maxRunes; n++ {
		_, size := utf8.DecodeLastRuneInString(h[:cut])
		cut -= size
	}
	return h[cut:]
}

func (l *Log) Whiteboard() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.whiteboard
}

// LastComment returns the speaker and formatted block of the latest turn.
func (l *Log) LastComment() (speaker, block string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSpeaker, l.lastComment
}

// Turns returns a copy of the turns appended since creation or Reset.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Turn(nil), l.turns...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history.Reset()
	l.turns = nil
	l.whiteboard = ""
	l.lastSpeaker = ""
	l.lastComment = ""
}
