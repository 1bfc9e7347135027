package assistant

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Level classifies a notice shown to the user.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Sink receives everything a session wants the user to see.
type Sink interface {
	Notify(level Level, msg string)
	Section(title, body string)
}

// TextSink writes notices as ✓ / ⚠ / ✗ prefixed lines and sections under an
// underlined heading.
type TextSink struct {
	W io.Writer
}

// NewTextSink returns a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink { return &TextSink{W: w} }

func (s *TextSink) Notify(level Level, msg string) {
	prefix := "ℹ"
	switch level {
	case Success:
		prefix = "✓"
	case Warning:
		prefix = "⚠"
	case Error:
		prefix = "✗"
	}
	fmt.Fprintf(s.W, "%s %s\n", prefix, msg)
}

func (s *TextSink) Section(title, body string) {
	fmt.Fprintf(s.W, "\n%s\n%s\n%s\n", title, strings.Repeat("-", len([]rune(title))), strings.TrimRight(body, "\n"))
}

// Notice is one recorded Notify call.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Section is one recorded Section call.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Collector records notices and sections in order. It is safe for use by
// multiple goroutines.
type Collector struct {
	mu       sync.Mutex
	Notices  []Notice
	Sections []Section
}

func (c *Collector) Notify(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notices = append(c.Notices, Notice{Level: level.String(), Message: msg})
}

func (c *Collector) Section(title, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sections = append(c.Sections, Section{Title: title, Body: body})
}

// Find returns the body of the first section with the given title.
func (c *Collector) Find(title string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.Sections {
		if s.Title == title {
			return s.Body, true
		}
	}
	return "", false
}
