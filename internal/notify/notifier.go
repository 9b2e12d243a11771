// Package notify presents transient messages to the user.
package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Notifier shows success and error messages. Implementations must not panic.
type Notifier interface {
	ShowError(message string)
	ShowMessage(message string)
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ShowError implements Notifier
func (n *LogNotifier) ShowError(message string) {
	n.logger.Warn("notification", zap.String("theme", "error"), zap.String("message", message))
}

// ShowMessage implements Notifier
func (n *LogNotifier) ShowMessage(message string) {
	n.logger.Info("notification", zap.String("message", message))
}

// WriterNotifier prints notifications for a terminal user
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier printing to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// ShowError implements Notifier
func (n *WriterNotifier) ShowError(message string) {
	n.write("error: " + message)
}

// ShowMessage implements Notifier
func (n *WriterNotifier) ShowMessage(message string) {
	n.write(message)
}

func (n *WriterNotifier) write(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// write errors are dropped, a notification is fire-and-forget
	_, _ = fmt.Fprintln(n.w, line)
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

// ShowError implements Notifier
func (m Multi) ShowError(message string) {
	for _, n := range m {
		safely(func() { n.ShowError(message) })
	}
}

// ShowMessage implements Notifier
func (m Multi) ShowMessage(message string) {
	for _, n := range m {
		safely(func() { n.ShowMessage(message) })
	}
}

func safely(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Entry is a single recorded notification
type Entry struct {
	Error   bool
	Message string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// ShowError implements Notifier
func (r *Recorder) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Error: true, Message: message})
}

// ShowMessage implements Notifier
func (r *Recorder) ShowMessage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Message: message})
}

// Entries returns a copy of the recorded notifications
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
