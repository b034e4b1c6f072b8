// Package report renders migration progress. A Reporter is picked once at
// startup (console, HTML, log or Kafka, or several at once through Multi) and
// the runner only ever talks to the interface.
package report

import (
	"fmt"
	"sync"
)

// Severity of a progress message
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Reporter receives progress messages. Implementations write every message
// through immediately, nothing is buffered until the end of a run.
type Reporter interface {
	Report(sev Severity, msg string)
}

// Reportf formats the message and sends it to the reporter
func Reportf(r Reporter, sev Severity, format string, args ...interface{}) {
	r.Report(sev, fmt.Sprintf(format, args...))
}

type multi struct {
	rList []Reporter
}

// Multi fans each message out to all reporters, in order
func Multi(rList ...Reporter) Reporter {
	m := &multi{}
	for _, r := range rList {
		if r != nil {
			m.rList = append(m.rList, r)
		}
	}
	return m
}

func (m *multi) Report(sev Severity, msg string) {
	for _, r := range m.rList {
		r.Report(sev, msg)
	}
}

// Discard drops all messages
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Severity, string) {}

// Memory keeps all messages, used by tests and to render a run after the fact
type Memory struct {
	mu      sync.Mutex
	Entries []Entry
}

// Entry a single reported message
type Entry struct {
	Severity Severity
	Message  string
}

func (m *Memory) Report(sev Severity, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, Entry{Severity: sev, Message: msg})
}

// Count returns the number of messages with the severity
func (m *Memory) Count(sev Severity) (count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, en := range m.Entries {
		if en.Severity == sev {
			count++
		}
	}
	return count
}
