package report

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log sends progress messages to the global zerolog logger
type Log struct {
	Code     string    // Prefix identifying the run, e.g. the plan name
	ShowTime bool      // Whether to show elapsed time
	Time     time.Time // Baseline for the elapsed time
}

// NewLog initialize a new log reporter. Defaults to show elapsed time
func NewLog(code string) (l *Log) {
	return &Log{
		Code:     code,
		Time:     time.Now(),
		ShowTime: true,
	}
}

// ResetTime resets the time to now
func (l *Log) ResetTime() {
	l.Time = time.Now()
}

func (l *Log) Report(sev Severity, msg string) {
	var ze *zerolog.Event
	switch sev {
	case SeverityWarning:
		ze = log.Warn()
	case SeverityError:
		ze = log.Error()
	default:
		ze = log.Info()
	}

	l.Log(ze.Str("severity", string(sev)), msg)
}

// Log writes to the logger
func (l *Log) Log(ze *zerolog.Event, msg string) {
	sb := strings.Builder{}

	_ = sb.WriteByte('[')
	_, _ = sb.WriteString(l.Code)
	_ = sb.WriteByte(']')

	if l.ShowTime {
		_ = sb.WriteByte('[')
		_, _ = sb.WriteString(time.Since(l.Time).Round(time.Millisecond).String())
		_ = sb.WriteByte(']')
	}

	_, _ = sb.WriteString(msg)
	ze.Msg(sb.String())
}
