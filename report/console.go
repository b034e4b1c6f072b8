package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

var consoleSymbols = map[Severity]string{
	SeverityInfo:    "·",
	SeveritySuccess: "✓",
	SeverityWarning: "!",
	SeverityError:   "✗",
}

// Console writes one ANSI coloured line per message, prefixed with the time
// elapsed since the reporter was created
type Console struct {
	w         io.Writer
	start     time.Time
	colorList map[Severity]*color.Color
}

// NewConsole returns a console reporter writing to w. Colour follows
// color.NoColor (off when stdout is not a terminal) unless SetColor is called.
func NewConsole(w io.Writer) (c *Console) {
	return &Console{
		w:     w,
		start: time.Now(),
		colorList: map[Severity]*color.Color{
			SeverityInfo:    color.New(color.FgCyan),
			SeveritySuccess: color.New(color.FgGreen),
			SeverityWarning: color.New(color.FgYellow),
			SeverityError:   color.New(color.FgRed, color.Bold),
		},
	}
}

// SetColor forces colour on or off
func (c *Console) SetColor(on bool) {
	for _, clr := range c.colorList {
		if on {
			clr.EnableColor()
		} else {
			clr.DisableColor()
		}
	}
}

func (c *Console) Report(sev Severity, msg string) {
	elapsed := time.Since(c.start).Round(time.Millisecond)
	line := fmt.Sprintf("[%9s] %s %s", elapsed, consoleSymbols[sev], msg)

	// Continuation lines are indented under the message
	line = strings.ReplaceAll(line, "\n", "\n              ")

	clr, ok := c.colorList[sev]
	if !ok {
		_, _ = fmt.Fprintln(c.w, line)
		return
	}
	_, _ = clr.Fprintln(c.w, line)
}
