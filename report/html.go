package report

import (
	"fmt"
	"html"
	"io"
	"strings"
)

var htmlColors = map[Severity]string{
	SeverityInfo:    "#1565c0",
	SeveritySuccess: "#2e7d32",
	SeverityWarning: "#ef6c00",
	SeverityError:   "#c62828",
}

// flusher is implemented by http.ResponseWriter
type flusher interface {
	Flush()
}

// errFlusher is implemented by bufio.Writer and gzip.Writer
type errFlusher interface {
	Flush() error
}

// HTML writes one coloured div per message and flushes it so a browser shows
// progress while the run is going
type HTML struct {
	w io.Writer
}

// NewHTML returns an HTML fragment reporter writing to w
func NewHTML(w io.Writer) (h *HTML) {
	return &HTML{w: w}
}

func (h *HTML) Report(sev Severity, msg string) {
	body := strings.ReplaceAll(html.EscapeString(msg), "\n", "<br>")
	_, _ = fmt.Fprintf(h.w, "<div class=\"%s\" style=\"color:%s\">%s</div>\n",
		sev, htmlColors[sev], body)

	switch f := h.w.(type) {
	case flusher:
		f.Flush()
	case errFlusher:
		_ = f.Flush()
	}
}
