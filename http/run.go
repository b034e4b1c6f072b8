package http

import (
	"fmt"
	"html"
	"html/template"
	"net/http"
	"sync"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/executor"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const (
	ECode070101 = e.Code0701 + "01"
	ECode070102 = e.Code0701 + "02"
	ECode070103 = e.Code0701 + "03"

	historyLimit = 50
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Migrations</title></head>
<body style="font-family:monospace">
<h1>Migrations</h1>
<ul>
{{- range .Plans}}
<li><a href="/run?plan={{.Name}}">{{.Name}}</a> ({{.File}})</li>
{{- end}}
</ul>
{{- if .Runs}}
<h2>History</h2>
<table>
<tr><th>id</th><th>code</th><th>status</th><th>total</th><th>fatal</th><th>updated</th></tr>
{{- range .Runs}}
<tr><td>{{.ID}}</td><td>{{.Code}}</td><td>{{.Status}}</td><td>{{.Total}}</td><td>{{.Fatal}}</td><td>{{.UpdatedOn}}</td></tr>
{{- end}}
</table>
{{- end}}
</body></html>
`))

// ServerParam browser mode options
type ServerParam struct {
	DB       *sql.Connection
	Manifest *migration.Manifest
	Tracker  *migration.Tracker // Optional run history
	Reporter report.Reporter    // Optional, receives every run's messages too
	Force    bool
}

// Server runs manifest plans from the browser, streaming progress as HTML.
// The connection is a single session, so only one run may be in flight.
type Server struct {
	p       ServerParam
	running sync.Mutex
}

// NewServer initializes a new browser mode server
func NewServer(p ServerParam) (s *Server) {
	return &Server{p: p}
}

// NewRouter returns the routes supported in browser mode
func NewRouter(s *Server) (r chi.Router) {
	r = chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(GZIP)

	r.Get("/", s.index)
	r.Get("/run", s.run)

	return r
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Plans interface{}
		Runs  interface{}
	}{
		Plans: s.p.Manifest.Migrations,
	}

	if s.p.Tracker != nil && s.running.TryLock() {
		runs, err := s.p.Tracker.History(r.Context(), historyLimit)
		s.running.Unlock()
		if err != nil {
			log.Warn().Err(err).Msgf("[%s]failed to load run history", ECode070101)
		} else {
			data.Runs = runs
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Warn().Err(err).Msgf("[%s]failed to render index", ECode070102)
	}
}

// keepGoing nobody can answer a prompt in the browser, so runs continue past
// the abort threshold and report every fatal statement at the end
func keepGoing(int, *executor.Result) bool {
	return true
}

// run streams the plan's progress. A client that goes away cancels the run
// between statements.
func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("plan")
	p, err := s.p.Manifest.Get(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown plan %q", name), http.StatusNotFound)
		return
	}

	if !s.running.TryLock() {
		http.Error(w, "a migration is already running", http.StatusConflict)
		return
	}
	defer s.running.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%[1]s</title></head>
<body style="font-family:monospace">
<h1>%[1]s</h1>
`, html.EscapeString(p.Name))

	runner := migration.NewRunner(s.p.DB, &migration.RunnerParam{
		Reporter: report.Multi(report.NewHTML(w), s.p.Reporter),
		Prompt:   keepGoing,
		Tracker:  s.p.Tracker,
		Force:    s.p.Force,
	})

	sum, err := runner.Run(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Msgf("[%s]run %s failed", ECode070103, p.Name)
	}

	status := "failed"
	if err == nil && sum != nil && (sum.OK() || sum.AlreadyApplied) {
		status = "ok"
	}
	_, _ = fmt.Fprintf(w, `<p id="status" data-status="%s"><a href="/">back</a></p>
</body></html>
`, status)
}
