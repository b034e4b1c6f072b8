// Package migration runs SQL migration files: each file is split into
// statements, executed one at a time on a single session, verified against
// the live schema and summarized.
//
//	db, _ := sql.NewConn(ctx, nil)
//	r := migration.NewRunner(db, &migration.RunnerParam{
//		Reporter: report.NewConsole(os.Stdout),
//	})
//	s, err := r.Run(ctx, &migration.Plan{
//		Name:   "tenant-column",
//		File:   "sql/add_original_tenant_id.sql",
//		Probes: []*verify.Probe{verify.ColumnProbe("users", "original_tenant_id")},
//	})
package migration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/executor"
	"github.com/Skyrin/go-migrate/migration/model"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/Skyrin/go-migrate/statement"
	"github.com/Skyrin/go-migrate/verify"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const (
	// summaryLen max length of a statement in progress messages
	summaryLen = 120

	ECode000101 = e.Code0001 + "01"
	ECode000102 = e.Code0001 + "02"
	ECode000103 = e.Code0001 + "03"
	ECode000104 = e.Code0001 + "04"
	ECode000105 = e.Code0001 + "05"
	ECode000106 = e.Code0001 + "06"
	ECode000107 = e.Code0001 + "07"
	ECode000108 = e.Code0001 + "08"
	ECode000109 = e.Code0001 + "09"
	ECode00010A = e.Code0001 + "0A"
	ECode00010B = e.Code0001 + "0B"
)

// PromptFunc is asked whether to continue once the abort threshold of
// consecutive fatal statements is reached. Returning false aborts the run.
type PromptFunc func(fatalCount int, last *executor.Result) (cont bool)

// RunnerParam runner options
type RunnerParam struct {
	Reporter report.Reporter // Defaults to report.Discard
	Prompt   PromptFunc      // Without a prompt, reaching the threshold aborts
	Tracker  *Tracker        // Optional run history
	Force    bool            // Run even if the tracker has a completed run
}

// Runner runs migration plans on a single connection
type Runner struct {
	db *sql.Connection
	p  RunnerParam
}

// NewRunner initializes a new runner
func NewRunner(db *sql.Connection, p *RunnerParam) (r *Runner) {
	r = &Runner{db: db}
	if p != nil {
		r.p = *p
	}
	if r.p.Reporter == nil {
		r.p.Reporter = report.Discard
	}

	return r
}

// Run reads the plan's file and runs it. A missing file or a lost connection
// is returned as an error, statement failures never are: they are reported
// and counted in the summary.
func (r *Runner) Run(ctx context.Context, p *Plan) (s *Summary, err error) {
	if err := p.Validate(); err != nil {
		return nil, e.W(err, ECode000101)
	}

	src, err := os.ReadFile(p.File)
	if err != nil {
		r.p.Reporter.Report(report.SeverityError,
			fmt.Sprintf("Cannot read migration file %s: %s", p.File, e.Reason(err)))
		return nil, e.WWM(err, ECode000102, e.MsgMigrationFileNotFound,
			fmt.Sprintf("file: %s", p.File))
	}

	s, err = r.RunSource(ctx, p, src)
	if err != nil {
		return s, e.W(err, ECode000103)
	}

	return s, nil
}

// RunSource runs the plan against already loaded file contents
func (r *Runner) RunSource(ctx context.Context, p *Plan, src []byte) (s *Summary, err error) {
	rep := r.p.Reporter
	start := time.Now()

	s = &Summary{
		Plan:     p.Name,
		File:     p.File,
		Checksum: Checksum(src),
	}

	report.Reportf(rep, report.SeverityInfo, "Running %s (%s, %s)",
		p.Name, p.File, humanize.Bytes(uint64(len(src))))

	var run *model.Run
	if r.p.Tracker != nil {
		var done bool
		run, done, err = r.p.Tracker.Begin(ctx, p.Name, p.File, s.Checksum, r.p.Force)
		if err != nil {
			return nil, e.W(err, ECode000104)
		}
		if done {
			s.AlreadyApplied = true
			report.Reportf(rep, report.SeverityInfo, "%s already applied on %s, skipping",
				p.Name, run.UpdatedOn)
			return s, nil
		}
	}

	err = r.run(ctx, p, src, s)
	s.Duration = time.Since(start)

	if run != nil {
		if ferr := r.p.Tracker.Finish(context.WithoutCancel(ctx), run, s, err); ferr != nil {
			log.Error().Err(ferr).Msgf("[%s]failed to record run %d", ECode000105, run.ID)
		}
	}

	if err != nil {
		report.Reportf(rep, report.SeverityError, "%s stopped: %s", p.Name, e.Reason(err))
		return s, e.W(err, ECode000106)
	}

	WriteSummary(rep, s)

	return s, nil
}

// run split, execute, verify
func (r *Runner) run(ctx context.Context, p *Plan, src []byte, s *Summary) (err error) {
	rep := r.p.Reporter
	d := r.db.Dialect

	sList, wList := statement.Split(string(src), &statement.SplitParam{
		HashComments:     d.HashComments(),
		DollarQuotes:     d.DollarQuotes(),
		BackslashEscapes: d.BackslashEscapes(),
	})
	for _, w := range wList {
		rep.Report(report.SeverityWarning, w)
	}
	s.Warnings = wList

	// The connection already selects the database
	filtered := sList[:0]
	for _, st := range sList {
		if st.IsUse() {
			report.Reportf(rep, report.SeverityInfo, "line %d: ignoring %s", st.Line, st.Summary(summaryLen))
			s.Filtered++
			continue
		}
		filtered = append(filtered, st)
	}
	sList = filtered

	ex, err := executor.New(r.db, &executor.Param{Tolerable: p.Tolerable})
	if err != nil {
		return e.W(err, ECode000107)
	}

	loop := func() error {
		return r.execute(ctx, ex, p, sList, s)
	}

	if p.DisableForeignKeys {
		rep.Report(report.SeverityInfo, "Foreign key checks disabled")
		err = r.db.WithoutForeignKeys(ctx, loop)
		rep.Report(report.SeverityInfo, "Foreign key checks re-enabled")
	} else {
		// Files may toggle the checks themselves and stop before undoing it
		err = r.db.KeepForeignKeys(ctx, loop)
	}
	if err != nil {
		return e.W(err, ECode000108)
	}

	if len(p.Probes) > 0 {
		rep.Report(report.SeverityInfo, "Verifying")
		s.ProbeList = verify.Verify(ctx, r.db, p.Probes)
	}

	return nil
}

// execute runs the statements in order, applying the abort policy
func (r *Runner) execute(ctx context.Context, ex *executor.Executor, p *Plan,
	sList []*statement.Statement, s *Summary) (err error) {

	rep := r.p.Reporter
	abortAfter := p.GetAbortAfter()
	consecutive := 0

	for i, st := range sList {
		if err := ctx.Err(); err != nil {
			return e.W(err, ECode000109, fmt.Sprintf("line: %d", st.Line))
		}

		res := ex.Execute(ctx, st)
		s.add(res)
		reportResult(rep, i+1, len(sList), res)

		if res.Outcome != executor.OutcomeFatal {
			consecutive = 0
			continue
		}

		consecutive++
		if abortAfter == 0 || consecutive < abortAfter {
			continue
		}

		if r.p.Prompt != nil && r.p.Prompt(consecutive, res) {
			report.Reportf(rep, report.SeverityWarning,
				"Continuing after %d consecutive fatal errors", consecutive)
			consecutive = 0
			continue
		}

		s.Aborted = true
		s.NotRun = len(sList) - i - 1
		report.Reportf(rep, report.SeverityError,
			"Aborting after %d consecutive fatal errors, %d statements not run", consecutive, s.NotRun)
		return nil
	}

	return nil
}

func reportResult(rep report.Reporter, i, n int, res *executor.Result) {
	st := res.Statement
	prefix := fmt.Sprintf("[%d/%d] line %d", i, n, st.Line)

	switch res.Outcome {
	case executor.OutcomeSuccess:
		msg := fmt.Sprintf("%s: %s", prefix, st.Summary(summaryLen))
		if res.RowsAffected > 0 {
			msg += fmt.Sprintf(" (%s rows)", humanize.Comma(res.RowsAffected))
		}
		rep.Report(report.SeveritySuccess, msg)
	case executor.OutcomeTolerated:
		report.Reportf(rep, report.SeverityWarning, "%s tolerated: %s\n%s",
			prefix, st.Summary(summaryLen), e.Reason(res.Err))
	case executor.OutcomeVerification:
		report.Reportf(rep, report.SeverityInfo, "%s skipped, verification query: %s",
			prefix, st.Summary(summaryLen))
	default:
		report.Reportf(rep, report.SeverityError, "%s failed: %s\n%s",
			prefix, st.Summary(summaryLen), e.Reason(res.Err))
	}
}

// RunList runs the list's files in version order, stopping at the first file
// that does not complete. Each file runs as a copy of tmpl named after the
// list code and file name.
func (r *Runner) RunList(ctx context.Context, l *List, tmpl *Plan) (sList []*Summary, err error) {
	fList, err := l.GetFiles()
	if err != nil {
		return nil, e.W(err, ECode00010A)
	}

	if tmpl == nil {
		tmpl = &Plan{}
	}

	for _, f := range fList {
		p := *tmpl
		p.Name = fmt.Sprintf("%s/%s", l.Code, f.Name)
		p.File = f.Name

		s, err := r.RunSource(ctx, &p, f.SQL)
		if s != nil {
			sList = append(sList, s)
		}
		if err != nil {
			return sList, e.W(err, ECode00010B, fmt.Sprintf("file: %s", f.Name))
		}
		if !s.AlreadyApplied && !s.OK() {
			return sList, nil
		}
	}

	return sList, nil
}
