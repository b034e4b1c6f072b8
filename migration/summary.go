package migration

import (
	"fmt"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/executor"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/verify"
)

// Summary the outcome of a run
type Summary struct {
	Plan     string
	File     string
	Checksum string

	Total     int // Statements executed or skipped
	Success   int
	Tolerated int
	Skipped   int // Verification queries found in the file
	Fatal     int
	Filtered  int // USE statements dropped before execution
	NotRun    int // Statements left when the run aborted

	Warnings  []string
	FatalList []*executor.Result
	ProbeList []*verify.Result

	Aborted        bool
	AlreadyApplied bool // The tracker had a completed run, nothing ran
	Duration       time.Duration
}

func (s *Summary) add(res *executor.Result) {
	s.Total++
	switch res.Outcome {
	case executor.OutcomeSuccess:
		s.Success++
	case executor.OutcomeTolerated:
		s.Tolerated++
	case executor.OutcomeVerification:
		s.Skipped++
	default:
		s.Fatal++
		s.FatalList = append(s.FatalList, res)
	}
}

// OK whether the run had no fatal statements, was not aborted and every
// probe passed
func (s *Summary) OK() bool {
	return s.Fatal == 0 && !s.Aborted && verify.Passed(s.ProbeList)
}

// FailureReason short description of why the run is not OK
func (s *Summary) FailureReason() string {
	switch {
	case s.Aborted:
		return fmt.Sprintf("%s (%d fatal)", e.MsgMigrationAborted, s.Fatal)
	case s.Fatal > 0:
		return fmt.Sprintf("%d fatal statements", s.Fatal)
	case !verify.Passed(s.ProbeList):
		return "verification failed"
	}
	return ""
}

// WriteSummary reports the totals, every fatal statement and the probe results
func WriteSummary(rep report.Reporter, s *Summary) {
	report.Reportf(rep, report.SeverityInfo,
		"Summary %s: %d statements, %d succeeded, %d tolerated, %d verification queries skipped, %d fatal (%s)",
		s.Plan, s.Total, s.Success, s.Tolerated, s.Skipped, s.Fatal, s.Duration.Round(time.Millisecond))

	for _, res := range s.FatalList {
		report.Reportf(rep, report.SeverityError, "line %d: %s\n%s",
			res.Statement.Line, res.Statement.Summary(2*summaryLen), e.Reason(res.Err))
	}

	for _, pr := range s.ProbeList {
		if pr.Passed {
			report.Reportf(rep, report.SeveritySuccess, "verified: %s", pr.Probe)
			continue
		}
		report.Reportf(rep, report.SeverityError, "verification failed: %s: %s", pr.Probe, pr.Reason)
	}

	if s.OK() {
		report.Reportf(rep, report.SeveritySuccess, "%s completed successfully", s.Plan)
		return
	}
	report.Reportf(rep, report.SeverityError, "%s failed: %s", s.Plan, s.FailureReason())
}
