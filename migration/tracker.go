package migration

import (
	"context"
	"fmt"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/migration/model"
	"github.com/Skyrin/go-migrate/migration/sqlmodel"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/cespare/xxhash/v2"
)

const (
	ECode000501 = e.Code0005 + "01"
	ECode000502 = e.Code0005 + "02"
	ECode000503 = e.Code0005 + "03"
	ECode000504 = e.Code0005 + "04"
	ECode000505 = e.Code0005 + "05"
)

// Tracker records runs in the run history table, so a file that already
// completed is not run again
type Tracker struct {
	db *sql.Connection
}

// NewTracker initializes a tracker, creating the history table if needed
func NewTracker(ctx context.Context, db *sql.Connection) (t *Tracker, err error) {
	if err := sqlmodel.RunInstall(ctx, db); err != nil {
		return nil, e.W(err, ECode000501)
	}

	return &Tracker{db: db}, nil
}

// Checksum identifies the contents of a migration file
func Checksum(src []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(src))
}

// Begin records the start of a run. If the same code and checksum already
// completed, that run is returned with done set and nothing is recorded,
// unless force is set. The lookup and the insert share one transaction, so
// two runners on the same history table cannot both start the same file.
func (t *Tracker) Begin(ctx context.Context, code, file, checksum string,
	force bool) (run *model.Run, done bool, err error) {

	err = t.db.WithTxn(ctx, func() error {
		if !force {
			last, err := sqlmodel.RunGetLatest(ctx, t.db, code, checksum)
			if err != nil && !e.Contains(err, e.MsgMigrationRunDNE) {
				return e.W(err, ECode000502)
			}
			if err == nil && last.IsComplete() {
				run, done = last, true
				return nil
			}
		}

		run = &model.Run{
			Code:     code,
			File:     file,
			Checksum: checksum,
			Status:   model.RunStatusRunning,
		}

		run.ID, err = sqlmodel.RunInsert(ctx, t.db, &sqlmodel.RunInsertParam{
			Code:     code,
			File:     file,
			Checksum: checksum,
			Status:   run.Status,
		})
		if err != nil {
			return e.W(err, ECode000503)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return run, done, nil
}

// Finish records the outcome of the run. runErr is the critical error that
// stopped the run, if any.
func (t *Tracker) Finish(ctx context.Context, run *model.Run, s *Summary,
	runErr error) (err error) {

	status := model.RunStatusComplete
	errMsg := ""
	switch {
	case runErr != nil:
		status, errMsg = model.RunStatusFailed, e.Reason(runErr)
	case !s.OK():
		status, errMsg = model.RunStatusFailed, s.FailureReason()
	}

	run.Status = status
	run.Err = errMsg
	run.Total, run.Success, run.Tolerated = s.Total, s.Success, s.Tolerated
	run.Skipped, run.Fatal = s.Skipped, s.Fatal

	if err := sqlmodel.RunUpdate(ctx, t.db, run.ID, &sqlmodel.RunUpdateParam{
		Status:    &run.Status,
		Total:     &run.Total,
		Success:   &run.Success,
		Tolerated: &run.Tolerated,
		Skipped:   &run.Skipped,
		Fatal:     &run.Fatal,
		Err:       &run.Err,
	}); err != nil {
		return e.W(err, ECode000504)
	}

	return nil
}

// History returns the latest tracked runs, newest first
func (t *Tracker) History(ctx context.Context, limit uint64) (rList []*model.Run, err error) {
	rList, _, err = sqlmodel.RunGet(ctx, t.db, &sqlmodel.RunGetParam{
		Limit:     limit,
		OrderByID: "desc",
	})
	if err != nil {
		return nil, e.W(err, ECode000505)
	}

	return rList, nil
}
