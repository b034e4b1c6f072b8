package sqlmodel

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/migration/model"
	"github.com/Skyrin/go-migrate/sql"
)

const (
	RunTableName     = "go_migrate_run"
	RunDefaultSortBy = "run_id"

	ECode000301 = e.Code0003 + "01"
	ECode000302 = e.Code0003 + "02"
	ECode000303 = e.Code0003 + "03"
	ECode000304 = e.Code0003 + "04"
	ECode000305 = e.Code0003 + "05"
	ECode000306 = e.Code0003 + "06"
	ECode000307 = e.Code0003 + "07"
	ECode000308 = e.Code0003 + "08"
	ECode000309 = e.Code0003 + "09"
	ECode00030A = e.Code0003 + "0A"
	ECode00030B = e.Code0003 + "0B"
	ECode00030C = e.Code0003 + "0C"
	ECode00030D = e.Code0003 + "0D"
)

// RunGetParam get params
type RunGetParam struct {
	Limit     uint64
	Offset    uint64
	ID        *int
	Code      *string
	Checksum  *string
	Status    *string
	FlagCount bool
	OrderByID string
}

// RunUpdateParam update params
type RunUpdateParam struct {
	Status    *string
	Total     *int
	Success   *int
	Tolerated *int
	Skipped   *int
	Fatal     *int
	Err       *string
}

// RunInsertParam insert params
type RunInsertParam struct {
	Code     string
	File     string
	Checksum string
	Status   string
}

// RunInstall creates the run table if it does not exist
func RunInstall(ctx context.Context, db *sql.Connection) (err error) {
	if _, err := db.Exec(ctx, db.Dialect.RunTableDDL(RunTableName)); err != nil {
		return e.W(err, ECode000301)
	}

	return nil
}

// RunInsert performs insert
func RunInsert(ctx context.Context, db *sql.Connection, ip *RunInsertParam) (id int, err error) {
	ib := db.Insert(RunTableName).
		Columns("run_code", "run_file", "run_checksum", "run_status").
		Values(ip.Code, ip.File, ip.Checksum, ip.Status)

	id, err = db.ExecInsertReturningID(ctx, ib, "run_id")
	if err != nil {
		return 0, e.W(err, ECode000302,
			fmt.Sprintf("params: %s, %s, %s, %s", ip.Code, ip.File, ip.Checksum, ip.Status))
	}

	return id, nil
}

// RunUpdate performs update
func RunUpdate(ctx context.Context, db *sql.Connection, id int, up *RunUpdateParam) (err error) {
	if up == nil {
		return nil // Nothing to update
	}

	ub := db.Update(RunTableName).
		Set("updated_on", sq.Expr("CURRENT_TIMESTAMP")).
		Where("run_id=?", id)

	if up.Status != nil {
		ub = ub.Set("run_status", *up.Status)
	}
	if up.Total != nil {
		ub = ub.Set("run_total", *up.Total)
	}
	if up.Success != nil {
		ub = ub.Set("run_success", *up.Success)
	}
	if up.Tolerated != nil {
		ub = ub.Set("run_tolerated", *up.Tolerated)
	}
	if up.Skipped != nil {
		ub = ub.Set("run_skipped", *up.Skipped)
	}
	if up.Fatal != nil {
		ub = ub.Set("run_fatal", *up.Fatal)
	}
	if up.Err != nil {
		ub = ub.Set("run_err", *up.Err)
	}

	if err := db.ExecUpdate(ctx, ub); err != nil {
		return e.W(err, ECode000303, fmt.Sprintf("id: %d, status: %v", id, up.Status))
	}

	return nil
}

// RunGet performs select
func RunGet(ctx context.Context, db *sql.Connection,
	p *RunGetParam) (rList []*model.Run, count int, err error) {
	if p.Limit == 0 {
		p.Limit = 1
	}

	fields := `run_id,run_code,run_file,run_checksum,run_status,
	run_total,run_success,run_tolerated,run_skipped,run_fatal,
	COALESCE(run_err, ''),created_on,updated_on`

	sb := db.Select("{fields}").
		From(RunTableName)

	if p.ID != nil {
		sb = sb.Where("run_id=?", *p.ID)
	}
	if p.Code != nil {
		sb = sb.Where("run_code=?", *p.Code)
	}
	if p.Checksum != nil {
		sb = sb.Where("run_checksum=?", *p.Checksum)
	}
	if p.Status != nil {
		sb = sb.Where("run_status=?", *p.Status)
	}

	if p.FlagCount {
		stmt, bindList, err := sb.ToSql()
		if err != nil {
			return nil, 0, e.W(err, ECode000304)
		}

		row := db.QueryRow(ctx, strings.Replace(stmt, "{fields}", "COUNT(*)", 1), bindList...)
		if err := row.Scan(&count); err != nil {
			if isNotInstalled(err) {
				return nil, 0, e.N(ECode000305, e.MsgMigrationNotInstalled)
			}
			return nil, 0, e.W(err, ECode000306,
				fmt.Sprintf("stmt: %s | bindList: %v", stmt, bindList))
		}
	}

	orderByID := "DESC"
	if strings.EqualFold(p.OrderByID, "asc") {
		orderByID = "ASC"
	}

	sb = sb.Limit(p.Limit).
		Offset(p.Offset).
		OrderBy(fmt.Sprintf("%s %s", RunDefaultSortBy, orderByID))

	stmt, bindList, err := sb.ToSql()
	if err != nil {
		return nil, 0, e.W(err, ECode000307)
	}
	stmt = strings.Replace(stmt, "{fields}", fields, 1)

	rows, err := db.Query(ctx, stmt, bindList...)
	if err != nil {
		if isNotInstalled(err) {
			return nil, 0, e.N(ECode000308, e.MsgMigrationNotInstalled)
		}
		return nil, 0, e.W(err, ECode000309, fmt.Sprintf("bindList: %v", bindList))
	}

	err = rows.Each(func(scan func(...interface{}) error) error {
		r := &model.Run{}
		if err := scan(&r.ID, &r.Code, &r.File, &r.Checksum, &r.Status,
			&r.Total, &r.Success, &r.Tolerated, &r.Skipped, &r.Fatal,
			&r.Err, &r.CreatedOn, &r.UpdatedOn); err != nil {
			return e.W(err, ECode00030A,
				fmt.Sprintf("stmt: %s | bindList: %v", stmt, bindList))
		}

		rList = append(rList, r)
		return nil
	})
	if err != nil {
		return nil, 0, e.W(err, ECode00030B)
	}

	return rList, count, nil
}

// RunGetLatest retrieves the latest run of the code with the checksum
func RunGetLatest(ctx context.Context, db *sql.Connection, code,
	checksum string) (r *model.Run, err error) {

	rList, _, err := RunGet(ctx, db, &RunGetParam{
		Limit:     1,
		Code:      &code,
		Checksum:  &checksum,
		OrderByID: "desc",
	})
	if err != nil {
		return nil, e.W(err, ECode00030C)
	}

	if len(rList) != 1 {
		return nil, e.N(ECode00030D, e.MsgMigrationRunDNE)
	}

	return rList[0], nil
}

// isNotInstalled checks for the run table does not exist error
func isNotInstalled(err error) bool {
	return e.IsMySQLError(err, e.MySQLErr1146NoSuchTable) ||
		e.IsPQError(err, e.PQErr42P01) ||
		e.IsSQLiteError(err, "no such table")
}
