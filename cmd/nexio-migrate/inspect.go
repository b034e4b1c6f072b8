package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/Skyrin/go-migrate/statement"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const splitSummaryLen = 100

func (a *app) splitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Print the statements a file splits into, without connecting",
		ArgsUsage: "<file>",
		Action:    a.split,
	}
}

func (a *app) split(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("expected exactly one migration file", exitCritical)
	}
	file := cmd.Args().First()

	d, err := sql.GetDialect(a.cfg.DB.Driver)
	if err != nil {
		return exitFor(nil, err)
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return cli.Exit(err.Error(), exitCritical)
	}

	sList, wList := statement.Split(string(src), &statement.SplitParam{
		HashComments:     d.HashComments(),
		DollarQuotes:     d.DollarQuotes(),
		BackslashEscapes: d.BackslashEscapes(),
	})
	for _, w := range wList {
		log.Warn().Str("file", file).Msg(w)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LINE\tKIND\tSTATEMENT")
	for _, s := range sList {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Line, s.Kind, s.Summary(splitSummaryLen))
	}
	if err := tw.Flush(); err != nil {
		return exitFor(nil, err)
	}

	_, _ = fmt.Fprintf(a.stdout, "%d statements, %d warnings (%s, %s)\n",
		len(sList), len(wList), d.Name(), humanize.Bytes(uint64(len(src))))

	return nil
}

func (a *app) historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List tracked runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "max runs to list",
				Value: 20,
			},
		},
		Action: a.history,
	}
}

func (a *app) history(ctx context.Context, cmd *cli.Command) error {
	db, err := a.connect(ctx)
	if err != nil {
		return exitFor(nil, err)
	}
	defer func() { _ = db.Close() }()

	t, err := migration.NewTracker(ctx, db)
	if err != nil {
		return exitFor(nil, err)
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = 20
	}
	rList, err := t.History(ctx, uint64(limit))
	if err != nil {
		return exitFor(nil, err)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCODE\tSTATUS\tTOTAL\tSUCCESS\tTOLERATED\tSKIPPED\tFATAL\tUPDATED\tERROR")
	for _, r := range rList {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.Code, r.Status, r.Total, r.Success, r.Tolerated, r.Skipped, r.Fatal,
			r.UpdatedOn, r.Err)
	}
	if err := tw.Flush(); err != nil {
		return exitFor(nil, err)
	}

	return nil
}
