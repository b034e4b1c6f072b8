package main

import (
	"context"
	"path/filepath"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/verify"
	"github.com/urfave/cli/v3"
)

// runFlags flags shared by the commands executing statements
func runFlags(trackByDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-fk-checks",
			Usage: "disable foreign key checks while the statements run",
		},
		&cli.IntFlag{
			Name:  "abort-after",
			Usage: "abort after this many consecutive fatal statements, 0 never aborts",
		},
		&cli.BoolFlag{
			Name:  "interactive",
			Usage: "ask before aborting instead of aborting",
		},
		&cli.BoolFlag{
			Name:  "track",
			Usage: "record runs and skip files already applied",
			Value: trackByDefault,
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "run even if an identical file was already applied",
		},
	}
}

func manifestFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "manifest",
		Usage: "plan manifest (MIGRATE_MANIFEST, default migrations.yaml)",
	}
}

// applyOverrides applies the command line and environment policy to a plan
func (a *app) applyOverrides(cmd *cli.Command, p *migration.Plan) {
	if cmd.IsSet("no-fk-checks") {
		p.DisableForeignKeys = cmd.Bool("no-fk-checks")
	}

	switch {
	case cmd.IsSet("abort-after"):
		n := int(cmd.Int("abort-after"))
		p.AbortAfter = &n
	case a.cfg.AbortAfter != nil:
		n := *a.cfg.AbortAfter
		p.AbortAfter = &n
	}
}

func (a *app) loadManifest(cmd *cli.Command) (m *migration.Manifest, err error) {
	path := a.cfg.Manifest
	if cmd.IsSet("manifest") {
		path = cmd.String("manifest")
	}

	return migration.LoadManifestFile(path)
}

// runner connects and builds a runner for the command, the returned func
// releases everything
func (a *app) runner(ctx context.Context, cmd *cli.Command, code string) (r *migration.Runner,
	cleanup func(), err error) {

	db, err := a.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	t, err := tracker(ctx, cmd, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	rep, repCleanup, err := a.reporter(ctx, code)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	r = migration.NewRunner(db, &migration.RunnerParam{
		Reporter: rep,
		Prompt:   a.prompt(cmd),
		Tracker:  t,
		Force:    cmd.Bool("force"),
	})

	return r, func() {
		repCleanup()
		_ = db.Close()
	}, nil
}

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a single migration file",
		ArgsUsage: "<file>",
		Flags: append(runFlags(false),
			&cli.StringFlag{
				Name:  "name",
				Usage: "plan name used in reports and run history, defaults to the file name",
			},
			&cli.StringSliceFlag{
				Name:  "tolerate",
				Usage: "extra error pattern (case insensitive regular expression) to tolerate",
			},
			&cli.StringSliceFlag{
				Name:  "verify-column",
				Usage: "table.column that must exist after the run",
			},
			&cli.StringSliceFlag{
				Name:  "verify-table",
				Usage: "table that must exist after the run",
			},
		),
		Action: a.runFile,
	}
}

func (a *app) runFile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("expected exactly one migration file", exitCritical)
	}
	file := cmd.Args().First()

	p := &migration.Plan{
		Name:      cmd.String("name"),
		File:      file,
		Tolerable: cmd.StringSlice("tolerate"),
	}
	if p.Name == "" {
		p.Name = filepath.Base(file)
	}
	for _, s := range cmd.StringSlice("verify-column") {
		pr, err := verify.ParseColumnProbe(s)
		if err != nil {
			return cli.Exit(e.Reason(err), exitCritical)
		}
		p.Probes = append(p.Probes, pr)
	}
	for _, s := range cmd.StringSlice("verify-table") {
		p.Probes = append(p.Probes, verify.TableProbe(s))
	}
	a.applyOverrides(cmd, p)

	r, cleanup, err := a.runner(ctx, cmd, p.Name)
	if err != nil {
		return exitFor(nil, err)
	}
	defer cleanup()

	s, err := r.Run(ctx, p)
	if s == nil {
		return exitFor(nil, err)
	}
	return exitFor([]*migration.Summary{s}, err)
}

func (a *app) planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Run plans from the manifest, in the order given",
		ArgsUsage: "<name>...",
		Flags: append(runFlags(false),
			manifestFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "run every plan in manifest order, stopping at the first failure",
			},
		),
		Action: a.runPlans,
	}
}

func (a *app) runPlans(ctx context.Context, cmd *cli.Command) error {
	m, err := a.loadManifest(cmd)
	if err != nil {
		return exitFor(nil, err)
	}

	var pList []*migration.Plan
	if cmd.Bool("all") {
		pList = m.Migrations
	} else {
		if cmd.Args().Len() == 0 {
			return cli.Exit("expected plan names or --all", exitCritical)
		}
		for _, name := range cmd.Args().Slice() {
			p, err := m.Get(name)
			if err != nil {
				return exitFor(nil, err)
			}
			pList = append(pList, p)
		}
	}

	r, cleanup, err := a.runner(ctx, cmd, "plan")
	if err != nil {
		return exitFor(nil, err)
	}
	defer cleanup()

	var sList []*migration.Summary
	for _, p := range pList {
		a.applyOverrides(cmd, p)

		s, err := r.Run(ctx, p)
		if s != nil {
			sList = append(sList, s)
		}
		if err != nil {
			return exitFor(sList, err)
		}
		if !s.AlreadyApplied && !s.OK() {
			break
		}
	}

	return exitFor(sList, nil)
}

func (a *app) dirCommand() *cli.Command {
	return &cli.Command{
		Name:      "dir",
		Usage:     "Run a directory of versioned migration files (1_init.sql, 2_users.sql, ...)",
		ArgsUsage: "<path>",
		Flags: append(runFlags(true),
			&cli.StringFlag{
				Name:  "code",
				Usage: "list code used in run history, defaults to the directory name",
			},
		),
		Action: a.runDir,
	}
}

func (a *app) runDir(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("expected exactly one directory", exitCritical)
	}
	dir := cmd.Args().First()

	code := cmd.String("code")
	if code == "" {
		code = filepath.Base(filepath.Clean(dir))
	}

	tmpl := &migration.Plan{}
	a.applyOverrides(cmd, tmpl)

	r, cleanup, err := a.runner(ctx, cmd, code)
	if err != nil {
		return exitFor(nil, err)
	}
	defer cleanup()

	sList, err := r.RunList(ctx, migration.NewDirList(code, dir), tmpl)
	return exitFor(sList, err)
}

func (a *app) verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Run only the verification probes of manifest plans",
		ArgsUsage: "<name>...",
		Flags:     []cli.Flag{manifestFlag()},
		Action:    a.verifyPlans,
	}
}

func (a *app) verifyPlans(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return cli.Exit("expected plan names", exitCritical)
	}

	m, err := a.loadManifest(cmd)
	if err != nil {
		return exitFor(nil, err)
	}

	db, err := a.connect(ctx)
	if err != nil {
		return exitFor(nil, err)
	}
	defer func() { _ = db.Close() }()

	rep, cleanup, err := a.reporter(ctx, "verify")
	if err != nil {
		return exitFor(nil, err)
	}
	defer cleanup()

	passed := true
	for _, name := range cmd.Args().Slice() {
		p, err := m.Get(name)
		if err != nil {
			return exitFor(nil, err)
		}
		if len(p.Probes) == 0 {
			report.Reportf(rep, report.SeverityWarning, "%s has no probes", p.Name)
			continue
		}

		for _, res := range verify.Verify(ctx, db, p.Probes) {
			if res.Passed {
				report.Reportf(rep, report.SeveritySuccess, "%s verified: %s", p.Name, res.Probe)
				continue
			}
			passed = false
			report.Reportf(rep, report.SeverityError, "%s verification failed: %s: %s",
				p.Name, res.Probe, res.Reason)
		}
	}

	if !passed {
		return cli.Exit("", exitFailed)
	}
	return nil
}
