// Command nexio-migrate runs SQL migration files against MySQL, Postgres or
// SQLite, reporting every statement and verifying the resulting schema.
//
// Exit codes: 0 when every run completed, 1 when a run had fatal statements,
// aborted or failed verification, 2 on errors that stopped the tool itself.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	migrate "github.com/Skyrin/go-migrate"
	"github.com/Skyrin/go-migrate/config"
	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const (
	exitFailed   = 1
	exitCritical = 2
)

// app state shared by the commands
type app struct {
	cfg *config.Config

	stdout io.Writer
	stdin  io.Reader
	// tty whether stdin/stdout are terminals: enables prompts and colour
	tty bool
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stdin:  os.Stdin,
		tty:    isTerminal(os.Stdin) && isTerminal(os.Stdout),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.command().Run(ctx, os.Args); err != nil {
		log.Error().Msg(e.Reason(err))
		stop()
		os.Exit(exitCritical)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) command() *cli.Command {
	sha, build := migrate.Version()

	return &cli.Command{
		Name:    "nexio-migrate",
		Usage:   "Run SQL migration files statement by statement",
		Version: strings.TrimSpace(fmt.Sprintf("%s %s", sha, build)),
		Writer:  a.stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file to load, defaults to .env when present",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "zerolog level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "progress output: console, html or log (MIGRATE_OUTPUT)",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "database driver: mysql, postgres or sqlite (DB_DRIVER)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "database name, the file path for sqlite (DBNAME)",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.runCommand(),
			a.planCommand(),
			a.dirCommand(),
			a.verifyCommand(),
			a.splitCommand(),
			a.historyCommand(),
			a.serveCommand(),
			a.watchCommand(),
		},
	}
}

// before configures logging and loads the configuration, flags overriding
// the environment
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	lvl, err := zerolog.ParseLevel(cmd.String("log-level"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(os.Stderr),
	})

	a.cfg, err = config.Load(cmd.String("env-file"))
	if err != nil {
		return ctx, cli.Exit(e.Reason(err), exitCritical)
	}

	if cmd.IsSet("output") {
		a.cfg.Output = cmd.String("output")
	}
	if cmd.IsSet("driver") {
		a.cfg.DB.Driver = cmd.String("driver")
	}
	if cmd.IsSet("db") {
		a.cfg.DB.DBName = cmd.String("db")
	}

	return ctx, nil
}

// exitFor maps the outcome of one or more runs to the exit code
func exitFor(sList []*migration.Summary, err error) error {
	if err != nil {
		return cli.Exit(e.Reason(err), exitCritical)
	}

	for _, s := range sList {
		if !s.AlreadyApplied && !s.OK() {
			return cli.Exit("", exitFailed)
		}
	}

	return nil
}
