package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mhttp "github.com/Skyrin/go-migrate/http"
	"github.com/Skyrin/go-migrate/report"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browser mode: list the manifest plans and stream runs as HTML",
		Flags: []cli.Flag{
			manifestFlag(),
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address (MIGRATE_LISTEN, default :8080)",
			},
			&cli.BoolFlag{
				Name:  "track",
				Usage: "record runs and skip plans already applied",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "run even if an identical file was already applied",
			},
		},
		Action: a.serve,
	}
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	m, err := a.loadManifest(cmd)
	if err != nil {
		return exitFor(nil, err)
	}

	listen := a.cfg.Listen
	if cmd.IsSet("listen") {
		listen = cmd.String("listen")
	}

	db, err := a.connect(ctx)
	if err != nil {
		return exitFor(nil, err)
	}
	defer func() { _ = db.Close() }()

	t, err := tracker(ctx, cmd, db)
	if err != nil {
		return exitFor(nil, err)
	}

	srv := &http.Server{
		Addr: listen,
		Handler: mhttp.NewRouter(mhttp.NewServer(mhttp.ServerParam{
			DB:       db,
			Manifest: m,
			Tracker:  t,
			Reporter: report.NewLog("serve"),
			Force:    cmd.Bool("force"),
		})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("listen", listen).Int("plans", len(m.Migrations)).Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return exitFor(nil, err)
	}

	return nil
}

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the migration events published to Kafka",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run",
				Usage: "only show events of this run id",
			},
			&cli.StringFlag{
				Name:  "group",
				Usage: "consumer group, without one only new events are shown",
			},
		},
		Action: a.watch,
	}
}

func (a *app) watch(ctx context.Context, cmd *cli.Command) error {
	if !a.cfg.Kafka.Enabled() {
		return cli.Exit("no kafka brokers configured (MIGRATE_KAFKA_BROKERS)", exitCritical)
	}

	conn, err := a.kafkaConn(ctx)
	if err != nil {
		return exitFor(nil, err)
	}
	defer func() { _ = conn.Close() }()

	r := conn.NewReader(a.cfg.Kafka.Topic, cmd.String("group"))
	defer func() { _ = r.Close() }()

	c := report.NewConsole(a.stdout)
	c.SetColor(a.tty)
	run := cmd.String("run")

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return exitFor(nil, err)
		}

		ev, err := report.ParseEvent(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping event")
			continue
		}
		if run != "" && ev.Run != run {
			continue
		}

		c.Report(ev.Severity, fmt.Sprintf("%s #%d %s", ev.Run, ev.Seq, ev.Message))
	}
}
