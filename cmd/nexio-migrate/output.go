package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/Skyrin/go-migrate/config"
	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/executor"
	"github.com/Skyrin/go-migrate/kafka"
	"github.com/Skyrin/go-migrate/kafka/msk"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// connect opens the configured database
func (a *app) connect(ctx context.Context) (db *sql.Connection, err error) {
	db, err = sql.NewConn(ctx, a.cfg.DB)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("driver", db.Dialect.Name()).Str("endpoint", a.cfg.DB.Endpoint()).
		Str("db", a.cfg.DB.DBName).Msg("connected")

	return db, nil
}

// reporter builds the progress sink selected by the output setting, plus the
// Kafka event sink when brokers are configured. cleanup must be called once
// the runs are over.
func (a *app) reporter(ctx context.Context, code string) (rep report.Reporter, cleanup func(), err error) {
	cleanup = func() {}

	switch a.cfg.Output {
	case config.OutputConsole:
		c := report.NewConsole(a.stdout)
		c.SetColor(a.tty)
		rep = c
	case config.OutputHTML:
		rep = report.NewHTML(a.stdout)
	case config.OutputLog:
		rep = report.NewLog(code)
	default:
		return nil, cleanup, e.N(config.ECode090103, "unknown output "+a.cfg.Output)
	}

	if !a.cfg.Kafka.Enabled() {
		return rep, cleanup, nil
	}

	conn, err := a.kafkaConn(ctx)
	if err != nil {
		// Events are an audit trail, the migration itself does not depend on them
		log.Warn().Err(err).Msg("kafka unavailable, events will not be published")
		return rep, cleanup, nil
	}
	if err := conn.EnsureTopic(a.cfg.Kafka.Topic, kafka.DefaultPartitions); err != nil {
		log.Warn().Err(err).Str("topic", a.cfg.Kafka.Topic).Msg("failed to ensure events topic")
	}

	run := xid.New().String()
	w := conn.NewWriter(a.cfg.Kafka.Topic)
	k := report.NewKafka(w, run)
	k.Context = ctx
	log.Info().Str("run", run).Str("topic", a.cfg.Kafka.Topic).Msg("publishing events")

	cleanup = func() {
		if err := w.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to flush events")
		}
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close kafka connection")
		}
	}

	return report.Multi(rep, k), cleanup, nil
}

// kafkaConn connects to the configured brokers, over MSK IAM when a region is set
func (a *app) kafkaConn(ctx context.Context) (conn *kafka.Connection, err error) {
	kc := a.cfg.Kafka
	cc := kafka.ConnectionConfig{
		AddressList: kc.Brokers,
		Context:     ctx,
		NoTLS:       kc.NoTLS,
	}

	if kc.IAMRegion != "" {
		cc.SASLMechanism, err = msk.NewSASLMechanism(ctx, msk.SASLMechanismConfig{
			Region:  kc.IAMRegion,
			EC2Role: kc.EC2Role,
		})
		if err != nil {
			return nil, err
		}
	}

	conn, err = kafka.NewConn(cc)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// prompt asks on stdin whether to continue once the abort threshold is
// reached. Only used on a terminal with --interactive.
func (a *app) prompt(cmd *cli.Command) migration.PromptFunc {
	if !cmd.Bool("interactive") {
		return nil
	}
	if !a.tty {
		log.Warn().Msg("--interactive ignored, stdin is not a terminal")
		return nil
	}

	in := bufio.NewReader(a.stdin)
	return func(fatalCount int, last *executor.Result) bool {
		_, _ = fmt.Fprintf(a.stdout, "%d consecutive statements failed, the last at line %d. Continue? [y/N] ",
			fatalCount, last.Statement.Line)
		answer, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// tracker installs the run history table when --track is set
func tracker(ctx context.Context, cmd *cli.Command, db *sql.Connection) (t *migration.Tracker, err error) {
	if !cmd.Bool("track") {
		return nil, nil
	}

	return migration.NewTracker(ctx, db)
}
