// Command migrate runs the embedded schema migrations against Postgres.
//
//	migrate [--dsn DSN] up|down|status|version|reset
//	migrate --dir db/migrations create NAME
package main

import (
	"database/sql"
	"fmt"
	"os"

	"lendbook/config"
	"lendbook/db/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var dsn, dir string
	var verbose bool
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flags.StringVar(&dsn, "dsn", "", "postgres DSN (default: DATABASE_URL or DB_* from the environment)")
	flags.StringVar(&dir, "dir", "db/migrations", "directory new migrations are written to by create")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every statement")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	goose.SetLogger(zap.NewStdLog(log))
	goose.SetVerbose(verbose)

	command := "up"
	if rest := flags.Args(); len(rest) > 0 {
		command = rest[0]
	}

	// create writes SQL files to disk and needs no database
	if command == "create" {
		if flags.NArg() < 2 {
			return fmt.Errorf("usage: migrate create <migration_name>")
		}
		goose.SetSequential(true)
		return goose.Create(nil, dir, flags.Arg(1), "sql")
	}

	if dsn == "" {
		config.LoadEnv()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dsn = cfg.DatabaseURL
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	log.Info("running migrations", zap.String("command", command))
	return apply(db, command, log)
}

func apply(db *sql.DB, command string, log *zap.Logger) error {
	switch command {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "reset":
		return goose.Reset(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		v, err := goose.GetDBVersion(db)
		if err != nil {
			return err
		}
		log.Info("current migration version", zap.Int64("version", v))
		return nil
	}
	return fmt.Errorf("unknown command %q (want up, down, reset, status, version or create)", command)
}
