package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
)

// options are the parsed command line.
type options struct {
	command  string
	dir      string
	embedded bool
	name     string
	version  string
}

// target is what a database command runs against.
type target struct {
	db      *sql.DB
	dialect string
}

type command struct {
	usage   string
	needsDB bool
	run     func(ctx context.Context, opts options, t target, out io.Writer) error
}

var commands = map[string]command{
	"up": {usage: "apply pending migrations", needsDB: true, run: func(ctx context.Context, o options, t target, _ io.Writer) error {
		if o.embedded {
			return migrate.Up(ctx, t.db, t.dialect)
		}
		return migrate.Run(ctx, t.db, t.dialect, o.dir, "up")
	}},
	"down": {usage: "roll back the latest migration", needsDB: true, run: func(ctx context.Context, o options, t target, _ io.Writer) error {
		return migrate.Run(ctx, t.db, t.dialect, o.dir, "down")
	}},
	"status": {usage: "print applied and pending migrations", needsDB: true, run: func(ctx context.Context, o options, t target, _ io.Writer) error {
		return migrate.Run(ctx, t.db, t.dialect, o.dir, "status")
	}},
	"version": {usage: "migrate up or down to -version", needsDB: true, run: func(ctx context.Context, o options, t target, _ io.Writer) error {
		return migrate.MigrateToVersion(ctx, t.db, t.dialect, o.dir, o.version)
	}},
	"create": {usage: "write a new empty migration named -name", run: func(_ context.Context, o options, _ target, out io.Writer) error {
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created migration:", path)
		return nil
	}},
	"validate": {usage: "check filenames and goose annotations", run: func(_ context.Context, o options, _ target, out io.Writer) error {
		var err error
		if o.embedded {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(o.dir)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "migration validation passed")
		return nil
	}},
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	fs.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary (up, validate)")
	fs.StringVar(&opts.name, "name", "", "migration name for create")
	fs.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for version")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: migrate [flags] <command>")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stderr, "  %-9s %s\n", name, commands[name].usage)
		}
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.command = "up"
	if fs.NArg() > 0 {
		opts.command = strings.ToLower(fs.Arg(0))
	}
	cmd, ok := commands[opts.command]
	switch {
	case !ok:
		return opts, fmt.Errorf("unknown command %q", opts.command)
	case opts.command == "create" && strings.TrimSpace(opts.name) == "":
		return opts, errors.New("create requires -name")
	case opts.command == "version" && strings.TrimSpace(opts.version) == "":
		return opts, errors.New("version requires -version")
	case opts.embedded && cmd.needsDB && opts.command != "up":
		return opts, fmt.Errorf("-embedded is not supported for %s", opts.command)
	}
	return opts, nil
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cmd := commands[opts.command]

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      opts.command,
		"dir":      opts.dir,
		"embedded": opts.embedded,
	})

	var t target
	if cmd.needsDB {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		defer dbClient.Close()

		t.db, err = dbClient.DB().DB()
		requireResource(ctx, logg, "sql database", err)
		t.dialect = migrate.DialectFor(dbClient.Dialect())
		ctx = logg.WithField(ctx, "dialect", t.dialect)
	}

	logg.Info(ctx, "migrate ready")
	if err := cmd.run(ctx, opts, t, os.Stdout); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
