package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/listingprice-indexer/internal/bootstrap"
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

// exit codes: 0 all ok, 1 setup or fatal update error, 2 bad usage, 3 some items failed
const (
	exitFatal       = 1
	exitUsage       = 2
	exitItemsFailed = 3
)

type options struct {
	ids        []string
	all        bool
	clearEmpty bool
}

type updater interface {
	Update(ctx context.Context, productIDs []string) (*listingprice.Report, error)
}

type reindexer interface {
	Reindex(ctx context.Context) (*listingprice.Report, error)
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "reindex", Output: os.Stderr})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	if opts.clearEmpty {
		cfg.Indexer.ClearEmpty = true
	}

	logg = logger.New(logger.Options{
		ServiceName: "reindex",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	indexing, err := bootstrap.NewIndexing(ctx, bootstrap.IndexingParams{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Cache:  redisClient,
	})
	requireResource(ctx, logg, "listing price indexer", err)
	defer indexing.Close()

	job, err := cron.NewReindexJob(cron.ReindexJobParams{
		Logger:   logg,
		Products: indexing.Repository,
		Updater:  indexing.Indexer,
		PageSize: cfg.Cron.ReindexPageSize,
	})
	requireResource(ctx, logg, "reindex job", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	code := execute(runCtx, opts, indexing.Indexer, job, os.Stdout)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ids := fs.String("ids", "", "comma separated product or variant ids to update")
	all := fs.Bool("all", false, "reindex every canonical product")
	clearEmpty := fs.Bool("clear-empty", false, "write [] for products left without quotes")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{all: *all, clearEmpty: *clearEmpty}
	for _, raw := range strings.Split(*ids, ",") {
		if id := strings.TrimSpace(raw); id != "" {
			opts.ids = append(opts.ids, id)
		}
	}
	switch {
	case opts.all && len(opts.ids) > 0:
		return options{}, errors.New("use either -ids or -all, not both")
	case !opts.all && len(opts.ids) == 0:
		return options{}, errors.New("one of -ids or -all is required")
	}
	return opts, nil
}

// execute runs the requested update, prints the report and returns the process exit code.
func execute(ctx context.Context, opts options, svc updater, job reindexer, out io.Writer) int {
	var (
		report *listingprice.Report
		err    error
	)
	if opts.all {
		report, err = job.Reindex(ctx)
	} else {
		report, err = svc.Update(listingprice.WithTrigger(ctx, listingprice.TriggerCLI), opts.ids)
	}
	if report != nil {
		if encErr := writeReport(out, report); encErr != nil {
			err = errors.Join(err, encErr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reindex failed: %v\n", err)
		return exitFatal
	}
	if len(report.Failed()) > 0 {
		return exitItemsFailed
	}
	return 0
}

type reportOutput struct {
	*listingprice.Report
	DurationMS int64             `json:"durationMs"`
	Counts     map[string]int    `json:"counts"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func writeReport(out io.Writer, report *listingprice.Report) error {
	payload := reportOutput{
		Report:     report,
		DurationMS: report.Duration.Milliseconds(),
		Counts:     map[string]int{},
	}
	for status, n := range report.Counts() {
		payload.Counts[string(status)] = n
	}
	for _, res := range report.Failed() {
		if msg := res.ErrorMessage(); msg != "" {
			if payload.Errors == nil {
				payload.Errors = map[string]string{}
			}
			payload.Errors[res.ProductID] = msg
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(exitFatal)
}
