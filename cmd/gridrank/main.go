// Command gridrank administers a gridrank data store: it wipes it, backs it
// up to and restores it from blob storage, and loads a demo season.
//
// Storage and blob drivers, the metrics recorder and the tracer come from
// GRIDRANK_* environment variables (see internal/platform/config). -trace is
// shorthand for GRIDRANK_TRACE=json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gridrank/internal/backup"
	"gridrank/internal/blob"
	"gridrank/internal/core"
	"gridrank/internal/platform/config"
	"gridrank/internal/platform/logging"
	"gridrank/internal/platform/telemetry"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

const usage = `usage: gridrank [-env file] [-metrics-out file] [-trace] <command> [flags]

commands:
  wipe                 delete all data
  backup -key KEY      write a backup journal to blob storage
  restore -key KEY     replay a backup journal into an empty store
  import-demo          load a small demo season
`

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// env bundles what every command needs.
type env struct {
	cfg     config.Config
	ds      domain.DataSource
	service *core.Service
	metrics core.MetricsRecorder
	logger  logging.Logger
	stdout  io.Writer
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gridrank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	envFile := fs.String("env", ".env", "dotenv file loaded before the environment")
	metricsOut := fs.String("metrics-out", "", "write metrics to this file on exit")
	trace := fs.Bool("trace", false, "write JSON trace spans to stderr unless GRIDRANK_TRACE is set")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger, err := logging.New(stderr, cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	metrics, writeMetrics, err := newMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "metrics: %v\n", err)
		return 1
	}

	ctx := context.Background()
	traceMode := cfg.Telemetry.Trace
	if *trace && traceMode == "" {
		traceMode = "json"
	}
	tracer, shutdown, err := newTracer(ctx, traceMode, cfg.Telemetry, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "tracing: %v\n", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	ds, err := core.OpenDataSource(ctx, cfg)
	if err != nil {
		logger.Error("open data source failed", "driver", cfg.StorageDriver, "error", err)
		return 1
	}
	defer func() { _ = ds.Close() }()

	published := eventbus.NewCounter(nil)
	opts := []core.Option{core.WithLogger(logger), core.WithMetrics(metrics)}
	if tracer != nil {
		opts = append(opts, core.WithTracer(tracer))
	}
	e := &env{
		cfg:     cfg,
		ds:      ds,
		service: core.NewService(ds, published, opts...),
		metrics: metrics,
		logger:  logger,
		stdout:  stdout,
	}

	code := e.dispatch(ctx, fs.Arg(0), fs.Args()[1:], stderr)
	if counts := published.Counts(); len(counts) > 0 {
		logger.Info("events published", countFields(counts)...)
	}
	if *metricsOut != "" {
		if err := writeMetrics(*metricsOut); err != nil {
			logger.Error("write metrics failed", "path", *metricsOut, "error", err)
			return 1
		}
	}
	return code
}

// newMetrics builds the configured recorder and the function that dumps it
// to a file: the prometheus text format or the expvar JSON map.
func newMetrics(kind string) (core.MetricsRecorder, func(path string) error, error) {
	switch kind {
	case "", "prometheus":
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, nil, err
		}
		return rec, func(path string) error { return prometheus.WriteToTextfile(path, reg) }, nil
	case "expvar":
		rec := core.NewExpvarMetricsRecorder("")
		return rec, func(path string) error { return os.WriteFile(path, []byte(rec.String()+"\n"), 0o644) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics recorder %q", kind)
	}
}

// newTracer returns a nil tracer when tracing is off.
func newTracer(ctx context.Context, mode string, cfg config.TelemetryConfig, stderr io.Writer) (core.Tracer, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	switch mode {
	case "":
		return nil, noShutdown, nil
	case "json":
		return core.NewJSONTracer(stderr), noShutdown, nil
	case "otel":
		tp, shutdown, err := telemetry.Setup(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return core.NewOTelTracer(tp), shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unknown tracer %q", mode)
	}
}

func countFields(counts map[string]int) []any {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	fields := make([]any, 0, 2*len(types))
	for _, t := range types {
		fields = append(fields, t, counts[t])
	}
	return fields
}

func (e *env) dispatch(ctx context.Context, name string, args []string, stderr io.Writer) int {
	commands := map[string]func(context.Context, []string, io.Writer) error{
		"wipe":        e.wipe,
		"backup":      e.backup,
		"restore":     e.restore,
		"import-demo": e.importDemo,
	}
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", name, usage)
		return 2
	}
	started := time.Now()
	err := cmd(ctx, args, stderr)
	e.metrics.Observe(ctx, "cli."+name, err == nil, time.Since(started))
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
		return 2
	}
	if err != nil {
		e.logger.Error("command failed", "command", name, "error", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func keyFlag(name string, args []string, stderr io.Writer) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	key := fs.String("key", "", "blob key of the backup journal")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *key == "" {
		_, _ = fmt.Fprintf(stderr, "%s: -key is required\n", name)
		return "", errUsage
	}
	return *key, nil
}

func (e *env) wipe(ctx context.Context, _ []string, _ io.Writer) error {
	if err := e.ds.Drop(ctx); err != nil {
		return err
	}
	e.logger.Info("data source wiped", "driver", e.cfg.StorageDriver)
	_, err := fmt.Fprintln(e.stdout, "wiped")
	return err
}

func (e *env) backup(ctx context.Context, args []string, stderr io.Writer) error {
	key, err := keyFlag("backup", args, stderr)
	if err != nil {
		return err
	}
	store, err := blob.Open(ctx, e.cfg.Blob)
	if err != nil {
		return err
	}
	info, err := backup.Export(ctx, e.ds.Repositories(eventbus.New()), store, key)
	if err != nil {
		return err
	}
	e.logger.Info("backup written", "key", info.Key, "driver", store.Driver(), "bytes", info.Size)
	_, err = fmt.Fprintf(e.stdout, "backup %s: %s events, %d bytes\n", info.Key, info.Metadata["events"], info.Size)
	return err
}

func (e *env) restore(ctx context.Context, args []string, stderr io.Writer) error {
	key, err := keyFlag("restore", args, stderr)
	if err != nil {
		return err
	}
	store, err := blob.Open(ctx, e.cfg.Blob)
	if err != nil {
		return err
	}
	n, err := backup.Restore(ctx, e.ds, store, key)
	if err != nil {
		return err
	}
	e.logger.Info("backup restored", "key", key, "events", n)
	_, err = fmt.Fprintf(e.stdout, "restored %s: %d events\n", key, n)
	return err
}

// demoGames is week 1 and 2 of a four-team season.
func demoGames() []core.GameImport {
	kickoff := time.Date(2020, 9, 5, 19, 30, 0, 0, time.UTC)
	team := func(name string) core.TeamImport {
		return core.TeamImport{Name: name, Subdivision: domain.SubdivisionFBS}
	}
	final := func(week int, home, away string, hs, as int) core.GameImport {
		return core.GameImport{
			Year: 2020, Week: week, Date: kickoff.AddDate(0, 0, 7*(week-1)),
			Section: domain.SectionRegular,
			Home:    team(home), Away: team(away),
			Status: domain.StatusCompleted, Score: &domain.Score{Home: hs, Away: as},
		}
	}
	return []core.GameImport{
		final(1, "A", "B", 28, 14),
		final(1, "C", "D", 10, 17),
		final(2, "B", "C", 21, 21),
		final(2, "D", "A", 3, 35),
	}
}

func (e *env) importDemo(ctx context.Context, _ []string, _ io.Writer) error {
	var seasonID string
	for _, row := range demoGames() {
		game, err := e.service.ImportGame(ctx, row)
		if err != nil {
			return err
		}
		seasonID = game.SeasonID
	}
	record, err := e.service.CalculateTeamRecords(ctx, seasonID, nil)
	if err != nil {
		return err
	}
	names := make(map[string]string)
	teams, err := e.ds.Repositories(eventbus.New()).Team.All(ctx)
	if err != nil {
		return err
	}
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	for _, v := range record.Values {
		if _, err := fmt.Fprintf(e.stdout, "%-4s %d-%d\n", names[v.TeamID], v.Wins, v.Losses); err != nil {
			return err
		}
	}
	return nil
}
