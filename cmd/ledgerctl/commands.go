package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/export"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type enqueuer interface {
	EnqueueGLIntegrity(ctx context.Context, payload jobs.GLIntegrityPayload) (*asynq.TaskInfo, error)
	EnqueueInventoryRevaluation(ctx context.Context, payload jobs.InventoryRevaluationPayload) (*asynq.TaskInfo, error)
	EnqueueReportsWarmup(ctx context.Context, payload jobs.ReportsWarmupPayload) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	jobs.QueueInspector
	Close() error
}

// closer releases whatever an opener acquired.
type closer func()

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&enqueueCmd{out: out, open: openClient},
		&queueCmd{out: out, open: openInspector},
		&exportCmd{out: out, open: openGL},
	}
}

func redisAddr() (string, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return "", err
	}
	return cfg.RedisAddr, nil
}

func openClient() (enqueuer, error) {
	addr, err := redisAddr()
	if err != nil {
		return nil, err
	}
	return jobs.NewClient(asynq.RedisClientOpt{Addr: addr}), nil
}

func openInspector() (queueInspector, error) {
	addr, err := redisAddr()
	if err != nil {
		return nil, err
	}
	return asynq.NewInspector(asynq.RedisClientOpt{Addr: addr}), nil
}

func openGL(ctx context.Context) (jobs.GLGenerator, closer, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		return nil, nil, err
	}
	services, err := app.NewServices(cfg, app.PostgresStores(cfg, pool, nil), nil, app.NewLogger(cfg))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return services.Journals, pool.Close, nil
}

type enqueueCmd struct {
	job      string
	business int64
	days     int
	method   string
	location int64

	out  io.Writer
	open func() (enqueuer, error)
}

func (*enqueueCmd) Name() string     { return "enqueue" }
func (*enqueueCmd) Synopsis() string { return "enqueue a ledger job for one business" }
func (*enqueueCmd) Usage() string {
	return `enqueue -job <type> -business <id> [-days n] [-method fifo|lifo|avco] [-location id]

  Enqueues one of gl:integrity, inventory:revaluation or reports:warmup.
`
}

func (c *enqueueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.job, "job", "", "task type (required)")
	f.Int64Var(&c.business, "business", 0, "business id (required)")
	f.IntVar(&c.days, "days", 0, "gl:integrity look-back in days")
	f.StringVar(&c.method, "method", "", "inventory:revaluation costing method")
	f.Int64Var(&c.location, "location", 0, "reports:warmup location id")
}

func (c *enqueueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.job == "" || c.business <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -job and a positive -business are required.")
		return subcommands.ExitUsageError
	}
	switch c.job {
	case jobs.TaskGLIntegrity, jobs.TaskInventoryRevaluation, jobs.TaskReportsWarmup:
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported job %q.\n", c.job)
		return subcommands.ExitUsageError
	}

	client, err := c.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to queue: %v\n", err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	var info *asynq.TaskInfo
	switch c.job {
	case jobs.TaskGLIntegrity:
		info, err = client.EnqueueGLIntegrity(ctx, jobs.GLIntegrityPayload{BusinessID: c.business, Days: c.days})
	case jobs.TaskInventoryRevaluation:
		info, err = client.EnqueueInventoryRevaluation(ctx, jobs.InventoryRevaluationPayload{BusinessID: c.business, Method: c.method})
	case jobs.TaskReportsWarmup:
		info, err = client.EnqueueReportsWarmup(ctx, jobs.ReportsWarmupPayload{BusinessID: c.business, LocationID: httpx.OptionalID(c.location)})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error enqueueing %s: %v\n", c.job, err)
		return subcommands.ExitFailure
	}
	if info != nil {
		fmt.Fprintf(c.out, "enqueued %s id=%s queue=%s\n", c.job, info.ID, info.Queue)
	} else {
		fmt.Fprintf(c.out, "enqueued %s\n", c.job)
	}
	return subcommands.ExitSuccess
}

type queueCmd struct {
	out  io.Writer
	open func() (queueInspector, error)
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "print default queue counters as JSON" }
func (*queueCmd) Usage() string    { return "queue\n" }

func (*queueCmd) SetFlags(*flag.FlagSet) {}

func (c *queueCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	inspector, err := c.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to queue: %v\n", err)
		return subcommands.ExitFailure
	}
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading queue: %v\n", err)
		return subcommands.ExitFailure
	}
	stats := map[string]any{"queue": jobs.QueueDefault}
	if info != nil {
		stats["pending"] = info.Pending
		stats["active"] = info.Active
		stats["scheduled"] = info.Scheduled
		stats["retry"] = info.Retry
		stats["archived"] = info.Archived
		stats["paused"] = info.Paused
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	business int64
	from     string
	to       string
	types    string
	format   string
	output   string

	out  io.Writer
	open func(ctx context.Context) (jobs.GLGenerator, closer, error)
}

func (*exportCmd) Name() string     { return "export-gl" }
func (*exportCmd) Synopsis() string { return "export GL entries for a period as CSV or IIF" }
func (*exportCmd) Usage() string {
	return `export-gl -business <id> -from YYYY-MM-DD -to YYYY-MM-DD [-types sale,purchase_receipt] [-format csv|iif] [-o file]

  Generates journal entries for every document in the period and writes them
  to -o, or to standard output. Skipped records are reported on standard error.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.business, "business", 0, "business id (required)")
	f.StringVar(&c.from, "from", "", "first day, YYYY-MM-DD (required)")
	f.StringVar(&c.to, "to", "", "last day, YYYY-MM-DD (required)")
	f.StringVar(&c.types, "types", "", "comma separated reference types, default all")
	f.StringVar(&c.format, "format", "csv", "csv or iif")
	f.StringVar(&c.output, "o", "", "output file")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.business <= 0 {
		fmt.Fprintln(os.Stderr, "Error: a positive -business is required.")
		return subcommands.ExitUsageError
	}
	from, err := httpx.ParseDate(c.from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -from: %v\n", err)
		return subcommands.ExitUsageError
	}
	to, err := httpx.ParseDate(c.to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -to: %v\n", err)
		return subcommands.ExitUsageError
	}
	var kinds []documents.Kind
	if c.types != "" {
		for _, raw := range strings.Split(c.types, ",") {
			kind, err := documents.ParseKind(strings.TrimSpace(raw))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: -types: %v\n", err)
				return subcommands.ExitUsageError
			}
			kinds = append(kinds, kind)
		}
	}
	write := export.WriteCSV
	switch c.format {
	case "csv":
	case "iif":
		write = export.WriteIIF
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported format %q.\n", c.format)
		return subcommands.ExitUsageError
	}

	gl, release, err := c.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	if release != nil {
		defer release()
	}

	batch, err := gl.GetGLEntriesForPeriod(ctx, c.business, from, shared.EndOfDay(to, time.UTC), kinds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating GL: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, skipped := range batch.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %s %d: %s\n", skipped.ReferenceType, skipped.ReferenceID, skipped.Reason)
	}

	out := c.out
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", c.output, err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		out = f
	}
	if err := write(out, batch.Entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing export: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
