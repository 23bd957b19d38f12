// Command counter-reset zeroes bill, invoice and KOT counters for a business
// day. It is the only way besides the admin API to lower a counter.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hotelpos-billing-services/internal/bootstrap"
	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/counter"
	"hotelpos-billing-services/internal/logger"
	"hotelpos-billing-services/internal/queue"

	"github.com/joho/godotenv"
	"github.com/juju/gnuflag"
	"go.uber.org/zap"
)

type resetCommand struct {
	date     string
	branchID string
	category string
	skipKOT  bool
	reason   string
	actor    string
	dryRun   bool
}

func (c *resetCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.date, "date", "", "business day to reset (YYYY-MM-DD)")
	f.StringVar(&c.branchID, "branch", "", "only reset this branch")
	f.StringVar(&c.category, "category", "", "only reset this category")
	f.BoolVar(&c.skipKOT, "skip-kot", false, "keep KOT numbers")
	f.StringVar(&c.reason, "reason", "", "why the counters are reset (required)")
	f.StringVar(&c.actor, "actor", "", "who is resetting, recorded in the audit log")
	f.BoolVar(&c.dryRun, "dry-run", false, "list the counters that would be reset and exit")
}

func (c *resetCommand) Init(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unrecognized args: %q", args)
	}
	if strings.TrimSpace(c.date) == "" {
		return fmt.Errorf("--date is required")
	}
	if _, err := counter.ParseDate(c.date); err != nil {
		return err
	}
	if strings.TrimSpace(c.reason) == "" && !c.dryRun {
		return fmt.Errorf("--reason is required")
	}
	if c.actor == "" {
		c.actor = "cli:" + os.Getenv("USER")
	}
	return nil
}

func (c *resetCommand) Run(ctx context.Context, svc *counter.Service, out io.Writer) error {
	if c.dryRun {
		var category counter.Category
		if c.category != "" {
			parsed, err := counter.ParseCategory(c.category)
			if err != nil {
				return err
			}
			category = parsed
		}
		rows, err := svc.ListCounters(ctx, counter.Filter{Date: c.date, BranchID: c.branchID, Category: category})
		if err != nil {
			return err
		}
		printSnapshots(out, rows)
		fmt.Fprintf(out, "%d counter(s) would be reset\n", len(rows))
		return nil
	}

	result, err := svc.Reset(ctx, counter.ResetRequest{
		Date:     c.date,
		BranchID: c.branchID,
		Category: c.category,
		SkipKOT:  c.skipKOT,
		Actor:    c.actor,
		Reason:   c.reason,
	})
	if err != nil {
		return err
	}
	printSnapshots(out, result.Before)
	fmt.Fprintf(out, "%d counter(s) reset\n", result.RowsReset)
	return nil
}

func printSnapshots(out io.Writer, rows []counter.Snapshot) {
	for _, row := range rows {
		kot := "-"
		if row.Category == counter.CategoryRestaurant {
			kot = counter.FormatKOTNumber(row.LastKOTNumber)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\tbill %s\tkot %s\n",
			row.Date, row.BranchID, row.Category, counter.FormatBillNumber(row.LastBillNumber), kot)
	}
}

func parseArgs(c *resetCommand, args []string, stderr io.Writer) error {
	f := gnuflag.NewFlagSet("counter-reset", gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	c.SetFlags(f)
	if err := f.Parse(true, args); err != nil {
		return err
	}
	return c.Init(f.Args())
}

func main() {
	_ = godotenv.Load()

	cmd := &resetCommand{}
	if err := parseArgs(cmd, os.Args[1:], os.Stderr); err != nil {
		if err == gnuflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	code := run(ctx, cfg, log, cmd)
	cancel()
	_ = log.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, cmd *resetCommand) int {
	store, closeStore, err := bootstrap.OpenCounterStore(ctx, cfg, log)
	if err != nil {
		log.Error("counter store connection failed", zap.Error(err))
		return 1
	}
	defer closeStore()

	// The reset event is what gets the pre-reset report archived.
	var publisher counter.Publisher
	qc, err := bootstrap.OpenEventClient(ctx, cfg)
	if err != nil {
		log.Warn("rabbitmq unavailable; reset will not be archived", zap.Error(err))
	} else if qc != nil {
		defer qc.Close()
		publisher = queue.NewCounterPublisher(qc)
	}

	svc := counter.NewService(store, log, bootstrap.CounterConfig(cfg, publisher))
	runErr := cmd.Run(ctx, svc, os.Stdout)
	if err := svc.Close(ctx); err != nil {
		log.Warn("counter reset event not published", zap.Error(err))
	}
	if runErr != nil {
		log.Error("counter reset failed", zap.Error(runErr))
		return 1
	}
	return 0
}
