package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/app"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		statusArg = flag.String("status", string(constants.StatusFailed), "comma separated statuses to select")
		run       = flag.Bool("run", false, "run the selected cases synchronously")
		force     = flag.Bool("force", false, "also rerun processed cases (resets them first)")
		limit     = flag.Int("limit", 0, "maximum cases to select (0 = all)")
		out       = flag.String("out", "", "write an XLSX export of the selected cases to this path")
		fromStr   = flag.String("from", "", "from date YYYY-MM-DD")
		toStr     = flag.String("to", "", "to date YYYY-MM-DD")
		intake    = flag.String("ingest", "", "create cases from the case directories under this path first")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	filter := entity.CaseFilter{Limit: *limit}
	for _, v := range strings.Split(*statusArg, ",") {
		st := constants.CaseStatus(strings.TrimSpace(v))
		if st == "" {
			continue
		}
		if !st.Valid() {
			printError("Error: unknown status %q (valid: %v)\n", st, constants.Statuses())
			os.Exit(2)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if *fromStr != "" {
		parsed, err := time.Parse("2006-01-02", *fromStr)
		if err != nil {
			printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(2)
		}
		filter.From = &parsed
	}
	if *toStr != "" {
		parsed, err := time.Parse("2006-01-02", *toStr)
		if err != nil {
			printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(2)
		}
		filter.To = &parsed
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		printError("Error: build pipeline: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		comps.Close(sctx)
	}()

	if *intake != "" {
		ing := ingest.NewFSIngestor(comps.Cases, comps.Blobs, cfg.Storage.Timeout, logger)
		results, stats, err := ing.IngestDirectory(ctx, *intake, true)
		if err != nil {
			printError("Error: ingest %s: %v\n", *intake, err)
			os.Exit(1)
		}
		for _, r := range results {
			if r.Err != "" {
				fmt.Printf("  %s  FAILED  %s\n", r.SourcePath, r.Err)
			}
		}
		fmt.Printf("ingested: matched=%d created=%d existing=%d failed=%d\n",
			stats.Matched, stats.Succeeded-stats.Existing, stats.Existing, stats.Failed)
	}

	cases, err := comps.Cases.List(ctx, filter)
	if err != nil {
		printError("Error: list cases: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("selected %d case(s)\n", len(cases))

	if *run {
		var ok, skipped, failed int
		for _, c := range cases {
			if c.Status == constants.StatusProcessing {
				skipped++
				continue
			}
			if c.Status == constants.StatusProcessed && *force {
				if err := comps.Cases.ResetForReprocess(ctx, c.Protocol, true, time.Now()); err != nil {
					logger.Error("reset failed", "protocol", c.Protocol, "error", err)
					failed++
					continue
				}
			}
			runCtx, cancel := common.WithTimeout(ctx, cfg.Queue.ProcessTimeout)
			res, err := comps.Orchestrator.Run(runCtx, c.Protocol)
			cancel()
			switch {
			case err != nil:
				failed++
				fmt.Printf("  %s  FAILED  %v\n", c.Protocol, err)
			case res.Skipped:
				skipped++
				fmt.Printf("  %s  skipped (%s)\n", c.Protocol, res.Reason)
			default:
				ok++
				fmt.Printf("  %s  %s  narrative=%s\n", c.Protocol, res.Status, res.NarrativeSource)
			}
		}
		fmt.Printf("processed=%d skipped=%d failed=%d\n", ok, skipped, failed)
	}

	if *out != "" {
		xlsx, err := comps.Exporter.ExportCasesXLSX(ctx, filter)
		if err != nil {
			printError("Error: export: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
			printError("Error: write %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *out)
	}
}
