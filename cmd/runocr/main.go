package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/app"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-timeout 2m] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := app.NewExtractor(cfg, logger)
	start := time.Now()
	res, err := engine.Extract(ctx, data, constants.MediaTypeFromPath(path), filepath.Base(path))
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"chars", len(res.Text),
		"warnings", res.Warnings,
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
