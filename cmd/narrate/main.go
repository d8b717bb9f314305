package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/app"
	"github.com/joseph-ayodele/legalaid-petitions/internal/assemble"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		payloadPath = flag.String("payload", "", "form payload JSON file (required)")
		docsPath    = flag.String("documents", "", "optional text file with extracted document text")
		protocolArg = flag.String("protocol", "000000000000000", "protocol used for logging and documents")
		docxOut     = flag.String("docx", "", "also write the assembled petition to this path")
		timeout     = flag.Duration("timeout", 3*time.Minute, "overall deadline")
	)
	flag.Parse()
	if *payloadPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --payload is required")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	raw, err := os.ReadFile(*payloadPath)
	if err != nil {
		logger.Error("read payload", "error", err)
		os.Exit(1)
	}
	var documents string
	if *docsPath != "" {
		b, err := os.ReadFile(*docsPath)
		if err != nil {
			logger.Error("read documents", "error", err)
			os.Exit(1)
		}
		documents = string(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = common.WithProtocol(ctx, *protocolArg)

	p, err := app.NewNormalizer(cfg, logger).Normalize(*protocolArg, raw)
	if err != nil {
		logger.Error("normalize payload", "error", err)
		os.Exit(1)
	}
	for _, w := range p.Warnings {
		logger.Warn("payload warning", "detail", w)
	}

	res, err := app.NewNarrator(cfg, logger).Generate(ctx, p, documents)
	if err != nil {
		logger.Error("narrative failed", "error", err)
		os.Exit(1)
	}
	logger.Info("narrative OK", "source", res.Source, "chars", len(res.Text))
	fmt.Println(res.Text)

	if *docxOut != "" {
		// local runs read templates from disk only
		tcfg := cfg.Templates
		tcfg.Source = "fs"
		tcfg.Watch = false
		loader, closer, err := app.NewTemplateLoader(tcfg, nil, logger)
		if err != nil {
			logger.Error("templates", "error", err)
			os.Exit(1)
		}
		if closer != nil {
			defer closer.Close()
		}
		doc, err := assemble.NewAssembler(loader, logger).Assemble(ctx, constants.DocPetition, p, res.Text)
		if err != nil {
			logger.Error("assemble", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*docxOut, doc, 0o644); err != nil {
			logger.Error("write docx", "error", err)
			os.Exit(1)
		}
		logger.Info("petition written", "path", *docxOut, "bytes", len(doc))
	}
}
