package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"rpanamer/internal"
	"rpanamer/internal/config"
	"rpanamer/internal/connectors"
	"rpanamer/internal/listener"
	"rpanamer/internal/logging"
	"rpanamer/internal/ocr"
	"rpanamer/internal/pipeline"
	"rpanamer/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	if cmd == "extract" {
		runExtract(ctx, cfg, logger, os.Args[2:])
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	engine := ocr.NewEngine(ocr.ConfigFrom(cfg), logger)
	batches := pipeline.NewBatchService(db, cfg, engine, logger)

	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input zip path")
		prefix := fs.String("prefix", cfg.Prefix, "name prefix (defaults to RPA_PREFIX)")
		output := fs.String("output", "", "output zip path")
		report := fs.String("report", "", "optional xlsx report path")
		jsonOut := fs.String("json", "", "optional json response path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		if strings.TrimSpace(*prefix) == "" {
			must(fmt.Errorf("--prefix (or RPA_PREFIX) is required"))
		}

		data, err := os.ReadFile(*input)
		must(err)
		batch, err := batches.ProcessArchive(ctx, data, *prefix, pipeline.Origin{Kind: internal.OriginUpload, Ref: filepath.Base(*input)})
		if err != nil {
			if *jsonOut != "" {
				_ = writeJSON(*jsonOut, pipeline.FailureResponse(err))
			}
			must(err)
		}

		blob, err := batch.Archive()
		must(err)
		must(os.MkdirAll(filepath.Dir(*output), 0o755))
		must(os.WriteFile(*output, blob, 0o644))
		must(db.SetBatchOutput(batch.ID, *output))

		if *report != "" {
			must(pipeline.ExportRecordsToXLSX(pipeline.RecordsToExportRows(batch.Records), *report))
		}
		if *jsonOut != "" {
			resp, err := batch.Response()
			must(err)
			must(writeJSON(*jsonOut, resp))
		}

		succeeded, failed := batch.Counts()
		fmt.Printf("run done batch=%s documents=%d success=%d error=%d output=%s\n", batch.ID, len(batch.Records), succeeded, failed, *output)
	case "batches":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max batches")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListBatches(*limit)
		must(err)
		for _, b := range rows {
			fmt.Printf("%s\t%s\t%s\tprefix=%s\ttotal=%d\tsuccess=%d\terror=%d\t%s\n", b.CreatedAt, b.ID, b.Origin, b.Prefix, b.Total, b.Succeeded, b.Failed, b.OutputRef)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batchID := fs.String("batchId", "", "batch id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*batchID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--batchId and --out are required"))
		}
		rows, err := db.GetExportRows(*batchID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no records for batchId=%s", *batchID))
		}
		must(pipeline.ExportRecordsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.NewMailConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, logger)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d duplicates=%d\n", *provider, result.Fetched, result.Stored, result.Duplicates)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*messageID) != "" {
			res, err := batches.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d batch=%s documents=%d output=%s\n", res.EmailID, res.BatchID, res.Documents, res.OutputRef)
			return
		}
		emails, docs, err := batches.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d documents=%d\n", emails, docs)
	case "mail:listen":
		must(listener.NewService(db, cfg, batches, logger).Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

// runExtract needs no database.
func runExtract(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	input := fs.String("input", "", "text, text file path or pdf path")
	inType := fs.String("type", "text", "text|textfile|pdf")
	_ = fs.Parse(args)
	if *input == "" {
		must(fmt.Errorf("--input is required"))
	}

	var recognizer ocr.Recognizer
	if *inType == "pdf" {
		recognizer = ocr.NewEngine(ocr.ConfigFrom(cfg), logger)
	}
	ext, err := pipeline.ExtractFromInput(ctx, *inType, *input, recognizer)
	must(err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(ext))
}

func writeJSON(path string, v any) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func usage() {
	fmt.Println("usage: rpanamer <command>")
	fmt.Println("commands:")
	fmt.Println("  run --input=batch.zip --prefix=P --output=out.zip [--report=r.xlsx] [--json=r.json]")
	fmt.Println("  extract --input=... --type=text|textfile|pdf")
	fmt.Println("  batches [--limit=20]")
	fmt.Println("  export:xlsx --batchId=... --out=./out/batch.xlsx")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
