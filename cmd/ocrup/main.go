package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"ocrup/internal/client"
	"ocrup/internal/config"
	"ocrup/internal/intake"
	"ocrup/internal/logger"
	"ocrup/internal/model"
	"ocrup/internal/orchestrator"
	"ocrup/internal/registry"
)

var (
	outputFile = flag.String("o", "-", "Output file for extracted text, use '-' for stdout.")
	jsonOut    = flag.Bool("j", false, "Emit results as JSON instead of plain text.")
	verbose    = flag.Bool("v", false, "Enable debug logging.")
	nothing    = flag.Bool("n", false, "Don't upload anything, validate files only.")
	deadline   = flag.Duration("t", 10*time.Minute, "Overall deadline for the conversion.")
)

func main() {
	godotenv.Load()
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "image files required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *verbose {
		cfg.Logger.Level = slog.LevelDebug
		cfg.Logger.Plaintext = true
	}
	logger.SetupDefault(cfg.Logger)

	reg, err := registry.New("")
	if err != nil {
		log.Fatalln(err)
	}
	defer reg.Close()

	in := intake.New(cfg.Intake, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *deadline)
	defer cancel()

	if *nothing {
		if err := checkOnly(ctx, in, paths); err != nil {
			log.Fatalln(err)
		}
		return
	}

	results, err := convert(ctx, cfg, in, reg, paths)
	if err != nil {
		log.Fatalln(err)
	}

	if err := writeResults(results); err != nil {
		log.Fatalf("write results failed: %v", err)
	}
}

// checkOnly выносит вердикты без отправки (аналог сухого прогона).
func checkOnly(ctx context.Context, in *intake.Intake, paths []string) error {
	cands, err := in.Inspect(ctx, paths)
	if err != nil {
		return err
	}
	for _, cand := range cands {
		switch cand.Verdict {
		case intake.Accepted:
			fmt.Printf("ok\t%s\t%s\n", cand.Name, cand.ContentType)
		case intake.RejectedType:
			fmt.Printf("reject\t%s\n", model.InvalidTypeLine(cand.Name, cand.ContentType))
		case intake.RejectedSize:
			fmt.Printf("reject\t%s\n", model.TooLargeLine(cand.Name, cand.Size))
		}
	}
	return nil
}

func convert(ctx context.Context, cfg config.Config, in *intake.Intake, reg *registry.Registry, paths []string) (model.ResultSet, error) {
	api := client.New(&http.Client{Timeout: cfg.Client.RequestTimeout}, cfg.Client.BaseURL)
	notifier := orchestrator.NotifierFunc(func(msg string) {
		fmt.Fprintln(os.Stderr, "*** "+msg)
	})

	orc := orchestrator.New(cfg.Client, api, in, reg, notifier)
	go orc.Run(ctx)

	if err := orc.Drop(ctx, paths); err != nil {
		return nil, err
	}

	// Отправка имеет смысл только с credential; его запрос асинхронный
	waitCredential(ctx, orc, cfg.Client.RequestTimeout)

	orc.Submit()

	select {
	case <-orc.Settled():
	case <-ctx.Done():
		return nil, fmt.Errorf("conversion aborted: %w", ctx.Err())
	}

	snap := orc.Snapshot()
	if snap.Results == nil {
		return nil, fmt.Errorf("conversion produced no results")
	}
	return snap.Results, nil
}

func waitCredential(ctx context.Context, orc *orchestrator.Orchestrator, timeout time.Duration) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tm := time.NewTicker(50 * time.Millisecond)
	defer tm.Stop()

	for {
		if orc.Snapshot().Credential != "" {
			return
		}
		select {
		case <-wctx.Done():
			// отправка все равно пойдет и получит локальный отказ
			return
		case <-tm.C:
		}
	}
}

func writeResults(results model.ResultSet) error {
	output := os.Stdout
	if *outputFile != "-" {
		var err error
		output, err = os.Create(*outputFile)
		if err != nil {
			return err
		}
		defer output.Close()
	}

	if *jsonOut {
		enc := json.NewEncoder(output)
		enc.SetIndent("", "    ")
		return enc.Encode(results)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := fmt.Fprintf(output, "==> %s <==\n%s\n\n", name, results[name]); err != nil {
			return err
		}
	}
	return nil
}
