// Command ingest is the thin orchestrator driver for one-off ingestion and
// activation, used for backfills and local testing without the worker
// daemon in front of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docingest/internal/config"
	"docingest/internal/embed"
	"docingest/internal/obs"
	"docingest/internal/persistence"
	"docingest/internal/persistence/postgres"
	"docingest/internal/pipeline"
	"docingest/internal/tokenizer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "ingest":
		os.Exit(runIngest(os.Args[2:]))
	case "activate":
		os.Exit(runActivate(os.Args[2:]))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ingest <file> --tenant <uuid> --title <string> [--activate|--no-activate]")
	fmt.Fprintln(os.Stderr, "       activate --tenant <uuid> --doc-version-id <uuid>")
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant uuid")
	title := fs.String("title", "", "document title")
	sourceType := fs.String("source-type", "", "word-processor|portable|hypertext (defaults from extension)")
	activate := fs.Bool("activate", true, "activate the new version")
	noActivate := fs.Bool("no-activate", false, "do not activate the new version")
	var file string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		file, args = args[0], args[1:]
	}
	_ = fs.Parse(args)
	if file == "" && fs.NArg() > 0 {
		file = fs.Arg(0)
	}
	if file == "" || *tenant == "" {
		usage()
		return 1
	}
	if *noActivate {
		*activate = false
	}
	path, err := filepath.Abs(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := postgres.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	writer, err := postgres.New(ctx, pool, cfg.EmbeddingDim)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	runs := postgres.NewRunStore(pool)

	tok, err := tokenizer.Shared()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var embedder embed.Embedder
	if cfg.EmbeddingURL != "" {
		embedder = embed.NewHTTP(cfg.EmbeddingURL, cfg.EmbeddingModelID, cfg.EmbeddingDim, cfg.EmbeddingBatchSize)
	} else {
		embedder = embed.NewDeterministic(cfg.EmbeddingDim)
	}

	orchestrator := &pipeline.Orchestrator{
		Embedder:  embedder,
		Writer:    writer,
		Runs:      runs,
		Tokenizer: tok,
		ChunkCfg:  cfg.ChunkConfig(),
		Metrics:   obs.NewMock(),
	}

	runID := uuid.NewString()
	if err := runs.CreateRun(ctx, runID, *tenant, map[string]any{"driver": "cli"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	job := pipeline.Job{
		RunID:       runID,
		DocID:       uuid.NewString(),
		Tenant:      *tenant,
		UploadURI:   "file://" + path,
		Title:       *title,
		SourceType:  persistence.SourceType(firstNonEmpty(*sourceType, detectSourceType(path))),
		SourceURI:   "file://" + path,
		ContentHash: "",
		Activate:    *activate,
	}

	if _, _, err := runs.Claim(ctx, runID, cfg.StaleThreshold()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := orchestrator.Process(ctx, job); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runActivate(args []string) int {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant uuid")
	versionID := fs.String("doc-version-id", "", "document version uuid")
	_ = fs.Parse(args)
	if *tenant == "" || *versionID == "" {
		usage()
		return 1
	}

	cfg := config.Load()
	ctx := context.Background()
	pool, err := postgres.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()
	writer, err := postgres.New(ctx, pool, cfg.EmbeddingDim)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := writer.Activate(ctx, *tenant, *versionID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func detectSourceType(path string) string {
	switch filepath.Ext(path) {
	case ".docx":
		return string(persistence.SourceWordProcessor)
	case ".pdf":
		return string(persistence.SourcePortable)
	case ".html", ".htm":
		return string(persistence.SourceHypertext)
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
