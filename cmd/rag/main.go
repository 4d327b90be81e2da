package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/app"
	"github.com/dshills/gorag/internal/config"
	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/internal/evaluator"
	"github.com/dshills/gorag/internal/httpapi"
	"github.com/dshills/gorag/internal/logging"
	"github.com/dshills/gorag/internal/searcher"
	"github.com/dshills/gorag/internal/storage"
	"github.com/dshills/gorag/internal/tui"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage: rag [-config FILE] <command> [options]

Commands:
  ingest                      Ingest and chunk documents
  build                       Build the embedding cache
  ask QUERY [-k N]            Ask a question (single-shot)
  run                         Interactive chat
  metrics [-n N]              Show recent evaluation metrics
  doctor [-probe]             Check environment and files
  serve                       Start the HTTP API
  gc [-max-age D] [-max-entries N]
                              Remove stale cache entries
`

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("RAG CLI\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := flag.String("config", "", "path to YAML config (default $RAG_CONFIG)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("ERROR:"), err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"ingest":  cmdIngest,
	"build":   cmdBuild,
	"ask":     cmdAsk,
	"run":     cmdRun,
	"metrics": cmdMetrics,
	"doctor":  cmdDoctor,
	"serve":   cmdServe,
	"gc":      cmdGC,
}

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func run(configPath, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		flag.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext(logger)
	defer cancel()

	return cmd(ctx, &env{cfg: cfg, logger: logger}, args)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// parseInterleaved parses flags that may follow positional arguments and
// returns the positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func cmdIngest(ctx context.Context, e *env, args []string) error {
	chunks, stats, err := app.Ingest(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d documents from %s (%d files found, %d skipped)\n",
		stats.DocumentsLoaded, e.cfg.Paths.DataDir, stats.FilesFound, stats.FilesSkipped)
	for _, msg := range stats.ErrorMessages {
		fmt.Printf("  %s %s\n", color.YellowString("skipped:"), msg)
	}
	fmt.Printf("Saved %d chunks to %s\n", len(chunks), e.cfg.Paths.ChunksFile)
	return nil
}

func cmdBuild(ctx context.Context, e *env, args []string) error {
	deps, err := app.Open(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	col, err := deps.Collection(ctx)
	if err != nil {
		return err
	}
	dim := 0
	if len(col.Vectors) > 0 {
		dim = len(col.Vectors[0])
	}
	fmt.Printf("Cache ready. chunk_vectors shape = (%d, %d)\n", len(col.Vectors), dim)
	return nil
}

func cmdAsk(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	k := fs.Int("k", e.cfg.Retrieval.TopK, "top-k chunks to retrieve")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(positional, " "))
	if query == "" {
		return searcher.ErrEmptyQuery
	}

	deps, err := app.Open(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := deps.Agent(ctx, true)
	if err != nil {
		return err
	}

	turn, err := a.Ask(ctx, query, *k, nil)
	if err != nil {
		return err
	}

	if len(turn.Results) == 0 {
		fmt.Println("No chunks retrieved.")
	} else {
		fmt.Println()
		color.New(color.Bold).Println("Top sources:")
		for _, r := range turn.Results {
			fmt.Printf("- [%s] score=%.3f\n", color.CyanString(r.Ref()), r.Score)
		}
	}

	fmt.Println()
	color.New(color.Bold).Println("Answer:")
	fmt.Println()
	switch {
	case turn.Err != nil:
		color.Red("%s", turn.Answer)
	case !turn.Answered:
		color.Yellow("%s", turn.Answer)
	default:
		fmt.Println(turn.Answer)
	}
	if turn.MetricsPath != "" {
		fmt.Printf("\n(metrics saved to %s)\n", turn.MetricsPath)
	}
	return nil
}

func cmdRun(ctx context.Context, e *env, args []string) error {
	deps, err := app.Open(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := deps.Agent(ctx, true)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("%d chunks | embed %s | gen %s | k=%d",
		a.Collection().Len(), a.Collection().Model, a.Generator().Model(), e.cfg.Retrieval.TopK)
	return tui.Run(ctx, a, e.cfg.Retrieval.TopK, summary)
}

func cmdMetrics(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	n := fs.Int("n", 10, "how many recent records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec := app.Recorder(e.cfg, e.logger)
	records, total, err := rec.Tail(*n)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("No metrics file found yet.")
		return nil
	}

	fmt.Printf("Total records: %d | Showing last %d\n\n", total, len(records))
	for _, r := range records {
		fmt.Printf("- %s | score=%.3f | cite=%v | q=%s\n", r.Timestamp, r.TopScore, r.HasCitation, r.Query)
	}

	all, _, err := rec.Tail(total)
	if err != nil {
		return err
	}
	s := evaluator.Summarize(all)
	fmt.Printf("\nanswered=%.0f%% errors=%.0f%% cited=%.0f%% vague=%.0f%% mean_top_score=%.3f\n",
		s.AnsweredRate*100, s.ErrorRate*100, s.CitationRate*100, s.VagueRate*100, s.MeanTopScore)
	return nil
}

func cmdDoctor(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	probe := fs.Bool("probe", false, "embed a sample query with the configured provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ok := color.GreenString("OK")
	missing := color.RedString("MISSING")
	check := func(label, path string) {
		status := ok
		if _, err := os.Stat(path); err != nil {
			status = missing
		}
		fmt.Printf("%-13s %s %s\n", label+":", path, status)
	}

	color.New(color.Bold).Println("== RAG Doctor ==")

	keyMissing := false
	embedKeyEnv := ""
	if embedder.RequiresAPIKey(e.cfg.Embed.Provider) {
		embedKeyEnv = e.cfg.Embed.APIKeyEnv
	}
	for _, name := range uniqueNonEmpty(embedKeyEnv, e.cfg.Generation.APIKeyEnv) {
		status := color.GreenString("SET")
		if os.Getenv(name) == "" {
			status = missing
			keyMissing = true
		}
		fmt.Printf("%-13s %s\n", name+":", status)
	}

	check("Docs folder", e.cfg.Paths.DataDir)
	check("Chunks file", e.cfg.Paths.ChunksFile)
	check("Cache dir", e.cfg.Paths.CacheDir)
	check("Metrics dir", e.cfg.Paths.MetricsDir)

	fmt.Println()
	color.New(color.Bold).Println("Models / Endpoint")
	fmt.Printf("Provider:     %s\n", e.cfg.Embed.Provider)
	fmt.Printf("Base URL:     %s\n", e.cfg.Embed.BaseURL)
	fmt.Printf("Embed model:  %s\n", e.cfg.Embed.Model)
	fmt.Printf("Gen model:    %s\n", e.cfg.Generation.Model)
	fmt.Printf("Cache:        %s (%s)\n", e.cfg.Cache.Backend, storage.DriverName)
	fmt.Printf("Thresholds:   %.2f / %.2f vague\n", e.cfg.Retrieval.ConfidentScore, e.cfg.Retrieval.ConfidentScoreVague)

	if keyMissing {
		fmt.Println()
		color.New(color.Bold).Println("Fix:")
		fmt.Printf("  export %s=\"nvapi-...\"  (or add it to .env)\n", e.cfg.Generation.APIKeyEnv)
		fmt.Println("  Then re-run: rag doctor")
	}

	if *probe {
		fmt.Println()
		return probeEmbedder(ctx, e)
	}
	return nil
}

// probeEmbedder sends one short query to the configured embedding provider.
func probeEmbedder(ctx context.Context, e *env) error {
	emb, err := embedder.New(e.cfg.Embedder())
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer emb.Close()

	start := time.Now()
	vectors, err := emb.Embed(ctx, []string{"What is the capital of France?"}, embedder.ModeQuery)
	if err != nil {
		fmt.Printf("Embedding:    %s\n", color.RedString("FAILED"))
		return err
	}
	fmt.Printf("Embedding:    %s (%s, dim=%d, %s)\n",
		color.GreenString("OK"), emb.Model(), len(vectors[0]), time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", e.cfg.HTTP.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := app.Open(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := deps.Agent(ctx, true)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(a, httpapi.Options{
		DefaultK:       e.cfg.Retrieval.TopK,
		AllowedOrigins: e.cfg.HTTP.AllowedOrigins,
		Info: httpapi.Info{
			Version:    version,
			EmbedModel: deps.Embedder.Model(),
			GenModel:   a.Generator().Model(),
		},
		Logger: e.logger,
	})
	return srv.ListenAndServe(ctx, *addr)
}

func cmdGC(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	maxAge := fs.Duration("max-age", 0, "remove entries older than this (default from config)")
	maxEntries := fs.Int("max-entries", 0, "keep at most this many entries (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := app.Open(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	removed, err := deps.Sweep(ctx, *maxAge, *maxEntries)
	if err != nil {
		return err
	}
	for _, key := range removed {
		fmt.Printf("removed %s\n", key)
	}
	fmt.Printf("%d cache entries removed\n", len(removed))
	return nil
}

func uniqueNonEmpty(values ...string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
