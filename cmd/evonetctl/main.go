package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evonet/internal/metrics"
	"evonet/pkg/evonet"
)

const defaultDBPath = "evonet.db"

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind     string
	dbPath   string
	logLevel string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.kind, "store", "sqlite", "store backend: memory|sqlite")
	fs.StringVar(&s.dbPath, "db-path", defaultDBPath, "sqlite database path")
	fs.StringVar(&s.logLevel, "log-level", "info", "log level: debug|info|warn|error")
}

func (s *storeFlags) client(recorder *metrics.Recorder) (*evonet.Client, error) {
	logger, err := newLogger(s.logLevel, stderr)
	if err != nil {
		return nil, err
	}
	return evonet.New(evonet.Options{
		StoreKind: s.kind,
		DBPath:    s.dbPath,
		Logger:    logger,
		Metrics:   recorder,
	})
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	configPath := fs.String("config", "", "experiment file (.yaml, .yml or .ini)")
	runID := fs.String("run-id", "", "run id (generated when empty)")
	seed := fs.Int64("seed", 0, "random seed")
	pop := fs.Int("pop", 0, "population size")
	gens := fs.Int("gens", 0, "max generations")
	maxMoves := fs.Int("max-moves", 0, "moves per rollout")
	threshold := fs.Float64("threshold", 0, "stop once best fitness exceeds this (default max-moves/50)")
	workers := fs.Int("workers", 0, "concurrent evaluations")
	selection := fs.String("selection", "", "parent selection: elite|tournament")
	topoPolicy := fs.String("topo-policy", "", "mutations per child: const|ncount_linear")
	topoCount := fs.Int("topo-count", 0, "mutation count or cap for the topological policy")
	weights := fs.String("weights", "", "mutation weights, e.g. perturb_weight=4,add_node=0.5")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mutationWeights, err := parseMutationWeights(*weights)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	if *metricsAddr != "" {
		shutdown, err := serveMetrics(*metricsAddr, recorder)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	client, err := sf.client(recorder)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, evonet.RunRequest{
		ConfigPath:        *configPath,
		RunID:             *runID,
		Seed:              *seed,
		Population:        *pop,
		MaxIterations:     *gens,
		MaxMoves:          *maxMoves,
		FitnessThreshold:  *threshold,
		Workers:           *workers,
		Selection:         *selection,
		TopologicalPolicy: *topoPolicy,
		TopologicalCount:  *topoCount,
		MutationWeights:   mutationWeights,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "run_id=%s generations=%d best=%.0f stopped_early=%t champion=%s nodes=%d\n",
		summary.RunID,
		len(summary.BestByGeneration),
		summary.FinalBestFitness,
		summary.StoppedEarly,
		summary.ChampionID,
		summary.ChampionNodes,
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s seed=%d pop=%d generations=%d max_moves=%d best=%.0f stopped_early=%t\n",
			r.RunID, r.CreatedAtUTC, r.Seed, r.Population, r.Generations, r.MaxMoves, r.FinalBestFitness, r.StoppedEarly)
	}
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	runID := fs.String("run-id", "", "run id (latest run when empty)")
	replay := fs.Bool("replay", false, "roll the champion out again and report its fitness")
	jsonOut := fs.Bool("json", false, "emit champion genome as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *replay {
		summary, err := client.Replay(ctx, *runID)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(summary)
		}
		fmt.Fprintf(stdout, "run_id=%s genome_id=%s stored=%.0f replayed=%.0f rewards=%d unstable=%t\n",
			summary.RunID, summary.GenomeID, summary.Stored, summary.Fitness, summary.Rewards, summary.Unstable)
		return nil
	}

	champion, err := client.Champion(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(champion)
	}
	fmt.Fprintf(stdout, "run_id=%s genome_id=%s fitness=%.0f nodes=%d hidden=%d connections=%d\n",
		champion.RunID,
		champion.ID,
		champion.Fitness,
		len(champion.Genome.Nodes),
		champion.Genome.HiddenCount(),
		len(champion.Genome.Connections),
	)
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	runID := fs.String("run-id", "", "run id (latest run when empty)")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	if *limit > 0 && len(history) > *limit {
		history = history[:*limit]
	}
	if *jsonOut {
		return writeJSON(history)
	}
	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best=%.0f\n", i, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	runID := fs.String("run-id", "", "run id (latest run when empty)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d best=%.0f mean=%.3f min=%.0f std=%.3f unstable=%d mean_nodes=%.2f\n",
			d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.StdDev, d.Unstable, d.MeanNodes)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	runID := fs.String("run-id", "", "run id (latest run when empty)")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	dir, err := client.Export(ctx, *runID, *outDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported=%s\n", filepath.Clean(dir))
	return nil
}

// serveMetrics exposes the recorder's registry until the returned function
// is called.
func serveMetrics(addr string, recorder *metrics.Recorder) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "metrics server: %v\n", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evonetctl <run|runs|champion|fitness|diagnostics|export> [flags]", msg)
}
