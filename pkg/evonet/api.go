package evonet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"evonet/internal/config"
	"evonet/internal/evo"
	"evonet/internal/genotype"
	"evonet/internal/metrics"
	"evonet/internal/model"
	"evonet/internal/scape"
	"evonet/internal/stats"
	"evonet/internal/storage"
)

const (
	defaultDBPath     = "evonet.db"
	defaultExportsDir = "exports"
	defaultRunLimit   = 20
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Recorder

	initOnce sync.Once
	initErr  error
}

// RunRequest starts from ConfigPath when set, otherwise from the default
// experiment. Non-zero fields override the loaded values. Overriding MaxMoves
// without FitnessThreshold derives the threshold again.
type RunRequest struct {
	ConfigPath        string
	RunID             string
	Seed              int64
	Population        int
	MaxIterations     int
	MaxMoves          int
	FitnessThreshold  float64
	Workers           int
	Selection         string
	TopologicalPolicy string
	TopologicalCount  int
	MutationWeights   map[string]float64
}

type RunSummary struct {
	RunID            string
	BestByGeneration []float64
	FinalBestFitness float64
	StoppedEarly     bool
	ChampionID       string
	ChampionNodes    int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	MaxMoves         int
	FinalBestFitness float64
	StoppedEarly     bool
}

type ReplaySummary struct {
	RunID    string
	GenomeID string
	Stored   float64
	Fitness  float64
	Rewards  int
	Unstable bool
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		store:   store,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Experiment resolves a request into a validated experiment without running
// it.
func (c *Client) Experiment(req RunRequest) (config.Experiment, error) {
	exp := config.Default()
	if req.ConfigPath != "" {
		loaded, err := config.Load(req.ConfigPath)
		if err != nil {
			return config.Experiment{}, err
		}
		exp = loaded
	}
	if req.RunID != "" {
		exp.RunID = req.RunID
	}
	if req.Seed != 0 {
		exp.Seed = req.Seed
	}
	if req.Population > 0 {
		exp.Population = req.Population
	}
	if req.MaxIterations > 0 {
		exp.MaxIterations = req.MaxIterations
	}
	if req.MaxMoves > 0 {
		exp.MaxMoves = req.MaxMoves
		exp.FitnessThreshold = 0
	}
	if req.FitnessThreshold > 0 {
		exp.FitnessThreshold = req.FitnessThreshold
	}
	if req.Workers > 0 {
		exp.Workers = req.Workers
	}
	if req.Selection != "" {
		exp.Selector = req.Selection
	}
	if req.TopologicalPolicy != "" {
		exp.TopologicalPolicy = req.TopologicalPolicy
	}
	if req.TopologicalCount > 0 {
		exp.TopologicalCount = req.TopologicalCount
	}
	if len(req.MutationWeights) > 0 {
		exp.MutationWeights = req.MutationWeights
	}
	exp.Finalize()
	if err := exp.Validate(); err != nil {
		return config.Experiment{}, err
	}
	return exp, nil
}

// Run evolves a population in the odor world and stores the run summary and
// its champion genome.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	exp, err := c.Experiment(req)
	if err != nil {
		return RunSummary{}, err
	}
	runID := exp.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run_id", runID)

	prototype, err := genotype.New(exp.GenomeConfig(), exp.Seed)
	if err != nil {
		return RunSummary{}, fmt.Errorf("prototype genome: %w", err)
	}
	mutator, err := exp.Mutator()
	if err != nil {
		return RunSummary{}, err
	}
	mutator.Metrics = c.metrics
	popCfg := exp.PopulationConfig()
	popCfg.Logger = logger
	popCfg.Metrics = c.metrics

	pop, err := evo.NewPopulation(popCfg, mutator, exp.Evaluator())
	if err != nil {
		return RunSummary{}, err
	}
	if err := pop.Populate(ctx, prototype); err != nil {
		return RunSummary{}, fmt.Errorf("populate: %w", err)
	}
	logger.Info("run started",
		"population", exp.Population,
		"max_iterations", exp.MaxIterations,
		"max_moves", exp.MaxMoves,
		"fitness_threshold", exp.FitnessThreshold,
	)
	result, err := evo.Run(ctx, pop, evo.RunConfig{
		RunID:            runID,
		MaxIterations:    exp.MaxIterations,
		FitnessThreshold: exp.FitnessThreshold,
	})
	if err != nil {
		return RunSummary{}, err
	}
	champion := result.Champion
	if champion == nil {
		return RunSummary{}, fmt.Errorf("run %s produced no champion", runID)
	}

	if err := c.store.SaveGenome(ctx, model.GenomeRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              champion.ID,
		RunID:           runID,
		Fitness:         champion.Fitness,
		Genome:          champion.Genome,
	}); err != nil {
		return RunSummary{}, fmt.Errorf("save champion: %w", err)
	}
	record := model.RunRecord{
		VersionedRecord:  storage.CurrentVersion(),
		ID:               runID,
		CreatedAt:        time.Now().UTC(),
		Seed:             exp.Seed,
		Population:       exp.Population,
		MaxIterations:    exp.MaxIterations,
		MaxMoves:         exp.MaxMoves,
		Radius:           exp.Radius,
		FitnessThreshold: exp.FitnessThreshold,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		Diagnostics:      toModelDiagnostics(result.GenerationDiagnostics),
		FinalBestFitness: champion.Fitness,
		StoppedEarly:     result.StoppedEarly,
		ChampionID:       champion.ID,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	logger.Info("run finished",
		"generations", len(result.BestByGeneration),
		"best", champion.Fitness,
		"stopped_early", result.StoppedEarly,
		"champion_id", champion.ID,
	)

	return RunSummary{
		RunID:            runID,
		BestByGeneration: record.BestByGeneration,
		FinalBestFitness: champion.Fitness,
		StoppedEarly:     result.StoppedEarly,
		ChampionID:       champion.ID,
		ChampionNodes:    len(champion.Genome.Nodes),
	}, nil
}

func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:            r.ID,
			CreatedAtUTC:     r.CreatedAt.UTC().Format(time.RFC3339),
			Seed:             r.Seed,
			Population:       r.Population,
			Generations:      len(r.BestByGeneration),
			MaxMoves:         r.MaxMoves,
			FinalBestFitness: r.FinalBestFitness,
			StoppedEarly:     r.StoppedEarly,
		})
	}
	return out, nil
}

// GetRun returns a stored run. An empty id selects the latest run.
func (c *Client) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}
	if runID == "" {
		runs, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, fmt.Errorf("%w: no runs available", ErrRunNotFound)
		}
		return runs[0], nil
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]float64, error) {
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), run.BestByGeneration...), nil
}

func (c *Client) Diagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, error) {
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return append([]model.GenerationDiagnostics(nil), run.Diagnostics...), nil
}

// Champion returns the best genome recorded for a run. An empty id selects
// the latest run.
func (c *Client) Champion(ctx context.Context, runID string) (model.GenomeRecord, error) {
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return model.GenomeRecord{}, err
	}
	genome, ok, err := c.store.GetGenome(ctx, run.ChampionID)
	if err != nil {
		return model.GenomeRecord{}, err
	}
	if !ok {
		return model.GenomeRecord{}, fmt.Errorf("champion %s not found for run %s", run.ChampionID, run.ID)
	}
	return genome, nil
}

// Replay decodes a run's champion and rolls it out again in the run's world.
func (c *Client) Replay(ctx context.Context, runID string) (ReplaySummary, error) {
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return ReplaySummary{}, err
	}
	champion, err := c.Champion(ctx, run.ID)
	if err != nil {
		return ReplaySummary{}, err
	}
	net, err := genotype.Decode(champion.Genome)
	if err != nil {
		return ReplaySummary{}, err
	}
	evaluator := scape.NewOdorWorldEvaluator(run.MaxMoves, run.Seed)
	if run.Radius > 0 {
		evaluator.Radius = run.Radius
	}
	fitness, trace, err := evaluator.Evaluate(ctx, net)
	if err != nil {
		return ReplaySummary{}, err
	}
	unstable, _ := trace["unstable"].(bool)
	rewards, _ := trace["rewards"].(int)
	if unstable {
		fitness = 0
	}
	return ReplaySummary{
		RunID:    run.ID,
		GenomeID: champion.ID,
		Stored:   champion.Fitness,
		Fitness:  float64(fitness),
		Rewards:  rewards,
		Unstable: unstable,
	}, nil
}

// Export writes a run's artifacts under outDir (default "exports") and
// returns the run directory. An empty id selects the latest run.
func (c *Client) Export(ctx context.Context, runID, outDir string) (string, error) {
	if outDir == "" {
		outDir = defaultExportsDir
	}
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	champion, err := c.Champion(ctx, run.ID)
	if err != nil {
		return "", err
	}
	return stats.WriteRunArtifacts(outDir, run, champion)
}

func toModelDiagnostics(in []evo.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(in))
	for _, d := range in {
		out = append(out, model.GenerationDiagnostics{
			Generation:  d.Generation,
			BestFitness: d.BestFitness,
			MeanFitness: d.MeanFitness,
			MinFitness:  d.MinFitness,
			StdDev:      d.StdDev,
			Unstable:    d.Unstable,
			MeanNodes:   d.MeanNodes,
		})
	}
	return out
}
