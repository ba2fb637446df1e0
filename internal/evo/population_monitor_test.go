package evo

import (
	"context"
	"errors"
	"testing"

	"evonet/internal/genotype"
	"evonet/internal/metrics"
	"evonet/internal/nn"
	"evonet/internal/scape"
)

// strengthScape scores a phenotype by the sum of its connection strengths,
// which only depends on the genome.
type strengthScape struct{}

func (strengthScape) Name() string { return "strength" }

func (strengthScape) Evaluate(_ context.Context, net *nn.Network) (scape.Fitness, scape.Trace, error) {
	total := 0.0
	for _, s := range net.Synapses() {
		total += s.Strength
	}
	return scape.Fitness(total), scape.Trace{"unstable": false}, nil
}

type unstableScape struct{}

func (unstableScape) Name() string { return "unstable" }

func (unstableScape) Evaluate(context.Context, *nn.Network) (scape.Fitness, scape.Trace, error) {
	return 7, scape.Trace{"unstable": true}, nil
}

func newTestPopulation(t *testing.T, capacity int, evaluator scape.Scape) *Population {
	t.Helper()
	cfg := DefaultPopulationConfig(capacity)
	cfg.Seed = 11
	pop, err := NewPopulation(cfg, DefaultMutator(), evaluator)
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	if err := pop.Populate(context.Background(), prototype(t, 21)); err != nil {
		t.Fatalf("populate: %v", err)
	}
	return pop
}

func TestPopulateFillsCapacity(t *testing.T) {
	pop := newTestPopulation(t, 12, strengthScape{})
	if pop.Size() != 12 {
		t.Fatalf("population size: got=%d want=12", pop.Size())
	}
	seen := map[string]struct{}{}
	for _, a := range pop.Agents() {
		if err := genotype.Validate(a.Genome); err != nil {
			t.Fatalf("agent %s invalid: %v", a.ID, err)
		}
		if a.Genome.ID != a.ID {
			t.Fatalf("genome id %s does not match agent id %s", a.Genome.ID, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if len(seen) != 12 {
		t.Fatalf("expected unique agent ids, got %d", len(seen))
	}
	if pop.Fittest() != nil {
		t.Fatal("expected no fittest agent before evaluation")
	}
}

func TestReplenishKeepsSizeAndAdvancesGeneration(t *testing.T) {
	pop := newTestPopulation(t, 10, strengthScape{})
	ctx := context.Background()
	for gen := 0; gen < 5; gen++ {
		if _, err := pop.ComputeNewFitness(ctx); err != nil {
			t.Fatalf("compute fitness: %v", err)
		}
		if err := pop.Replenish(ctx); err != nil {
			t.Fatalf("replenish: %v", err)
		}
		if pop.Size() != 10 {
			t.Fatalf("generation %d size: got=%d want=10", gen, pop.Size())
		}
		if pop.Generation() != gen+1 {
			t.Fatalf("generation counter: got=%d want=%d", pop.Generation(), gen+1)
		}
	}
}

func TestReplenishRequiresEvaluation(t *testing.T) {
	pop := newTestPopulation(t, 4, strengthScape{})
	if err := pop.Replenish(context.Background()); !errors.Is(err, ErrNotEvaluated) {
		t.Fatalf("expected ErrNotEvaluated, got: %v", err)
	}
}

func TestRunBestFitnessNeverDecreasesWithElitism(t *testing.T) {
	pop := newTestPopulation(t, 16, strengthScape{})
	result, err := Run(context.Background(), pop, RunConfig{MaxIterations: 20, FitnessThreshold: 1e9})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.BestByGeneration) != 20 {
		t.Fatalf("expected 20 generations, got %d", len(result.BestByGeneration))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best fitness decreased at generation %d: %v", i, result.BestByGeneration)
		}
	}
	if result.StoppedEarly {
		t.Fatal("run should not stop early")
	}
	if result.Champion == nil || result.Champion.Fitness != result.BestByGeneration[19] {
		t.Fatalf("champion does not match final best: %+v", result.Champion)
	}
	last := result.GenerationDiagnostics[19]
	if last.MinFitness > last.MeanFitness || last.MeanFitness > last.BestFitness {
		t.Fatalf("diagnostics out of order: %+v", last)
	}
}

func TestRunStopsAtThreshold(t *testing.T) {
	pop := newTestPopulation(t, 6, strengthScape{})
	result, err := Run(context.Background(), pop, RunConfig{MaxIterations: 10, FitnessThreshold: -100})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.StoppedEarly || len(result.BestByGeneration) != 1 {
		t.Fatalf("expected early stop after one generation, got stopped=%v generations=%d", result.StoppedEarly, len(result.BestByGeneration))
	}
	if pop.Generation() != 0 {
		t.Fatalf("population replenished after early stop")
	}
}

func TestUnstableRolloutScoresZero(t *testing.T) {
	pop := newTestPopulation(t, 5, unstableScape{})
	best, err := pop.ComputeNewFitness(context.Background())
	if err != nil {
		t.Fatalf("compute fitness: %v", err)
	}
	if best != 0 {
		t.Fatalf("expected best fitness 0, got %f", best)
	}
	for _, a := range pop.Agents() {
		if !a.Unstable || a.Fitness != 0 {
			t.Fatalf("agent %s not recorded as unstable: %+v", a.ID, a)
		}
	}
}

func TestNewPopulationRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name  string
		field string
		edit  func(*PopulationConfig)
	}{
		{name: "capacity", field: "capacity", edit: func(c *PopulationConfig) { c.Capacity = 0 }},
		{name: "elimination", field: "elimination_ratio", edit: func(c *PopulationConfig) { c.EliminationRatio = 1 }},
		{name: "elite", field: "elite_count", edit: func(c *PopulationConfig) { c.EliteCount = 11 }},
		{name: "crossover", field: "crossover_rate", edit: func(c *PopulationConfig) { c.CrossoverRate = 2 }},
		{name: "workers", field: "workers", edit: func(c *PopulationConfig) { c.Workers = -1 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultPopulationConfig(10)
			tc.edit(&cfg)
			_, err := NewPopulation(cfg, DefaultMutator(), strengthScape{})
			var cfgErr *genotype.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got: %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("field: got=%s want=%s", cfgErr.Field, tc.field)
			}
		})
	}
}

func TestRunInOdorWorld(t *testing.T) {
	cfg := DefaultPopulationConfig(6)
	cfg.Seed = 3
	cfg.Metrics = metrics.NewRecorder()
	pop, err := NewPopulation(cfg, DefaultMutator(), scape.NewOdorWorldEvaluator(60, 1))
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	if err := pop.Populate(context.Background(), prototype(t, 2)); err != nil {
		t.Fatalf("populate: %v", err)
	}
	result, err := Run(context.Background(), pop, RunConfig{RunID: "odor", MaxIterations: 3, FitnessThreshold: 60})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Champion == nil {
		t.Fatal("expected a champion")
	}
	for _, best := range result.BestByGeneration {
		if best < 0 || best > 60 {
			t.Fatalf("best fitness outside [0, maxMoves]: %f", best)
		}
	}
}

func TestRunHonorsCanceledContext(t *testing.T) {
	pop := newTestPopulation(t, 4, strengthScape{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, pop, RunConfig{MaxIterations: 3}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}
