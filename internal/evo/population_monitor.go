package evo

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type RunConfig struct {
	RunID            string
	MaxIterations    int
	FitnessThreshold float64
}

type GenerationDiagnostics struct {
	Generation  int     `json:"generation"`
	BestFitness float64 `json:"best_fitness"`
	MeanFitness float64 `json:"mean_fitness"`
	MinFitness  float64 `json:"min_fitness"`
	StdDev      float64 `json:"std_dev"`
	Unstable    int     `json:"unstable"`
	MeanNodes   float64 `json:"mean_nodes"`
}

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []GenerationDiagnostics
	Champion              *Agent
	StoppedEarly          bool
}

// Run drives the population for at most MaxIterations generations. Each
// generation is evaluated, summarized, and then replenished unless the best
// fitness exceeded FitnessThreshold or it was the last generation. The
// population must already be populated.
func Run(ctx context.Context, pop *Population, cfg RunConfig) (RunResult, error) {
	if pop == nil {
		return RunResult{}, fmt.Errorf("population is required")
	}
	if cfg.MaxIterations <= 0 {
		return RunResult{}, fmt.Errorf("max iterations must be > 0")
	}
	if pop.Size() == 0 {
		return RunResult{}, ErrNotPopulated
	}

	result := RunResult{
		BestByGeneration:      make([]float64, 0, cfg.MaxIterations),
		GenerationDiagnostics: make([]GenerationDiagnostics, 0, cfg.MaxIterations),
	}
	for i := 0; i < cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		best, err := pop.ComputeNewFitness(ctx)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", pop.Generation(), err)
		}
		diag := summarizeGeneration(pop)
		result.BestByGeneration = append(result.BestByGeneration, best)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
		pop.cfg.Metrics.ObserveGeneration(cfg.RunID, diag.BestFitness, diag.MeanFitness)
		pop.logger.Info("generation evaluated",
			"run_id", cfg.RunID,
			"generation", diag.Generation,
			"best", diag.BestFitness,
			"mean", diag.MeanFitness,
			"min", diag.MinFitness,
			"unstable", diag.Unstable,
		)

		if best > cfg.FitnessThreshold {
			result.StoppedEarly = true
			pop.logger.Info("fitness threshold reached",
				"run_id", cfg.RunID,
				"generation", diag.Generation,
				"best", best,
				"threshold", cfg.FitnessThreshold,
			)
			break
		}
		if i == cfg.MaxIterations-1 {
			break
		}
		if err := pop.Replenish(ctx); err != nil {
			return RunResult{}, fmt.Errorf("replenish generation %d: %w", pop.Generation(), err)
		}
	}

	result.Champion = pop.Fittest()
	return result, nil
}

func summarizeGeneration(pop *Population) GenerationDiagnostics {
	agents := pop.Agents()
	diag := GenerationDiagnostics{Generation: pop.Generation()}
	if len(agents) == 0 {
		return diag
	}

	fitness := make([]float64, len(agents))
	nodes := 0
	for i, a := range agents {
		fitness[i] = a.Fitness
		nodes += len(a.Genome.Nodes)
		if a.Unstable {
			diag.Unstable++
		}
	}
	diag.BestFitness = floats.Max(fitness)
	diag.MinFitness = floats.Min(fitness)
	diag.MeanFitness, diag.StdDev = stat.MeanStdDev(fitness, nil)
	if len(fitness) < 2 {
		diag.StdDev = 0
	}
	diag.MeanNodes = float64(nodes) / float64(len(agents))
	return diag
}
