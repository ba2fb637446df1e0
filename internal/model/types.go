package model

import (
	"time"

	"evonet/internal/genotype"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one evolutionary run.
type RunRecord struct {
	VersionedRecord
	ID               string                  `json:"id"`
	CreatedAt        time.Time               `json:"created_at"`
	Seed             int64                   `json:"seed"`
	Population       int                     `json:"population"`
	MaxIterations    int                     `json:"max_iterations"`
	MaxMoves         int                     `json:"max_moves"`
	Radius           float64                 `json:"radius"`
	FitnessThreshold float64                 `json:"fitness_threshold"`
	BestByGeneration []float64               `json:"best_by_generation"`
	Diagnostics      []GenerationDiagnostics `json:"diagnostics"`
	FinalBestFitness float64                 `json:"final_best_fitness"`
	StoppedEarly     bool                    `json:"stopped_early"`
	ChampionID       string                  `json:"champion_id"`
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

// GenomeRecord stores a genome together with the run and fitness it was
// recorded under.
type GenomeRecord struct {
	VersionedRecord
	ID      string          `json:"id"`
	RunID   string          `json:"run_id"`
	Fitness float64         `json:"fitness"`
	Genome  genotype.Genome `json:"genome"`
}
