package evonet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"evonet/internal/genotype"
	"evonet/internal/metrics"
)

func smallRun(runID string) RunRequest {
	return RunRequest{
		RunID:            runID,
		Seed:             5,
		Population:       6,
		MaxIterations:    3,
		MaxMoves:         60,
		FitnessThreshold: 60,
		Workers:          2,
	}
}

func newMemoryClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestRunStoresSummaryAndChampion(t *testing.T) {
	ctx := context.Background()
	recorder := metrics.NewRecorder()
	client, err := New(Options{StoreKind: "memory", Metrics: recorder})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	summary, err := client.Run(ctx, smallRun("run-a"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "run-a" || len(summary.BestByGeneration) != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.FinalBestFitness != summary.BestByGeneration[2] {
		t.Fatalf("final best %f does not match last generation %v", summary.FinalBestFitness, summary.BestByGeneration)
	}

	history, err := client.FitnessHistory(ctx, "run-a")
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("unexpected history: %v", history)
	}
	diagnostics, err := client.Diagnostics(ctx, "")
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 3 || diagnostics[2].Generation != 2 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}

	champion, err := client.Champion(ctx, "run-a")
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if champion.ID != summary.ChampionID || champion.Fitness != summary.FinalBestFitness {
		t.Fatalf("unexpected champion: id=%s fitness=%f", champion.ID, champion.Fitness)
	}
	if _, err := genotype.Decode(champion.Genome); err != nil {
		t.Fatalf("stored champion does not decode: %v", err)
	}
}

func TestReplayReproducesStoredFitness(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)
	if _, err := client.Run(ctx, smallRun("run-replay")); err != nil {
		t.Fatalf("run: %v", err)
	}
	replay, err := client.Replay(ctx, "run-replay")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Fitness != replay.Stored {
		t.Fatalf("replayed fitness %f differs from stored %f", replay.Fitness, replay.Stored)
	}
	if float64(replay.Rewards) != replay.Fitness && !replay.Unstable {
		t.Fatalf("rewards %d do not match fitness %f", replay.Rewards, replay.Fitness)
	}
}

func TestRunsListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)
	for _, id := range []string{"first", "second"} {
		if _, err := client.Run(ctx, smallRun(id)); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}
	runs, err := client.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	latest, err := client.GetRun(ctx, "")
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if latest.ID != runs[0].RunID {
		t.Fatalf("latest run %s is not first in listing %s", latest.ID, runs[0].RunID)
	}
}

func TestRunPersistsInSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "evonet.db")

	writer, err := New(Options{StoreKind: "sqlite", DBPath: dbPath})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	summary, err := writer.Run(ctx, smallRun(""))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader, err := New(Options{StoreKind: "sqlite", DBPath: dbPath})
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	t.Cleanup(func() {
		_ = reader.Close()
	})
	champion, err := reader.Champion(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if champion.ID != summary.ChampionID {
		t.Fatalf("champion id: got=%s want=%s", champion.ID, summary.ChampionID)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	client := newMemoryClient(t)
	req := smallRun("bad")
	req.Selection = "roulette"
	_, err := client.Run(context.Background(), req)
	var cfgErr *genotype.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got: %v", err)
	}
}

func TestExperimentOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("population: 30\nmax_moves: 100\nfitness_threshold: 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	client := newMemoryClient(t)

	exp, err := client.Experiment(RunRequest{ConfigPath: path, Population: 12})
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if exp.Population != 12 || exp.MaxMoves != 100 || exp.FitnessThreshold != 7 {
		t.Fatalf("unexpected experiment: %+v", exp)
	}

	exp, err = client.Experiment(RunRequest{ConfigPath: path, MaxMoves: 250})
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if exp.FitnessThreshold != 5 {
		t.Fatalf("threshold should follow overridden max moves: got=%f", exp.FitnessThreshold)
	}
}

func TestMissingRun(t *testing.T) {
	client := newMemoryClient(t)
	if _, err := client.Champion(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got: %v", err)
	}
	if _, err := client.GetRun(context.Background(), ""); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for latest, got: %v", err)
	}
}
