package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"evonet/pkg/evonet"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out, errOut bytes.Buffer
	origOut, origErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() {
		stdout, stderr = origOut, origErr
	})
	return &out
}

func TestRunCommandThenQueries(t *testing.T) {
	out := captureOutput(t)
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "evonet.db")
	store := []string{"--store", "sqlite", "--db-path", dbPath, "--log-level", "warn"}

	args := append([]string{"run", "--run-id", "cli-run", "--pop", "6", "--gens", "2", "--max-moves", "40", "--seed", "3", "--workers", "2", "--json"}, store...)
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	var summary evonet.RunSummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode run summary: %v\n%s", err, out.String())
	}
	if summary.RunID != "cli-run" || len(summary.BestByGeneration) == 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	out.Reset()
	if err := run(ctx, append([]string{"runs"}, store...)); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run") {
		t.Fatalf("runs output missing run: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, append([]string{"fitness", "--run-id", "cli-run"}, store...)); err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if !strings.Contains(out.String(), "generation=0 best=") {
		t.Fatalf("unexpected fitness output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, append([]string{"champion"}, store...)); err != nil {
		t.Fatalf("champion command: %v", err)
	}
	if !strings.Contains(out.String(), "genome_id="+summary.ChampionID) {
		t.Fatalf("unexpected champion output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, append([]string{"champion", "--replay", "--json"}, store...)); err != nil {
		t.Fatalf("champion replay: %v", err)
	}
	var replay evonet.ReplaySummary
	if err := json.Unmarshal(out.Bytes(), &replay); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replay.Fitness != replay.Stored {
		t.Fatalf("replay fitness %f differs from stored %f", replay.Fitness, replay.Stored)
	}

	out.Reset()
	if err := run(ctx, append([]string{"diagnostics", "--run-id", "cli-run"}, store...)); err != nil {
		t.Fatalf("diagnostics command: %v", err)
	}
	if !strings.Contains(out.String(), "mean_nodes=") {
		t.Fatalf("unexpected diagnostics output: %s", out.String())
	}

	out.Reset()
	exportDir := t.TempDir()
	if err := run(ctx, append([]string{"export", "--out", exportDir}, store...)); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "champion.json")); err != nil {
		t.Fatalf("expected exported champion: %v", err)
	}
}

func TestRunCommandServesMetrics(t *testing.T) {
	captureOutput(t)
	args := []string{"run", "--store", "memory", "--pop", "4", "--gens", "1", "--max-moves", "20", "--metrics-addr", "127.0.0.1:0"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "usage: evonetctl") {
		t.Fatalf("expected usage error, got: %v", err)
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	captureOutput(t)
	if err := run(context.Background(), []string{"runs", "--store", "memory", "--log-level", "loud"}); err == nil {
		t.Fatal("expected invalid log level error")
	}
}

func TestParseMutationWeights(t *testing.T) {
	got, err := parseMutationWeights("mutate_weights=2, add_node=0.5,remove_connection=0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]float64{"perturb_weight": 2, "add_node": 0.5, "remove_connection": 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("weights: got=%v want=%v", got, want)
	}
	if got, err := parseMutationWeights(""); err != nil || got != nil {
		t.Fatalf("empty input: got=%v err=%v", got, err)
	}
	for _, bad := range []string{"add_node", "teleport=1", "add_node=x", "add_node=-1"} {
		if _, err := parseMutationWeights(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
