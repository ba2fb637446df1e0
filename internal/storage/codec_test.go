package storage

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"evonet/internal/genotype"
	"evonet/internal/model"
)

func testGenomeRecord(t *testing.T, id string) model.GenomeRecord {
	t.Helper()
	g, err := genotype.New(genotype.DefaultConfig(), 5)
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	g.ID = id
	return model.GenomeRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		RunID:           "run-1",
		Fitness:         3,
		Genome:          g,
	}
}

func testRunRecord(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord:  CurrentVersion(),
		ID:               id,
		CreatedAt:        created.UTC(),
		Seed:             7,
		Population:       10,
		MaxIterations:    5,
		MaxMoves:         500,
		Radius:           28,
		FitnessThreshold: 10,
		BestByGeneration: []float64{1, 2, 4},
		Diagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestFitness: 1, MeanFitness: 0.5},
		},
		FinalBestFitness: 4,
		ChampionID:       "g1",
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	in := testRunRecord("run-1", time.Unix(100, 0))
	data, err := EncodeRun(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("run changed in round trip:\nin=%+v\nout=%+v", in, out)
	}
}

func TestGenomeCodecKeepsDecodableGenome(t *testing.T) {
	in := testGenomeRecord(t, "g1")
	data, err := EncodeGenome(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in.Genome, out.Genome) {
		t.Fatal("genome changed in round trip")
	}
	if _, err := genotype.Decode(out.Genome); err != nil {
		t.Fatalf("decoded genome does not build a network: %v", err)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := testRunRecord("run-1", time.Unix(100, 0))
	run.SchemaVersion = CurrentSchemaVersion + 1
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}

	genome := testGenomeRecord(t, "g1")
	genome.CodecVersion = 0
	data, err = EncodeGenome(genome)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGenome(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeRun([]byte("{")); err == nil {
		t.Fatal("expected malformed run error")
	}
	if _, err := DecodeGenome([]byte("[]")); err == nil {
		t.Fatal("expected malformed genome error")
	}
}
