package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsGenerationsAndEvaluations(t *testing.T) {
	r := NewRecorder()
	r.ObserveGeneration("run-1", 4, 1.5)
	r.ObserveGeneration("run-1", 6, 2)
	r.ObserveEvaluation(0.01, false)
	r.ObserveEvaluation(0.02, true)

	if got := testutil.ToFloat64(r.generations); got != 2 {
		t.Fatalf("generations: got=%f want=2", got)
	}
	if got := testutil.ToFloat64(r.evaluations); got != 2 {
		t.Fatalf("evaluations: got=%f want=2", got)
	}
	if got := testutil.ToFloat64(r.unstable); got != 1 {
		t.Fatalf("unstable: got=%f want=1", got)
	}
	if got := testutil.ToFloat64(r.bestFitness.WithLabelValues("run-1")); got != 6 {
		t.Fatalf("best fitness: got=%f want=6", got)
	}
	if got := testutil.ToFloat64(r.meanFitness.WithLabelValues("run-1")); got != 2 {
		t.Fatalf("mean fitness: got=%f want=2", got)
	}
}

func TestRecorderMutationCounters(t *testing.T) {
	r := NewRecorder()
	r.ObserveMutation("add_node")
	r.ObserveMutation("add_node")
	r.ObserveMutationRejected("remove_connection")

	if got := testutil.ToFloat64(r.mutations.WithLabelValues("add_node")); got != 2 {
		t.Fatalf("mutations: got=%f want=2", got)
	}
	if got := testutil.ToFloat64(r.mutationRejections.WithLabelValues("remove_connection")); got != 1 {
		t.Fatalf("rejections: got=%f want=1", got)
	}
	n, err := testutil.GatherAndCount(r.Registry(), "evonet_mutations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one mutation series, got %d", n)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveGeneration("run", 1, 1)
	r.ObserveEvaluation(1, true)
	r.ObserveMutation("x")
	r.ObserveMutationRejected("x")
	if r.Registry() != nil {
		t.Fatal("expected nil registry from nil recorder")
	}
}
