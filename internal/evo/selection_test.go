package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"evonet/internal/genotype"
)

func rankedAgents(fitness ...float64) []*Agent {
	out := make([]*Agent, 0, len(fitness))
	for i, f := range fitness {
		out = append(out, &Agent{ID: string(rune('a' + i)), Fitness: f, Evaluated: true})
	}
	return out
}

func TestEliteSelectorStaysInPool(t *testing.T) {
	ranked := rankedAgents(5, 4, 3, 2, 1)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		parent, err := EliteSelector{}.PickParent(rng, ranked, 2)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.Fitness < 4 {
			t.Fatalf("picked agent outside pool: %+v", parent)
		}
	}
}

func TestTournamentSelectorPrefersFitter(t *testing.T) {
	ranked := rankedAgents(10, 1, 1, 1, 1, 1)
	rng := rand.New(rand.NewSource(2))
	wins := 0
	for i := 0; i < 500; i++ {
		parent, err := TournamentSelector{TournamentSize: 3}.PickParent(rng, ranked, len(ranked))
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.Fitness == 10 {
			wins++
		}
	}
	// A uniform pick would choose the best agent about 83 times.
	if wins < 150 {
		t.Fatalf("expected tournament bias toward best agent, got %d wins", wins)
	}
}

func TestSelectorsRejectBadInput(t *testing.T) {
	ranked := rankedAgents(1, 2)
	for _, s := range []Selector{EliteSelector{}, TournamentSelector{}} {
		if _, err := s.PickParent(nil, ranked, 1); err == nil {
			t.Fatalf("%s: expected nil rng error", s.Name())
		}
		if _, err := s.PickParent(rand.New(rand.NewSource(1)), ranked, 3); err == nil {
			t.Fatalf("%s: expected pool size error", s.Name())
		}
	}
}

func TestParseSelector(t *testing.T) {
	for _, name := range []string{"", "elite", "tournament"} {
		if _, err := ParseSelector(name, 3); err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
	}
	if _, err := ParseSelector("roulette", 0); err == nil {
		t.Fatal("expected unknown selector error")
	}
}

type constOperator struct{ name string }

func (o constOperator) Name() string     { return o.name }
func (o constOperator) Structural() bool { return false }

type noopOperator struct{ constOperator }

func (noopOperator) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	return genome.Copy(), nil
}

func TestRegisterAndResolveOperator(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator(noopOperator{constOperator{name: "noop"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	op, err := ResolveOperator("noop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
	if err := RegisterOperator(noopOperator{constOperator{name: "noop"}}); !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got: %v", err)
	}
	if err := RegisterOperator(nil); err == nil {
		t.Fatal("expected nil operator error")
	}
	if _, err := ResolveOperator("missing"); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got: %v", err)
	}
}

func TestDefaultMutationWeightsResolve(t *testing.T) {
	policy, err := PolicyFromWeights(DefaultMutationWeights())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if len(policy) != len(ListOperators()) {
		t.Fatalf("expected every built-in operator weighted: got=%d want=%d", len(policy), len(ListOperators()))
	}
	for i := 1; i < len(policy); i++ {
		if policy[i-1].Operator.Name() > policy[i].Operator.Name() {
			t.Fatal("policy not ordered by name")
		}
	}
}

func TestTopologicalMutationPolicies(t *testing.T) {
	g := prototype(t, 1)
	rng := rand.New(rand.NewSource(3))

	count, err := ConstTopologicalMutations{Count: 2}.MutationCount(g, rng)
	if err != nil || count != 2 {
		t.Fatalf("const count: got=%d err=%v", count, err)
	}
	if _, err := (ConstTopologicalMutations{}).MutationCount(g, rng); err == nil {
		t.Fatal("expected zero count error")
	}
	linear := NCountLinearTopologicalMutations{Multiplier: 1, MaxCount: 3}
	for i := 0; i < 50; i++ {
		count, err := linear.MutationCount(g, rng)
		if err != nil {
			t.Fatalf("linear count: %v", err)
		}
		if count < 1 || count > 3 {
			t.Fatalf("linear count out of range: %d", count)
		}
	}
	if _, err := ParseTopologicalMutations("exponential", 1, 1); err == nil {
		t.Fatal("expected unknown policy error")
	}
}
