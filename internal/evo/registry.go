package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]Operator
}{
	m: make(map[string]Operator),
}

func init() {
	registerBuiltInOperators()
}

func registerBuiltInOperators() {
	for _, op := range []Operator{
		PerturbWeight{MaxDelta: 1},
		PerturbBias{MaxDelta: 0.5},
		PerturbRule{MaxDelta: 0.5},
		ChangeRule{},
		AddConnection{},
		RemoveConnection{},
		AddNode{},
		ChangeSynapseRule{},
	} {
		MustRegisterOperator(op)
	}
}

// RegisterOperator makes op resolvable by its name.
func RegisterOperator(op Operator) error {
	if op == nil {
		return errors.New("operator is required")
	}
	if op.Name() == "" {
		return errors.New("operator name is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[op.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, op.Name())
	}
	operatorRegistry.m[op.Name()] = op
	return nil
}

func MustRegisterOperator(op Operator) {
	if err := RegisterOperator(op); err != nil {
		panic(err)
	}
}

func ResolveOperator(name string) (Operator, error) {
	operatorRegistry.mu.RLock()
	op, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return op, nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMutationWeights favors parameter tuning over topology changes.
func DefaultMutationWeights() map[string]float64 {
	return map[string]float64{
		"perturb_weight":      4,
		"perturb_bias":        2,
		"perturb_rule":        1,
		"change_rule":         1,
		"add_connection":      1,
		"remove_connection":   0.5,
		"add_node":            0.5,
		"change_synapse_rule": 0.5,
	}
}

// PolicyFromWeights resolves each named operator. Entries are ordered by name
// so the same weights always build the same policy.
func PolicyFromWeights(weights map[string]float64) ([]WeightedMutation, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	policy := make([]WeightedMutation, 0, len(names))
	for _, name := range names {
		op, err := ResolveOperator(name)
		if err != nil {
			return nil, err
		}
		policy = append(policy, WeightedMutation{Operator: op, Weight: weights[name]})
	}
	return policy, nil
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	operatorRegistry.m = make(map[string]Operator)
	operatorRegistry.mu.Unlock()
	registerBuiltInOperators()
}
