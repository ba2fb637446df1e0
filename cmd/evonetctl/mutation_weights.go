package main

import (
	"fmt"
	"strconv"
	"strings"

	"evonet/internal/evo"
)

// parseMutationWeights reads "name=weight" pairs separated by commas. Names
// are checked against the operator registry; empty input returns nil.
func parseMutationWeights(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	weights := make(map[string]float64)
	for _, part := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("mutation weight %q: expected name=weight", part)
		}
		name = normalizeMutationOperatorName(strings.TrimSpace(name))
		if _, err := evo.ResolveOperator(name); err != nil {
			return nil, fmt.Errorf("mutation weight %q: %w", part, err)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("mutation weight %q: %w", part, err)
		}
		if w < 0 {
			return nil, fmt.Errorf("mutation weight %q: must be >= 0", part)
		}
		weights[name] = w
	}
	return weights, nil
}

func normalizeMutationOperatorName(name string) string {
	switch name {
	case "mutate_weights":
		return "perturb_weight"
	case "add_bias", "mutate_bias":
		return "perturb_bias"
	case "mutate_af":
		return "change_rule"
	case "mutate_pf":
		return "change_synapse_rule"
	case "add_synapse", "add_link":
		return "add_connection"
	case "remove_synapse", "cutlink":
		return "remove_connection"
	case "add_neuron":
		return "add_node"
	default:
		return name
	}
}
