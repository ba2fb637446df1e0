package nn

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// NeuronRef is what a connection strategy sees of a neuron: a caller-chosen
// key and a position used for ordering.
type NeuronRef struct {
	Key      int
	Position Position
}

// Link pairs a source key with a target key.
type Link struct {
	Source int
	Target int
}

// ConnectionStrategy plans the links between two neuron collections.
type ConnectionStrategy interface {
	Name() string
	Plan(sources, targets []NeuronRef) []Link
}

// Ordering sorts a collection before pairing.
type Ordering string

const (
	OrderY        Ordering = "y"
	OrderX        Ordering = "x"
	OrderDeclared Ordering = "declared"
)

func (o Ordering) sort(refs []NeuronRef) []NeuronRef {
	out := append([]NeuronRef(nil), refs...)
	switch o {
	case OrderDeclared:
	case OrderX:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Position.X < out[j].Position.X })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Position.Y < out[j].Position.Y })
	}
	return out
}

// OneToOne pairs the i-th source with the i-th target after ordering both
// collections, stopping at the shorter one.
type OneToOne struct {
	Bidirectional bool
	Order         Ordering
}

func (OneToOne) Name() string {
	return "one_to_one"
}

func (s OneToOne) Plan(sources, targets []NeuronRef) []Link {
	src := s.Order.sort(sources)
	dst := s.Order.sort(targets)
	n := min(len(src), len(dst))
	capacity := n
	if s.Bidirectional {
		capacity *= 2
	}
	links := make([]Link, 0, capacity)
	for i := 0; i < n; i++ {
		links = append(links, Link{Source: src[i].Key, Target: dst[i].Key})
		if s.Bidirectional {
			links = append(links, Link{Source: dst[i].Key, Target: src[i].Key})
		}
	}
	return links
}

type AllToAll struct {
	AllowSelfConnection bool
}

func (AllToAll) Name() string {
	return "all_to_all"
}

func (s AllToAll) Plan(sources, targets []NeuronRef) []Link {
	links := make([]Link, 0, len(sources)*len(targets))
	for _, src := range sources {
		for _, dst := range targets {
			if src.Key == dst.Key && !s.AllowSelfConnection {
				continue
			}
			links = append(links, Link{Source: src.Key, Target: dst.Key})
		}
	}
	return links
}

// Sparse keeps each all-to-all candidate with probability Density. The same
// Seed always yields the same plan.
type Sparse struct {
	Density             float64
	Seed                int64
	AllowSelfConnection bool
}

func (Sparse) Name() string {
	return "sparse"
}

func (s Sparse) Plan(sources, targets []NeuronRef) []Link {
	rng := rand.New(rand.NewSource(s.Seed))
	candidates := AllToAll{AllowSelfConnection: s.AllowSelfConnection}.Plan(sources, targets)
	links := make([]Link, 0, int(float64(len(candidates))*s.Density)+1)
	for _, link := range candidates {
		if rng.Float64() < s.Density {
			links = append(links, link)
		}
	}
	return links
}

// ParseStrategy resolves a strategy by name.
func ParseStrategy(name string, density float64, seed int64, allowSelf bool) (ConnectionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "one_to_one":
		return OneToOne{}, nil
	case "all_to_all":
		return AllToAll{AllowSelfConnection: allowSelf}, nil
	case "sparse":
		if density <= 0 || density > 1 {
			return nil, fmt.Errorf("sparse density must be in (0, 1]: %f", density)
		}
		return Sparse{Density: density, Seed: seed, AllowSelfConnection: allowSelf}, nil
	default:
		return nil, fmt.Errorf("unsupported connection strategy: %s", name)
	}
}

// Connect instantiates one synapse per planned link, each cloned from
// template with its endpoints replaced.
func Connect(net *Network, strategy ConnectionStrategy, template SynapseSpec, sources, targets []NeuronID) ([]SynapseID, error) {
	links := strategy.Plan(net.refs(sources), net.refs(targets))
	ids := make([]SynapseID, 0, len(links))
	for _, link := range links {
		spec := template
		spec.Rule = template.Rule.Clone()
		spec.Source = NeuronID(link.Source)
		spec.Target = NeuronID(link.Target)
		id, err := net.AddSynapse(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy.Name(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (n *Network) refs(ids []NeuronID) []NeuronRef {
	refs := make([]NeuronRef, 0, len(ids))
	for _, id := range ids {
		ref := NeuronRef{Key: int(id)}
		if neuron := n.neuron(id); neuron != nil {
			ref.Position = neuron.Position
		}
		refs = append(refs, ref)
	}
	return refs
}
