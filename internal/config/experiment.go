package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"evonet/internal/evo"
	"evonet/internal/genotype"
	"evonet/internal/scape"
)

const (
	DefaultPopulation    = 20
	DefaultMaxIterations = 50

	// thresholdDivisor derives the early stop threshold from MaxMoves when
	// none is configured.
	thresholdDivisor = 50
)

// Experiment is everything needed to start one run. Fields carry both yaml
// and ini tags; ini files keep the genome and mutation weights in their own
// sections.
type Experiment struct {
	RunID            string  `yaml:"run_id" ini:"run_id"`
	Seed             int64   `yaml:"seed" ini:"seed"`
	Population       int     `yaml:"population" ini:"population"`
	MaxIterations    int     `yaml:"max_iterations" ini:"max_iterations"`
	MaxMoves         int     `yaml:"max_moves" ini:"max_moves"`
	FitnessThreshold float64 `yaml:"fitness_threshold" ini:"fitness_threshold"`
	Radius           float64 `yaml:"radius" ini:"radius"`

	EliminationRatio float64 `yaml:"elimination_ratio" ini:"elimination_ratio"`
	EliteCount       int     `yaml:"elite_count" ini:"elite_count"`
	CrossoverRate    float64 `yaml:"crossover_rate" ini:"crossover_rate"`
	Workers          int     `yaml:"workers" ini:"workers"`
	Selector         string  `yaml:"selector" ini:"selector"`
	TournamentSize   int     `yaml:"tournament_size" ini:"tournament_size"`

	TopologicalPolicy     string  `yaml:"topological_policy" ini:"topological_policy"`
	TopologicalCount      int     `yaml:"topological_count" ini:"topological_count"`
	TopologicalMultiplier float64 `yaml:"topological_multiplier" ini:"topological_multiplier"`

	Store     string `yaml:"store" ini:"store"`
	StorePath string `yaml:"store_path" ini:"store_path"`

	Genome          Genome             `yaml:"genome" ini:"-"`
	MutationWeights map[string]float64 `yaml:"mutation_weights" ini:"-"`
}

// Genome is the configurable subset of genotype.Config. The input and output
// counts are fixed by the odor world.
type Genome struct {
	MaxNodes              int      `yaml:"max_nodes" ini:"max_nodes"`
	AllowSelfConnection   bool     `yaml:"allow_self_connection" ini:"allow_self_connection"`
	MinConnectionStrength float64  `yaml:"min_connection_strength" ini:"min_connection_strength"`
	MaxConnectionStrength float64  `yaml:"max_connection_strength" ini:"max_connection_strength"`
	NodeMaxBias           float64  `yaml:"node_max_bias" ini:"node_max_bias"`
	AllowedRules          []string `yaml:"allowed_rules" ini:"allowed_rules" delim:","`
	SynapseRules          []string `yaml:"synapse_rules" ini:"synapse_rules" delim:","`
	InitialTopology       string   `yaml:"initial_topology" ini:"initial_topology"`
	InitialDensity        float64  `yaml:"initial_density" ini:"initial_density"`
}

func Default() Experiment {
	g := genotype.DefaultConfig()
	return Experiment{
		Population:            DefaultPopulation,
		MaxIterations:         DefaultMaxIterations,
		MaxMoves:              scape.DefaultMaxMoves,
		Radius:                scape.DefaultRadius,
		EliminationRatio:      0.5,
		EliteCount:            1,
		CrossoverRate:         0.2,
		Workers:               4,
		Selector:              "elite",
		TournamentSize:        3,
		TopologicalPolicy:     "const",
		TopologicalCount:      1,
		TopologicalMultiplier: 0.5,
		Store:                 "memory",
		Genome: Genome{
			MaxNodes:              g.MaxNodes,
			AllowSelfConnection:   g.AllowSelfConnection,
			MinConnectionStrength: g.MinConnectionStrength,
			MaxConnectionStrength: g.MaxConnectionStrength,
			NodeMaxBias:           g.NodeMaxBias,
			AllowedRules:          append([]string(nil), g.AllowedRules...),
			SynapseRules:          append([]string(nil), g.SynapseRules...),
			InitialTopology:       g.InitialTopology,
			InitialDensity:        g.InitialDensity,
		},
		MutationWeights: evo.DefaultMutationWeights(),
	}
}

// Load reads an experiment from a .yaml, .yml or .ini file on top of the
// defaults and validates it.
func Load(path string) (Experiment, error) {
	exp := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = loadYAML(path, &exp)
	case ".ini":
		err = loadINI(path, &exp)
	default:
		return Experiment{}, fmt.Errorf("unsupported experiment file extension: %s", path)
	}
	if err != nil {
		return Experiment{}, err
	}
	exp.Finalize()
	if err := exp.Validate(); err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

func loadYAML(path string, exp *Experiment) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	weights := exp.MutationWeights
	exp.MutationWeights = nil
	if err := yaml.Unmarshal(data, exp); err != nil {
		return fmt.Errorf("parse experiment %s: %w", path, err)
	}
	if exp.MutationWeights == nil {
		exp.MutationWeights = weights
	}
	return nil
}

func loadINI(path string, exp *Experiment) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return fmt.Errorf("failed to load experiment file '%s': %w", path, err)
	}
	if err := file.Section("experiment").MapTo(exp); err != nil {
		return fmt.Errorf("error mapping [experiment] section: %w", err)
	}
	if err := file.Section("genome").MapTo(&exp.Genome); err != nil {
		return fmt.Errorf("error mapping [genome] section: %w", err)
	}
	if file.HasSection("mutation_weights") {
		weights := map[string]float64{}
		for _, key := range file.Section("mutation_weights").Keys() {
			w, err := key.Float64()
			if err != nil {
				return fmt.Errorf("mutation weight %s: %w", key.Name(), err)
			}
			weights[key.Name()] = w
		}
		exp.MutationWeights = weights
	}
	return nil
}

// Finalize fills values derived from other fields. A non-positive fitness
// threshold becomes MaxMoves/50.
func (e *Experiment) Finalize() {
	if e.FitnessThreshold <= 0 {
		e.FitnessThreshold = float64(e.MaxMoves) / thresholdDivisor
	}
}

func (e Experiment) Validate() error {
	switch {
	case e.Population <= 0:
		return &genotype.ConfigurationError{Field: "population", Reason: "must be > 0"}
	case e.MaxIterations <= 0:
		return &genotype.ConfigurationError{Field: "max_iterations", Reason: "must be > 0"}
	case e.MaxMoves <= 0:
		return &genotype.ConfigurationError{Field: "max_moves", Reason: "must be > 0"}
	case e.Radius <= 0:
		return &genotype.ConfigurationError{Field: "radius", Reason: "must be > 0"}
	}
	if _, err := evo.ParseSelector(e.Selector, e.TournamentSize); err != nil {
		return &genotype.ConfigurationError{Field: "selector", Reason: err.Error()}
	}
	if _, err := evo.ParseTopologicalMutations(e.TopologicalPolicy, e.TopologicalCount, e.TopologicalMultiplier); err != nil {
		return &genotype.ConfigurationError{Field: "topological_policy", Reason: err.Error()}
	}
	if _, err := e.Mutator(); err != nil {
		return &genotype.ConfigurationError{Field: "mutation_weights", Reason: err.Error()}
	}
	if err := e.PopulationConfig().Validate(); err != nil {
		return err
	}
	return e.GenomeConfig().Validate()
}

// GenomeConfig returns the genome bounds for the odor world: two smell
// sensors in, three motor commands out.
func (e Experiment) GenomeConfig() genotype.Config {
	cfg := genotype.DefaultConfig()
	cfg.NumInputs = scape.SensorCount
	cfg.NumOutputs = scape.ActuatorCount
	cfg.MaxNodes = e.Genome.MaxNodes
	cfg.AllowSelfConnection = e.Genome.AllowSelfConnection
	cfg.MinConnectionStrength = e.Genome.MinConnectionStrength
	cfg.MaxConnectionStrength = e.Genome.MaxConnectionStrength
	cfg.NodeMaxBias = e.Genome.NodeMaxBias
	cfg.AllowedRules = append([]string(nil), e.Genome.AllowedRules...)
	cfg.SynapseRules = append([]string(nil), e.Genome.SynapseRules...)
	cfg.InitialTopology = e.Genome.InitialTopology
	cfg.InitialDensity = e.Genome.InitialDensity
	return cfg
}

// PopulationConfig leaves Logger and Metrics to the caller.
func (e Experiment) PopulationConfig() evo.PopulationConfig {
	selector, err := evo.ParseSelector(e.Selector, e.TournamentSize)
	if err != nil {
		selector = evo.EliteSelector{}
	}
	return evo.PopulationConfig{
		Capacity:         e.Population,
		EliminationRatio: e.EliminationRatio,
		EliteCount:       e.EliteCount,
		CrossoverRate:    e.CrossoverRate,
		Workers:          e.Workers,
		Seed:             e.Seed,
		Selector:         selector,
	}
}

func (e Experiment) Mutator() (*evo.Mutator, error) {
	policy, err := evo.PolicyFromWeights(e.MutationWeights)
	if err != nil {
		return nil, err
	}
	m, err := evo.NewMutator(policy)
	if err != nil {
		return nil, err
	}
	count, err := evo.ParseTopologicalMutations(e.TopologicalPolicy, e.TopologicalCount, e.TopologicalMultiplier)
	if err != nil {
		return nil, err
	}
	m.Count = count
	return m, nil
}

func (e Experiment) Evaluator() *scape.Evaluator {
	ev := scape.NewOdorWorldEvaluator(e.MaxMoves, e.Seed)
	ev.Radius = e.Radius
	return ev
}
