package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evonet"

// Recorder owns the collectors for one process. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	generations        prometheus.Counter
	evaluations        prometheus.Counter
	unstable           prometheus.Counter
	mutationRejections *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	bestFitness        *prometheus.GaugeVec
	meanFitness        *prometheus.GaugeVec
	evaluationSeconds  prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations evaluated.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Rollouts run.",
		}),
		unstable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unstable_rollouts_total",
			Help:      "Rollouts ended early by a non-finite activation or strength.",
		}),
		mutationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_rejections_total",
			Help:      "Mutation attempts whose child failed to decode.",
		}, []string{"operator"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Accepted mutation operator applications.",
		}, []string{"operator"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of the latest generation.",
		}, []string{"run_id"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of the latest generation.",
		}, []string{"run_id"}),
		evaluationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_seconds",
			Help:      "Wall time of one rollout.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	r.registry.MustRegister(
		r.generations,
		r.evaluations,
		r.unstable,
		r.mutationRejections,
		r.mutations,
		r.bestFitness,
		r.meanFitness,
		r.evaluationSeconds,
	)
	return r
}

// Registry exposes the collectors for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveGeneration(runID string, best, mean float64) {
	if r == nil {
		return
	}
	r.generations.Inc()
	r.bestFitness.WithLabelValues(runID).Set(best)
	r.meanFitness.WithLabelValues(runID).Set(mean)
}

func (r *Recorder) ObserveEvaluation(seconds float64, unstable bool) {
	if r == nil {
		return
	}
	r.evaluations.Inc()
	r.evaluationSeconds.Observe(seconds)
	if unstable {
		r.unstable.Inc()
	}
}

func (r *Recorder) ObserveMutation(operator string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(operator).Inc()
}

func (r *Recorder) ObserveMutationRejected(operator string) {
	if r == nil {
		return
	}
	r.mutationRejections.WithLabelValues(operator).Inc()
}
