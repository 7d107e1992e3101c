// Package diag records degraded-mode substitutions made by pipeline stages.
package diag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pable/cs-impact/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names a pipeline stage for diagnostics.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageDerive    Stage = "derive"
	StageRoles     Stage = "roles"
	StagePIV       Stage = "piv"
	StageAggregate Stage = "aggregate"
	StageWeights   Stage = "weights"
	StageTIR       Stage = "tir"
)

// Count is the number of substitutions of one kind made by one stage.
type Count struct {
	Stage  Stage
	Kind   string
	Count  int
	Detail string // first detail seen for this (stage, kind)
}

type countKey struct {
	stage Stage
	kind  string
}

// Recorder accumulates substitution counts for one run. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	namespace string
	registry  *prometheus.Registry
	log       logger.Logger

	mu      sync.Mutex
	counts  map[countKey]int
	details map[countKey]string

	degraded *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own Prometheus registry.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "csimpact",
		registry:  prometheus.NewRegistry(),
		log:       logger.Nop(),
		counts:    make(map[countKey]int),
		details:   make(map[countKey]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	auto := promauto.With(r.registry)
	r.degraded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "degraded_total",
		Help:      "Default-value substitutions by stage and kind",
	}, []string{"stage", "kind"})
	r.rows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "stage_rows_total",
		Help:      "Rows emitted by each stage",
	}, []string{"stage"})
	return r
}

// Note records n substitutions of the given kind. kind should wrap one of
// the package sentinels; detail is free text shown in logs.
func (r *Recorder) Note(stage Stage, kind error, n int, detail string) {
	if r == nil || n <= 0 {
		return
	}
	name := KindName(kind)
	k := countKey{stage: stage, kind: name}

	r.mu.Lock()
	r.counts[k] += n
	if _, ok := r.details[k]; !ok {
		r.details[k] = detail
	}
	r.mu.Unlock()

	r.degraded.WithLabelValues(string(stage), name).Add(float64(n))
	r.log.Debug(context.Background(), "substituted default",
		logger.String("stage", string(stage)),
		logger.String("kind", name),
		logger.Int("rows", n),
		logger.String("detail", detail),
	)
}

// Rows records the number of rows a stage emitted.
func (r *Recorder) Rows(stage Stage, n int) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(string(stage)).Add(float64(n))
}

// Count returns the accumulated count for (stage, kind).
func (r *Recorder) Count(stage Stage, kind error) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[countKey{stage: stage, kind: KindName(kind)}]
}

// Total returns the accumulated count for kind across all stages.
func (r *Recorder) Total(kind error) int {
	if r == nil {
		return 0
	}
	name := KindName(kind)
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for k, n := range r.counts {
		if k.kind == name {
			total += n
		}
	}
	return total
}

// Snapshot returns all counts ordered by stage then kind.
func (r *Recorder) Snapshot() []Count {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Count, 0, len(r.counts))
	for k, n := range r.counts {
		out = append(out, Count{Stage: k.stage, Kind: k.kind, Count: n, Detail: r.details[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Summarize logs one warn record per (stage, kind).
func (r *Recorder) Summarize(ctx context.Context) {
	for _, c := range r.Snapshot() {
		r.log.Warn(ctx, "degraded mode",
			logger.String("stage", string(c.Stage)),
			logger.String("kind", c.Kind),
			logger.Int("count", c.Count),
			logger.String("example", c.Detail),
		)
	}
}

// WriteTextfile writes the counters in Prometheus text format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
