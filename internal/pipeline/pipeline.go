// Package pipeline runs the scoring stages in order over one player table.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pable/cs-impact/internal/aggregator"
	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/deriver"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/logger"
	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/piv"
	"github.com/pable/cs-impact/internal/roles"
	"github.com/pable/cs-impact/internal/tir"
	"github.com/pable/cs-impact/internal/weights"
)

// Context carries everything a run needs besides the player table. It is
// built once with New and never modified by Run.
type Context struct {
	cfg         *config.Config
	book        roles.Book
	roleWeights piv.WeightTable
	outcomes    []model.RoundOutcome
	fixed       *model.WeightTable
	store       weights.Store
	rec         *diag.Recorder
	log         logger.Logger
	now         func() time.Time
}

// Option configures a Context.
type Option func(*Context)

// WithRoleBook sets the external role table.
func WithRoleBook(b roles.Book) Option {
	return func(c *Context) { c.book = b }
}

// WithRoleWeights replaces the built-in role core score table.
func WithRoleWeights(w piv.WeightTable) Option {
	return func(c *Context) {
		if w != nil {
			c.roleWeights = w
		}
	}
}

// WithOutcomes supplies historical round outcomes for weight learning and
// prediction accuracy.
func WithOutcomes(o []model.RoundOutcome) Option {
	return func(c *Context) { c.outcomes = o }
}

// WithWeights pins the TIR weight table and skips learning.
func WithWeights(w model.WeightTable) Option {
	return func(c *Context) { c.fixed = &w }
}

// WithStore persists every learned weight table.
func WithStore(s weights.Store) Option {
	return func(c *Context) { c.store = s }
}

// WithRecorder sets the diagnostics recorder; by default each Context gets
// its own.
func WithRecorder(r *diag.Recorder) Option {
	return func(c *Context) {
		if r != nil {
			c.rec = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source used for run and fit timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a run context over cfg.
func New(cfg *config.Config, opts ...Option) *Context {
	c := &Context{
		cfg:         cfg,
		roleWeights: piv.DefaultWeights(),
		log:         logger.Named("pipeline"),
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.rec == nil {
		c.rec = diag.NewRecorder(diag.WithLogger(c.log))
	}
	return c
}

// Recorder returns the run's diagnostics recorder.
func (c *Context) Recorder() *diag.Recorder { return c.rec }

// Result is the output of one run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	Players     []model.PlayerRecord
	Teams       []model.TeamRecord
	Weights     model.WeightTable
	Predictions []model.MatchPrediction
	Accuracy    tir.Accuracy
	Diagnostics []diag.Count
}

// Run executes every stage over players. The only fatal data condition is
// an empty player table; all other problems are substituted and recorded.
// ctx is checked between stages.
func (c *Context) Run(ctx context.Context, players []model.PlayerRecord) (*Result, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("run pipeline: %w: player table is empty", diag.ErrNoInput)
	}
	res := &Result{RunID: uuid.NewString(), StartedAt: c.now().UTC()}
	log := c.log
	log.Info(ctx, "run started", logger.String("run_id", res.RunID), logger.Int("players", len(players)))

	cfg := c.cfg
	steps := []struct {
		name string
		fn   func()
	}{
		{"derive", func() { players = deriver.New(cfg.Deriver).Derive(players, c.rec) }},
		{"roles", func() { players = roles.New(cfg.Classifier).Classify(players, c.book, c.rec) }},
		{"piv", func() { players = piv.New(cfg.Scoring, c.roleWeights).Score(players, c.rec) }},
		{"aggregate", func() { players, res.Teams = aggregator.Aggregate(players, c.rec) }},
		{"weights", func() { res.Weights = c.weights(ctx, res.Teams) }},
		{"tir", func() {
			r := tir.New(cfg.TIR)
			res.Teams = r.Rate(res.Teams, res.Weights, c.rec)
			res.Predictions, res.Accuracy = r.Predict(res.Teams, c.outcomes)
		}},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run pipeline before %s: %w", s.name, err)
		}
		s.fn()
		log.Debug(ctx, "stage done", logger.String("stage", s.name))
	}

	if c.store != nil && res.Weights.Meta.Source == model.WeightsLearned {
		if err := c.store.Save(res.Weights); err != nil {
			return nil, fmt.Errorf("save weights: %w", err)
		}
	}

	res.Players = players
	res.Diagnostics = c.rec.Snapshot()
	c.rec.Summarize(ctx)

	fields := []logger.Field{
		logger.String("run_id", res.RunID),
		logger.Int("teams", len(res.Teams)),
		logger.String("weights", string(res.Weights.Meta.Source)),
		logger.Int("predictions", len(res.Predictions)),
	}
	if res.Accuracy.Evaluated > 0 {
		fields = append(fields, logger.Float64("accuracy", res.Accuracy.Rate()))
	}
	log.Info(ctx, "run finished", fields...)
	return res, nil
}

func (c *Context) weights(ctx context.Context, teams []model.TeamRecord) model.WeightTable {
	if c.fixed != nil {
		c.log.Debug(ctx, "using pinned weights", logger.String("version", c.fixed.Meta.Version))
		return *c.fixed
	}
	return weights.NewLearner(c.cfg.Learner).Fit(teams, c.outcomes, c.now().UTC(), c.rec)
}
