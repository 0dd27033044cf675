// Package anneal runs simulated annealing over scene layouts.
package anneal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

var (
	// ErrRejectionStorm is returned when no valid proposal was found within the retry ceiling
	ErrRejectionStorm = errors.New("hard constraint rejection storm")
	// ErrNotInitialized is returned when stepping before Init
	ErrNotInitialized = errors.New("optimizer not initialized")
	// ErrTerminated is returned when stepping after a terminal status
	ErrTerminated = errors.New("optimizer already terminated")
)

// Status is the optimizer state machine position
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusConverged
	StatusMaxIterationsReached
	StatusFailed
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusMaxIterationsReached:
		return "max_iterations_reached"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether no further steps are possible
func (s Status) Terminal() bool {
	return s == StatusConverged || s == StatusMaxIterationsReached || s == StatusFailed
}

// StepResult describes one committed iteration
type StepResult struct {
	Iteration       int          `json:"iteration"`
	Generation      uint64       `json:"generation"`
	Temperature     float64      `json:"temperature"`
	Mutation        string       `json:"mutation"`
	MutationApplied bool         `json:"mutation_applied"`
	ProposalCost    float64      `json:"proposal_cost"`
	CurrentCost     float64      `json:"current_cost"`
	AcceptProb      float64      `json:"accept_prob"`
	Accepted        bool         `json:"accepted"`
	Rejections      int          `json:"rejections"` // hard rejects before this proposal
	Objects         int          `json:"objects"`
	Terms           CostTerms    `json:"terms"`
	Normalized      Normalized   `json:"normalized"`
	Scores          scene.Scores `json:"scores"`
	Status          string       `json:"status"`
	Reason          string       `json:"reason,omitempty"`
}

// StepHook observes every committed iteration
type StepHook func(StepResult)

// Result is the final outcome of a run
type Result struct {
	State          *scene.State
	Cost           float64
	Iterations     int
	Status         Status
	Reason         string
	History        []float64
	Accepted       int
	Rejected       int
	HardRejections int
}

// Progress is a point-in-time view of a running optimizer
type Progress struct {
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Iteration      int       `json:"iteration"`
	MaxIterations  int       `json:"max_iterations"`
	Generation     uint64    `json:"generation"`
	Temperature    float64   `json:"temperature"`
	Cost           float64   `json:"cost"`
	Terms          CostTerms `json:"terms"`
	Objects        int       `json:"objects"`
	Lights         int       `json:"lights"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	HardRejections int       `json:"hard_rejections"`
}

// Optimizer implements simulated annealing over scene states. Step is
// single-threaded; the mutex only guards snapshot reads from other goroutines.
type Optimizer struct {
	cfg         *config.RunConfig
	ev          *scene.Evaluator
	rng         *utils.RandSource
	cost        *CostFunction
	convergence ConvergenceStrategy
	hooks       []StepHook
	log         *slog.Logger

	mu             sync.RWMutex
	current        *scene.State
	generation     uint64
	currentCost    float64
	currentTerms   CostTerms
	temperature    float64
	iteration      int
	history        []float64
	status         Status
	reason         string
	accepted       int
	rejected       int
	hardRejections int
}

// NewOptimizer creates an optimizer for one run
func NewOptimizer(cfg *config.RunConfig, ev *scene.Evaluator, rng *utils.RandSource) (*Optimizer, error) {
	if cfg == nil || ev == nil || rng == nil {
		return nil, fmt.Errorf("config, evaluator and random source are required")
	}
	strategy, err := NewConvergenceStrategy(cfg.Convergence)
	if err != nil {
		return nil, err
	}
	return &Optimizer{
		cfg:         cfg,
		ev:          ev,
		rng:         rng,
		cost:        NewCostFunction(cfg),
		convergence: strategy,
		log:         logger.Default,
		temperature: cfg.Annealing.InitialTemperature,
		history:     make([]float64, 0, cfg.Annealing.MaxIterations),
	}, nil
}

// WithHook registers an observer called after every committed iteration
func (o *Optimizer) WithHook(hook StepHook) *Optimizer {
	o.hooks = append(o.hooks, hook)
	return o
}

// WithLogger sets the logger
func (o *Optimizer) WithLogger(l *slog.Logger) *Optimizer {
	o.log = l
	return o
}

// WithConvergence replaces the convergence strategy
func (o *Optimizer) WithConvergence(strategy ConvergenceStrategy) *Optimizer {
	o.convergence = strategy
	return o
}

// Init installs the initial state, drawing a random layout when initial is nil
func (o *Optimizer) Init(initial *scene.State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != StatusIdle {
		return fmt.Errorf("optimizer already initialized (status %s)", o.status)
	}

	var err error
	if initial == nil {
		initial, err = scene.NewRandom(o.ev, o.rng)
		if err != nil {
			return fmt.Errorf("failed to create random initial scene: %w", err)
		}
	} else if !initial.Evaluated() {
		if err := o.ev.Evaluate(initial); err != nil {
			return fmt.Errorf("failed to evaluate initial scene: %w", err)
		}
	}

	if o.cfg.Annealing.ConstraintMode == config.ConstraintHard {
		v, err := o.ev.Check(initial)
		if err != nil {
			return fmt.Errorf("failed to check initial scene: %w", err)
		}
		if v != nil {
			o.log.Warn("initial scene violates hard constraints", "rule", v.Rule, "detail", v.Detail)
		}
	}

	scores, _ := initial.Scores()
	o.current = initial
	o.currentTerms, _ = o.cost.Cost(scores)
	o.currentCost = o.currentTerms.Total
	o.status = StatusRunning
	o.log.Info("optimizer initialized",
		"objects", len(initial.Objects),
		"lights", len(initial.Lights),
		"cost", o.currentCost,
		"proposal_mode", o.cfg.Annealing.ProposalMode,
		"constraint_mode", o.cfg.Annealing.ConstraintMode)
	return nil
}

// Step runs one mutate-evaluate-accept cycle. In hard constraint mode invalid
// proposals are discarded and redrawn without advancing the iteration or the
// temperature.
func (o *Optimizer) Step() (StepResult, error) {
	o.mu.Lock()
	res, err := o.step()
	o.mu.Unlock()
	if err != nil {
		return res, err
	}
	for _, hook := range o.hooks {
		hook(res)
	}
	return res, nil
}

func (o *Optimizer) step() (StepResult, error) {
	switch {
	case o.status == StatusIdle:
		return StepResult{}, ErrNotInitialized
	case o.status.Terminal():
		return StepResult{}, fmt.Errorf("%w (status %s)", ErrTerminated, o.status)
	}

	inPlace := o.cfg.Annealing.ProposalMode == config.ProposalInPlace
	hard := o.cfg.Annealing.ConstraintMode == config.ConstraintHard

	var proposal *scene.State
	var mutation *scene.Mutation
	rejections := 0
	for {
		if inPlace {
			proposal = o.current
		} else {
			proposal = o.current.Clone()
		}
		mutation = scene.NewMutation(proposal, o.ev, o.rng)
		mutation.ApplyRandom()
		if !hard {
			break
		}

		v, err := o.ev.Check(proposal)
		if err != nil {
			mutation.Revert()
			return StepResult{}, o.fail(fmt.Errorf("constraint check failed: %w", err))
		}
		if v == nil {
			break
		}
		if inPlace {
			mutation.Revert()
		}
		rejections++
		o.hardRejections++
		o.log.Debug("proposal rejected", "mutation", mutation.Kind().String(), "rule", v.Rule, "detail", v.Detail)
		if rejections >= o.cfg.Annealing.MaxRejections {
			o.log.Warn("hard constraint rejection storm",
				"iteration", o.iteration,
				"rejections", rejections,
				"last_rule", v.Rule)
			return StepResult{}, o.fail(fmt.Errorf("%w: %d consecutive rejections at iteration %d (last: %s)",
				ErrRejectionStorm, rejections, o.iteration, v.Error()))
		}
	}

	if err := o.ev.Evaluate(proposal); err != nil {
		mutation.Revert()
		return StepResult{}, o.fail(fmt.Errorf("failed to evaluate proposal: %w", err))
	}
	scores, _ := proposal.Scores()
	terms, normalized := o.cost.Cost(scores)

	delta := terms.Total - o.currentCost
	p := AcceptProbability(delta, o.temperature)
	accepted := o.rng.BernoulliBool(p)
	if accepted {
		if !inPlace {
			o.current = proposal
		}
		o.generation++
		o.currentCost = terms.Total
		o.currentTerms = terms
		o.accepted++
	} else {
		if inPlace {
			mutation.Revert()
		}
		o.rejected++
	}

	o.temperature *= o.cfg.Annealing.CoolingRate
	o.history = append(o.history, o.currentCost)
	o.iteration++

	if converged, reason := o.convergence.CheckConvergence(o.history, o.temperature); converged {
		o.status = StatusConverged
		o.reason = fmt.Sprintf("%s: %s", o.convergence.Name(), reason)
		o.log.Info("optimization converged", "iteration", o.iteration, "cost", o.currentCost, "reason", o.reason)
	} else if o.iteration >= o.cfg.Annealing.MaxIterations {
		o.status = StatusMaxIterationsReached
		o.reason = fmt.Sprintf("reached %d iterations", o.iteration)
		o.log.Info("optimization reached max iterations", "iteration", o.iteration, "cost", o.currentCost)
	}

	res := StepResult{
		Iteration:       o.iteration,
		Generation:      o.generation,
		Temperature:     o.temperature,
		Mutation:        mutation.Kind().String(),
		MutationApplied: mutation.Applied(),
		ProposalCost:    terms.Total,
		CurrentCost:     o.currentCost,
		AcceptProb:      p,
		Accepted:        accepted,
		Rejections:      rejections,
		Objects:         len(o.current.Objects),
		Terms:           terms,
		Normalized:      normalized,
		Scores:          scores,
		Status:          o.status.String(),
		Reason:          o.reason,
	}
	o.log.Debug("optimizer step",
		"iteration", res.Iteration,
		"mutation", res.Mutation,
		"delta", delta,
		"accepted", accepted,
		"temperature", res.Temperature,
		"cost", res.CurrentCost)
	return res, nil
}

func (o *Optimizer) fail(err error) error {
	o.status = StatusFailed
	o.reason = err.Error()
	return err
}

// StepN runs up to n iterations, stopping early at a terminal status
func (o *Optimizer) StepN(ctx context.Context, n int) (int, error) {
	done := 0
	for done < n {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if o.Status().Terminal() {
			break
		}
		if _, err := o.Step(); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Run steps until a terminal status. Cancelling ctx stops between iterations
// and returns the partial result with the context error.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	for !o.Status().Terminal() {
		if err := ctx.Err(); err != nil {
			return o.Result(), err
		}
		if _, err := o.Step(); err != nil {
			return o.Result(), err
		}
	}
	return o.Result(), nil
}

// Result returns the outcome so far with a copy of the current state
func (o *Optimizer) Result() *Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res := &Result{
		Cost:           o.currentCost,
		Iterations:     o.iteration,
		Status:         o.status,
		Reason:         o.reason,
		History:        append([]float64(nil), o.history...),
		Accepted:       o.accepted,
		Rejected:       o.rejected,
		HardRejections: o.hardRejections,
	}
	if o.current != nil {
		res.State = o.current.Clone()
	}
	return res
}

// Current returns a copy of the current state, nil before Init
func (o *Optimizer) Current() *scene.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.current == nil {
		return nil
	}
	return o.current.Clone()
}

// Progress returns a snapshot for observers
func (o *Optimizer) Progress() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p := Progress{
		Status:         o.status.String(),
		Reason:         o.reason,
		Iteration:      o.iteration,
		MaxIterations:  o.cfg.Annealing.MaxIterations,
		Generation:     o.generation,
		Temperature:    o.temperature,
		Cost:           o.currentCost,
		Terms:          o.currentTerms,
		Accepted:       o.accepted,
		Rejected:       o.rejected,
		HardRejections: o.hardRejections,
	}
	if o.current != nil {
		p.Objects = len(o.current.Objects)
		p.Lights = len(o.current.Lights)
	}
	return p
}

// Status returns the state machine position
func (o *Optimizer) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Iteration returns the number of committed iterations
func (o *Optimizer) Iteration() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.iteration
}

// Temperature returns the current temperature
func (o *Optimizer) Temperature() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.temperature
}

// History returns a copy of the per-iteration current cost
func (o *Optimizer) History() []float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]float64(nil), o.history...)
}
