package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/ranganaths/swarmctl/errors"
	"github.com/ranganaths/swarmctl/observability"
	"github.com/ranganaths/swarmctl/runtime"
)

// DefaultDependencyContextPrefixChars bounds how much of a completed
// dependency's result is injected into a dependent sub-task's prompt.
const DefaultDependencyContextPrefixChars = 500

// DefaultSynthesisResultPrefixChars bounds how much of each sub-task's
// result is included in the synthesis prompt.
const DefaultSynthesisResultPrefixChars = 800

// DefaultIntroDelay is the grace period Submit waits before starting phase 1,
// reserved for external UI animation (e.g. a commander-spawn splash).
const DefaultIntroDelay = time.Second

// IntroDelayFunc blocks for d or until ctx is cancelled, whichever comes
// first. It is a suspension point: it must hold no locks while waiting.
type IntroDelayFunc func(ctx context.Context, d time.Duration)

func defaultIntroDelay(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Options configures an Orchestrator. Zero values fall back to spec
// defaults.
type Options struct {
	Workspace                   string
	MaxSubtasks                 int
	FallbackRoleCount           int
	ShouldDecomposeMinWords     int
	DependencyContextPrefixChars int
	SynthesisResultPrefixChars  int
	PlannerModel                runtime.Model
	MaxPoolSize                 int
	PressureReleaseCeiling      ResourcePressure
	TransitionLogCap            int
	TransitionLogEvictPct       float64
	SnapshotInterval            time.Duration
	SnapshotRingSize            int
	AlertDedupWindow            time.Duration
	IdleCriticalSeconds         int
	CleanupWarningCount         int
	DedupWindow                 time.Duration

	// IntroDelay is the grace period before phase 1 begins (spec default
	// 1s). IntroDelayFunc overrides how that wait is performed; nil uses a
	// context-aware timer.
	IntroDelay     time.Duration
	IntroDelayFunc IntroDelayFunc
}

// Orchestrator is the facade coordinating decomposition, scheduling,
// concurrency control, sub-agent pooling, lifecycle tracking, and
// synthesis. All mutable state is owned by a single goroutine-serialized
// call path per commander; concurrent commanders interleave freely since
// they touch disjoint Orchestration records, but each commander's own
// subtasks are always driven from the one Submit call that owns it.
type Orchestrator struct {
	opts     Options
	rt       runtime.Runtime
	planner  *Planner

	scheduler  *Scheduler
	controller *Controller
	pool       *Pool
	lifecycle  *Lifecycle
	reaper     *Reaper
	monitor    *Monitor
	dedup      *PromptDedup
	queue      QueueMirror

	logger  observability.Logger
	tracer  *observability.Tracer
	metrics *observability.Collector

	mu             sync.Mutex
	orchestrations map[string]*Orchestration
	cancels        map[string]context.CancelFunc
	agents         map[string]*SubAgent // every SubAgent currently known to this process, live or pooled

	stopOnce    sync.Once
	monitorStop chan struct{}
	monitorDone chan struct{}
}

// New creates an Orchestrator wired to rt for all sub-agent CLI execution.
func New(rt runtime.Runtime, queue QueueMirror, stack *observability.Stack, opts Options) *Orchestrator {
	if opts.PlannerModel == "" {
		opts.PlannerModel = runtime.ModelHaiku
	}
	if queue == nil {
		queue = NewMemoryQueueMirror()
	}
	if opts.IntroDelay == 0 {
		opts.IntroDelay = DefaultIntroDelay
	}
	if opts.IntroDelayFunc == nil {
		opts.IntroDelayFunc = defaultIntroDelay
	}

	reaper := NewReaper(opts.IdleCriticalSeconds, opts.CleanupWarningCount)

	var logger observability.Logger
	var tracer *observability.Tracer
	var metrics *observability.Collector
	if stack != nil {
		logger = stack.Logger
		tracer = stack.Tracer
		metrics = stack.Metrics
	}

	o := &Orchestrator{
		opts:       opts,
		rt:         rt,
		planner:    NewPlanner(rt, opts.PlannerModel, opts.Workspace),
		scheduler:  NewScheduler(),
		controller: NewController(),
		pool:       NewPool(opts.MaxPoolSize, orDefaultPressure(opts.PressureReleaseCeiling)),
		lifecycle:  NewLifecycleWithCap(opts.TransitionLogCap, opts.TransitionLogEvictPct),
		reaper:     reaper,
		monitor:    NewMonitor(opts.SnapshotRingSize, opts.AlertDedupWindow, reaper, metrics, logger),
		dedup:      NewPromptDedup(opts.DedupWindow),
		queue:      queue,
		logger:     logger,
		tracer:     tracer,
		metrics:    metrics,

		orchestrations: make(map[string]*Orchestration),
		cancels:        make(map[string]context.CancelFunc),
		agents:         make(map[string]*SubAgent),

		monitorStop: make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
	o.startMonitorLoop()
	return o
}

// startMonitorLoop runs the monitor's periodic fleet sample on
// opts.SnapshotInterval. The ticker wait itself is the suspension point;
// sampleFleet only ever holds o.mu for the brief snapshot of current state,
// never across the wait.
func (o *Orchestrator) startMonitorLoop() {
	interval := o.opts.SnapshotInterval
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	go func() {
		defer close(o.monitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-o.monitorStop:
				return
			case now := <-ticker.C:
				o.sampleFleet(now)
			}
		}
	}()
}

// sampleFleet gathers the current FleetState from orchestrator-owned state
// and hands it to the monitor. Alerts are already logged/recorded by Sample
// itself; sampleFleet only assembles the input.
func (o *Orchestrator) sampleFleet(now time.Time) {
	o.mu.Lock()
	active := make([]*SubAgent, 0, len(o.agents))
	for _, a := range o.agents {
		active = append(active, a)
	}
	pending := 0
	for _, orch := range o.orchestrations {
		for _, st := range orch.Subtasks {
			if !st.Status.Terminal() {
				pending++
			}
		}
	}
	o.mu.Unlock()

	o.monitor.Sample(FleetState{
		Active:          active,
		PendingSubtasks: pending,
		Pressure:        o.controller.Pressure(),
	}, now)
}

func (o *Orchestrator) registerAgent(a *SubAgent) {
	o.mu.Lock()
	o.agents[a.ID] = a
	o.mu.Unlock()
}

func (o *Orchestrator) unregisterAgent(id string) {
	o.mu.Lock()
	delete(o.agents, id)
	o.mu.Unlock()
}

func orDefaultPressure(p ResourcePressure) ResourcePressure {
	if p == 0 {
		return DefaultPressureReleaseCeiling
	}
	return p
}

// Submit runs one prompt through the full plan/execute/synthesize pipeline
// and blocks until the orchestration reaches a terminal phase. The returned
// Orchestration is the same instance that Get returns for the commander, not
// a copy.
func (o *Orchestrator) Submit(ctx context.Context, commander *Commander, prompt string) (*Orchestration, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	orch := &Orchestration{
		CommanderID: commander.ID,
		Prompt:      prompt,
		Phase:       PhaseDecomposing,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	o.mu.Lock()
	o.orchestrations[commander.ID] = orch
	o.cancels[commander.ID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, commander.ID)
		o.mu.Unlock()
	}()

	o.opts.IntroDelayFunc(runCtx, o.opts.IntroDelay)
	if runCtx.Err() != nil {
		orch.Phase = PhaseFailed
		return orch, errors.ErrCanceled
	}

	ctx2, span := o.startPhaseSpan(runCtx, commander.ID, string(PhaseDecomposing))
	subtasks, err := o.decompose(ctx2, prompt)
	o.endSpan(span, err)
	if err != nil {
		orch.Phase = PhaseFailed
		return orch, err
	}
	orch.Subtasks = subtasks
	orch.Phase = PhaseExecuting
	orch.UpdatedAt = time.Now()

	for _, st := range orch.Subtasks {
		item := NewTaskQueueItem(commander.ID, st)
		_ = o.queue.Enqueue(runCtx, item)
		st.ExternalTaskID = item.QueueID
	}

	if err := o.execute(runCtx, commander, orch); err != nil {
		if errors.IsCanceled(err) {
			orch.Phase = PhaseFailed
			o.scheduler.RemoveOrchestration(commander.ID)
			return orch, err
		}
	}

	orch.Phase = PhaseSynthesizing
	orch.UpdatedAt = time.Now()
	ctx3, span3 := o.startPhaseSpan(runCtx, commander.ID, string(PhaseSynthesizing))
	synthesis, err := o.synthesize(ctx3, commander, orch)
	o.endSpan(span3, err)
	if err != nil {
		orch.Phase = PhaseCompleted
		orch.UpdatedAt = time.Now()
		commander.Status = CommanderError
		return orch, err
	}
	orch.Synthesis = synthesis
	orch.Phase = PhaseCompleted
	orch.UpdatedAt = time.Now()
	commander.Status = CommanderCompleted

	o.scheduler.RemoveOrchestration(commander.ID)
	return orch, nil
}

// Cancel requests cancellation of the in-flight orchestration owned by
// commanderID. It is a no-op if no such orchestration is running.
func (o *Orchestrator) Cancel(commanderID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[commanderID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// Get returns the current (possibly in-flight) Orchestration for
// commanderID.
func (o *Orchestrator) Get(commanderID string) (*Orchestration, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	orch, ok := o.orchestrations[commanderID]
	return orch, ok
}

func (o *Orchestrator) decompose(ctx context.Context, prompt string) ([]*SubTask, error) {
	minWords := o.opts.ShouldDecomposeMinWords
	if !ShouldDecompose(prompt, minWords) {
		return FallbackPlan(prompt, o.opts.FallbackRoleCount), nil
	}

	if o.dedup.SeenRecently(prompt) {
		o.logIfSet("duplicate prompt observed within dedup window", observability.String("prompt_len", fmt.Sprint(len(prompt))))
	}

	subtasks, err := o.planner.Decompose(ctx, prompt)
	if max := o.opts.MaxSubtasks; err == nil && max > 0 && len(subtasks) > max {
		subtasks = subtasks[:max]
	}
	if err != nil || len(subtasks) <= 1 {
		return FallbackPlan(prompt, o.opts.FallbackRoleCount), nil
	}
	return subtasks, nil
}

func (o *Orchestrator) logIfSet(msg string, fields ...observability.Field) {
	if o.logger != nil {
		o.logger.Debug(msg, fields...)
	}
}

// execute runs phase 2: demand-driven wave dispatch until every sub-task
// reaches a terminal status. A sub-task whose dependency failed is marked
// failed without ever running, isolating the failure to its dependents
// rather than the whole orchestration. Within a wave every ready sub-task is
// dispatched at once; admission past the current pressure limit is enforced
// by the controller's priority queue rather than by resizing the wave up
// front, so a high-priority sub-task queued behind a saturated limit is
// admitted ahead of lower-priority siblings the moment a slot frees.
func (o *Orchestrator) execute(ctx context.Context, commander *Commander, orch *Orchestration) error {
	for {
		if ctx.Err() != nil {
			o.failRemaining(orch, errors.ErrCanceled)
			return errors.ErrCanceled
		}

		o.cascadeFailures(orch)
		if orch.AllTerminal() {
			return nil
		}

		ready := ReadySubtasks(orch)
		if len(ready) == 0 {
			// Nothing ready and nothing left in flight (the previous wave
			// fully drained before this check runs): every remaining
			// subtask is blocked on a dependency that can never complete.
			o.failRemaining(orch, errors.ErrDependencyCycle)
			return nil
		}

		batch := o.scheduler.NextBatch(orch, len(ready))
		orch.Wave++

		var wg sync.WaitGroup
		var agentsMu sync.Mutex
		var agentIDs []string
		for _, st := range batch {
			wg.Add(1)
			go func(st *SubTask) {
				defer wg.Done()
				agentID, ok := o.runSubtask(ctx, commander, orch, st)
				if !ok {
					return
				}
				agentsMu.Lock()
				agentIDs = append(agentIDs, agentID)
				agentsMu.Unlock()
			}(st)
		}
		wg.Wait()

		if len(agentIDs) > 0 {
			o.mu.Lock()
			commander.SubAgentID = append(commander.SubAgentID, agentIDs...)
			o.mu.Unlock()
		}
	}
}

// cascadeFailures marks every non-terminal sub-task whose dependency has
// failed as permanently failed-for-synthesis: a dependent can never become
// ready once its dependency is gone, so it is resolved immediately rather
// than left pending forever.
func (o *Orchestrator) cascadeFailures(orch *Orchestration) {
	changed := true
	for changed {
		changed = false
		for _, st := range orch.Subtasks {
			if st.Status.Terminal() {
				continue
			}
			for _, dep := range st.Dependencies {
				if dep >= 0 && dep < len(orch.Subtasks) && orch.Subtasks[dep].Status == SubTaskFailed {
					st.Status = SubTaskFailed
					st.Error = fmt.Sprintf("dependency subtask %d failed", dep)
					st.CompletedAt = time.Now()
					changed = true
					break
				}
			}
		}
	}
}

func (o *Orchestrator) failRemaining(orch *Orchestration, cause error) {
	for _, st := range orch.Subtasks {
		if !st.Status.Terminal() {
			st.Status = SubTaskFailed
			st.Error = cause.Error()
			st.CompletedAt = time.Now()
		}
	}
}

// runSubtask first obtains an admission slot from the controller (queueing
// by priority if the current pressure limit is saturated), then drives the
// sub-task through agent acquisition, execution, and release. It never
// returns an error: failures are recorded on the SubTask itself so the wave
// loop can continue with its siblings. ok is false only when admission
// itself was aborted by ctx cancellation, in which case no agent was ever
// acquired and the caller must not fold an empty agentID into the
// commander's assignment history.
func (o *Orchestrator) runSubtask(ctx context.Context, commander *Commander, orch *Orchestration, st *SubTask) (agentID string, ok bool) {
	if !o.controller.Admit(ctx, st.Priority) {
		st.Status = SubTaskFailed
		st.Error = errors.ErrCanceled.Error()
		st.CompletedAt = time.Now()
		return "", false
	}
	defer o.controller.TaskCompleted()

	st.Status = SubTaskInProgress
	st.StartedAt = time.Now()
	o.scheduler.RecordScheduled(commander.ID)
	_ = o.queue.MarkStarted(ctx, st.ExternalTaskID, st.StartedAt)

	role := RoleForIndex(st.Index)
	agent := o.pool.AcquireOrCreate(role, commander.ID)
	agent.AssignedTaskIdx = st.Index
	st.AssignedAgentID = agent.ID
	agentID = agent.ID
	o.registerAgent(agent)

	if agent.Status == StatusInitializing {
		_ = o.lifecycle.Transition(agent, StatusIdle)
	}
	_ = o.lifecycle.Transition(agent, StatusWorking)
	if o.metrics != nil {
		o.metrics.RecordLifecycleTransition(string(StatusWorking))
	}

	prompt := o.buildDependencyPrompt(orch, st)

	ctx2, span := o.startSubtaskSpan(ctx, commander.ID, st, agent)
	result, failErr := o.runOnCLI(ctx2, commander.Model, prompt, agent)
	o.endSpan(span, failErr)

	pressure := o.reaper.ComputePressure(o.controller.Active(), 0)
	o.controller.SetPressure(pressure)

	if failErr != nil {
		st.Status = SubTaskFailed
		st.Error = failErr.Error()
		_ = o.lifecycle.Transition(agent, StatusError)
		_ = o.queue.MarkStatus(ctx, st.ExternalTaskID, SubTaskFailed)
		if o.metrics != nil {
			o.metrics.RecordError("runtime")
			o.metrics.RecordSubtaskCompleted("failed", time.Since(st.StartedAt))
		}
		_ = o.lifecycle.Transition(agent, StatusDestroying)
		o.pool.Release(agent, pressure)
		o.unregisterAgent(agent.ID)
		return agentID, true
	}

	st.Status = SubTaskCompleted
	st.Result = result
	st.CompletedAt = time.Now()
	o.scheduler.RecordCompleted(commander.ID, st.StartedAt.Sub(st.CreatedAt))
	_ = o.queue.MarkStatus(ctx, st.ExternalTaskID, SubTaskCompleted)
	if o.metrics != nil {
		o.metrics.RecordSubtaskCompleted("completed", time.Since(st.StartedAt))
	}

	_ = o.lifecycle.Transition(agent, StatusCompleted)
	if o.pool.Release(agent, pressure) {
		_ = o.lifecycle.Transition(agent, StatusPooled)
	} else {
		_ = o.lifecycle.Transition(agent, StatusDestroying)
		o.unregisterAgent(agent.ID)
	}
	return agentID, true
}

func (o *Orchestrator) buildDependencyPrompt(orch *Orchestration, st *SubTask) string {
	if len(st.Dependencies) == 0 {
		return st.Prompt
	}
	prefix := o.opts.DependencyContextPrefixChars
	if prefix <= 0 {
		prefix = DefaultDependencyContextPrefixChars
	}
	var b strings.Builder
	b.WriteString("Context from previous steps:\n")
	for _, dep := range st.Dependencies {
		if dep < 0 || dep >= len(orch.Subtasks) {
			continue
		}
		depTask := orch.Subtasks[dep]
		b.WriteString("- ")
		b.WriteString(depTask.Title)
		b.WriteString(": ")
		b.WriteString(truncate(depTask.Result, prefix))
		b.WriteString("\n")
	}
	b.WriteString("\nTask:\n")
	b.WriteString(st.Prompt)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (o *Orchestrator) runOnCLI(ctx context.Context, model Model, prompt string, agent *SubAgent) (string, error) {
	events, err := o.rt.Run(ctx, runtime.Model(model), prompt, o.opts.Workspace)
	if err != nil {
		return "", err
	}
	var result strings.Builder
	var runErr error
	for ev := range events {
		switch ev.Kind {
		case runtime.EventStatusChange:
			agent.Status = SubAgentStatus(ev.Status)
		case runtime.EventCompleted:
			result.WriteString(ev.Result)
		case runtime.EventFailed:
			runErr = ev.Err
		}
	}
	if runErr != nil {
		return "", runErr
	}
	return result.String(), nil
}

// synthesize runs phase 3: combines every completed sub-task's result (and
// every failure's error) into one final answer via the commander's model.
func (o *Orchestrator) synthesize(ctx context.Context, commander *Commander, orch *Orchestration) (string, error) {
	prefix := o.opts.SynthesisResultPrefixChars
	if prefix <= 0 {
		prefix = DefaultSynthesisResultPrefixChars
	}

	var b strings.Builder
	b.WriteString("Synthesize a final answer to the original task from these subtask results.\n\n")
	b.WriteString("Original task:\n")
	b.WriteString(orch.Prompt)
	b.WriteString("\n\nSubtask results:\n")
	for _, st := range orch.Subtasks {
		if st.Status == SubTaskCompleted {
			b.WriteString(fmt.Sprintf("- [COMPLETED] %s: ", st.Title))
			b.WriteString(truncate(st.Result, prefix))
		} else {
			b.WriteString(fmt.Sprintf("- [FAILED] %s: ", st.Title))
			b.WriteString("Error: ")
			b.WriteString(truncate(st.Error, prefix))
		}
		b.WriteString("\n")
	}

	events, err := o.rt.Run(ctx, runtime.Model(commander.Model), b.String(), o.opts.Workspace)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	var runErr error
	for ev := range events {
		switch ev.Kind {
		case runtime.EventCompleted:
			out.WriteString(ev.Result)
		case runtime.EventFailed:
			runErr = ev.Err
		}
	}
	if runErr != nil {
		return "", runErr
	}
	return out.String(), nil
}

// Shutdown cancels every in-flight orchestration and aggregates the
// resulting cancellation errors with multierr, so a caller doing a graceful
// shutdown gets one combined error rather than having to poll per
// commander. It also stops the monitor's background sampling loop.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, cancel := range o.cancels {
		cancels = append(cancels, cancel)
	}
	o.mu.Unlock()

	var errs error
	for _, cancel := range cancels {
		cancel()
		errs = multierr.Append(errs, errors.ErrCanceled)
	}

	o.stopOnce.Do(func() {
		close(o.monitorStop)
		<-o.monitorDone
	})
	return errs
}

func (o *Orchestrator) startPhaseSpan(ctx context.Context, commanderID, phase string) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.StartPhaseSpan(ctx, commanderID, phase)
}

func (o *Orchestrator) startSubtaskSpan(ctx context.Context, commanderID string, st *SubTask, agent *SubAgent) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.StartSubtaskSpan(ctx, commanderID, st.Index, st.Title, agent.ID, string(agent.Role))
}

func (o *Orchestrator) endSpan(span trace.Span, err error) {
	if o.tracer == nil || span == nil {
		return
	}
	o.tracer.EndSpan(span, err)
}
