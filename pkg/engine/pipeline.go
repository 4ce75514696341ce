package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/store"
)

// Options are the tunables of a pipeline run. Zero values are
// replaced with defaults.
type Options struct {
	// MaxParallel bounds the worker pool within a phase.
	MaxParallel int

	// RetryLimit is the total number of attempts per resource for
	// retryable (timeout) failures.
	RetryLimit int

	// Timeout bounds every collaborator call inside Apply/Verify.
	Timeout time.Duration

	// BackoffBase and BackoffMax shape the retry backoff.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// DryRun plans every phase without applying anything.
	DryRun bool
}

func (o Options) withDefaults() Options {
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	return o
}

// MetricsRecorder receives per-resource apply observations. Satisfied
// by telemetry.Metrics; nil disables recording.
type MetricsRecorder interface {
	ObserveApply(phase string, status store.Status, d time.Duration)
	IncRetry(phase string)
}

// Pipeline sequences phases in dependency order against one state
// store. A single control goroutine drives the phase loop; workers
// fan out only across resources within a phase.
type Pipeline struct {
	reg     *Registry
	store   store.Store
	opts    Options
	metrics MetricsRecorder
}

// New creates a pipeline over a phase registry and a state store.
func New(reg *Registry, st store.Store, opts Options, metrics MetricsRecorder) *Pipeline {
	return &Pipeline{
		reg:     reg,
		store:   st,
		opts:    opts.withDefaults(),
		metrics: metrics,
	}
}

// Run executes the requested phase, or the full chain for
// PhaseAll. Dependency gating applies in both modes; in single-phase
// mode prior store records from earlier runs satisfy the gate.
//
// The returned PipelineRun always reflects what was attempted, even
// when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, cfg *config.FabricConfig, requested string) (*PipelineRun, error) {
	phases, err := p.selectPhases(requested)
	if err != nil {
		return nil, err
	}

	run := &PipelineRun{
		ID:             uuid.New().String(),
		RequestedPhase: requested,
		Status:         RunStatusNotStarted,
		StartedAt:      time.Now(),
	}

	runLog, hasLog := p.store.(store.RunLog)
	if hasLog && !p.opts.DryRun {
		if err := runLog.CreateRun(ctx, store.Run{
			ID:             run.ID,
			RequestedPhase: requested,
			Status:         string(RunStatusRunning),
			StartedAt:      run.StartedAt.UTC(),
		}); err != nil {
			return run, err
		}
	}

	runErr := p.execute(ctx, run, cfg, phases)

	run.CompletedAt = time.Now()
	if runErr != nil {
		run.Status = RunStatusFailed
	} else {
		run.Status = RunStatusCompleted
	}

	if hasLog && !p.opts.DryRun {
		var errMsg *string
		if runErr != nil {
			s := runErr.Error()
			errMsg = &s
		}
		// Persist the outcome even when the run context was cancelled.
		if err := runLog.CompleteRun(context.WithoutCancel(ctx), run.ID, string(run.Status), errMsg); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record run completion")
		}
	}

	return run, runErr
}

// execute drives the phase loop. Phases are strictly sequential; all
// resources of phase N reach a terminal status before phase N+1
// begins.
func (p *Pipeline) execute(ctx context.Context, run *PipelineRun, cfg *config.FabricConfig, phases []Phase) error {
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}

		run.Status = RunStatusRunning
		plog := log.With().Str("run_id", run.ID).Str("phase", ph.Name()).Logger()

		// A dry run previews the whole chain, including phases whose
		// dependencies have not been applied yet; the gate only guards
		// real mutations.
		if !p.opts.DryRun {
			if err := p.checkDependencies(ctx, cfg, ph); err != nil {
				run.FailedPhase = ph.Name()
				return err
			}
		}

		resources, err := ph.Plan(ctx, cfg, p.store)
		if err != nil {
			run.FailedPhase = ph.Name()
			return fmt.Errorf("plan %s: %w", ph.Name(), err)
		}
		plog.Info().Int("resources", len(resources)).Bool("dry_run", p.opts.DryRun).Msg("phase planned")

		if p.opts.DryRun {
			run.Phases = append(run.Phases, dryRunResult(ph.Name(), resources))
			continue
		}

		records, err := p.executePhase(ctx, run.ID, ph, cfg, resources)
		result := PhaseResult{Phase: ph.Name(), Records: records}
		run.Phases = append(run.Phases, result)
		if err != nil {
			run.FailedPhase = ph.Name()
			return err
		}

		if failed := result.Counts()[store.StatusFailed]; failed > 0 {
			run.FailedPhase = ph.Name()
			plog.Error().Int("failed", failed).Msg("phase finished with failed resources")
			return NewApplyError(ph.Name(), failed)
		}
		plog.Info().Int("resources", len(records)).Msg("phase complete")
	}

	return nil
}

// selectPhases resolves the requested phase name against the registry.
func (p *Pipeline) selectPhases(requested string) ([]Phase, error) {
	if requested == "" || requested == PhaseAll {
		return p.reg.Phases(), nil
	}
	ph, ok := p.reg.Get(requested)
	if !ok {
		return nil, fmt.Errorf("unknown phase %q (known: %v)", requested, p.reg.Names())
	}
	return []Phase{ph}, nil
}

// checkDependencies verifies that every resource planned by every
// dependency phase is applied or verified. It fails fast with a
// DependencyError naming the missing phase, without attempting the
// phase.
func (p *Pipeline) checkDependencies(ctx context.Context, cfg *config.FabricConfig, ph Phase) error {
	for _, depName := range ph.Dependencies() {
		dep, ok := p.reg.Get(depName)
		if !ok {
			return NewDependencyError(ph.Name(), depName, "")
		}
		resources, err := dep.Plan(ctx, cfg, p.store)
		if err != nil {
			return fmt.Errorf("plan dependency %s: %w", depName, err)
		}
		for _, res := range resources {
			rec, found, err := p.store.Get(ctx, depName, res.Key)
			if err != nil {
				return err
			}
			if !found || !rec.Status.Satisfied() {
				return NewDependencyError(ph.Name(), depName, res.Key)
			}
		}
	}
	return nil
}

// executePhase fans the phase's resources out over a bounded worker
// pool. A failing resource is recorded and does not stop its
// siblings; only store failures and cancellation abort the pool.
func (p *Pipeline) executePhase(ctx context.Context, runID string, ph Phase, cfg *config.FabricConfig, resources []Resource) ([]store.Record, error) {
	if len(resources) == 0 {
		return nil, nil
	}

	workers := p.opts.MaxParallel
	if len(resources) < workers {
		workers = len(resources)
	}

	queue := make(chan Resource, len(resources))
	for _, res := range resources {
		queue <- res
	}
	close(queue)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		records  []store.Record
		fatalErr error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range queue {
				// Cancellation is honored between resources; an in-flight
				// collaborator call is allowed to complete.
				if ctx.Err() != nil {
					return
				}

				rec, err := p.applyResource(ctx, runID, ph, cfg, res)
				mu.Lock()
				if err != nil && fatalErr == nil {
					fatalErr = err
				}
				if rec != nil {
					records = append(records, *rec)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].ResourceKey < records[j].ResourceKey })

	if fatalErr != nil {
		return records, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// applyResource runs one resource through apply-with-retries and
// persists the outcome. Only store failures are returned as errors;
// apply failures become failed records.
func (p *Pipeline) applyResource(ctx context.Context, runID string, ph Phase, cfg *config.FabricConfig, res Resource) (*store.Record, error) {
	phase := ph.Name()
	rlog := log.With().Str("phase", phase).Str("resource", res.Key).Logger()

	if _, found, err := p.store.Get(ctx, phase, res.Key); err != nil {
		return nil, err
	} else if !found {
		pending := store.Record{
			Phase:       phase,
			ResourceKey: res.Key,
			Status:      store.StatusPending,
			UpdatedAt:   time.Now().UTC(),
		}
		if err := p.store.Put(ctx, pending); err != nil {
			return nil, err
		}
	}

	// A successful verify-phase apply is a confirmed end-to-end check.
	success := store.StatusApplied
	if phase == PhaseVerify {
		success = store.StatusVerified
	}

	var (
		attempts int
		lastErr  error
	)
	for attempt := 0; attempt < p.opts.RetryLimit; attempt++ {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		start := time.Now()
		lastErr = ph.Apply(callCtx, res, cfg, p.store)
		elapsed := time.Since(start)
		cancel()

		if lastErr == nil {
			p.observe(phase, success, elapsed)
			break
		}
		p.observe(phase, store.StatusFailed, elapsed)

		if !IsRetryable(lastErr) || attempt == p.opts.RetryLimit-1 {
			break
		}

		if p.metrics != nil {
			p.metrics.IncRetry(phase)
		}
		delay := backoffDelay(p.opts.BackoffBase, attempt, p.opts.BackoffMax)
		rlog.Warn().Err(lastErr).Dur("backoff", delay).
			Int("attempt", attempt+1).Int("limit", p.opts.RetryLimit).
			Msg("retrying after timeout")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			attempt = p.opts.RetryLimit // stop retrying, record the timeout
		}
	}

	rec := store.Record{
		Phase:       phase,
		ResourceKey: res.Key,
		Status:      success,
		Attempts:    attempts,
		UpdatedAt:   time.Now().UTC(),
	}
	if lastErr != nil {
		rec.Status = store.StatusFailed
		rec.Reason = lastErr.Error()
		rlog.Error().Err(lastErr).Int("attempts", attempts).Msg("resource failed")
	} else {
		rlog.Debug().Str("status", string(rec.Status)).Msg("resource reconciled")
	}

	// The record must survive even when the run context is cancelled.
	putCtx := context.WithoutCancel(ctx)
	if err := p.store.Put(putCtx, rec); err != nil {
		return nil, err
	}
	if rl, ok := p.store.(store.RunLog); ok && lastErr != nil {
		_ = rl.AppendEvent(putCtx, store.Event{
			RunID:       runID,
			Phase:       phase,
			ResourceKey: res.Key,
			Level:       "error",
			Message:     lastErr.Error(),
			Timestamp:   time.Now().UTC(),
		})
	}

	return &rec, nil
}

// Teardown removes the fabric configuration in reverse phase order.
// Phases without a destroy hook only have their records cleared.
func (p *Pipeline) Teardown(ctx context.Context, cfg *config.FabricConfig) error {
	phases := p.reg.Phases()
	var failed int

	for i := len(phases) - 1; i >= 0; i-- {
		ph := phases[i]
		resources, err := ph.Plan(ctx, cfg, p.store)
		if err != nil {
			return fmt.Errorf("plan %s: %w", ph.Name(), err)
		}

		destroyer, canDestroy := ph.(Destroyer)
		for _, res := range resources {
			if err := ctx.Err(); err != nil {
				return err
			}
			if canDestroy {
				callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
				err := destroyer.Destroy(callCtx, res, cfg, p.store)
				cancel()
				if err != nil {
					failed++
					log.Error().Err(err).Str("phase", ph.Name()).Str("resource", res.Key).
						Msg("teardown failed")
					continue
				}
			}
			if err := p.store.Delete(context.WithoutCancel(ctx), ph.Name(), res.Key); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return NewApplyError("teardown", failed)
	}
	return nil
}

func (p *Pipeline) observe(phase string, status store.Status, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveApply(phase, status, d)
	}
}

func dryRunResult(phase string, resources []Resource) PhaseResult {
	records := make([]store.Record, 0, len(resources))
	for _, res := range resources {
		records = append(records, store.Record{
			Phase:       phase,
			ResourceKey: res.Key,
			Status:      store.StatusPending,
			Reason:      res.Description,
			UpdatedAt:   time.Now().UTC(),
		})
	}
	return PhaseResult{Phase: phase, Records: records}
}
