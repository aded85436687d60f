// Package recompile implements the recompilation driver's admission
// control and scanning state machine (spec.md §4.F).
package recompile

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/runtimelab/jitcore/internal/config"
	"github.com/runtimelab/jitcore/internal/loadavg"
	"github.com/runtimelab/jitcore/internal/ports"
	"github.com/runtimelab/jitcore/internal/schedule"
)

// Driver scans a recompilation schedule, enqueuing top-tier compiles for
// methods that are ready, per spec.md §4.F's eight-step state machine.
type Driver struct {
	cfg        *config.Driver
	sched      *schedule.Schedule
	wma        *loadavg.WMA
	broker     ports.CompilerBroker
	directives ports.DirectivesStack // optional, nullable

	log *slog.Logger

	cursor int
	done   bool

	steps metric.Int64Counter
}

// New builds a Driver over an archived schedule. meter may be nil (metrics
// are then skipped); log may be nil (defaults to a discard logger);
// directives may be nil (requests are then enqueued with a nil DirectiveSet).
func New(cfg *config.Driver, sched *schedule.Schedule, wma *loadavg.WMA, broker ports.CompilerBroker, directives ports.DirectivesStack, meter metric.Meter, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	d := &Driver{cfg: cfg, sched: sched, wma: wma, broker: broker, directives: directives, log: log}
	if meter != nil {
		d.steps, _ = meter.Int64Counter("jitcore.recompile.step",
			metric.WithDescription("recompilation driver step outcomes"),
			metric.WithUnit("{step}"))
	}
	return d
}

// HaveWork reports whether the driver may currently do admission-gated
// work: the feature is enabled, training data and a non-empty schedule
// exist, the driver is not already globally done, and the current load
// average is at or below the configured threshold.
func (d *Driver) HaveWork() bool {
	if !d.cfg.EnableRecompilation {
		return false
	}
	if d.sched == nil || d.sched.Len() == 0 {
		return false
	}
	if d.done {
		return false
	}
	return d.wma.Value() <= d.cfg.LoadThreshold
}

func (d *Driver) countStep(outcome string) {
	if d.steps == nil {
		return
	}
	d.steps.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Step scans the schedule in index order starting from the driver's
// cursor, performing at most n units of work, and returns the count of
// slots actually advanced to compilation this call. It implements
// spec.md §4.F's recompilation_step state machine.
func (d *Driver) Step(n int) (workDone int) {
	if d.sched == nil {
		return 0
	}

	count := 0
	repeat := false
	scanned := 0
	total := d.sched.Len()

	for i := d.cursor; scanned < total && count < n; i = (i + 1) % total {
		scanned++
		if d.sched.StatusAt(i) {
			continue
		}

		method := d.sched.MethodAt(i)

		// 1. No live holder: symbolic entry, mark done.
		if method == nil || !method.HasHolder() {
			d.sched.SetStatusAt(i, true)
			d.log.Debug("recompile: symbolic slot done", "slot", i)
			d.countStep("done")
			continue
		}

		// 2. Holder class not yet initialized: revisit.
		if method.Klass() != nil && !method.Klass().Initialized() {
			repeat = true
			d.log.Debug("recompile: class not initialized, repeat", "slot", i)
			d.countStep("repeat")
			continue
		}

		live := method.MethodRef()
		// 3. No native code attached: revisit.
		if live == nil || !live.HasNativeCode() {
			repeat = true
			d.log.Debug("recompile: no native code, repeat", "slot", i)
			d.countStep("repeat")
			continue
		}

		// 4. Below-top-tier code is always recompile-eligible. Top-tier code
		// is left alone (mark done) unless force-recompilation is requested
		// or the existing code is an AOT entry standing in at top tier — AOT
		// code carries no profile feedback, so it is always replaced by a
		// fresh tiered compile regardless of the force flag.
		topTier := d.topTierLevel()
		bypassSkip := d.cfg.ForceRecompilation || (live.IsAOTEntry() && live.TopTierLevel() == topTier)
		if !bypassSkip && live.TopTierLevel() >= topTier {
			d.sched.SetStatusAt(i, true)
			d.log.Debug("recompile: already top-tier, done", "slot", i)
			d.countStep("done")
			continue
		}

		// 5. Claim the slot; losers just continue scanning.
		if !d.sched.Claim(i) {
			continue
		}

		// 6/7. Enqueue a top-tier compile request, threading through any
		// matching compiler directive for this method.
		var directiveSet ports.DirectiveSet
		if d.directives != nil {
			directiveSet = d.directives.GetMatching(live, "c2")
		}
		req := ports.CompileRequest{Method: live, Level: topTier, Reason: "must-be-compiled", Blocking: false, Directives: directiveSet}
		if _, ok := d.broker.CompileMethod(req); !ok {
			d.log.Debug("recompile: enqueue failed, will retry", "slot", i)
			repeat = true
			d.countStep("repeat")
			continue
		}

		// 8.
		count++
		d.countStep("enqueued")
	}

	d.cursor = (d.cursor + scanned) % max1(total)
	if !repeat && count == 0 {
		d.done = true
	}
	return count
}

// topTierLevel returns the fixed maxTierLevel, the same value as the
// training graph's MaxTierLevel. The broker's queue sizes are not consulted.
func (d *Driver) topTierLevel() int {
	return maxTierLevel
}

const maxTierLevel = 5

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Done reports whether the driver has completed a full scan with no
// remaining work.
func (d *Driver) Done() bool { return d.done }
