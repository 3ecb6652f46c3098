package app

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/vk/dspgridgo/internal/builder"
	"github.com/vk/dspgridgo/internal/ctxlog"
	"github.com/vk/dspgridgo/internal/sched"
)

// Run executes the tick benchmark described by the app's configuration and
// patch model. It respects cancellation between ticks; a tick in flight
// always completes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	queue, err := builder.Build(ctx, a.model, synthKernel)
	if err != nil {
		return fmt.Errorf("failed to build DSP queue: %w", err)
	}

	threads, strategy, err := a.resolveScheduler()
	if err != nil {
		return err
	}
	a.logger.Info("Scheduler configured.",
		"threads", threads,
		"strategy", strategy.String(),
		"nodes", queue.TotalNodeCount(),
		"has_parallelism", queue.HasParallelism(),
	)

	interpreter := sched.NewInterpreter(ctx, uint8(threads), strategy)
	interpreter.ResetQueue(queue)
	a.logger.Debug("Queue installed.", "used_helper_threads", interpreter.UsedHelperThreads())

	group := sched.NewThreadGroup(interpreter)
	group.Start()
	defer group.Stop()

	a.logger.Info("🚀 Starting tick loop...", "ticks", a.config.Ticks)
	durations := make([]time.Duration, 0, a.config.Ticks)
	for i := 0; i != a.config.Ticks; i++ {
		if ctx.Err() != nil {
			a.logger.Warn("Tick loop interrupted.", "completed", i)
			break
		}

		start := time.Now()
		if !group.RunTick() {
			a.logger.Warn("Empty patch, nothing to run.")
			break
		}
		durations = append(durations, time.Since(start))
		a.ticksCompleted.Add(1)
	}
	a.logger.Info("🏁 Tick loop finished.")

	group.Stop()
	interpreter.ReleaseQueue()

	a.reportStats(durations)
	a.logger.Debug("App.Run method finished.")
	return nil
}

// resolveScheduler merges CLI configuration with patch settings: flags win,
// then the patch block, then defaults.
func (a *App) resolveScheduler() (int, sched.Strategy, error) {
	threads := a.config.Threads
	if threads == 0 {
		threads = a.model.Settings.Threads
	}
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	if threads > sched.MaxThreadCount {
		threads = sched.MaxThreadCount
	}

	name := a.config.Strategy
	if name == "" {
		name = a.model.Settings.Strategy
	}
	if name == "" {
		name = "wait"
	}

	strategy, err := sched.ParseStrategy(name)
	if err != nil {
		return 0, 0, err
	}
	return threads, strategy, nil
}

// reportStats logs per-tick wall-time statistics for the completed run.
func (a *App) reportStats(durations []time.Duration) {
	if len(durations) == 0 {
		return
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	a.logger.Info("Tick statistics.",
		"ticks", len(sorted),
		"min", sorted[0],
		"median", sorted[len(sorted)/2],
		"max", sorted[len(sorted)-1],
		"total", total,
	)
}
