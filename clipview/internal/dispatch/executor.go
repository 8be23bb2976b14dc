// Package dispatch provides a sharded work queue that guarantees FIFO order
// per key while allowing parallelism across shards. Push notification
// handlers are dispatched here keyed by provisional key, so a capture's
// pending and ready handlers never run out of order.
//
// Contract: callers must not invoke Submit concurrently for the same key.
// FIFO ordering relies on that external serialisation.
package dispatch

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/errors"
	"github.com/Hewenz/pastee/clipview/internal/metrics"
)

type queuedJob struct {
	ctx context.Context
	job Job
}

// Executor executes Jobs on worker goroutines partitioned by a stable hash
// of the key. FIFO ordering is preserved within a shard; jobs with different
// keys may run in parallel.
type Executor struct {
	cfg    Config
	log    zerolog.Logger
	queues []chan queuedJob // len == cfg.Shards

	done   chan struct{} // closed in Stop()
	closed uint32        // 0 → running, 1 → closed

	wg sync.WaitGroup
}

// NewExecutor constructs the executor and starts its shard workers.
func NewExecutor(cfg Config) *Executor {
	cfg = cfg.withDefaults()
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	p := &Executor{
		cfg:    cfg,
		log:    logger.With().Str("component", "dispatch").Logger(),
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job for the shard derived from key.
//
//   - Returns nil on success.
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns *QueueFullError (matching ErrQueueFull) if the shard is full
//     after EnqueueTimeout elapses.
//   - Returns ctx.Err() if the caller-provided context is cancelled first.
func (p *Executor) Submit(ctx context.Context, key string, job Job) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	qj := queuedJob{ctx: ctx, job: job}
	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		metrics.DispatchSubmissionsTotal.WithLabelValues(metrics.ShardLabel(shard)).Inc()
		return nil

	case <-p.done: // Stop() may be called while waiting for space
		return ErrExecutorClosed

	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C:
		metrics.DispatchQueueFullTotal.WithLabelValues(metrics.ShardLabel(shard)).Inc()
		return &QueueFullError{
			Shard:    shard,
			Length:   len(ch),
			Capacity: cap(ch),
		}
	}
}

// Stop signals every worker to finish draining its current queue, waits for
// them to terminate, and then returns. It is idempotent and safe for
// concurrent use.
func (p *Executor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.log.Debug().Int("shards", p.cfg.Shards).Msg("stopping executor")
	close(p.done)
	p.wg.Wait()
	p.log.Debug().Msg("executor stopped, all queues drained")
}

// Close lets Executor satisfy io.Closer.
func (p *Executor) Close() error {
	p.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (p *Executor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()

	label := metrics.ShardLabel(idx)

	for {
		select {
		case qj := <-ch:
			if qj.job != nil {
				p.runJob(label, qj)
			}
			metrics.DispatchQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			// Drain remaining jobs, preserving FIFO, then exit.
			drained := 0
			for {
				select {
				case qj := <-ch:
					if qj.job != nil {
						p.safeHandleError(p.safeRun(qj))
						drained++
					}
				default:
					if drained > 0 {
						p.log.Debug().Int("worker", idx).Int("drained", drained).Msg("drained remaining jobs")
					}
					metrics.DispatchQueueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// runJob runs one job, retrying recoverable failures with exponential
// backoff until MaxAttempts is reached.
func (p *Executor) runJob(label string, qj queuedJob) {
	// Honour caller context so a cancelled job doesn't stall the shard.
	if err := qj.ctx.Err(); err != nil {
		p.safeHandleError(err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := p.safeRun(qj)
		metrics.DispatchRunDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		if err == nil {
			return
		}
		if errors.IsIrrecoverable(err) || attempt >= p.cfg.MaxAttempts {
			p.safeHandleError(err)
			return
		}

		select {
		case <-time.After(exp.NextBackOff()):
		case <-p.done:
			p.safeHandleError(err)
			return
		case <-qj.ctx.Done():
			p.safeHandleError(qj.ctx.Err())
			return
		}
	}
}

// safeRun converts a panicking job into an error so one bad handler cannot
// take its shard down.
func (p *Executor) safeRun(qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("job panicked")
			err = &errors.ClassifiedError{
				Category:   errors.Irrecoverable,
				Underlying: panicError{value: r},
			}
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (p *Executor) safeHandleError(err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		// Guard against panics in the user-supplied handler.
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("error handler panicked")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *Executor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}

type panicError struct{ value any }

func (e panicError) Error() string { return "dispatch: job panic" }
