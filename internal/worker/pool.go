package worker

import (
	"context"
	"sync"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/rs/zerolog"
)

type Processor interface {
	Process(ctx context.Context, job services.BridgeJob) error
}

// Pool runs bridge jobs on a fixed set of goroutines fed by a bounded queue.
// Jobs run under the pool's own context, which Shutdown cancels when its
// deadline passes.
type Pool struct {
	jobs      chan services.BridgeJob
	processor Processor
	logger    zerolog.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewPool(bufferSize int, processor Processor) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:      make(chan services.BridgeJob, bufferSize),
		processor: processor,
		logger:    logger.Component("worker"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *Pool) Start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info().Int("workers", workerCount).Int("queue", cap(p.jobs)).Msg("bridge worker pool started")
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	for job := range p.jobs {
		metrics.BridgeQueueDepth.Set(float64(len(p.jobs)))
		if p.ctx.Err() != nil {
			p.logger.Debug().Str("bridge_id", job.ID).Msg("dropping queued bridge job")
			continue
		}
		if err := p.processor.Process(p.ctx, job); err != nil {
			p.logger.Error().Err(err).
				Int("worker", n).
				Str("bridge_id", job.ID).
				Bool("resume", job.Resume).
				Msg("bridge job failed")
		}
	}
}

// Submit queues job without blocking. It returns false when the queue is full
// or the pool has shut down.
func (p *Pool) Submit(job services.BridgeJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		metrics.BridgeQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and lets the queue drain until ctx is done.
// After that, running jobs are cancelled and queued ones dropped; their rows
// stay in the database for the sweep.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info().Msg("bridge worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.Warn().Err(ctx.Err()).Msg("bridge worker pool stopped before the queue drained")
		return ctx.Err()
	}
}
