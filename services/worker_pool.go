// Package services implements the domain services that sit between the HTTP
// handlers and the stores, and own push delivery side effects.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/staynest/staynest-backend/config"
	"github.com/staynest/staynest-backend/logger"
)

// Job is a unit of asynchronous work, typically a push delivery triggered by
// a domain action.
type Job struct {
	// Name identifies the job in logs and metrics
	Name string
	// Execute performs the work
	Execute func(ctx context.Context) error
}

// jobTimeout bounds a single job execution.
const jobTimeout = 30 * time.Second

// WorkerPool runs jobs on a bounded set of workers fed from a bounded queue.
// Submission is non-blocking: when the queue is full the job is dropped, which
// for push deliveries means the client falls back to its next pull.
type WorkerPool struct {
	queue   chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.SugaredLogger
	metrics *workerPoolMetrics
	cfg     config.WorkerPoolConfig
	mu      sync.Mutex
	running bool
}

// workerPoolMetrics holds Prometheus metrics for the worker pool.
type workerPoolMetrics struct {
	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge
	completedJobs prometheus.Counter
	droppedJobs   prometheus.Counter
	errorCount    prometheus.Counter
	jobDuration   prometheus.Histogram
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	wpMetricsInstance *workerPoolMetrics
	wpMetricsOnce     sync.Once
	wpDefaultRegistry = prometheus.DefaultRegisterer
)

func newWorkerPoolMetrics() *workerPoolMetrics {
	wpMetricsOnce.Do(func() {
		wpMetricsInstance = &workerPoolMetrics{
			queueDepth: promauto.With(wpDefaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "delivery_worker_pool_queue_depth",
				Help: "Current number of jobs waiting in queue",
			}),
			activeWorkers: promauto.With(wpDefaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "delivery_worker_pool_active_workers",
				Help: "Current number of workers processing jobs",
			}),
			completedJobs: promauto.With(wpDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "delivery_worker_pool_completed_jobs_total",
				Help: "Total number of completed jobs",
			}),
			droppedJobs: promauto.With(wpDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "delivery_worker_pool_dropped_jobs_total",
				Help: "Total number of jobs dropped due to full queue",
			}),
			errorCount: promauto.With(wpDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "delivery_worker_pool_errors_total",
				Help: "Total number of job execution errors",
			}),
			jobDuration: promauto.With(wpDefaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "delivery_worker_pool_job_duration_seconds",
				Help:    "Time taken to execute jobs",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}),
		}
	})
	return wpMetricsInstance
}

// resetWorkerPoolMetricsForTesting resets the metrics singleton for test isolation.
func resetWorkerPoolMetricsForTesting() {
	reg := prometheus.NewRegistry()
	wpDefaultRegistry = reg
	wpMetricsInstance = nil
	wpMetricsOnce = sync.Once{}
}

// NewWorkerPool creates a worker pool. Start must be called before Submit.
func NewWorkerPool(cfg config.WorkerPoolConfig) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:   make(chan Job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.GetLogger().Named("worker_pool"),
		metrics: newWorkerPoolMetrics(),
		cfg:     cfg,
	}
}

// Start launches the worker goroutines. Calling Start more than once is safe.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		wp.log.Warn("Worker pool already running")
		return
	}
	wp.running = true

	wp.log.Infow("Starting worker pool",
		"maxWorkers", wp.cfg.MaxWorkers,
		"queueSize", wp.cfg.QueueSize)

	for i := 0; i < wp.cfg.MaxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-wp.queue:
			if !ok {
				return
			}
			wp.runJob(id, job)
		}
	}
}

func (wp *WorkerPool) runJob(workerID int, job Job) {
	wp.metrics.activeWorkers.Inc()
	wp.metrics.queueDepth.Dec()

	start := time.Now()

	jobCtx, cancel := context.WithTimeout(wp.ctx, jobTimeout)
	defer cancel()

	if err := job.Execute(jobCtx); err != nil {
		wp.log.Errorw("Job execution failed",
			"job", job.Name,
			"workerId", workerID,
			"error", err,
			"duration", time.Since(start))
		wp.metrics.errorCount.Inc()
	}

	wp.metrics.jobDuration.Observe(time.Since(start).Seconds())
	wp.metrics.completedJobs.Inc()
	wp.metrics.activeWorkers.Dec()
}

// Submit queues a job without blocking. Returns false when the queue is full
// and the job was dropped.
func (wp *WorkerPool) Submit(job Job) bool {
	select {
	case wp.queue <- job:
		wp.metrics.queueDepth.Inc()
		return true
	default:
		wp.metrics.droppedJobs.Inc()
		wp.log.Warnw("Job dropped, queue full",
			"job", job.Name,
			"queueSize", wp.cfg.QueueSize)
		return false
	}
}

// Shutdown stops the pool and waits for in-flight jobs until ctx expires.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	wp.mu.Unlock()

	wp.cancel()
	close(wp.queue)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info("Worker pool shutdown complete")
		return nil
	case <-ctx.Done():
		wp.log.Warn("Worker pool shutdown timed out")
		return ctx.Err()
	}
}

// QueueDepth returns the number of jobs currently waiting in the queue.
func (wp *WorkerPool) QueueDepth() int {
	return len(wp.queue)
}

// IsRunning reports whether the pool has been started and not yet shut down.
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.running
}
