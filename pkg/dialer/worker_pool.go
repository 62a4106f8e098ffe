package dialer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"amd-server/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned when submitting to a stopped pool
var ErrPoolStopped = fmt.Errorf("worker pool is stopped")

// WorkerPool runs tasks on a fixed number of goroutines
type WorkerPool struct {
	logger      *logrus.Entry
	workerCount int
	queueSize   int

	taskChan chan task
	wg       sync.WaitGroup

	started    bool
	stopped    bool
	startMutex sync.RWMutex

	stats *PoolStats
}

type task struct {
	id      string
	fn      func()
	created time.Time
}

// PoolStats tracks worker pool statistics
type PoolStats struct {
	mutex           sync.RWMutex
	TotalTasks      int64     `json:"total_tasks"`
	CompletedTasks  int64     `json:"completed_tasks"`
	FailedTasks     int64     `json:"failed_tasks"`
	ActiveWorkers   int       `json:"active_workers"`
	QueueCapacity   int       `json:"queue_capacity"`
	AverageWaitTime int64     `json:"average_wait_time_ms"`
	AverageExecTime int64     `json:"average_exec_time_ms"`
	LastReset       time.Time `json:"last_reset"`
}

// NewWorkerPool creates a pool. A non-positive workerCount uses one worker per CPU.
func NewWorkerPool(workerCount int, logger *logrus.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	queueSize := workerCount * 10
	return &WorkerPool{
		logger:      logger.WithField("component", "worker_pool"),
		workerCount: workerCount,
		queueSize:   queueSize,
		taskChan:    make(chan task, queueSize),
		stats: &PoolStats{
			QueueCapacity: queueSize,
			LastReset:     time.Now(),
		},
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.startMutex.Lock()
	defer wp.startMutex.Unlock()

	if wp.started || wp.stopped {
		return
	}

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i + 1)
	}
	wp.started = true
	wp.logger.WithField("worker_count", wp.workerCount).Info("Worker pool started")
}

// Stop lets queued tasks finish and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.startMutex.Lock()
	if wp.stopped {
		wp.startMutex.Unlock()
		return
	}
	wp.stopped = true
	close(wp.taskChan)
	wp.startMutex.Unlock()

	wp.wg.Wait()
	wp.logger.Info("Worker pool stopped")
}

// Submit queues fn, waiting for room in the queue until ctx ends
func (wp *WorkerPool) Submit(ctx context.Context, fn func()) error {
	if fn == nil {
		return nil
	}

	wp.startMutex.RLock()
	defer wp.startMutex.RUnlock()
	if wp.stopped {
		return ErrPoolStopped
	}

	t := task{id: uuid.New().String(), fn: fn, created: time.Now()}
	select {
	case wp.taskChan <- t:
		wp.stats.mutex.Lock()
		wp.stats.TotalTasks++
		wp.stats.mutex.Unlock()
		metrics.SetDialerQueueDepth(len(wp.taskChan))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	wp.logger.WithField("worker_id", id).Debug("Worker started")

	for t := range wp.taskChan {
		wp.execute(id, t)
	}
}

func (wp *WorkerPool) execute(workerID int, t task) {
	start := time.Now()
	wait := start.Sub(t.created)

	wp.stats.mutex.Lock()
	wp.stats.ActiveWorkers++
	wp.stats.mutex.Unlock()
	metrics.SetDialerQueueDepth(len(wp.taskChan))

	defer func() {
		exec := time.Since(start)
		failed := false
		if r := recover(); r != nil {
			failed = true
			wp.logger.WithFields(logrus.Fields{
				"worker_id": workerID,
				"task_id":   t.id,
				"panic":     r,
			}).Error("Task execution panic")
		}

		wp.stats.mutex.Lock()
		defer wp.stats.mutex.Unlock()
		wp.stats.ActiveWorkers--
		if failed {
			wp.stats.FailedTasks++
			return
		}
		wp.stats.CompletedTasks++
		n := wp.stats.CompletedTasks
		wp.stats.AverageWaitTime = (wp.stats.AverageWaitTime*(n-1) + wait.Milliseconds()) / n
		wp.stats.AverageExecTime = (wp.stats.AverageExecTime*(n-1) + exec.Milliseconds()) / n
	}()

	t.fn()
}

// GetStats returns a copy of the pool statistics
func (wp *WorkerPool) GetStats() *PoolStats {
	wp.stats.mutex.RLock()
	defer wp.stats.mutex.RUnlock()

	return &PoolStats{
		TotalTasks:      wp.stats.TotalTasks,
		CompletedTasks:  wp.stats.CompletedTasks,
		FailedTasks:     wp.stats.FailedTasks,
		ActiveWorkers:   wp.stats.ActiveWorkers,
		QueueCapacity:   wp.stats.QueueCapacity,
		AverageWaitTime: wp.stats.AverageWaitTime,
		AverageExecTime: wp.stats.AverageExecTime,
		LastReset:       wp.stats.LastReset,
	}
}

// WorkerCount returns the number of workers
func (wp *WorkerPool) WorkerCount() int {
	return wp.workerCount
}

// QueueSize returns the number of queued tasks
func (wp *WorkerPool) QueueSize() int {
	return len(wp.taskChan)
}
