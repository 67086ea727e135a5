package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/pkg/worker_registry"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTTL      = 45 * time.Second
)

// RefreshRunner executes a refresh job. Implemented by Refresher.
type RefreshRunner interface {
	Refresh(ctx context.Context, payload RefreshPayload) error
}

// Manager manages a pool of workers consuming the refresh queue.
type Manager struct {
	queue     queue.Queue
	refresher RefreshRunner
	config    config.WorkerConfig
	log       *logger.Logger
	stopChan  chan struct{}
	workerWg  sync.WaitGroup
	scheduler *Scheduler

	// Heartbeat state, populated via SetRegistry.
	registry     *worker_registry.Registry
	store        *routedata.Store
	buildVersion string
	workerID     string
	hostname     string
	startedAt    time.Time
	processed    atomic.Int64
	currentJob   atomic.Value // string
}

// NewManager creates a new worker manager with its scheduler.
func NewManager(q queue.Queue, refresher RefreshRunner, cfg config.WorkerConfig, log *logger.Logger) *Manager {
	return &Manager{
		queue:     q,
		refresher: refresher,
		config:    cfg,
		log:       log,
		stopChan:  make(chan struct{}),
		scheduler: NewScheduler(q, cfg.RefreshCron, log),
	}
}

// SetRegistry enables heartbeat publishing for this manager. store is used to
// report the currently installed dataset version; it may be nil.
func (m *Manager) SetRegistry(reg *worker_registry.Registry, store *routedata.Store, buildVersion string) {
	hostname, _ := os.Hostname()
	m.registry = reg
	m.store = store
	m.buildVersion = buildVersion
	m.workerID = uuid.New().String()
	m.hostname = hostname
}

// Start starts the worker pool and scheduler
func (m *Manager) Start() {
	m.log.Info("Starting worker pool", "workers", m.config.Concurrency)

	for i := 0; i < m.config.Concurrency; i++ {
		m.workerWg.Add(1)
		go m.runWorker(i)
	}

	if m.registry != nil {
		m.startedAt = time.Now().UTC()
		m.currentJob.Store("")
		m.workerWg.Add(1)
		go m.runHeartbeat()
	}

	if err := m.scheduler.Start(); err != nil {
		m.log.Warn("Failed to start scheduler", "error", err)
	}
}

// Stop stops the worker pool and scheduler
func (m *Manager) Stop() {
	m.log.Info("Stopping worker pool and scheduler")

	m.scheduler.Stop()
	close(m.stopChan)

	done := make(chan struct{})
	go func() {
		m.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("All workers stopped gracefully")
	case <-time.After(m.config.ShutdownTimeout):
		m.log.Warn("Worker shutdown timed out")
	}
}

// GetScheduler returns the scheduler instance
func (m *Manager) GetScheduler() *Scheduler {
	return m.scheduler
}

// runWorker runs a worker in a goroutine
func (m *Manager) runWorker(id int) {
	defer m.workerWg.Done()
	log := m.log.WithField("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-m.stopChan:
			log.Debug("Worker stopping")
			return
		default:
			if err := m.processQueue(QueueDatasetRefresh); err != nil {
				log.Warn("Error processing refresh queue", "error", err)
			}

			// Sleep briefly to avoid hammering the queue
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// runHeartbeat publishes this manager's state to the worker registry until
// the manager stops.
func (m *Manager) runHeartbeat() {
	defer m.workerWg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	m.publishHeartbeat()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.publishHeartbeat()
		}
	}
}

func (m *Manager) publishHeartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	currentJob, _ := m.currentJob.Load().(string)
	status := "idle"
	if currentJob != "" {
		status = "refreshing"
	}

	datasetVersion := ""
	if m.store != nil {
		if ds, err := m.store.Current(); err == nil {
			datasetVersion = ds.Version
		}
	}

	hb := worker_registry.WorkerHeartbeat{
		ID:             m.workerID,
		Hostname:       m.hostname,
		Status:         status,
		CurrentJob:     currentJob,
		ProcessedJobs:  int(m.processed.Load()),
		Concurrency:    m.config.Concurrency,
		DatasetVersion: datasetVersion,
		StartedAt:      m.startedAt,
		BuildVersion:   m.buildVersion,
	}
	if err := m.registry.Publish(ctx, hb, heartbeatTTL); err != nil {
		m.log.Warn("Failed to publish worker heartbeat", "error", err)
	}
}

// processQueue dequeues and runs at most one job from the named queue.
func (m *Manager) processQueue(queueName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.JobTimeout)
	defer cancel()

	job, err := m.queue.Dequeue(ctx, queueName)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil
		}
		return fmt.Errorf("failed to dequeue job: %w", err)
	}

	// No jobs available
	if job == nil {
		return nil
	}

	log := m.log.WithFields(map[string]any{"job_id": job.ID, "queue": queueName})
	log.Info("Processing job", "attempt", job.Attempts)

	m.currentJob.Store(job.ID)
	defer m.currentJob.Store("")

	if err := m.processJob(ctx, queueName, job); err != nil {
		log.Warn("Job failed", "error", err)
		if nackErr := m.queue.Nack(ctx, queueName, job.ID); nackErr != nil {
			log.Warn("Error nacking job", "error", nackErr)
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if ackErr := m.queue.Ack(ctx, queueName, job.ID); ackErr != nil {
		log.Warn("Error acking job", "error", ackErr)
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}

	m.processed.Add(1)
	log.Info("Completed job")
	return nil
}

// processJob dispatches a job based on its queue.
func (m *Manager) processJob(ctx context.Context, queueName string, job *queue.Job) error {
	switch queueName {
	case QueueDatasetRefresh:
		var payload RefreshPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal refresh payload: %w", err)
		}
		return m.refresher.Refresh(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", queueName)
	}
}
