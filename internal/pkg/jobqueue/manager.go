package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
)

// WebhookEventPruner deletes processed webhook log rows received before cutoff.
type WebhookEventPruner interface {
	DeleteProcessedWebhookEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager owns the job queue and the periodic housekeeping around it
type Manager struct {
	queue           *Queue
	pruner          WebhookEventPruner
	retention       time.Duration
	interval        time.Duration
	retentionTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
	now             func() time.Time
}

// NewManager wires the queue with the webhook-log retention worker. A nil pruner or a
// non-positive retention disables pruning.
func NewManager(queue *Queue, cfg config.QueueConfig, pruner WebhookEventPruner) *Manager {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Manager{
		queue:     queue,
		pruner:    pruner,
		retention: cfg.WebhookEventRetention,
		interval:  interval,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	if m.pruner != nil && m.retention > 0 {
		m.retentionTicker = time.NewTicker(m.interval)
		m.wg.Add(1)
		go m.retentionWorker(m.stopCh, m.retentionTicker)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.retentionTicker != nil {
		m.retentionTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	if m.queue != nil {
		m.queue.Stop()
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// retentionWorker runs periodically to prune old processed webhook events
func (m *Manager) retentionWorker(stopCh <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started webhook retention worker (retention: %s, interval: %s)", m.retention, m.interval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Retention worker stopping")
			return
		case <-ticker.C:
			if _, err := m.PruneWebhookEventsOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Webhook retention error: %v", err)
			}
		}
	}
}

// PruneWebhookEventsOnce deletes processed webhook events older than the retention window.
func (m *Manager) PruneWebhookEventsOnce(ctx context.Context) (int64, error) {
	if m.pruner == nil || m.retention <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.retention)
	deleted, err := m.pruner.DeleteProcessedWebhookEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Infof("[JobQueue Manager] Pruned %d webhook events received before %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
