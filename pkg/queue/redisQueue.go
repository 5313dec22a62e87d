package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 5 * time.Second
	defaultQueueTimeout = 5 * time.Second
	defaultPollEvery    = 10 * time.Second
)

// RedisQueue keeps due tasks in a list and future tasks in a sorted set
// scored by execution time. A poller moves due tasks from the set to the list.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	now             func() time.Time
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	Prefix       string
	MaxRetries   int
	BaseDelay    time.Duration
	QueueTimeout time.Duration
	PollEvery    time.Duration
}

// DefaultRedisQueueConfig returns default configuration
func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		Prefix:       "roombooker:lifecycle",
		MaxRetries:   defaultMaxRetries,
		BaseDelay:    defaultBaseDelay,
		QueueTimeout: defaultQueueTimeout,
		PollEvery:    defaultPollEvery,
	}
}

// NewRedisQueue builds a queue on an existing client. A nil dlqHandler
// stores failed tasks under "<prefix>:dlq".
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, dlqHandler DLQHandler) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = defaultPollEvery
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if dlqHandler == nil {
		dlqHandler = NewRedisDLQHandler(client, cfg.Prefix+":dlq")
	}

	logrus.WithField("prefix", cfg.Prefix).Info("RedisQueue initialized")

	return &RedisQueue{
		client:          client,
		mainQueue:       cfg.Prefix + ":tasks",
		delayedQueue:    cfg.Prefix + ":tasks:delayed",
		processingQueue: cfg.Prefix + ":tasks:processing",
		retryManager:    NewRetryManager(cfg.MaxRetries, cfg.BaseDelay),
		dlqHandler:      dlqHandler,
		config:          cfg,
		now:             time.Now,
		stopChan:        make(chan struct{}),
	}
}

// Publish sends a task to the queue
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if task.ExecuteAt.After(r.now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{
			Score:  score,
			Member: taskData,
		}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"task_type":  task.Type,
			"execute_at": task.ExecuteAt.Format(time.RFC3339),
		}).Debug("Task scheduled")
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish immediate task: %w", err)
	}

	logrus.WithField("task_id", task.ID).Debug("Task published to main queue")
	return nil
}

// Subscribe starts consuming tasks in the background until ctx is done or
// Close is called.
func (r *RedisQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.wg.Add(2)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)

	logrus.Info("RedisQueue subscriber started")
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler Handler) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
			if err := r.processOne(ctx, handler); err != nil {
				logrus.WithError(err).Error("Error processing queue")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// processOne moves one task to the processing list, runs it and removes it.
func (r *RedisQueue) processOne(ctx context.Context, handler Handler) error {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(ctx, r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.dlqHandler.HandleFailedTask(ctx, &Task{
			ID:        fmt.Sprintf("corrupted_%d", r.now().UnixNano()),
			Type:      "corrupted",
			Data:      map[string]interface{}{"raw_data": taskData},
			CreatedAt: r.now().UTC(),
		}, fmt.Errorf("invalid task format: %w", err))
		return nil
	}

	r.execute(ctx, &task, handler)
	return nil
}

func (r *RedisQueue) execute(ctx context.Context, task *Task, handler Handler) {
	task.Attempts++
	err := handler(ctx, task)
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"task_id":   task.ID,
			"task_type": task.Type,
		}).Debug("Task completed")
		return
	}

	retry, delay := r.retryManager.ShouldRetry(task, err)
	if !retry {
		r.dlqHandler.HandleFailedTask(ctx, task, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"attempt":  task.Attempts,
		"retry_in": delay.String(),
	}).Warnf("Task failed, rescheduling: %v", err)

	task.ExecuteAt = r.now().Add(delay)
	if err := r.Publish(ctx, task); err != nil {
		r.dlqHandler.HandleFailedTask(ctx, task, fmt.Errorf("failed to reschedule: %w", err))
	}
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks moves ready delayed tasks to main queue
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	max := fmt.Sprintf("%f", float64(r.now().UnixNano())/1e9)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	// ZREM per member so a task is moved by exactly one instance
	moved := 0
	for _, taskData := range tasks {
		removed, err := r.client.ZRem(ctx, r.delayedQueue, taskData).Result()
		if err != nil {
			return fmt.Errorf("failed to claim delayed task: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
			return fmt.Errorf("failed to move delayed task: %w", err)
		}
		moved++
	}

	if moved > 0 {
		logrus.Debugf("Moved %d delayed tasks to main queue", moved)
	}
	return nil
}

func (r *RedisQueue) applyDefaults(task *Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Data == nil {
		task.Data = make(map[string]interface{})
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.now().UTC()
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = r.now().UTC()
	}
}

// FailedTasks exposes the DLQ contents.
func (r *RedisQueue) FailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	return r.dlqHandler.GetFailedTasks(ctx, limit)
}

// Close stops the consumers. The redis client is owned by the caller.
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	logrus.Info("RedisQueue closed")
	return nil
}
