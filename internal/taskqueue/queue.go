// Package taskqueue runs named tasks either through an in-process message bus
// or inline when the bus is not running.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

const topicTasks = "technews.tasks"

// Handler executes one task. The returned value is the task's result; it is
// handed to the result hook for queued tasks and returned by RunNow.
type Handler func(ctx context.Context, payload json.RawMessage) any

// ResultHook observes the results of queued tasks.
type ResultHook func(name string, result any)

type envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Queue dispatches named tasks to registered handlers.
type Queue struct {
	bus      *gochannel.GoChannel
	log      logrus.FieldLogger
	workers  int
	onResult ResultHook

	mu       sync.RWMutex
	handlers map[string]Handler
	started  bool
	wg       sync.WaitGroup
}

// New creates a queue with the given number of consumer goroutines.
func New(workers int, logger logrus.FieldLogger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Queue{
		bus: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NewStdLogger(false, false),
		),
		log:      logger,
		workers:  workers,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task name, replacing any previous one.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// OnResult sets the hook that receives queued task results.
func (q *Queue) OnResult(hook ResultHook) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onResult = hook
}

// Start subscribes the consumers. Tasks enqueued before Start run inline.
func (q *Queue) Start(ctx context.Context) error {
	messages, err := q.bus.Subscribe(ctx, topicTasks)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topicTasks, err)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for msg := range messages {
				msg.Ack()
				var env envelope
				if err := json.Unmarshal(msg.Payload, &env); err != nil {
					q.log.WithError(err).Error("drop undecodable task")
					continue
				}
				result, err := q.run(ctx, env)
				if err != nil {
					q.log.WithFields(logrus.Fields{"task": env.Name}).WithError(err).Error("task failed to run")
					continue
				}
				q.mu.RLock()
				hook := q.onResult
				q.mu.RUnlock()
				if hook != nil {
					hook(env.Name, result)
				}
			}
		}()
	}

	q.mu.Lock()
	q.started = true
	q.mu.Unlock()
	return nil
}

// Started reports whether queued tasks go through the bus.
func (q *Queue) Started() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started
}

// Enqueue publishes a task for the consumers, or runs it inline when the
// queue has not been started.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) error {
	env, err := newEnvelope(name, payload)
	if err != nil {
		return err
	}
	if !q.Started() {
		result, err := q.run(ctx, env)
		if err != nil {
			return err
		}
		q.mu.RLock()
		hook := q.onResult
		q.mu.RUnlock()
		if hook != nil {
			hook(name, result)
		}
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", name, err)
	}
	if err := q.bus.Publish(topicTasks, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		return fmt.Errorf("publish task %s: %w", name, err)
	}
	return nil
}

// RunNow executes a task synchronously and returns its result.
func (q *Queue) RunNow(ctx context.Context, name string, payload any) (any, error) {
	env, err := newEnvelope(name, payload)
	if err != nil {
		return nil, err
	}
	return q.run(ctx, env)
}

// Close stops the consumers and waits for in-flight tasks.
func (q *Queue) Close() error {
	err := q.bus.Close()
	q.wg.Wait()
	q.mu.Lock()
	q.started = false
	q.mu.Unlock()
	return err
}

func (q *Queue) run(ctx context.Context, env envelope) (any, error) {
	q.mu.RLock()
	h, ok := q.handlers[env.Name]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown task %q", env.Name)
	}
	return h(ctx, env.Payload), nil
}

func newEnvelope(name string, payload any) (envelope, error) {
	env := envelope{Name: name}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode payload for %s: %w", name, err)
	}
	env.Payload = raw
	return env, nil
}
