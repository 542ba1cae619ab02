package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/pkg/jobs"
	"github.com/hwlab/labtrack-api/pkg/push"
)

// Push topics emitted after successful mutations.
const (
	TopicCompletion  = "completion"
	TopicElaboration = "elaboration"
	TopicComment     = "comment"
	TopicGroup       = "group"
	TopicStudent     = "student"
)

// NotifierService decouples mutation handlers from push delivery: events
// go through a background queue so a burst of changes never slows down
// the request path.
type NotifierService struct {
	queue   *jobs.Queue
	broker  *push.Broker
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NotifierConfig configures the push pipeline.
type NotifierConfig struct {
	Enabled    bool
	BufferSize int
}

// NewNotifierService constructs the notifier with its delivery queue.
func NewNotifierService(broker *push.Broker, metrics *MetricsService, cfg NotifierConfig, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &NotifierService{
		broker:  broker,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && broker != nil,
	}

	s.queue = jobs.NewQueue(s.deliver, jobs.Config{
		Workers:    1,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})

	return s
}

// Start launches the delivery worker.
func (s *NotifierService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the delivery worker.
func (s *NotifierService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Notify queues a change notification for the given year. A full queue
// or stopped notifier only logs; mutations never fail on push delivery.
func (s *NotifierService) Notify(year int, topic string, payload interface{}) {
	if !s.enabled {
		return
	}

	delivery := jobs.Delivery{
		ID: uuid.NewString(),
		Event: push.Event{
			Year:    year,
			Topic:   topic,
			Payload: payload,
		},
	}
	if err := s.queue.Enqueue(delivery); err != nil {
		s.logger.Warn("push notification dropped", zap.String("topic", topic), zap.Int("year", year), zap.Error(err))
	}
}

// Subscribe registers a push listener for a year.
func (s *NotifierService) Subscribe(year int) (<-chan push.Event, func(), error) {
	if !s.enabled {
		return nil, nil, fmt.Errorf("push notifications are disabled")
	}

	ch, cancel := s.broker.Subscribe(year)
	if s.metrics != nil {
		s.metrics.SetPushSubscribers(year, s.broker.SubscriberCount(year))
	}

	wrapped := func() {
		cancel()
		if s.metrics != nil {
			s.metrics.SetPushSubscribers(year, s.broker.SubscriberCount(year))
		}
	}
	return ch, wrapped, nil
}

func (s *NotifierService) deliver(_ context.Context, d jobs.Delivery) error {
	s.broker.Publish(d.Event)
	return nil
}
