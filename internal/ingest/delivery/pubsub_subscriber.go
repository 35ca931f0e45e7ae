package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jobdomain "replypilot-backend/internal/job/domain"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSubSubscriber pulls Gmail change notifications from the watch topic
// and queues them for the delta processor. Messages are acked regardless
// of outcome; the stored cursor makes redelivery safe.
type PubSubSubscriber struct {
	client    *pubsub.Client
	jobs      NotificationEnqueuer
	topicName string
	subName   string
	logger    *zap.Logger
}

func NewPubSubSubscriber(projectID, topicName, credentialsFile string, jobs NotificationEnqueuer, logger *zap.Logger) (*PubSubSubscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(context.Background(), projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &PubSubSubscriber{
		client:    client,
		jobs:      jobs,
		topicName: topicName,
		subName:   topicName + "-sub",
		logger:    logger,
	}, nil
}

// Start blocks receiving messages until the context is cancelled. Run it
// on its own goroutine.
func (s *PubSubSubscriber) Start(ctx context.Context) {
	sub := s.client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		s.logger.Error("pubsub subscription check failed", zap.Error(err))
		return
	}
	if !exists {
		topic := s.client.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil || !topicExists {
			s.logger.Error("pubsub topic unavailable",
				zap.String("topic", s.topicName),
				zap.Error(err))
			return
		}
		sub, err = s.client.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			s.logger.Error("pubsub subscription creation failed", zap.Error(err))
			return
		}
		s.logger.Info("pubsub subscription created", zap.String("subscription", s.subName))
	}

	s.logger.Info("pubsub subscriber listening", zap.String("subscription", s.subName))
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("pubsub receive stopped", zap.Error(err))
	}
}

func (s *PubSubSubscriber) handleMessage(ctx context.Context, data []byte) {
	var notification jobdomain.NotificationPayload
	if err := json.Unmarshal(data, &notification); err != nil {
		s.logger.Warn("undecodable pubsub payload dropped", zap.Error(err))
		return
	}
	if _, err := s.jobs.Enqueue(jobdomain.QueueIngestion, jobdomain.KindProcessNotification, "", notification); err != nil {
		s.logger.Error("notification enqueue failed",
			zap.String("emailAddress", notification.EmailAddress),
			zap.Uint64("historyID", notification.HistoryID),
			zap.Error(err))
	}
}
