package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
)

// ConfluentConsumer implements UserEventConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  ActorRemovalHandler
	doneCh   chan struct{}
}

var _ UserEventConsumer = (*ConfluentConsumer)(nil)

// NewConfluentConsumer creates a new Kafka consumer for users CDC events.
func NewConfluentConsumer(brokers, topic, groupID string, handler ActorRemovalHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming users CDC messages from Kafka.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	go cc.consumeLoop(ctx)
	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka users consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka users consumer error")
				continue
			}

			if err := processMessage(context.WithoutCancel(ctx), cc.handler, msg.Value); err != nil {
				l.Error().Err(err).
					Str("topic", cc.topic).
					Int64("offset", int64(msg.TopicPartition.Offset)).
					Msg("failed to process users CDC event")
			}
		}
	}
}

// processMessage decodes one CDC record and removes the deleted actor.
// Events that delete nothing, including tombstones, are skipped.
func processMessage(ctx context.Context, handler ActorRemovalHandler, value []byte) error {
	if len(value) == 0 {
		return nil
	}

	var event DebeziumMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal debezium event: %w", err)
	}

	userID, ok := event.RemovedUserID()
	if !ok {
		return nil
	}

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldUserID, userID).
		Str("op", event.Payload.Op).
		Int64("ts_ms", event.Payload.TsMs).
		Msg("received account deletion")

	ctx = pkglog.WithLogger(ctx, l.With().Str(pkglog.FieldUserID, userID).Logger())
	if err := handler.HandleActorRemoved(ctx, userID); err != nil {
		return fmt.Errorf("remove actor %s: %w", userID, err)
	}
	return nil
}

// Close stops the consumer and releases resources.
// It waits for any in-flight message to complete before closing.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
