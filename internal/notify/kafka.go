package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"multisig-dashboard/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	logger *zap.Logger
	writer messageWriter
}

func NewKafka(logger *zap.Logger, brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	return newKafka(logger, &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}), nil
}

func newKafka(logger *zap.Logger, writer messageWriter) *Kafka {
	return &Kafka{logger: logger, writer: writer}
}

// Publish keys events by multisig so that the events of one multisig stay ordered.
func (k *Kafka) Publish(ctx context.Context, event model.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Multisig),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	k.logger.Debug("event published", zap.String("id", event.ID), zap.String("action", string(event.Action)))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func Encode(event model.Event) ([]byte, error) {
	payload, err := cbor.Marshal(event, cbor.CanonicalEncOptions())
	if err != nil {
		return nil, errors.New("failed to dump the event: " + err.Error())
	}
	return payload, nil
}

func Decode(payload []byte) (model.Event, error) {
	var event model.Event
	if err := cbor.Unmarshal(payload, &event); err != nil {
		return model.Event{}, errors.New("failed to load the event: " + err.Error())
	}
	return event, nil
}
