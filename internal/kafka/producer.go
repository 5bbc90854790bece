package kafka

import (
	"context"
	"errors"
	"fmt"

	"onetee-be/internal/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Producer struct {
	syncProducer sarama.SyncProducer
}

func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	config := sarama.NewConfig()
	config.ClientID = "onetee-be"
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Version = sarama.V2_8_0_0

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}

	return NewProducerFrom(p), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(p sarama.SyncProducer) *Producer {
	return &Producer{syncProducer: p}
}

// Publish sends value keyed by key so events for one aggregate stay ordered
// within a partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if requestID := logger.RequestIDFrom(ctx); requestID != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte("request_id"), Value: []byte(requestID)}}
	}

	partition, offset, err := p.syncProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	logger.FromCtx(ctx).Debug("message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	return p.syncProducer.Close()
}
