// Package kafka publishes recorded sightings to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/pkg/logger"
)

// Config holds the producer settings
type Config struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements storage.Sink. Messages are keyed by ICAO hex so one aircraft
// always lands on the same partition.
type Producer struct {
	writer messageWriter
	topic  string
	logger *logger.Logger
}

// NewProducer creates a synchronous writer for cfg.Topic
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}

	p := newProducer(w, cfg.Topic, log)
	p.logger.Info("Kafka producer ready",
		logger.Strings("brokers", cfg.Brokers),
		logger.String("topic", cfg.Topic))
	return p, nil
}

func newProducer(w messageWriter, topic string, log *logger.Logger) *Producer {
	return &Producer{writer: w, topic: topic, logger: log.Named("kafka")}
}

// Emit writes one sighting as JSON
func (p *Producer) Emit(ctx context.Context, s storage.Sighting) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode sighting: %w", err)
	}
	key := s.Hex
	if key == "" {
		key = s.Identity
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  s.SeenAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.topic, err)
	}
	p.logger.Debug("Sighting published", logger.String("key", key))
	return nil
}

// Close flushes and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
