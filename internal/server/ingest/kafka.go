package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig selects the topic and consumer group.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes a topic with a consumer group. An offset is committed
// once the message is ingested or found to be poison; transient failures are
// retried in place so the committed offset never skips a message.
type KafkaSource struct {
	reader kafkaReader
	coord  *Coordinator
	logger logging.Logger
}

func NewKafkaSource(cfg KafkaConfig, coord *Coordinator, logger logging.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka brokers, topic and group id are required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaSource(r, coord, logger), nil
}

func newKafkaSource(r kafkaReader, coord *Coordinator, logger logging.Logger) *KafkaSource {
	return &KafkaSource{reader: r, coord: coord, logger: logger.With("module", "ingest", "source", "kafka")}
}

func (s *KafkaSource) Run(ctx context.Context) error {
	s.logger.Info(ctx, "kafka source started")
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if !s.process(ctx, msg) {
			return nil
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

// process ingests msg, retrying transient failures. It returns false when
// ctx was cancelled first.
func (s *KafkaSource) process(ctx context.Context, msg kafka.Message) bool {
	for attempt := 0; ; attempt++ {
		res, err := s.coord.HandleMessage(ctx, msg.Value)
		switch {
		case err == nil:
			s.logger.Debug(ctx, "kafka message ingested", "offset", msg.Offset, "patient_id", res.PatientID)
			return true
		case IsPoison(err):
			s.logger.Warn(ctx, "kafka message dropped", "offset", msg.Offset, "partition", msg.Partition, "error", err)
			return true
		}
		s.logger.Error(ctx, "kafka message failed, retrying", "offset", msg.Offset, "attempt", attempt+1, "error", err)
		if !sleep(ctx, backoff(attempt)) {
			return false
		}
	}
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
