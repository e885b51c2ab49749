// Package eventlog mirrors audit log entries onto a Kafka topic.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// DefaultTopic receives every audit entry.
const DefaultTopic = "leadflow.events"

const publishTimeout = 5 * time.Second

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer for topic on brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Store decorates a store.Store so that every appended log entry is also
// published. Publishing is best effort: the entry is already persisted, so
// a Kafka failure is logged and never returned.
type Store struct {
	store.Store
	writer Writer
	log    *zap.Logger
}

// Wrap returns st publishing through w.
func Wrap(st store.Store, w Writer) *Store {
	return &Store{
		Store:  st,
		writer: w,
		log:    zap.L().With(zap.String("component", "eventlog")),
	}
}

// AppendLog persists the entry, then publishes it keyed by log type.
func (s *Store) AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error) {
	entry, err := s.Store.AppendLog(ctx, typ, data)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, entry); err != nil {
		s.log.Warn("eventlog: publish failed", zap.String("type", string(typ)), zap.Error(err))
	}
	return entry, nil
}

func (s *Store) publish(ctx context.Context, entry *model.LogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "eventlog: marshal entry")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(entry.Type),
		Value: value,
		Time:  entry.CreatedAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrap(err, "eventlog: write message")
	}
	return nil
}

// Close closes the writer and then the underlying store.
func (s *Store) Close() error {
	werr := s.writer.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	if werr != nil {
		return eris.Wrap(werr, "eventlog: close writer")
	}
	return nil
}
