// Package kafka streams snapshots to a Kafka topic, one record per tick keyed
// by session so a session's records stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/core/sink"
	"github.com/kilianp07/homesim/infra/logger"
)

// Config configures the writer.
type Config struct {
	Brokers      []string      `json:"brokers"`
	Topic        string        `json:"topic"`
	SummaryTopic string        `json:"summary_topic"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

func (c *Config) setDefaults() {
	if c.Topic == "" {
		c.Topic = "homesim.snapshots"
	}
	if c.SummaryTopic == "" {
		c.SummaryTopic = c.Topic + ".days"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes snapshot records to Kafka.
type Sink struct {
	cfg    Config
	writer messageWriter
	log    logger.Logger
}

// record is the value written for each tick.
type record struct {
	SessionID string         `json:"sessionId"`
	Timestamp string         `json:"timestamp"`
	Snapshot  model.Snapshot `json:"snapshot"`
}

// NewSink creates a synchronous writer. Topic is set per message so the same
// writer serves snapshots and day summaries.
func NewSink(cfg Config) (*Sink, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return newSink(cfg, w), nil
}

func newSink(cfg Config, w messageWriter) *Sink {
	cfg.setDefaults()
	return &Sink{cfg: cfg, writer: w, log: logger.New("kafka-sink")}
}

// RecordSnapshot writes one record keyed by session id.
func (s *Sink) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	b, err := json.Marshal(record{
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Snapshot:  snap,
	})
	if err != nil {
		return err
	}
	return s.write(kafka.Message{
		Topic: s.cfg.Topic,
		Key:   []byte(sessionID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "step", Value: []byte(strconv.Itoa(snap.Step))},
		},
	})
}

// RecordDaySummary writes the day totals on the summary topic.
func (s *Sink) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.write(kafka.Message{Topic: s.cfg.SummaryTopic, Key: []byte(sessionID), Value: b})
}

func (s *Sink) write(msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.Topic, err)
	}
	s.log.Debugf("wrote %d bytes to %s", len(msg.Value), msg.Topic)
	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error { return s.writer.Close() }

// Register adds the "kafka" sink to reg.
func Register(reg *sink.Registry) error {
	return reg.Register("kafka", func(conf map[string]any) (sink.Sink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSink(c)
	})
}
