// Package ingest feeds trade requests from a Kafka topic into the book.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tradebook/internal/logger"
	"tradebook/internal/model"
)

// Message results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultInvalid  = "invalid"
)

// Submitter records a trade request.
type Submitter interface {
	Submit(ctx context.Context, req model.TradeRequest) (model.Trade, error)
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads JSON trade requests, one per message, and submits them.
// Bad messages are logged and skipped.
type Consumer struct {
	reader  Reader
	book    Submitter
	log     *zap.Logger
	results *prometheus.CounterVec
}

// NewReader builds a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 1e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// NewConsumer creates a consumer. results may be nil.
func NewConsumer(r Reader, book Submitter, log *zap.Logger, results *prometheus.CounterVec) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: r, book: book, log: log.Named("ingest"), results: results}
}

// Run consumes until ctx is cancelled or the reader fails. It closes the
// reader on return and reports nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, m)
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) string {
	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("kafka", ts))
	log := logger.For(ctx, c.log).With(
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	req, err := model.DecodeTradeRequest(m.Value)
	if err != nil {
		log.Warn("bad message", zap.Error(err))
		c.count(ResultInvalid)
		return ResultInvalid
	}
	trade, err := c.book.Submit(ctx, req)
	if err != nil {
		log.Warn("trade rejected", zap.Error(err))
		c.count(ResultRejected)
		return ResultRejected
	}
	log.Debug("trade applied", zap.String("trade_id", trade.ID))
	c.count(ResultAccepted)
	return ResultAccepted
}

func (c *Consumer) count(result string) {
	if c.results != nil {
		c.results.WithLabelValues(result).Inc()
	}
}
