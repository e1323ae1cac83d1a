// Package ingest receives event batches over NATS and publishes the
// analysis results back onto the bus.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/vigil/internal/pipeline"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// NATS subjects.
const (
	SubjectBatches  = "ops.signals.batch"
	SubjectAnalysis = "ops.vigil.analysis"
)

// BatchMessage is the inbound payload on SubjectBatches.
type BatchMessage struct {
	BatchRef string         `json:"batch_ref,omitempty"`
	Events   []signal.Event `json:"events"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

// Consumer wires inbound batch messages through the pipeline and
// publishes the results.
type Consumer struct {
	client   *Client
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func NewConsumer(client *Client, pipe *pipeline.Pipeline, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, pipeline: pipe, logger: logger}
}

// Start subscribes to the batch subject. Handlers run on the NATS
// delivery goroutine; a bad message is logged and dropped.
func (c *Consumer) Start(ctx context.Context) error {
	return c.client.Subscribe(SubjectBatches, func(subject string, data []byte) {
		c.handleBatch(ctx, data)
	})
}

func (c *Consumer) handleBatch(ctx context.Context, data []byte) {
	var msg BatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed batch message", "error", err)
		return
	}

	result, err := c.pipeline.Process(ctx, msg.Events)
	if err != nil {
		c.logger.Error("batch processing failed", "batch_ref", msg.BatchRef, "error", err)
		return
	}

	if err := c.client.Publish(SubjectAnalysis, result); err != nil {
		c.logger.Warn("failed to publish analysis", "batch_id", result.BatchID, "error", err)
	}
}
