package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client holds one AMQP connection with a publishing channel in confirm mode
// and a separate channel for consumers, so broker acks for publishes never
// interleave with deliveries.
type Client struct {
	conn  *amqp.Connection
	pubCh *amqp.Channel
	subCh *amqp.Channel
}

// confirmation is the broker's pending answer to one publish.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := pubCh.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, err
	}
	subCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{conn: conn, pubCh: pubCh, subCh: subCh}, nil
}

func (c *Client) Close() error {
	if c.subCh != nil {
		_ = c.subCh.Close()
	}
	if c.pubCh != nil {
		_ = c.pubCh.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) Ping() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (c *Client) EnsureExchange(name string) error {
	return c.EnsureExchangeKind(name, "topic")
}

func (c *Client) EnsureExchangeKind(name string, kind string) error {
	if kind == "" {
		kind = "topic"
	}
	return c.pubCh.ExchangeDeclare(name, kind, true, false, false, false, nil)
}

func (c *Client) EnsureQueue(name string) (amqp.Queue, error) {
	return c.EnsureQueueWithArgs(name, nil)
}

func (c *Client) EnsureQueueWithArgs(name string, args amqp.Table) (amqp.Queue, error) {
	return c.pubCh.QueueDeclare(name, true, false, false, false, args)
}

// DeclareReplicaQueue declares a server-named queue that lives only as long
// as this connection.
func (c *Client) DeclareReplicaQueue() (string, error) {
	q, err := c.pubCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	return q.Name, nil
}

func (c *Client) BindQueue(queueName, exchange, routingKey string) error {
	return c.pubCh.QueueBind(queueName, routingKey, exchange, false, nil)
}

// PublishJSON publishes payload as a persistent message and waits for the
// broker to confirm it.
func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.publish(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// publish waits for the confirm of this message's own delivery tag, so a
// caller that gives up early never leaves a stale confirm for the next one.
func (c *Client) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	msg.Timestamp = time.Now()
	dc, err := c.pubCh.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		return err
	}
	if dc == nil {
		return errPublishUnconfirmed
	}
	return waitConfirm(ctx, dc)
}

var (
	errPublishUnconfirmed = errors.New("rabbitmq publish channel is not in confirm mode")
	errPublishNacked      = errors.New("publish nacked by broker")
)

func waitConfirm(ctx context.Context, dc confirmation) error {
	ack, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ack {
		return errPublishNacked
	}
	return nil
}
