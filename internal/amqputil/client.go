package amqputil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

type QueueDeclareParams struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp091.Table
}

// Client publishes to a single queue over a lazily dialed connection.
// A closed connection is dialed again on the next Publish.
type Client struct {
	connectionString   string
	queueDeclareParams *QueueDeclareParams

	mu   sync.Mutex
	conn *amqp091.Connection
}

func NewClient(connectionString string, queueDeclareParams *QueueDeclareParams) *Client {
	return &Client{
		connectionString:   connectionString,
		queueDeclareParams: queueDeclareParams,
	}
}

// Queue returns the name of the queue the client publishes to.
func (cli *Client) Queue() string {
	return cli.queueDeclareParams.Name
}

// Publish proxies [amqp091.Channel.PublishWithContext].
// It declares the queue before publishing.
func (cli *Client) Publish(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	conn, err := cli.connection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		cli.queueDeclareParams.Name,
		cli.queueDeclareParams.Durable,
		cli.queueDeclareParams.AutoDelete,
		cli.queueDeclareParams.Exclusive,
		cli.queueDeclareParams.NoWait,
		cli.queueDeclareParams.Args,
	)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// PublishJSON publishes v as a persistent JSON message to the client's queue
// through the default exchange.
func (cli *Client) PublishJSON(ctx context.Context, messageType string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("amqputil: %w", err)
	}

	return cli.Publish(ctx, "", cli.Queue(), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         messageType,
		Body:         body,
	})
}

func (cli *Client) connection() (*amqp091.Connection, error) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	if cli.conn != nil && !cli.conn.IsClosed() {
		return cli.conn, nil
	}

	conn, err := amqp091.Dial(cli.connectionString)
	if err != nil {
		return nil, err
	}
	cli.conn = conn
	return conn, nil
}

// Close closes the connection if there is one.
func (cli *Client) Close() error {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	if cli.conn == nil || cli.conn.IsClosed() {
		return nil
	}
	err := cli.conn.Close()
	cli.conn = nil
	return err
}
