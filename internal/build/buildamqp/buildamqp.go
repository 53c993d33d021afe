// Package buildamqp announces finished builds on a RabbitMQ queue.
package buildamqp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/web2app/internal/amqputil"
	"github.com/k11v/web2app/internal/build"
)

const (
	DefaultQueue = "build.finished"

	messageType = "build.finished"
)

// Publisher is what Notifier needs from an amqputil.Client.
type Publisher interface {
	PublishJSON(ctx context.Context, messageType string, v any) error
}

var (
	_ build.Notifier = (*Notifier)(nil)
	_ Publisher      = (*amqputil.Client)(nil)
)

type Notifier struct {
	Publisher Publisher // required
}

// NewClient returns a client that publishes to a durable queue.
func NewClient(connectionString, queue string) *amqputil.Client {
	if queue == "" {
		queue = DefaultQueue
	}
	return amqputil.NewClient(connectionString, &amqputil.QueueDeclareParams{
		Name:    queue,
		Durable: true,
	})
}

type message struct {
	ID           uuid.UUID `json:"id"`
	State        string    `json:"state"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ArtifactName string    `json:"artifact_name,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Notify implements build.Notifier.
func (n *Notifier) Notify(ctx context.Context, event *build.Event) error {
	msg := message{
		ID:           event.ID,
		State:        string(event.State),
		ErrorKind:    event.ErrorKind,
		ErrorMessage: event.ErrorMessage,
		ArtifactName: event.ArtifactName,
		FinishedAt:   event.FinishedAt,
	}
	if err := n.Publisher.PublishJSON(ctx, messageType, msg); err != nil {
		return fmt.Errorf("buildamqp.Notifier: %w", err)
	}
	return nil
}
