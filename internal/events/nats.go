package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/cognicore/simscore/pkg/simscore"
)

// Publisher sends scored-submission events to a NATS subject.
type Publisher struct {
	log     *slog.Logger
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the broker at addr.
func NewPublisher(log *slog.Logger, addr, subject string) (*Publisher, error) {
	nc, err := nats.Connect(addr, nats.Name("simscore"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", addr, err)
	}
	log.Info("connected to broker", "addr", addr, "subject", subject)

	return &Publisher{
		log:     log,
		nc:      nc,
		subject: subject,
	}, nil
}

// Close closes the broker connection.
func (p *Publisher) Close() {
	p.nc.Close()
}

// Publish implements simscore.Publisher.
func (p *Publisher) Publish(ctx context.Context, e simscore.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	p.log.Debug("event published", "subject", p.subject, "submission", e.SubmissionID)
	return nil
}

func encode(e simscore.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}
