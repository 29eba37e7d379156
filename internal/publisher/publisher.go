// Package publisher pushes table rows to NATS JetStream, one message per
// table per tick.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/gysosin/system_stats/internal/collectors"
	"github.com/gysosin/system_stats/internal/tuple"
)

// JetStream is the part of nats.JetStreamContext the publisher uses.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Message is the payload published for one table.
type Message struct {
	SystemName string      `json:"system_name"`
	Table      string      `json:"table"`
	Columns    []string    `json:"columns"`
	Rows       []tuple.Row `json:"rows"`
	Time       time.Time   `json:"time"`
}

// Publisher collects tables and publishes their rows.
type Publisher struct {
	js            JetStream
	tables        []collectors.Table
	systemName    string
	subjectPrefix string
	log           zerolog.Logger
	now           func() time.Time
}

// New returns a publisher writing to <subjectPrefix>.<table>.
func New(js JetStream, tables []collectors.Table, systemName, subjectPrefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:            js,
		tables:        tables,
		systemName:    systemName,
		subjectPrefix: subjectPrefix,
		log:           log,
		now:           time.Now,
	}
}

// Subject returns the subject rows of table are published on.
func (p *Publisher) Subject(table string) string {
	return p.subjectPrefix + "." + table
}

// PublishOnce collects every table and publishes the ones that produced rows.
// It returns the first publish error after trying all tables.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	var firstErr error
	for _, t := range p.tables {
		store := collectors.Collect(ctx, t)
		if store.Len() == 0 {
			continue
		}

		desc := t.Desc()
		payload, err := json.Marshal(Message{
			SystemName: p.systemName,
			Table:      desc.Name,
			Columns:    desc.Names(),
			Rows:       store.Rows(),
			Time:       p.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", desc.Name, err)
		}

		subject := p.Subject(desc.Name)
		if _, err := p.js.Publish(subject, payload); err != nil {
			p.log.Error().Err(err).Str("subject", subject).Msg("Failed to publish rows")
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s: %w", subject, err)
			}
			continue
		}
		p.log.Debug().Str("subject", subject).Int("rows", store.Len()).Msg("Published rows")
	}
	return firstErr
}

// Run publishes every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	p.log.Info().
		Str("subject_prefix", p.subjectPrefix).
		Dur("interval", interval).
		Msg("Starting push to NATS JetStream")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = p.PublishOnce(ctx)
		}
	}
}

// Connect dials NATS and returns the connection and its JetStream context.
// Callers drain the connection when done.
func Connect(url string) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url, nats.Name("system_stats"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("JetStream context: %w", err)
	}
	return nc, js, nil
}
