// Package notify publishes session connection updates to external brokers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/event"
)

// Envelope is the wire form of one connection update.
type Envelope struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	Connection string `json:"connection,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	QR         bool   `json:"qr"`
	Timestamp  int64  `json:"timestamp"`
}

// NewEnvelope builds the envelope of u. The QR payload itself never leaves
// the process; subscribers only learn that one was issued.
func NewEnvelope(sessionID string, u *event.ConnectionUpdate, now time.Time) Envelope {
	env := Envelope{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Connection: string(u.Connection),
		QR:         u.QR != "",
		Timestamp:  now.UnixMilli(),
	}
	if d := u.LastDisconnect; d != nil {
		env.StatusCode = d.StatusCode
		if d.Err != nil {
			env.Error = d.Err.Error()
		}
	}
	return env
}

// RoutingKey is the topic a session's connection updates are published on.
func RoutingKey(sessionID string) string {
	return "session." + sessionID + ".connection"
}

// Sink delivers encoded envelopes.
type Sink interface {
	Name() string
	Send(ctx context.Context, env Envelope, body []byte) error
	Close() error
}

// Publisher fans connection updates out to every configured sink. Failures
// are logged and never reach the session.
type Publisher struct {
	sinks []Sink
	log   waLog.Logger
	now   func() time.Time
}

// New creates a Publisher over sinks.
func New(log waLog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, log: log.Sub("Notify"), now: time.Now}
}

// Len returns the number of sinks.
func (p *Publisher) Len() int { return len(p.sinks) }

// Publish implements session.Notifier.
func (p *Publisher) Publish(ctx context.Context, sessionID string, u *event.ConnectionUpdate) {
	if len(p.sinks) == 0 {
		return
	}
	env := NewEnvelope(sessionID, u, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		p.log.Errorf("Failed to encode update of %s: %v", sessionID, err)
		return
	}
	for _, s := range p.sinks {
		if err := s.Send(ctx, env, body); err != nil {
			p.log.Warnf("Failed to publish update of %s to %s: %v", sessionID, s.Name(), err)
		}
	}
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var first error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
