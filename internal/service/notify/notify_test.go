package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/infra/logger"
)

type memSink struct {
	name   string
	err    error
	bodies [][]byte
	closed bool
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Send(_ context.Context, _ Envelope, body []byte) error {
	s.bodies = append(s.bodies, body)
	return s.err
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

func TestNewEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	env := NewEnvelope("u1", &event.ConnectionUpdate{
		Connection:     event.ConnectionClose,
		LastDisconnect: &event.Disconnect{StatusCode: 428, Err: errors.New("gone")},
	}, now)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "u1", env.SessionID)
	assert.Equal(t, "close", env.Connection)
	assert.Equal(t, 428, env.StatusCode)
	assert.Equal(t, "gone", env.Error)
	assert.False(t, env.QR)
	assert.Equal(t, int64(1700000000123), env.Timestamp)

	qr := NewEnvelope("u1", &event.ConnectionUpdate{QR: "2@abc"}, now)
	assert.True(t, qr.QR)
	assert.NotEqual(t, env.ID, qr.ID)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "session.u1.connection", RoutingKey("u1"))
}

func TestPublisherFansOut(t *testing.T) {
	failing := &memSink{name: "a", err: errors.New("down")}
	ok := &memSink{name: "b"}
	p := New(logger.NewNop(), failing, ok)
	assert.Equal(t, 2, p.Len())

	p.Publish(context.Background(), "u1", &event.ConnectionUpdate{Connection: event.ConnectionOpen, QR: "secret"})

	require.Len(t, failing.bodies, 1)
	require.Len(t, ok.bodies, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal(ok.bodies[0], &env))
	assert.Equal(t, "open", env["connection"])
	assert.Equal(t, true, env["qr"])
	assert.NotContains(t, string(ok.bodies[0]), "secret")

	require.NoError(t, p.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestPublisherWithoutSinks(t *testing.T) {
	p := New(logger.NewNop())
	p.Publish(context.Background(), "u1", &event.ConnectionUpdate{})
	assert.NoError(t, p.Close())
}
