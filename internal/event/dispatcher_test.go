package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kintamahadji/baileys-api/internal/infra/logger"
)

type countingHandler struct {
	BaseHandler
	updates int
	upserts int
}

func (h *countingHandler) OnConnectionUpdate(*ConnectionUpdate) { h.updates++ }
func (h *countingHandler) OnChatsUpsert(*ChatsUpsert)           { h.upserts++ }

func TestRegisterIsIdempotent(t *testing.T) {
	d := NewDispatcher(logger.NewNop())
	h := &countingHandler{}

	assert.True(t, d.Register(h))
	assert.False(t, d.Register(h))
	assert.Equal(t, 1, d.Len())

	d.Handle(&ConnectionUpdate{Connection: ConnectionOpen})
	assert.Equal(t, 1, h.updates)

	assert.True(t, d.Unregister(h))
	assert.False(t, d.Unregister(h))

	d.Handle(&ConnectionUpdate{Connection: ConnectionOpen})
	assert.Equal(t, 1, h.updates)
}

type reentrantHandler struct {
	BaseHandler
	d     *Dispatcher
	other *countingHandler
}

func (h *reentrantHandler) OnConnectionUpdate(*ConnectionUpdate) {
	h.d.Unregister(h)
	h.d.Handle(&ChatsUpsert{})
}

func TestHandleAllowsReentrantEmit(t *testing.T) {
	d := NewDispatcher(logger.NewNop())
	other := &countingHandler{}
	re := &reentrantHandler{d: d, other: other}
	d.Register(re)
	d.Register(other)

	d.Handle(&ConnectionUpdate{})

	assert.Equal(t, 1, other.upserts)
	assert.Equal(t, 1, other.updates)
	assert.Equal(t, 1, d.Len())
}

func TestUnknownEventIgnored(t *testing.T) {
	d := NewDispatcher(logger.NewNop())
	h := &countingHandler{}
	d.Register(h)
	d.Handle("nope")
	assert.Zero(t, h.updates)
}
