// Package projector mirrors the domain events of a session into the
// relational store.
package projector

import (
	"context"
	"sync"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// Projector bundles the four sub-projectors of one session.
type Projector struct {
	Chats    *ChatProjector
	Contacts *ContactProjector
	Groups   *GroupProjector
	Messages *MessageProjector
}

// New creates the projectors of sessionID. They start detached; call Listen.
func New(ctx context.Context, sessionID string, stores *store.Container, d *event.Dispatcher, log waLog.Logger) *Projector {
	log = log.Sub("Projector")
	locks := newKeyedMutex()
	base := projectorBase{
		ctx:        ctx,
		sessionID:  sessionID,
		stores:     stores,
		dispatcher: d,
		locks:      locks,
	}
	return &Projector{
		Chats:    &ChatProjector{projectorBase: base.named(log, "Chats")},
		Contacts: &ContactProjector{projectorBase: base.named(log, "Contacts")},
		Groups:   &GroupProjector{projectorBase: base.named(log, "Groups")},
		Messages: &MessageProjector{projectorBase: base.named(log, "Messages")},
	}
}

// Listen attaches every sub-projector.
func (p *Projector) Listen() {
	p.Chats.Listen()
	p.Messages.Listen()
	p.Contacts.Listen()
	p.Groups.Listen()
}

// Unlisten detaches every sub-projector.
func (p *Projector) Unlisten() {
	p.Chats.Unlisten()
	p.Messages.Unlisten()
	p.Contacts.Unlisten()
	p.Groups.Unlisten()
}

type projectorBase struct {
	event.BaseHandler
	ctx        context.Context
	sessionID  string
	stores     *store.Container
	dispatcher *event.Dispatcher
	locks      *keyedMutex
	log        waLog.Logger
}

func (b projectorBase) named(log waLog.Logger, name string) projectorBase {
	b.log = log.Sub(name)
	return b
}

func (b *projectorBase) listen(h event.Handler) {
	if !b.dispatcher.Register(h) {
		b.log.Debugf("Already listening")
	}
}

func (b *projectorBase) unlisten(h event.Handler) {
	if !b.dispatcher.Unregister(h) {
		b.log.Debugf("Not listening")
	}
}

// keyedMutex serializes read-modify-write cycles on one record.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock locks key and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
