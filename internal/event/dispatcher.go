package event

import (
	"slices"
	"sync"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// Emitter accepts domain events. Both the connection and projectors that
// synthesize events write through it.
type Emitter interface {
	Handle(evt any)
}

// Dispatcher routes domain events to registered handlers. Handlers are
// invoked synchronously in registration order, so events of one kind reach
// a handler in emission order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	log      waLog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(log waLog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make([]Handler, 0),
		log:      log.Sub("Dispatcher"),
	}
}

// Register adds a handler. Registering the same handler twice is a no-op
// and reports false.
func (d *Dispatcher) Register(h Handler) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.handlers, h) {
		return false
	}
	d.handlers = append(d.handlers, h)
	return true
}

// Unregister removes a handler. Removing an unknown handler is a no-op and
// reports false.
func (d *Dispatcher) Unregister(h Handler) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := slices.Index(d.handlers, h)
	if i < 0 {
		return false
	}
	d.handlers = slices.Delete(slices.Clone(d.handlers), i, i+1)
	return true
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

func (d *Dispatcher) snapshot() []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers
}

// Handle routes one event to every handler. Handlers may emit further
// events or (un)register handlers while being called.
func (d *Dispatcher) Handle(evt any) {
	handlers := d.snapshot()

	switch e := evt.(type) {
	// Lifecycle events
	case *ConnectionUpdate:
		d.log.Debugf("Connection update: connection=%q qr=%t", e.Connection, e.QR != "")
		for _, h := range handlers {
			h.OnConnectionUpdate(e)
		}
	case *CredsUpdate:
		d.log.Infof("Creds update for %s", e.Me)
		for _, h := range handlers {
			h.OnCredsUpdate(e)
		}

	// Resync events
	case *HistorySet:
		d.log.Infof("History set: %d chats, %d messages, latest=%t", len(e.Chats), len(e.Messages), e.IsLatest)
		for _, h := range handlers {
			h.OnHistorySet(e)
		}

	// Chat events
	case *ChatsUpsert:
		for _, h := range handlers {
			h.OnChatsUpsert(e)
		}
	case *ChatsUpdate:
		for _, h := range handlers {
			h.OnChatsUpdate(e)
		}
	case *ChatsDelete:
		for _, h := range handlers {
			h.OnChatsDelete(e)
		}

	// Contact events
	case *ContactsUpsert:
		for _, h := range handlers {
			h.OnContactsUpsert(e)
		}
	case *ContactsUpdate:
		for _, h := range handlers {
			h.OnContactsUpdate(e)
		}

	// Group events
	case *GroupsUpsert:
		d.log.Debugf("Groups upsert: %d", len(e.Groups))
		for _, h := range handlers {
			h.OnGroupsUpsert(e)
		}
	case *GroupsUpdate:
		for _, h := range handlers {
			h.OnGroupsUpdate(e)
		}
	case *GroupParticipantsUpdate:
		d.log.Debugf("Participants %s in %s: %d", e.Action, e.ID, len(e.Participants))
		for _, h := range handlers {
			h.OnGroupParticipantsUpdate(e)
		}

	// Message events
	case *MessagesUpsert:
		d.log.Debugf("Messages upsert (%s): %d", e.Type, len(e.Messages))
		for _, h := range handlers {
			h.OnMessagesUpsert(e)
		}
	case *MessagesUpdate:
		for _, h := range handlers {
			h.OnMessagesUpdate(e)
		}
	case *MessagesDelete:
		for _, h := range handlers {
			h.OnMessagesDelete(e)
		}
	case *ReceiptUpdate:
		for _, h := range handlers {
			h.OnReceiptUpdate(e)
		}
	case *ReactionUpdate:
		for _, h := range handlers {
			h.OnReactionUpdate(e)
		}

	default:
		d.log.Debugf("Unhandled event type: %T", evt)
	}
}

var _ Emitter = (*Dispatcher)(nil)
