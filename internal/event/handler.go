package event

// Handler receives the domain events of one connection.
// Embed BaseHandler and implement only the methods you need.
type Handler interface {
	// Lifecycle events
	OnConnectionUpdate(*ConnectionUpdate)
	OnCredsUpdate(*CredsUpdate)

	// Resync events
	OnHistorySet(*HistorySet)

	// Chat events
	OnChatsUpsert(*ChatsUpsert)
	OnChatsUpdate(*ChatsUpdate)
	OnChatsDelete(*ChatsDelete)

	// Contact events
	OnContactsUpsert(*ContactsUpsert)
	OnContactsUpdate(*ContactsUpdate)

	// Group events
	OnGroupsUpsert(*GroupsUpsert)
	OnGroupsUpdate(*GroupsUpdate)
	OnGroupParticipantsUpdate(*GroupParticipantsUpdate)

	// Message events
	OnMessagesUpsert(*MessagesUpsert)
	OnMessagesUpdate(*MessagesUpdate)
	OnMessagesDelete(*MessagesDelete)
	OnReceiptUpdate(*ReceiptUpdate)
	OnReactionUpdate(*ReactionUpdate)
}

// BaseHandler provides default no-op implementations for all Handler methods.
type BaseHandler struct{}

// Lifecycle events
func (h *BaseHandler) OnConnectionUpdate(*ConnectionUpdate) {}
func (h *BaseHandler) OnCredsUpdate(*CredsUpdate)           {}

// Resync events
func (h *BaseHandler) OnHistorySet(*HistorySet) {}

// Chat events
func (h *BaseHandler) OnChatsUpsert(*ChatsUpsert) {}
func (h *BaseHandler) OnChatsUpdate(*ChatsUpdate) {}
func (h *BaseHandler) OnChatsDelete(*ChatsDelete) {}

// Contact events
func (h *BaseHandler) OnContactsUpsert(*ContactsUpsert) {}
func (h *BaseHandler) OnContactsUpdate(*ContactsUpdate) {}

// Group events
func (h *BaseHandler) OnGroupsUpsert(*GroupsUpsert)                       {}
func (h *BaseHandler) OnGroupsUpdate(*GroupsUpdate)                       {}
func (h *BaseHandler) OnGroupParticipantsUpdate(*GroupParticipantsUpdate) {}

// Message events
func (h *BaseHandler) OnMessagesUpsert(*MessagesUpsert) {}
func (h *BaseHandler) OnMessagesUpdate(*MessagesUpdate) {}
func (h *BaseHandler) OnMessagesDelete(*MessagesDelete) {}
func (h *BaseHandler) OnReceiptUpdate(*ReceiptUpdate)   {}
func (h *BaseHandler) OnReactionUpdate(*ReactionUpdate) {}

var _ Handler = (*BaseHandler)(nil)
