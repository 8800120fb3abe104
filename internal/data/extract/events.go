package extract

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/utils/jid"
)

// IsIgnoredJID reports whether a chat is a status or broadcast list, both
// of which are never mirrored.
func IsIgnoredJID(j types.JID) bool {
	return jid.IsBroadcast(j)
}

// Translator converts the data events of one connection. It only keeps
// whether the connection already saw its first bootstrap resync; create a
// new Translator per connection.
type Translator struct {
	bootstrapped bool
}

// Translate returns the domain events carried by a whatsmeow event, in
// emission order. Lifecycle events are not handled here.
func (t *Translator) Translate(evt any) []any {
	switch e := evt.(type) {
	// Message events
	case *events.Message:
		return messageEvents(e)
	case *events.Receipt:
		return receiptEvents(e)
	case *events.DeleteForMe:
		return []any{&event.MessagesDelete{Keys: []store.MessageKey{{
			RemoteJID: e.ChatJID.ToNonAD().String(),
			FromMe:    e.IsFromMe,
			ID:        e.MessageID,
		}}}}
	case *events.Star:
		starred := e.Action.GetStarred()
		return []any{&event.MessagesUpdate{Updates: []store.MessageUpdate{{
			Key:     store.MessageKey{RemoteJID: e.ChatJID.ToNonAD().String(), FromMe: e.IsFromMe, ID: e.MessageID},
			Starred: &starred,
		}}}}

	// Resync events
	case *events.HistorySync:
		latest := false
		if !t.bootstrapped && e.Data.GetSyncType() == waHistorySync.HistorySync_INITIAL_BOOTSTRAP {
			t.bootstrapped = true
			latest = true
		}
		set, groups := FromHistorySync(e, latest)
		out := []any{set}
		if len(groups) > 0 {
			out = append(out, &event.GroupsUpsert{Groups: groups})
		}
		return out

	// Chat events
	case *events.Pin:
		var pinned int64
		if e.Action.GetPinned() {
			pinned = e.Timestamp.Unix()
		}
		return chatUpdate(e.JID, func(u *store.ChatUpdate) { u.Pinned = &pinned })
	case *events.Mute:
		var until int64
		if e.Action.GetMuted() {
			until = e.Action.GetMuteEndTimestamp()
		}
		return chatUpdate(e.JID, func(u *store.ChatUpdate) { u.MuteEndTime = &until })
	case *events.Archive:
		archived := e.Action.GetArchived()
		return chatUpdate(e.JID, func(u *store.ChatUpdate) { u.Archived = &archived })
	case *events.MarkChatAsRead:
		unread := !e.Action.GetRead()
		return chatUpdate(e.JID, func(u *store.ChatUpdate) {
			u.MarkedAsUnread = &unread
			if !unread {
				zero := 0
				u.UnreadCount = &zero
			}
		})
	case *events.ClearChat:
		return []any{&event.MessagesDelete{JID: e.JID.ToNonAD().String(), All: true}}
	case *events.DeleteChat:
		chat := e.JID.ToNonAD().String()
		return []any{
			&event.ChatsDelete{IDs: []string{chat}},
			&event.MessagesDelete{JID: chat, All: true},
		}

	// Contact events
	case *events.Contact:
		name := e.Action.GetFullName()
		if name == "" {
			name = e.Action.GetFirstName()
		}
		return []any{&event.ContactsUpsert{Contacts: []store.Contact{{ID: e.JID.ToNonAD().String(), Name: name}}}}
	case *events.PushName:
		return []any{&event.ContactsUpsert{Contacts: []store.Contact{{ID: e.JID.ToNonAD().String(), Notify: e.NewPushName}}}}
	case *events.BusinessName:
		return []any{&event.ContactsUpsert{Contacts: []store.Contact{{ID: e.JID.ToNonAD().String(), VerifiedName: e.NewBusinessName}}}}
	case *events.Picture:
		img := "changed"
		if e.Remove {
			img = "removed"
		}
		return []any{&event.ContactsUpdate{Updates: []store.ContactUpdate{{ID: e.JID.ToNonAD().String(), ImgURL: &img}}}}

	// Group events
	case *events.GroupInfo:
		return GroupInfoEvents(e)
	case *events.JoinedGroup:
		g := GroupFromInfo(&e.GroupInfo)
		return []any{
			&event.GroupsUpsert{Groups: []store.GroupMetadata{g}},
			&event.ChatsUpsert{Chats: []store.Chat{{ID: g.ID, Name: g.Subject, ConversationTimestamp: g.Creation}}},
		}
	}
	return nil
}

func chatUpdate(chat types.JID, fn func(u *store.ChatUpdate)) []any {
	u := store.ChatUpdate{ID: chat.ToNonAD().String()}
	fn(&u)
	return []any{&event.ChatsUpdate{Updates: []store.ChatUpdate{u}}}
}

func messageEvents(evt *events.Message) []any {
	if IsIgnoredJID(evt.Info.Chat) || evt.Message == nil {
		return nil
	}
	chat := evt.Info.Chat.ToNonAD().String()

	if rm := evt.Message.GetReactionMessage(); rm != nil {
		return []any{&event.ReactionUpdate{Reactions: []event.ReactionEntry{{
			Key: KeyFromProto(rm.GetKey(), chat),
			Reaction: store.Reaction{
				Key:               KeyFromInfo(&evt.Info),
				Text:              rm.GetText(),
				SenderTimestampMs: rm.GetSenderTimestampMS(),
			},
		}}}}
	}

	if pm := evt.Message.GetProtocolMessage(); pm != nil {
		target := KeyFromProto(pm.GetKey(), chat)
		switch pm.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			revoked := true
			return []any{&event.MessagesUpdate{Updates: []store.MessageUpdate{{Key: target, Revoked: &revoked}}}}
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			edited := pm.GetEditedMessage()
			text := Text(edited)
			return []any{&event.MessagesUpdate{Updates: []store.MessageUpdate{{
				Key:     target,
				Text:    &text,
				Content: marshal(edited),
			}}}}
		}
		return nil
	}

	return []any{&event.MessagesUpsert{
		Type:     event.UpsertNotify,
		Messages: []store.Message{MessageFromEvent(&evt.Info, evt.Message)},
	}}
}

func receiptEvents(evt *events.Receipt) []any {
	if IsIgnoredJID(evt.Chat) {
		return nil
	}

	var status store.MessageStatus
	receipt := store.Receipt{UserJID: evt.Sender.ToNonAD().String()}
	ts := evt.Timestamp.Unix()
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		status = store.StatusDeliveryAck
		receipt.ReceiptTimestamp = ts
	case types.ReceiptTypeRead:
		status = store.StatusRead
		receipt.ReadTimestamp = ts
	case types.ReceiptTypePlayed:
		status = store.StatusPlayed
		receipt.PlayedTimestamp = ts
	default:
		return nil
	}

	chat := evt.Chat.ToNonAD().String()
	if evt.IsGroup {
		entries := make([]event.ReceiptEntry, 0, len(evt.MessageIDs))
		for _, id := range evt.MessageIDs {
			entries = append(entries, event.ReceiptEntry{
				Key:     store.MessageKey{RemoteJID: chat, FromMe: true, ID: id},
				Receipt: receipt,
			})
		}
		return []any{&event.ReceiptUpdate{Receipts: entries}}
	}

	updates := make([]store.MessageUpdate, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		updates = append(updates, store.MessageUpdate{
			Key:    store.MessageKey{RemoteJID: chat, FromMe: !evt.IsFromMe, ID: id},
			Status: &status,
		})
	}
	return []any{&event.MessagesUpdate{Updates: updates}}
}
