// Package extract turns whatsmeow events into the domain events the
// projectors and the connection controller consume.
package extract

import (
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// FromHistorySync extracts a resync snapshot from a history sync chunk.
// Contacts is only set for push name chunks, the only ones carrying a
// complete contact list. Group conversations are returned separately as
// group records.
func FromHistorySync(evt *events.HistorySync, isLatest bool) (*event.HistorySet, []store.GroupMetadata) {
	hs := evt.Data
	set := &event.HistorySet{IsLatest: isLatest}

	if hs.GetSyncType() == waHistorySync.HistorySync_PUSH_NAME {
		set.Contacts = make([]store.Contact, 0, len(hs.GetPushnames()))
		for _, pn := range hs.GetPushnames() {
			if pn.GetID() == "" {
				continue
			}
			set.Contacts = append(set.Contacts, store.Contact{
				ID:     pn.GetID(),
				Notify: pn.GetPushname(),
			})
		}
	}

	var groups []store.GroupMetadata
	for _, conv := range hs.GetConversations() {
		jid, err := types.ParseJID(conv.GetID())
		if err != nil || jid.IsEmpty() || IsIgnoredJID(jid) {
			continue
		}
		set.Chats = append(set.Chats, chatFromConversation(conv))
		if jid.Server == types.GroupServer && conv.GetName() != "" {
			groups = append(groups, groupFromConversation(conv))
		}
		for _, hm := range conv.GetMessages() {
			if msg, ok := historyMessage(hm.GetMessage(), conv.GetID()); ok {
				set.Messages = append(set.Messages, msg)
			}
		}
	}
	return set, groups
}

func chatFromConversation(conv *waHistorySync.Conversation) store.Chat {
	return store.Chat{
		ID:                    conv.GetID(),
		Name:                  conv.GetName(),
		DisplayName:           conv.GetDisplayName(),
		ConversationTimestamp: int64(conv.GetConversationTimestamp()),
		UnreadCount:           int(conv.GetUnreadCount()),
		Archived:              conv.GetArchived(),
		Pinned:                int64(conv.GetPinned()),
		MuteEndTime:           int64(conv.GetMuteEndTime()),
		MarkedAsUnread:        conv.GetMarkedAsUnread(),
		EphemeralExpiration:   int(conv.GetEphemeralExpiration()),
	}
}

func groupFromConversation(conv *waHistorySync.Conversation) store.GroupMetadata {
	g := store.GroupMetadata{
		ID:                conv.GetID(),
		Subject:           conv.GetName(),
		Desc:              conv.GetDescription(),
		Owner:             conv.GetCreatedBy(),
		Creation:          int64(conv.GetCreatedAt()),
		EphemeralDuration: int(conv.GetEphemeralExpiration()),
		Participants:      make([]store.Participant, 0, len(conv.GetParticipant())),
	}
	for _, p := range conv.GetParticipant() {
		if p.GetUserJID() == "" {
			continue
		}
		rank := p.GetRank()
		g.Participants = append(g.Participants, store.Participant{
			ID:           p.GetUserJID(),
			IsAdmin:      rank == waHistorySync.GroupParticipant_ADMIN || rank == waHistorySync.GroupParticipant_SUPERADMIN,
			IsSuperAdmin: rank == waHistorySync.GroupParticipant_SUPERADMIN,
		})
	}
	return g
}

func historyMessage(web *waWeb.WebMessageInfo, chat string) (store.Message, bool) {
	if web == nil || web.GetKey().GetID() == "" {
		return store.Message{}, false
	}

	msg := web.GetMessage()
	m := store.Message{
		Key:              KeyFromProto(web.GetKey(), chat),
		PushName:         web.GetPushName(),
		MessageTimestamp: int64(web.GetMessageTimestamp()),
		Status:           store.MessageStatus(web.GetStatus()),
		Starred:          web.GetStarred(),
		MessageType:      MessageType(msg),
		Text:             Text(msg),
		Content:          marshal(msg),
	}
	if m.Key.Participant == "" {
		m.Key.Participant = web.GetParticipant()
	}

	for _, r := range web.GetUserReceipt() {
		m.UserReceipt = append(m.UserReceipt, store.Receipt{
			UserJID:          r.GetUserJID(),
			ReceiptTimestamp: r.GetReceiptTimestamp(),
			ReadTimestamp:    r.GetReadTimestamp(),
			PlayedTimestamp:  r.GetPlayedTimestamp(),
		})
	}
	for _, r := range web.GetReactions() {
		if r.GetText() == "" {
			continue
		}
		m.Reactions = append(m.Reactions, store.Reaction{
			Key:               KeyFromProto(r.GetKey(), chat),
			Text:              r.GetText(),
			SenderTimestampMs: r.GetSenderTimestampMS(),
		})
	}
	return m, true
}
