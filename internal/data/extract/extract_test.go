package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

var (
	alice = types.NewJID("111", types.DefaultUserServer)
	bob   = types.NewJID("222", types.DefaultUserServer)
	group = types.NewJID("123-456", types.GroupServer)
)

func textMessage(chat, sender types.JID, id, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: sender, IsGroup: chat.Server == types.GroupServer},
			ID:            id,
			PushName:      "Alice",
			Timestamp:     time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestTranslateMessage(t *testing.T) {
	tr := &Translator{}

	out := tr.Translate(textMessage(group, alice, "m1", "hello"))
	require.Len(t, out, 1)
	upsert, ok := out[0].(*event.MessagesUpsert)
	require.True(t, ok)
	assert.Equal(t, event.UpsertNotify, upsert.Type)

	m := upsert.Messages[0]
	assert.Equal(t, store.MessageKey{RemoteJID: group.String(), ID: "m1", Participant: alice.String()}, m.Key)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, "text", m.MessageType)
	assert.Equal(t, int64(1700000000), m.MessageTimestamp)

	var body waE2E.Message
	require.NoError(t, proto.Unmarshal(m.Content, &body))
	assert.Equal(t, "hello", body.GetConversation())
}

func TestTranslateIgnoresStatus(t *testing.T) {
	tr := &Translator{}
	assert.Empty(t, tr.Translate(textMessage(types.StatusBroadcastJID, alice, "s1", "story")))
}

func TestTranslateReactionAndRevoke(t *testing.T) {
	tr := &Translator{}

	evt := textMessage(alice, alice, "r1", "")
	evt.Message = &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{
		Key:  &waCommon.MessageKey{RemoteJID: proto.String(alice.String()), FromMe: proto.Bool(true), ID: proto.String("m1")},
		Text: proto.String("👍"),
	}}
	out := tr.Translate(evt)
	require.Len(t, out, 1)
	reaction := out[0].(*event.ReactionUpdate).Reactions[0]
	assert.Equal(t, "m1", reaction.Key.ID)
	assert.Equal(t, "👍", reaction.Reaction.Text)
	assert.Equal(t, alice.String(), reaction.Reaction.Key.Author())

	evt.Message = &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
		Key:  &waCommon.MessageKey{ID: proto.String("m1")},
	}}
	out = tr.Translate(evt)
	require.Len(t, out, 1)
	u := out[0].(*event.MessagesUpdate).Updates[0]
	assert.Equal(t, alice.String(), u.Key.RemoteJID)
	require.NotNil(t, u.Revoked)
	assert.True(t, *u.Revoked)
}

func TestTranslateReceipts(t *testing.T) {
	tr := &Translator{}
	ts := time.Unix(1700000100, 0)

	out := tr.Translate(&events.Receipt{
		MessageSource: types.MessageSource{Chat: group, Sender: bob, IsGroup: true},
		MessageIDs:    []types.MessageID{"m1", "m2"},
		Timestamp:     ts,
		Type:          types.ReceiptTypeRead,
	})
	require.Len(t, out, 1)
	receipts := out[0].(*event.ReceiptUpdate).Receipts
	require.Len(t, receipts, 2)
	assert.Equal(t, store.Receipt{UserJID: bob.String(), ReadTimestamp: ts.Unix()}, receipts[1].Receipt)

	out = tr.Translate(&events.Receipt{
		MessageSource: types.MessageSource{Chat: bob, Sender: bob},
		MessageIDs:    []types.MessageID{"m3"},
		Timestamp:     ts,
		Type:          types.ReceiptTypeDelivered,
	})
	require.Len(t, out, 1)
	update := out[0].(*event.MessagesUpdate).Updates[0]
	assert.Equal(t, store.StatusDeliveryAck, *update.Status)
}

func TestTranslateHistorySync(t *testing.T) {
	tr := &Translator{}
	conv := &waHistorySync.Conversation{
		ID:          proto.String(group.String()),
		Name:        proto.String("Team"),
		UnreadCount: proto.Uint32(3),
		Participant: []*waHistorySync.GroupParticipant{
			{UserJID: proto.String(alice.String()), Rank: waHistorySync.GroupParticipant_SUPERADMIN.Enum()},
			{UserJID: proto.String(bob.String())},
		},
		Messages: []*waHistorySync.HistorySyncMsg{{
			Message: &waWeb.WebMessageInfo{
				Key:              &waCommon.MessageKey{RemoteJID: proto.String(group.String()), ID: proto.String("h1")},
				Message:          &waE2E.Message{Conversation: proto.String("old")},
				MessageTimestamp: proto.Uint64(10),
				Participant:      proto.String(bob.String()),
			},
		}},
	}
	bootstrap := &events.HistorySync{Data: &waHistorySync.HistorySync{
		SyncType:      waHistorySync.HistorySync_INITIAL_BOOTSTRAP.Enum(),
		Conversations: []*waHistorySync.Conversation{conv},
	}}

	out := tr.Translate(bootstrap)
	require.Len(t, out, 2)
	set := out[0].(*event.HistorySet)
	assert.True(t, set.IsLatest)
	assert.Nil(t, set.Contacts)
	require.Len(t, set.Chats, 1)
	assert.Equal(t, 3, set.Chats[0].UnreadCount)
	require.Len(t, set.Messages, 1)
	assert.Equal(t, bob.String(), set.Messages[0].Key.Participant)
	assert.Equal(t, "old", set.Messages[0].Text)

	groups := out[1].(*event.GroupsUpsert).Groups
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Participants[0].IsSuperAdmin)
	assert.False(t, groups[0].Participants[1].IsAdmin)

	out = tr.Translate(bootstrap)
	assert.False(t, out[0].(*event.HistorySet).IsLatest)

	out = tr.Translate(&events.HistorySync{Data: &waHistorySync.HistorySync{
		SyncType:  waHistorySync.HistorySync_PUSH_NAME.Enum(),
		Pushnames: []*waHistorySync.Pushname{{ID: proto.String(alice.String()), Pushname: proto.String("Alice")}},
	}})
	set = out[0].(*event.HistorySet)
	require.Len(t, set.Contacts, 1)
	assert.Equal(t, "Alice", set.Contacts[0].Notify)
}

func TestGroupInfoEvents(t *testing.T) {
	out := GroupInfoEvents(&events.GroupInfo{
		JID:     group,
		Name:    &types.GroupName{Name: "New name"},
		Join:    []types.JID{alice},
		Promote: []types.JID{bob},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "New name", *out[0].(*event.GroupsUpdate).Updates[0].Subject)

	add := out[1].(*event.GroupParticipantsUpdate)
	assert.Equal(t, event.ParticipantAdd, add.Action)
	assert.Equal(t, []string{alice.String()}, add.Participants)
	assert.Equal(t, event.ParticipantPromote, out[2].(*event.GroupParticipantsUpdate).Action)
}

func TestGroupInfoLeaveOrRemove(t *testing.T) {
	out := GroupInfoEvents(&events.GroupInfo{JID: group, Sender: &alice, Leave: []types.JID{alice}})
	require.Len(t, out, 1)
	assert.Equal(t, event.ParticipantLeave, out[0].(*event.GroupParticipantsUpdate).Action)

	out = GroupInfoEvents(&events.GroupInfo{JID: group, Sender: &bob, Leave: []types.JID{alice}})
	require.Len(t, out, 1)
	assert.Equal(t, event.ParticipantRemove, out[0].(*event.GroupParticipantsUpdate).Action)
}

func TestTranslateChatState(t *testing.T) {
	tr := &Translator{}
	out := tr.Translate(&events.DeleteChat{JID: alice})
	require.Len(t, out, 2)
	assert.Equal(t, []string{alice.String()}, out[0].(*event.ChatsDelete).IDs)
	assert.True(t, out[1].(*event.MessagesDelete).All)

	assert.Nil(t, tr.Translate(&events.Connected{}))
}
