package projector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/data/store/storetest"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/infra/logger"
)

func newTestProjector(t *testing.T) (*Projector, *event.Dispatcher, *store.Container) {
	t.Helper()
	stores := storetest.New(t)
	d := event.NewDispatcher(logger.NewNop())
	p := New(context.Background(), "u1", stores, d, logger.NewNop())
	p.Listen()
	return p, d, stores
}

func TestListenIsIdempotent(t *testing.T) {
	p, d, stores := newTestProjector(t)
	p.Listen()
	assert.Equal(t, 4, d.Len())

	d.Handle(&event.ChatsUpsert{Chats: []store.Chat{{ID: "a@s.whatsapp.net", UnreadCount: 1}}})
	chat, err := stores.Chats.Get(context.Background(), "u1", "a@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, 1, chat.UnreadCount)

	p.Unlisten()
	p.Unlisten()
	assert.Zero(t, d.Len())

	d.Handle(&event.ChatsDelete{IDs: []string{"a@s.whatsapp.net"}})
	exists, err := stores.Chats.Exists(context.Background(), "u1", "a@s.whatsapp.net")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestContactResyncDeletesStale(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	require.NoError(t, stores.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "a"}))
	require.NoError(t, stores.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "c"}))
	require.NoError(t, stores.Contacts.Upsert(ctx, "u2", &store.Contact{ID: "c"}))

	d.Handle(&event.HistorySet{Contacts: []store.Contact{{ID: "a"}, {ID: "b"}}})

	ids, err := stores.Contacts.IDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	other, err := stores.Contacts.IDs(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, other)
}

func TestHistoryWithoutContactsKeepsContacts(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	require.NoError(t, stores.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "a"}))
	d.Handle(&event.HistorySet{Chats: []store.Chat{{ID: "x"}}})

	ids, err := stores.Contacts.IDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestHistoryLatestReplacesMessages(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	old := store.Message{Key: store.MessageKey{RemoteJID: "x", ID: "old"}}
	require.NoError(t, stores.Messages.Insert(ctx, "u1", &old))

	d.Handle(&event.HistorySet{Messages: []store.Message{{Key: store.MessageKey{RemoteJID: "x", ID: "m1"}}}})
	msgs, err := stores.Messages.List(ctx, "u1", "x", store.Page{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	d.Handle(&event.HistorySet{IsLatest: true, Messages: []store.Message{{Key: store.MessageKey{RemoteJID: "x", ID: "m2"}}}})
	msgs, err = stores.Messages.List(ctx, "u1", "x", store.Page{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].Key.ID)
}

func TestMessageUpsertCreatesChat(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	jid := "a@s.whatsapp.net"
	for _, id := range []string{"m1", "m2"} {
		d.Handle(&event.MessagesUpsert{
			Type:     event.UpsertNotify,
			Messages: []store.Message{{Key: store.MessageKey{RemoteJID: jid, ID: id}, MessageTimestamp: 42}},
		})
	}

	chats, err := stores.Chats.List(ctx, "u1", store.Page{})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, jid, chats[0].ID)
	assert.Equal(t, int64(42), chats[0].ConversationTimestamp)
	assert.Equal(t, 1, chats[0].UnreadCount)

	d.Handle(&event.MessagesUpsert{
		Type:     event.UpsertAppend,
		Messages: []store.Message{{Key: store.MessageKey{RemoteJID: "b@s.whatsapp.net", ID: "m3"}}},
	})
	exists, err := stores.Chats.Exists(ctx, "u1", "b@s.whatsapp.net")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMessageUpdate(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	key := store.MessageKey{RemoteJID: "x", ID: "m1"}
	status := store.StatusRead

	d.Handle(&event.MessagesUpdate{Updates: []store.MessageUpdate{{Key: key, Status: &status}}})
	_, err := stores.Messages.Find(ctx, "u1", "x", "m1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, stores.Messages.Insert(ctx, "u1", &store.Message{Key: key, Text: "hi", Status: store.StatusServerAck}))
	require.NoError(t, stores.Messages.SetReactions(ctx, "u1", key, []store.Reaction{{Key: store.MessageKey{RemoteJID: "x", ID: "r"}, Text: "👍"}}))

	d.Handle(&event.MessagesUpdate{Updates: []store.MessageUpdate{{Key: key, Status: &status}}})
	m, err := stores.Messages.Find(ctx, "u1", "x", "m1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRead, m.Status)
	assert.Equal(t, "hi", m.Text)
	assert.Len(t, m.Reactions, 1)
}

func TestMessagesDelete(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, stores.Messages.Insert(ctx, "u1", &store.Message{Key: store.MessageKey{RemoteJID: "x", ID: id}}))
	}
	require.NoError(t, stores.Messages.Insert(ctx, "u1", &store.Message{Key: store.MessageKey{RemoteJID: "y", ID: "m1"}}))

	d.Handle(&event.MessagesDelete{Keys: []store.MessageKey{{RemoteJID: "x", ID: "m1"}, {RemoteJID: "x", ID: "m2"}}})
	msgs, err := stores.Messages.List(ctx, "u1", "x", store.Page{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m3", msgs[0].Key.ID)

	d.Handle(&event.MessagesDelete{JID: "x", All: true})
	msgs, err = stores.Messages.List(ctx, "u1", "", store.Page{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "y", msgs[0].Key.RemoteJID)
}

func TestReceiptReplacesSameUser(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	key := store.MessageKey{RemoteJID: "g@g.us", ID: "m1", FromMe: true}
	require.NoError(t, stores.Messages.Insert(ctx, "u1", &store.Message{Key: key}))

	d.Handle(&event.ReceiptUpdate{Receipts: []event.ReceiptEntry{
		{Key: key, Receipt: store.Receipt{UserJID: "a", ReceiptTimestamp: 1}},
		{Key: key, Receipt: store.Receipt{UserJID: "b", ReceiptTimestamp: 1}},
		{Key: key, Receipt: store.Receipt{UserJID: "a", ReadTimestamp: 2}},
	}})

	m, err := stores.Messages.Find(ctx, "u1", key.RemoteJID, key.ID)
	require.NoError(t, err)
	require.Len(t, m.UserReceipt, 2)
	assert.Equal(t, "b", m.UserReceipt[0].UserJID)
	assert.Equal(t, store.Receipt{UserJID: "a", ReadTimestamp: 2}, m.UserReceipt[1])
}

func TestReactionEmptyTextRemoves(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	key := store.MessageKey{RemoteJID: "a@s.whatsapp.net", ID: "m1"}
	require.NoError(t, stores.Messages.Insert(ctx, "u1", &store.Message{Key: key}))

	author := store.MessageKey{RemoteJID: "a@s.whatsapp.net", ID: "r1"}
	d.Handle(&event.ReactionUpdate{Reactions: []event.ReactionEntry{
		{Key: key, Reaction: store.Reaction{Key: author, Text: "❤"}},
	}})
	m, err := stores.Messages.Find(ctx, "u1", key.RemoteJID, key.ID)
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)

	d.Handle(&event.ReactionUpdate{Reactions: []event.ReactionEntry{
		{Key: key, Reaction: store.Reaction{Key: store.MessageKey{RemoteJID: "a@s.whatsapp.net", ID: "r2"}}},
	}})
	m, err = stores.Messages.Find(ctx, "u1", key.RemoteJID, key.ID)
	require.NoError(t, err)
	assert.Empty(t, m.Reactions)

	// vanished message
	d.Handle(&event.ReactionUpdate{Reactions: []event.ReactionEntry{
		{Key: store.MessageKey{RemoteJID: "x", ID: "gone"}, Reaction: store.Reaction{Key: author, Text: "❤"}},
	}})
}

func TestMergeReaction(t *testing.T) {
	me := store.MessageKey{FromMe: true, ID: "1"}
	other := store.MessageKey{RemoteJID: "g@g.us", Participant: "b", ID: "2"}

	out := MergeReaction(nil, store.Reaction{Key: me, Text: "a"})
	out = MergeReaction(out, store.Reaction{Key: other, Text: "b"})
	out = MergeReaction(out, store.Reaction{Key: store.MessageKey{FromMe: true, ID: "3"}, Text: "c"})
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Text)
	assert.Equal(t, "c", out[1].Text)

	out = MergeReaction(out, store.Reaction{Key: other})
	require.Len(t, out, 1)
	assert.Equal(t, "me", out[0].Key.Author())
}

func TestGroupParticipants(t *testing.T) {
	ctx := context.Background()
	_, d, stores := newTestProjector(t)

	d.Handle(&event.GroupParticipantsUpdate{ID: "missing@g.us", Action: event.ParticipantAdd, Participants: []string{"a"}})
	_, err := stores.Groups.Get(ctx, "u1", "missing@g.us")
	assert.ErrorIs(t, err, store.ErrNotFound)

	d.Handle(&event.GroupsUpsert{Groups: []store.GroupMetadata{{
		ID:           "g@g.us",
		Subject:      "Team",
		Participants: []store.Participant{{ID: "a", IsAdmin: true, IsSuperAdmin: true}},
	}}})

	d.Handle(&event.GroupParticipantsUpdate{ID: "g@g.us", Action: event.ParticipantAdd, Participants: []string{"b", "c", "a"}})
	d.Handle(&event.GroupParticipantsUpdate{ID: "g@g.us", Action: event.ParticipantPromote, Participants: []string{"b"}})
	d.Handle(&event.GroupParticipantsUpdate{ID: "g@g.us", Action: event.ParticipantRemove, Participants: []string{"c"}})

	g, err := stores.Groups.Get(ctx, "u1", "g@g.us")
	require.NoError(t, err)
	assert.Equal(t, []store.Participant{
		{ID: "a", IsAdmin: true, IsSuperAdmin: true},
		{ID: "b", IsAdmin: true},
	}, g.Participants)
	assert.Equal(t, 2, g.Size)

	d.Handle(&event.GroupParticipantsUpdate{ID: "g@g.us", Action: event.ParticipantDemote, Participants: []string{"a"}})
	g, err = stores.Groups.Get(ctx, "u1", "g@g.us")
	require.NoError(t, err)
	assert.False(t, g.Participants[0].IsAdmin)
}

func TestApplyParticipantsLeave(t *testing.T) {
	current := []store.Participant{{ID: "a"}, {ID: "b"}}
	out := ApplyParticipants(current, event.ParticipantLeave, []string{"a"})
	assert.Equal(t, []store.Participant{{ID: "b"}}, out)
	assert.Len(t, current, 2)
}
