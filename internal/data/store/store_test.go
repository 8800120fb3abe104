package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/data/store/storetest"
)

func ptr[T any](v T) *T { return &v }

func TestChatUpsertKeepsStoredFields(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	require.NoError(t, c.Chats.Upsert(ctx, "u1", &store.Chat{ID: "a@s.whatsapp.net", Name: "Alice", UnreadCount: 2}))
	require.NoError(t, c.Chats.Upsert(ctx, "u1", &store.Chat{ID: "a@s.whatsapp.net", ConversationTimestamp: 99}))

	chat, err := c.Chats.Get(ctx, "u1", "a@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "Alice", chat.Name)
	assert.Equal(t, 2, chat.UnreadCount)
	assert.Equal(t, int64(99), chat.ConversationTimestamp)

	_, err = c.Chats.Get(ctx, "u2", "a@s.whatsapp.net")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChatUpdate(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	err := c.Chats.Update(ctx, "u1", &store.ChatUpdate{ID: "missing", Archived: ptr(true)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = c.Chats.Update(ctx, "u1", &store.ChatUpdate{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, c.Chats.Upsert(ctx, "u1", &store.Chat{ID: "x"}))
	require.NoError(t, c.Chats.Update(ctx, "u1", &store.ChatUpdate{ID: "x", Archived: ptr(true), Pinned: ptr(int64(5))}))

	chat, err := c.Chats.Get(ctx, "u1", "x")
	require.NoError(t, err)
	assert.True(t, chat.Archived)
	assert.Equal(t, int64(5), chat.Pinned)
}

func TestChatPagination(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Chats.Upsert(ctx, "u1", &store.Chat{ID: id}))
	}

	page := store.Page{Limit: 2}
	first, err := c.Chats.List(ctx, "u1", page)
	require.NoError(t, err)
	require.Len(t, first, 2)

	cursor := store.NextCursor([]int64{first[0].PkID, first[1].PkID}, page)
	require.NotNil(t, cursor)

	page.Cursor = *cursor
	second, err := c.Chats.List(ctx, "u1", page)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].ID)
	assert.Nil(t, store.NextCursor([]int64{second[0].PkID}, page))
}

func TestContactListBySuffix(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	require.NoError(t, c.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "1@s.whatsapp.net", Name: "One"}))
	require.NoError(t, c.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "2@g.us"}))
	require.NoError(t, c.Contacts.Upsert(ctx, "u1", &store.Contact{ID: "1@s.whatsapp.net", Notify: "uno"}))

	contacts, err := c.Contacts.List(ctx, "u1", "s.whatsapp.net", store.Page{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "One", contacts[0].Name)
	assert.Equal(t, "uno", contacts[0].Notify)

	require.NoError(t, c.Contacts.Delete(ctx, "u1", "1@s.whatsapp.net", "2@g.us"))
	ids, err := c.Contacts.IDs(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGroupParticipantsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	g := &store.GroupMetadata{
		ID:      "g@g.us",
		Subject: "Team",
		Participants: []store.Participant{
			{ID: "a@s.whatsapp.net", IsAdmin: true, IsSuperAdmin: true},
			{ID: "b@s.whatsapp.net"},
		},
	}
	require.NoError(t, c.Groups.Upsert(ctx, "u1", g))

	got, err := c.Groups.Get(ctx, "u1", "g@g.us")
	require.NoError(t, err)
	assert.Equal(t, g.Participants, got.Participants)
	assert.Equal(t, 2, got.Size)

	residual := got.Participants[:1]
	require.NoError(t, c.Groups.Update(ctx, "u1", &store.GroupUpdate{ID: "g@g.us", Participants: &residual}))

	got, err = c.Groups.Get(ctx, "u1", "g@g.us")
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
	assert.Equal(t, 1, got.Size)
}

func TestMessageUpsertKeepsReceipts(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	key := store.MessageKey{RemoteJID: "a@s.whatsapp.net", ID: "m1"}
	require.NoError(t, c.Messages.Upsert(ctx, "u1", &store.Message{Key: key, Text: "hi"}))
	require.NoError(t, c.Messages.SetUserReceipt(ctx, "u1", key, []store.Receipt{{UserJID: "a@s.whatsapp.net", ReadTimestamp: 3}}))
	require.NoError(t, c.Messages.Upsert(ctx, "u1", &store.Message{Key: key, Text: "hi", Status: store.StatusRead}))

	m, err := c.Messages.Find(ctx, "u1", key.RemoteJID, key.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRead, m.Status)
	require.Len(t, m.UserReceipt, 1)
	assert.Equal(t, int64(3), m.UserReceipt[0].ReadTimestamp)

	err = c.Messages.SetReactions(ctx, "u1", store.MessageKey{RemoteJID: "a@s.whatsapp.net", ID: "nope"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessageInsertIgnoreAndDelete(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, c.Messages.InsertIgnore(ctx, "u1", &store.Message{Key: store.MessageKey{RemoteJID: "chat", ID: id}}))
	}
	require.NoError(t, c.Messages.InsertIgnore(ctx, "u1", &store.Message{Key: store.MessageKey{RemoteJID: "chat", ID: "m1"}}))
	require.Error(t, c.Messages.Insert(ctx, "u1", &store.Message{Key: store.MessageKey{RemoteJID: "chat", ID: "m1"}}))

	require.NoError(t, c.Messages.DeleteIDs(ctx, "u1", "chat", "m1", "m2"))
	msgs, err := c.Messages.List(ctx, "u1", "chat", store.Page{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m3", msgs[0].Key.ID)

	require.NoError(t, c.Messages.DeleteChat(ctx, "u1", "chat"))
	msgs, err = c.Messages.List(ctx, "u1", "", store.Page{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageApply(t *testing.T) {
	m := &store.Message{Status: store.StatusDeliveryAck, Text: "old", Content: []byte{1}}

	m.Apply(&store.MessageUpdate{Status: ptr(store.StatusServerAck)})
	assert.Equal(t, store.StatusDeliveryAck, m.Status)

	m.Apply(&store.MessageUpdate{Text: ptr("new")})
	assert.Equal(t, "new", m.Text)
	assert.True(t, m.Edited)

	m.Apply(&store.MessageUpdate{Revoked: ptr(true)})
	assert.True(t, m.Revoked)
	assert.Empty(t, m.Text)
	assert.Nil(t, m.Content)
}

func TestRecordAbsence(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	data, ok, err := c.Records.Get(ctx, "u1", "creds")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	require.NoError(t, c.Records.Put(ctx, "u1", "creds", []byte(`{"me":1}`)))
	require.NoError(t, c.Records.Put(ctx, "u1", "creds", []byte(`{"me":2}`)))
	data, ok, err = c.Records.Get(ctx, "u1", "creds")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"me":2}`, string(data))

	require.NoError(t, c.Records.PutIfAbsent(ctx, "u1", "creds", []byte(`{"me":3}`)))
	data, _, _ = c.Records.Get(ctx, "u1", "creds")
	assert.Equal(t, `{"me":2}`, string(data))
}

func TestRecordListByPrefix(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	require.NoError(t, c.Records.Put(ctx, "u1", "session-config-u1", []byte(`{}`)))
	require.NoError(t, c.Records.Put(ctx, "u2", "session-config-u2", []byte(`{}`)))
	require.NoError(t, c.Records.Put(ctx, "u1", "creds", []byte(`{}`)))

	records, err := c.Records.ListByPrefix(ctx, "session-config-")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "u1", records[0].SessionID)
	assert.Equal(t, "u2", records[1].SessionID)

	require.NoError(t, c.Records.Put(ctx, "u1", "session-1_2-0", []byte(`{}`)))
	require.NoError(t, c.Records.Put(ctx, "u1", "session-1x2-0", []byte(`{}`)))
	own, err := c.Records.ListSessionPrefix(ctx, "u1", "session-1_")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "session-1_2-0", own[0].ID)

	require.NoError(t, c.Records.DeleteBySession(ctx, "u1"))
	stats, err := c.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.Records)
}

func TestWithTxRollback(t *testing.T) {
	ctx := context.Background()
	c := storetest.New(t)

	boom := errors.New("boom")
	err := c.WithTx(ctx, func(tx *store.Container) error {
		require.NoError(t, tx.Chats.Upsert(ctx, "u1", &store.Chat{ID: "a"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := c.Chats.Exists(ctx, "u1", "a")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.WithTx(ctx, func(tx *store.Container) error {
		return tx.Chats.Upsert(ctx, "u1", &store.Chat{ID: "a"})
	}))
	exists, err = c.Chats.Exists(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, exists)
}
