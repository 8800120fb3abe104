package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/kintamahadji/baileys-api/internal/auth"
	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/data/store/storetest"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/infra/logger"
	"github.com/kintamahadji/baileys-api/internal/service/session"
)

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Handle(evt any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

func newTestClient(t *testing.T, socket session.SocketConfig) (*Client, *recorder, *store.Container) {
	t.Helper()
	stores := storetest.New(t)
	rec := &recorder{}
	log := logger.NewNop()

	d := NewDialer(stores.Messages, "Whatsapp Bot")
	conn, err := d.Dial(context.Background(), session.DialParams{
		SessionID: "u1",
		Creds:     auth.NewCredentialStore("u1", stores.Records, stores.Store.Container(), log),
		Socket:    socket,
		Emitter:   rec,
		Log:       log,
	})
	require.NoError(t, err)
	return conn.(*Client), rec, stores
}

func TestBrowserName(t *testing.T) {
	assert.Equal(t, "Default", browserName(nil, "Default"))
	assert.Equal(t, "Mine", browserName(session.SocketConfig{"browser": "Mine"}, "Default"))
	assert.Equal(t, "Triple", browserName(session.SocketConfig{"browser": []any{"Triple", "Chrome", "1.0"}}, "Default"))
	assert.Equal(t, "Default", browserName(session.SocketConfig{"browser": 3}, "Default"))

	c, _, _ := newTestClient(t, session.SocketConfig{"browser": "Mine"})
	assert.Equal(t, "Mine", c.browser)
}

func TestCloseEventsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		evt  any
		code int
	}{
		{&events.LoggedOut{}, event.StatusLoggedOut},
		{&events.StreamReplaced{}, event.StatusConnectionReplaced},
		{&events.Disconnected{}, event.StatusConnectionClosed},
		{&events.ManualLoginReconnect{}, event.StatusRestartRequired},
		{&events.StreamError{Code: "503"}, 503},
		{&events.StreamError{Code: "conflict"}, event.StatusBadSession},
		{&events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, int(events.ConnectFailureLoggedOut)},
	}
	for _, tc := range cases {
		c, rec, _ := newTestClient(t, nil)
		c.handleEvent(tc.evt)
		c.handleEvent(&events.Disconnected{})

		got := rec.all()
		require.Len(t, got, 1, "%T", tc.evt)
		u := got[0].(*event.ConnectionUpdate)
		assert.Equal(t, event.ConnectionClose, u.Connection)
		assert.Equal(t, tc.code, u.LastDisconnect.StatusCode, "%T", tc.evt)
		assert.Equal(t, session.ReadyClosed, c.ReadyState())
	}
}

func TestDialLeavesLoginRestartToController(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	assert.True(t, c.WAClient.DisableLoginAutoReconnect)
	assert.False(t, c.WAClient.EnableAutoReconnect)
}

func TestConnectedOpens(t *testing.T) {
	c, rec, _ := newTestClient(t, nil)
	assert.Empty(t, c.User())

	c.handleEvent(&events.Connected{})
	assert.Equal(t, session.ReadyOpen, c.ReadyState())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, event.ConnectionOpen, rec.all()[0].(*event.ConnectionUpdate).Connection)
}

func TestProtocolEventsAreTranslated(t *testing.T) {
	c, rec, _ := newTestClient(t, nil)
	chat := types.NewJID("111", types.DefaultUserServer)

	c.handleEvent(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
			ID:            "m1",
			Timestamp:     time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String("hi")},
	})
	require.Len(t, rec.all(), 1)
	upsert := rec.all()[0].(*event.MessagesUpsert)
	assert.Equal(t, "hi", upsert.Messages[0].Text)

	c.Close()
	c.handleEvent(&events.Connected{})
	assert.Len(t, rec.all(), 1)
}

func TestMessageForRetry(t *testing.T) {
	c, _, stores := newTestClient(t, nil)
	chat := types.NewJID("111", types.DefaultUserServer)

	body, err := proto.Marshal(&waE2E.Message{Conversation: proto.String("again")})
	require.NoError(t, err)
	require.NoError(t, stores.Messages.Upsert(context.Background(), "u1", &store.Message{
		Key:     store.MessageKey{RemoteJID: chat.String(), ID: "m1", FromMe: true},
		Content: body,
	}))

	msg := c.messageForRetry(chat, chat, "m1")
	require.NotNil(t, msg)
	assert.Equal(t, "again", msg.GetConversation())
	assert.Nil(t, c.messageForRetry(chat, chat, "missing"))
}

func TestGroupReadKeys(t *testing.T) {
	order, ids := groupReadKeys([]store.MessageKey{
		{RemoteJID: "g@g.us", ID: "1", Participant: "a@s.whatsapp.net"},
		{RemoteJID: "b@s.whatsapp.net", ID: "2"},
		{RemoteJID: "g@g.us", ID: "3", Participant: "a@s.whatsapp.net"},
	})
	require.Len(t, order, 2)
	assert.Equal(t, readTarget{chat: "g@g.us", sender: "a@s.whatsapp.net"}, order[0])
	assert.Equal(t, []types.MessageID{"1", "3"}, ids[order[0]])
	assert.Equal(t, []types.MessageID{"2"}, ids[order[1]])
}

func TestPhoneQuery(t *testing.T) {
	assert.Equal(t, "+6281234", phoneQuery("6281234@s.whatsapp.net"))
	assert.Equal(t, "+6281234", phoneQuery("+62 812-34"))
}
