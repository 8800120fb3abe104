package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/kintamahadji/baileys-api/internal/auth"
	"github.com/kintamahadji/baileys-api/internal/data/extract"
	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/service/session"
	"github.com/kintamahadji/baileys-api/internal/utils/jid"
)

// Dialer creates whatsmeow connections for the session manager.
type Dialer struct {
	messages *store.MessageStore
	browser  string
}

// NewDialer creates a Dialer. browser is the default name shown on the
// phone's linked devices list.
func NewDialer(messages *store.MessageStore, browser string) *Dialer {
	return &Dialer{messages: messages, browser: browser}
}

// Dial implements session.Dialer.
func (d *Dialer) Dial(ctx context.Context, p session.DialParams) (session.Conn, error) {
	device, err := p.Creds.Device(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	waClient := whatsmeow.NewClient(device, p.Log.Sub("whatsmeow"))
	waClient.EnableAutoReconnect = false
	// the controller owns restarts after pairing, see ManualLoginReconnect
	waClient.DisableLoginAutoReconnect = true
	waClient.AutoTrustIdentity = true

	c := &Client{
		WAClient:  waClient,
		sessionID: p.SessionID,
		creds:     p.Creds,
		emitter:   p.Emitter,
		messages:  d.messages,
		browser:   browserName(p.Socket, d.browser),
		log:       p.Log.Sub("Client"),
		state:     session.ReadyClosed,
	}
	waClient.GetMessageForRetry = c.messageForRetry
	waClient.AddEventHandler(c.handleEvent)
	return c, nil
}

// browserName reads the "browser" socket option, either a plain name or a
// [name, browser, version] triple, falling back to def.
func browserName(socket session.SocketConfig, def string) string {
	switch v := socket["browser"].(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		if len(v) > 0 {
			if name, ok := v[0].(string); ok && name != "" {
				return name
			}
		}
	}
	return def
}

// DeviceProps is process-wide in whatsmeow; it is only read during the
// handshake, so it is swapped under a lock around Connect.
var devicePropsMu sync.Mutex

// Client adapts a whatsmeow.Client to session.Conn. Protocol events are
// translated to domain events and handed to the session's emitter.
type Client struct {
	WAClient *whatsmeow.Client

	sessionID string
	creds     *auth.CredentialStore
	emitter   event.Emitter
	messages  *store.MessageStore
	browser   string
	log       waLog.Logger

	// whatsmeow delivers events from a single goroutine
	translator extract.Translator

	mu       sync.Mutex
	state    session.ReadyState
	closed   bool
	cancelQR context.CancelFunc
}

// Connect starts the handshake. An unpaired device first subscribes to
// pairing codes.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return session.ErrNotConnected
	}
	c.state = session.ReadyConnecting
	c.mu.Unlock()
	c.emit(&event.ConnectionUpdate{Connection: event.ConnectionConnecting})

	if c.WAClient.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(ctx)
		qrChan, err := c.WAClient.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		c.mu.Lock()
		c.cancelQR = cancel
		c.mu.Unlock()
		go c.watchQR(qrChan)
	}

	devicePropsMu.Lock()
	defer devicePropsMu.Unlock()
	wastore.DeviceProps.Os = proto.String(c.browser)
	return c.WAClient.Connect()
}

func (c *Client) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(&event.ConnectionUpdate{QR: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			return
		case whatsmeow.QRChannelTimeout.Event:
			c.closeWith(event.StatusTimedOut, errors.New("QR refs attempts ended"))
			return
		case whatsmeow.QRChannelEventError:
			c.closeWith(event.StatusBadSession, item.Error)
			return
		default:
			c.closeWith(event.StatusBadSession, fmt.Errorf("pairing failed: %s", item.Event))
			return
		}
	}
}

func (c *Client) emit(evt any) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.emitter.Handle(evt)
	}
}

// closeWith reports the end of this connection. Only the first report
// goes out; whatever the socket emits afterwards is dropped.
func (c *Client) closeWith(code int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = session.ReadyClosed
	c.mu.Unlock()

	c.log.Infof("Connection closed with code %d: %v", code, err)
	c.emitter.Handle(&event.ConnectionUpdate{
		Connection:     event.ConnectionClose,
		LastDisconnect: &event.Disconnect{StatusCode: code, Err: err},
	})
}

func (c *Client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		c.mu.Lock()
		c.state = session.ReadyOpen
		c.mu.Unlock()
		c.emit(&event.ConnectionUpdate{Connection: event.ConnectionOpen})

	case *events.PairSuccess:
		c.log.Infof("Paired successfully as %s", e.ID)
		c.emit(&event.CredsUpdate{
			Me:           e.ID.String(),
			LID:          e.LID.String(),
			Platform:     e.Platform,
			BusinessName: e.BusinessName,
		})
		c.creds.InstallKeyStores(c.WAClient.Store)
		c.emit(&event.ConnectionUpdate{IsNewLogin: true})

	case *events.LoggedOut:
		c.closeWith(event.StatusLoggedOut, fmt.Errorf("logged out: %v", e.Reason))
	case *events.StreamReplaced:
		c.closeWith(event.StatusConnectionReplaced, errors.New("stream replaced"))
	case *events.ConnectFailure:
		c.closeWith(int(e.Reason), fmt.Errorf("connect failure: %s", e.Message))
	case *events.ManualLoginReconnect:
		c.closeWith(event.StatusRestartRequired, errors.New("restart required"))
	case *events.StreamError:
		c.closeWith(streamErrorCode(e.Code), fmt.Errorf("stream error %s", e.Code))
	case *events.Disconnected:
		c.closeWith(event.StatusConnectionClosed, errors.New("connection closed"))

	default:
		for _, de := range c.translator.Translate(evt) {
			c.emit(de)
		}
	}
}

func streamErrorCode(code string) int {
	if n, err := strconv.Atoi(code); err == nil && n > 0 {
		return n
	}
	return event.StatusBadSession
}

// messageForRetry answers the peer's retry receipts from the message store.
func (c *Client) messageForRetry(_, to types.JID, id types.MessageID) *waE2E.Message {
	m, err := c.messages.Find(context.Background(), c.sessionID, to.ToNonAD().String(), id)
	if err != nil || len(m.Content) == 0 {
		return nil
	}
	msg := &waE2E.Message{}
	if err := proto.Unmarshal(m.Content, msg); err != nil {
		c.log.Warnf("Failed to decode stored message %s: %v", id, err)
		return nil
	}
	return msg
}

// Close drops the socket.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.state = session.ReadyClosing
	cancel := c.cancelQR
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.WAClient.Disconnect()

	c.mu.Lock()
	c.state = session.ReadyClosed
	c.mu.Unlock()
}

// Logout unlinks the device from the phone.
func (c *Client) Logout(ctx context.Context) error {
	return c.WAClient.Logout(ctx)
}

func (c *Client) ReadyState() session.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the paired identity, or "" before pairing.
func (c *Client) User() string {
	if id := c.WAClient.Store.ID; id != nil {
		return jid.ToUserJID(*id).String()
	}
	return ""
}

// SendText sends a plain text message and reports it as an appended
// message, since the socket does not echo own messages.
func (c *Client) SendText(ctx context.Context, to, text string) (*store.Message, error) {
	chat, err := types.ParseJID(to)
	if err != nil {
		return nil, fmt.Errorf("invalid jid %q: %w", to, err)
	}
	msg := &waE2E.Message{Conversation: proto.String(text)}
	resp, err := c.WAClient.SendMessage(ctx, chat, msg)
	if err != nil {
		return nil, err
	}

	info := &types.MessageInfo{
		MessageSource: types.MessageSource{
			Chat:     chat,
			IsFromMe: true,
			IsGroup:  jid.IsGroup(chat),
		},
		ID:        resp.ID,
		Timestamp: resp.Timestamp,
	}
	if own := c.WAClient.Store.ID; own != nil {
		info.Sender = *own
	}
	stored := extract.MessageFromEvent(info, msg)
	c.emit(&event.MessagesUpsert{Type: event.UpsertAppend, Messages: []store.Message{stored}})
	return &stored, nil
}

type readTarget struct {
	chat, sender string
}

// groupReadKeys batches message ids by chat and sender, the unit of one
// read receipt.
func groupReadKeys(keys []store.MessageKey) (order []readTarget, ids map[readTarget][]types.MessageID) {
	ids = make(map[readTarget][]types.MessageID)
	for _, k := range keys {
		t := readTarget{chat: k.RemoteJID, sender: k.Participant}
		if _, ok := ids[t]; !ok {
			order = append(order, t)
		}
		ids[t] = append(ids[t], k.ID)
	}
	return order, ids
}

// MarkRead sends read receipts for keys.
func (c *Client) MarkRead(ctx context.Context, keys []store.MessageKey) error {
	order, ids := groupReadKeys(keys)
	var errs []error
	for _, t := range order {
		chat, err := types.ParseJID(t.chat)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var sender types.JID
		if t.sender != "" {
			if sender, err = types.ParseJID(t.sender); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := c.WAClient.MarkRead(ctx, ids[t], time.Now(), chat, sender); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// phoneQuery turns a jid or phone number into the "+digits" form the
// existence lookup expects.
func phoneQuery(s string) string {
	user, _, _ := strings.Cut(s, "@")
	return "+" + jid.FromPhone(user).User
}

// OnWhatsApp reports which of jids have an account.
func (c *Client) OnWhatsApp(ctx context.Context, jids ...string) ([]session.Existence, error) {
	queries := make([]string, len(jids))
	for i, j := range jids {
		queries[i] = phoneQuery(j)
	}
	responses, err := c.WAClient.IsOnWhatsApp(ctx, queries)
	if err != nil {
		return nil, err
	}
	result := make([]session.Existence, 0, len(responses))
	for _, resp := range responses {
		result = append(result, session.Existence{JID: resp.JID.String(), Exists: resp.IsIn})
	}
	return result, nil
}

// GroupMetadata fetches the current metadata of a group from the server.
func (c *Client) GroupMetadata(ctx context.Context, groupJID string) (*store.GroupMetadata, error) {
	g, err := types.ParseJID(groupJID)
	if err != nil {
		return nil, fmt.Errorf("invalid jid %q: %w", groupJID, err)
	}
	info, err := c.WAClient.GetGroupInfo(ctx, g)
	if err != nil {
		return nil, err
	}
	meta := extract.GroupFromInfo(info)
	return &meta, nil
}

// ProfilePictureURL returns the full size picture URL of a user or group.
func (c *Client) ProfilePictureURL(ctx context.Context, target string) (string, error) {
	j, err := types.ParseJID(target)
	if err != nil {
		return "", fmt.Errorf("invalid jid %q: %w", target, err)
	}
	pic, err := c.WAClient.GetProfilePictureInfo(ctx, j, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		return "", err
	}
	if pic == nil {
		return "", nil
	}
	return pic.URL, nil
}

func (c *Client) Blocklist(ctx context.Context) ([]string, error) {
	list, err := c.WAClient.GetBlocklist(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list.JIDs))
	for _, j := range list.JIDs {
		out = append(out, j.String())
	}
	return out, nil
}

func (c *Client) UpdateBlockStatus(ctx context.Context, target string, block bool) error {
	j, err := types.ParseJID(target)
	if err != nil {
		return fmt.Errorf("invalid jid %q: %w", target, err)
	}
	action := events.BlocklistChangeActionUnblock
	if block {
		action = events.BlocklistChangeActionBlock
	}
	_, err = c.WAClient.UpdateBlocklist(ctx, j, action)
	return err
}

var _ session.Conn = (*Client)(nil)
var _ session.Dialer = (*Dialer)(nil)
