package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/auth"
	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/service/projector"
)

// ErrNotConnected is returned by Conn before a connection was dialed.
var ErrNotConnected = errors.New("session is not connected")

const readDelay = time.Second

// Controller owns the connection of one session and drives its reconnect
// and pairing state machine.
type Controller struct {
	event.BaseHandler

	id     string
	m      *Manager
	opts   Options
	reply  Reply
	stream Stream

	ctx    context.Context
	cancel context.CancelFunc
	log    waLog.Logger

	dispatcher *event.Dispatcher
	projector  *projector.Projector
	creds      *auth.CredentialStore

	mu        sync.Mutex
	conn      Conn
	gen       int
	attempts  int
	qrCount   int
	lastQR    string
	stopTimer func() bool
	destroyed bool

	destroyOnce sync.Once
	done        chan struct{}
}

func newController(m *Manager, id string, opts Options) *Controller {
	ctx, cancel := context.WithCancel(m.ctx)
	log := m.log.Sub(id)
	c := &Controller{
		id:     id,
		m:      m,
		opts:   opts,
		reply:  opts.Reply,
		stream: opts.Stream,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		done:   make(chan struct{}),
	}
	c.dispatcher = event.NewDispatcher(log)
	c.projector = projector.New(ctx, id, m.stores, c.dispatcher, log)
	c.creds = auth.NewCredentialStore(id, m.stores.Records, m.stores.Store.Container(), log)
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Done is closed once the controller was destroyed or closed.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Conn returns the current connection.
func (c *Controller) Conn() (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.destroyed {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Status reports AUTHENTICATED once the identity is confirmed, otherwise
// the transport state of the connection.
func (c *Controller) Status() string {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return StatusConnecting
	}
	if conn.User() != "" {
		return StatusAuthenticated
	}
	return conn.ReadyState().String()
}

func (c *Controller) start() {
	if c.isDestroyed() {
		return
	}
	if err := c.persistConfig(); err != nil {
		c.log.Errorf("Failed to persist session config: %v", err)
	}
	c.dispatcher.Register(c)
	c.projector.Listen()
	c.connect()
}

func (c *Controller) persistConfig() error {
	data, err := encodeConfig(c.opts.ReadIncomingMessages, c.opts.Socket)
	if err != nil {
		return err
	}
	return c.m.stores.Records.PutIfAbsent(c.ctx, c.id, ConfigRecordID(c.id), data)
}

// connect dials a fresh connection. Events of older connections are
// dropped from here on.
func (c *Controller) connect() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.m.dialer.Dial(c.ctx, DialParams{
		SessionID: c.id,
		Creds:     c.creds,
		Socket:    c.opts.Socket,
		Emitter:   &connEmitter{c: c, gen: gen},
		Log:       c.log,
	})
	if err != nil {
		c.log.Errorf("Failed to create connection: %v", err)
		c.closed(gen, err)
		return
	}

	c.mu.Lock()
	if c.destroyed || c.gen != gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if err := conn.Connect(c.ctx); err != nil {
		c.log.Errorf("Failed to connect: %v", err)
		c.closed(gen, err)
	}
}

func (c *Controller) closed(gen int, err error) {
	(&connEmitter{c: c, gen: gen}).Handle(&event.ConnectionUpdate{
		Connection:     event.ConnectionClose,
		LastDisconnect: &event.Disconnect{StatusCode: event.StatusConnectionClosed, Err: err},
	})
}

// connEmitter forwards the events of one connection generation.
type connEmitter struct {
	c   *Controller
	gen int
}

func (e *connEmitter) Handle(evt any) {
	e.c.mu.Lock()
	current := e.c.gen == e.gen && !e.c.destroyed
	e.c.mu.Unlock()
	if current {
		e.c.dispatcher.Handle(evt)
	}
}

// OnConnectionUpdate runs the state machine.
func (c *Controller) OnConnectionUpdate(u *event.ConnectionUpdate) {
	c.m.notify(c.ctx, c.id, u)

	switch u.Connection {
	case event.ConnectionOpen:
		c.mu.Lock()
		c.attempts = 0
		c.qrCount = 0
		c.lastQR = ""
		c.mu.Unlock()
		c.log.Infof("Connection opened")
		if c.stream == nil && c.reply != nil && !c.reply.Sent() {
			c.reply.Send(http.StatusOK, map[string]string{"message": "Session connected"})
		}
	case event.ConnectionClose:
		c.handleClose(u)
	}

	if c.stream != nil {
		c.streamUpdate(u)
	} else {
		c.replyUpdate(u)
	}
}

func (c *Controller) handleClose(u *event.ConnectionUpdate) {
	code := 0
	if u.LastDisconnect != nil {
		code = u.LastDisconnect.StatusCode
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	terminal, logout := false, false
	var delay time.Duration
	switch code {
	case event.StatusLoggedOut:
		terminal = true
	case event.StatusRestartRequired:
		delay = 0
	default:
		c.attempts++
		if c.attempts >= c.m.cfg.MaxReconnectRetries {
			terminal, logout = true, true
		} else {
			delay = c.m.cfg.ReconnectInterval
		}
	}
	attempts := c.attempts
	if terminal {
		c.destroyed = true
	} else {
		gen := c.gen
		c.stopTimer = c.m.afterFunc(delay, func() { c.reconnect(gen) })
	}
	c.mu.Unlock()

	if !terminal {
		if conn != nil {
			conn.Close()
		}
		if code != event.StatusRestartRequired {
			c.log.Infof("Reconnecting in %s (attempt %d, code %d)", delay, attempts, code)
		}
		return
	}

	c.log.Warnf("Connection closed for good (code %d, attempts %d)", code, attempts)
	if c.stream == nil && c.reply != nil && !c.reply.Sent() {
		c.reply.Send(http.StatusInternalServerError, map[string]string{"error": "Unable to create session"})
	}
	if c.stream != nil {
		c.stream.End()
	}
	go c.destroy(logout)
}

func (c *Controller) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Controller) reconnect(gen int) {
	c.mu.Lock()
	stale := c.destroyed || c.gen != gen
	c.mu.Unlock()
	if !stale {
		c.connect()
	}
}

// replyUpdate delivers the first QR to the waiting caller. Any later QR
// means nobody is going to scan it, so the attempt is abandoned.
func (c *Controller) replyUpdate(u *event.ConnectionUpdate) {
	if u.QR == "" || c.isDestroyed() {
		return
	}
	if c.reply != nil && !c.reply.Sent() {
		qr, err := auth.QRDataURL(u.QR)
		if err == nil {
			c.reply.Send(http.StatusOK, map[string]string{"qr": qr})
			return
		}
		c.log.Errorf("An error occured during QR generation: %v", err)
		c.reply.Send(http.StatusInternalServerError, map[string]string{"error": "Unable to generate QR"})
	}
	go c.destroy(false)
}

// streamUpdate writes every change to the stream and enforces the QR cap.
func (c *Controller) streamUpdate(u *event.ConnectionUpdate) {
	if c.isDestroyed() {
		return
	}
	var qr string
	if u.QR != "" {
		var err error
		if qr, err = auth.QRDataURL(u.QR); err != nil {
			c.log.Errorf("An error occured during QR generation: %v", err)
		}
	}

	c.mu.Lock()
	distinct := qr != "" && u.QR != c.lastQR
	capped := distinct && c.qrCount >= c.m.cfg.MaxQRGeneration
	if distinct && !capped {
		c.qrCount++
		c.lastQR = u.QR
	}
	c.mu.Unlock()

	if c.stream.Closed() || capped {
		c.stream.End()
		go c.destroy(true)
		return
	}
	if u.Connection == "" && u.LastDisconnect == nil && !distinct {
		return
	}

	update := Update{Connection: string(u.Connection), QR: qr}
	if !distinct {
		update.QR = ""
	}
	if d := u.LastDisconnect; d != nil {
		update.LastDisconnect = &DisconnectInfo{StatusCode: d.StatusCode}
		if d.Err != nil {
			update.LastDisconnect.Error = d.Err.Error()
		}
	}
	if err := c.stream.Write(update); err != nil {
		c.stream.End()
		go c.destroy(true)
	}
}

// OnCredsUpdate persists the identity of the session.
func (c *Controller) OnCredsUpdate(u *event.CredsUpdate) {
	creds := &auth.Credentials{
		Me:           u.Me,
		LID:          u.LID,
		Platform:     u.Platform,
		BusinessName: u.BusinessName,
		PairedAt:     time.Now(),
	}
	if err := c.creds.SaveCreds(c.ctx, creds); err != nil {
		c.log.Errorf("Failed to save creds: %v", err)
	}
}

// OnMessagesUpsert marks live incoming messages read when configured to.
func (c *Controller) OnMessagesUpsert(u *event.MessagesUpsert) {
	if !c.opts.ReadIncomingMessages || u.Type != event.UpsertNotify || len(u.Messages) == 0 {
		return
	}
	key := u.Messages[0].Key
	if key.FromMe {
		return
	}
	c.m.afterFunc(readDelay, func() {
		conn, err := c.Conn()
		if err != nil {
			return
		}
		if err := conn.MarkRead(c.ctx, []store.MessageKey{key}); err != nil {
			c.log.Warnf("Failed to mark %s read: %v", key.ID, err)
		}
	})
}

// destroy tears the session down: optional logout, purge of every record
// of the session and removal from the registry. Only the first call acts.
func (c *Controller) destroy(logout bool) {
	c.destroyOnce.Do(func() {
		conn := c.shutdown()

		if logout && conn != nil && conn.User() != "" {
			if err := conn.Logout(c.ctx); err != nil {
				c.log.Warnf("Logout failed: %v", err)
			}
		}
		if conn != nil {
			conn.Close()
		}

		ctx := context.WithoutCancel(c.ctx)
		stores := c.m.stores
		p := pool.New().WithErrors()
		p.Go(func() error { return stores.Messages.DeleteBySession(ctx, c.id) })
		p.Go(func() error { return stores.Chats.DeleteBySession(ctx, c.id) })
		p.Go(func() error { return stores.Contacts.DeleteBySession(ctx, c.id) })
		p.Go(func() error { return stores.Groups.DeleteBySession(ctx, c.id) })
		p.Go(func() error { return c.creds.Purge(ctx) })
		if err := p.Wait(); err != nil {
			c.log.Errorf("An error occured during session destroy: %v", err)
		} else {
			c.log.Infof("Session destroyed")
		}

		c.cancel()
		c.m.remove(c.id, c)
		close(c.done)
	})
}

// close drops the connection and leaves every record in place, so the
// session comes back on the next restore.
func (c *Controller) close() {
	c.destroyOnce.Do(func() {
		if conn := c.shutdown(); conn != nil {
			conn.Close()
		}
		if c.stream != nil {
			c.stream.End()
		}
		c.cancel()
		c.m.remove(c.id, c)
		close(c.done)
	})
}

func (c *Controller) shutdown() Conn {
	c.mu.Lock()
	c.destroyed = true
	if c.stopTimer != nil {
		c.stopTimer()
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.projector.Unlisten()
	c.dispatcher.Unregister(c)
	return conn
}
