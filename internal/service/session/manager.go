// Package session owns the live protocol connections, one per session, and
// their reconnect and pairing state machines.
package session

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// ConfigRecordPrefix prefixes the record holding the persisted options of
// a session.
const ConfigRecordPrefix = "session-config"

var (
	ErrAlreadyExists = errors.New("session already exists")
	ErrNotFound      = errors.New("session not found")
)

// ConfigRecordID returns the id of the config record of a session.
func ConfigRecordID(sessionID string) string {
	return ConfigRecordPrefix + "-" + sessionID
}

// Config bounds the state machines of every session.
type Config struct {
	ReconnectInterval   time.Duration
	MaxReconnectRetries int
	MaxQRGeneration     int
}

// Options are the per-session creation options. Reply and Stream are the
// delivery targets of the creating caller and are never persisted.
type Options struct {
	ReadIncomingMessages bool
	Socket               SocketConfig

	Reply  Reply
	Stream Stream
}

// Notifier is told about every connection update.
type Notifier interface {
	Publish(ctx context.Context, sessionID string, u *event.ConnectionUpdate)
}

// Info is a listing entry.
type Info struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Manager is the registry of live controllers.
type Manager struct {
	ctx      context.Context
	cfg      Config
	stores   *store.Container
	dialer   Dialer
	notifier Notifier
	log      waLog.Logger

	afterFunc func(d time.Duration, f func()) func() bool

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifier publishes connection updates through n.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithAfterFunc replaces the timer used for reconnect and read delays.
func WithAfterFunc(fn func(d time.Duration, f func()) func() bool) Option {
	return func(m *Manager) { m.afterFunc = fn }
}

// NewManager creates an empty Manager. Controllers live until destroyed or
// until ctx is canceled.
func NewManager(ctx context.Context, cfg Config, stores *store.Container, dialer Dialer, log waLog.Logger, opts ...Option) *Manager {
	m := &Manager{
		ctx:      ctx,
		cfg:      cfg,
		stores:   stores,
		dialer:   dialer,
		log:      log.Sub("Session"),
		sessions: make(map[string]*Controller),
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a controller for id and starts connecting in the
// background. It fails with ErrAlreadyExists while one is registered.
func (m *Manager) Create(id string, opts Options) (*Controller, error) {
	if id == "" {
		return nil, errors.New("empty session id")
	}

	m.mu.Lock()
	if _, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrAlreadyExists, id)
	}
	c := newController(m, id, opts)
	m.sessions[id] = c
	m.mu.Unlock()

	m.log.Infof("Creating session %s", id)
	go c.start()
	return c, nil
}

// Lookup returns the controller of id.
func (m *Manager) Lookup(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Exists reports whether a controller is registered for id.
func (m *Manager) Exists(id string) bool {
	_, ok := m.Lookup(id)
	return ok
}

// List returns a snapshot of every registered session, ordered by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		controllers = append(controllers, c)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(controllers))
	for _, c := range controllers {
		infos = append(infos, Info{ID: c.id, Status: c.Status()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Status returns the status of id.
func (m *Manager) Status(id string) (string, error) {
	c, ok := m.Lookup(id)
	if !ok {
		return "", errors.Wrap(ErrNotFound, id)
	}
	return c.Status(), nil
}

// Delete logs the session out and destroys it. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	if c, ok := m.Lookup(id); ok {
		c.destroy(true)
	}
}

// RestoreAll recreates every session that has a persisted configuration.
// Nobody waits on restored sessions.
func (m *Manager) RestoreAll(ctx context.Context) error {
	records, err := m.stores.Records.ListByPrefix(ctx, ConfigRecordPrefix+"-")
	if err != nil {
		return errors.Wrap(err, "failed to list session configs")
	}
	for _, r := range records {
		if r.ID != ConfigRecordID(r.SessionID) {
			continue
		}
		opts, err := decodeConfig(r.Data)
		if err != nil {
			m.log.Errorf("Skipping session %s: %v", r.SessionID, err)
			continue
		}
		if _, err := m.Create(r.SessionID, opts); err != nil {
			m.log.Warnf("Failed to restore session %s: %v", r.SessionID, err)
		}
	}
	m.log.Infof("Restored %d sessions", len(records))
	return nil
}

// CloseAll drops every connection without purging anything.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		controllers = append(controllers, c)
	}
	m.mu.RUnlock()

	for _, c := range controllers {
		c.close()
	}
}

func (m *Manager) remove(id string, c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] == c {
		delete(m.sessions, id)
	}
}

func (m *Manager) notify(ctx context.Context, id string, u *event.ConnectionUpdate) {
	if m.notifier != nil {
		m.notifier.Publish(ctx, id, u)
	}
}

// encodeConfig renders the persisted options as canonical JSON, so equal
// options always produce equal records.
func encodeConfig(readIncoming bool, socket SocketConfig) ([]byte, error) {
	doc := make(map[string]any, len(socket)+1)
	for k, v := range socket {
		doc[k] = v
	}
	doc["readIncomingMessages"] = readIncoming

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session config")
	}
	return jcs.Transform(raw)
}

func decodeConfig(data []byte) (Options, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Options{}, errors.Wrap(err, "failed to decode session config")
	}
	opts := Options{Socket: SocketConfig{}}
	for k, v := range doc {
		if strings.EqualFold(k, "readIncomingMessages") {
			opts.ReadIncomingMessages, _ = v.(bool)
			continue
		}
		opts.Socket[k] = v
	}
	return opts, nil
}
