package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

// Key-material categories kept in the session records.
const (
	SenderKeyCategory       = "sender-key"
	SessionCategory         = "session"
	AppStateSyncKeyCategory = "app-state-sync-key"
)

// senderKeyStore keeps group sender keys in the session records through
// the key batch API.
type senderKeyStore struct {
	creds *CredentialStore
}

var (
	_ wastore.SenderKeyStore       = (*senderKeyStore)(nil)
	_ wastore.SessionStore         = (*sessionStore)(nil)
	_ wastore.AppStateSyncKeyStore = (*appStateKeyStore)(nil)
)

func senderKeyID(group, user string) string {
	return group + "--" + user
}

func (s *senderKeyStore) PutSenderKey(ctx context.Context, group, user string, session []byte) error {
	return s.creds.Set(ctx, KeyBatch{
		SenderKeyCategory: {senderKeyID(group, user): session},
	})
}

func (s *senderKeyStore) GetSenderKey(ctx context.Context, group, user string) ([]byte, error) {
	id := senderKeyID(group, user)
	keys, err := s.creds.GetKeys(ctx, SenderKeyCategory, id)
	if err != nil {
		return nil, err
	}
	return keys[id], nil
}

// sessionStore keeps signal sessions, keyed by signal address, in the
// session records. Methods it does not override fall through to the
// device's own store.
type sessionStore struct {
	wastore.SessionStore
	creds *CredentialStore
}

func (s *sessionStore) GetSession(ctx context.Context, address string) ([]byte, error) {
	keys, err := s.creds.GetKeys(ctx, SessionCategory, address)
	if err != nil {
		return nil, err
	}
	return keys[address], nil
}

func (s *sessionStore) HasSession(ctx context.Context, address string) (bool, error) {
	session, err := s.GetSession(ctx, address)
	return session != nil, err
}

// GetManySessions returns an entry for every address, nil when no session
// is stored.
func (s *sessionStore) GetManySessions(ctx context.Context, addresses []string) (map[string][]byte, error) {
	keys, err := s.creds.GetKeys(ctx, SessionCategory, addresses...)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(addresses))
	for _, address := range addresses {
		result[address] = keys[address]
	}
	return result, nil
}

func (s *sessionStore) PutSession(ctx context.Context, address string, session []byte) error {
	return s.creds.Set(ctx, KeyBatch{SessionCategory: {address: session}})
}

func (s *sessionStore) PutManySessions(ctx context.Context, sessions map[string][]byte) error {
	if len(sessions) == 0 {
		return nil
	}
	return s.creds.Set(ctx, KeyBatch{SessionCategory: sessions})
}

func (s *sessionStore) DeleteSession(ctx context.Context, address string) error {
	return s.creds.Set(ctx, KeyBatch{SessionCategory: {address: nil}})
}

// DeleteAllSessions removes the sessions with every device of phone.
func (s *sessionStore) DeleteAllSessions(ctx context.Context, phone string) error {
	keys, err := s.creds.ListKeys(ctx, SessionCategory)
	if err != nil {
		return err
	}
	prefix := FixID(phone + ":")
	batch := make(map[string][]byte)
	for id := range keys {
		if strings.HasPrefix(id, prefix) {
			batch[id] = nil
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return s.creds.Set(ctx, KeyBatch{SessionCategory: batch})
}

type pnMigrator interface {
	MigratePNToLID(ctx context.Context, pn, lid types.JID) error
}

// MigratePNToLID moves the sessions with the devices of pn over to lid.
// Sessions already held with lid win.
func (s *sessionStore) MigratePNToLID(ctx context.Context, pn, lid types.JID) error {
	if inner, ok := s.SessionStore.(pnMigrator); ok {
		if err := inner.MigratePNToLID(ctx, pn, lid); err != nil {
			return err
		}
	}

	keys, err := s.creds.ListKeys(ctx, SessionCategory)
	if err != nil {
		return err
	}
	batch := make(map[string][]byte)
	for id, data := range keys {
		device, ok := pnSessionDevice(id, pn)
		if !ok {
			continue
		}
		to := types.JID{User: lid.User, Server: types.HiddenUserServer, Device: device}
		if _, exists := keys[FixID(to.SignalAddress().String())]; !exists {
			batch[to.SignalAddress().String()] = data
		}
		batch[id] = nil
	}
	if len(batch) == 0 {
		return nil
	}
	return s.creds.Set(ctx, KeyBatch{SessionCategory: batch})
}

// pnSessionDevice returns the device of the pn session stored under id.
func pnSessionDevice(id string, pn types.JID) (uint16, bool) {
	rest, ok := strings.CutPrefix(id, FixID(pn.User+":"))
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 16)
	if err != nil {
		return 0, false
	}
	from := types.JID{User: pn.User, Server: types.DefaultUserServer, Device: uint16(n)}
	return uint16(n), FixID(from.SignalAddress().String()) == id
}

// appStateKeyStore keeps app state sync keys, hex ids to JSON, in the
// session records.
type appStateKeyStore struct {
	wastore.AppStateSyncKeyStore
	creds *CredentialStore
}

func (s *appStateKeyStore) PutAppStateSyncKey(ctx context.Context, id []byte, key wastore.AppStateSyncKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return s.creds.Set(ctx, KeyBatch{AppStateSyncKeyCategory: {hex.EncodeToString(id): data}})
}

func (s *appStateKeyStore) GetAppStateSyncKey(ctx context.Context, id []byte) (*wastore.AppStateSyncKey, error) {
	hexID := hex.EncodeToString(id)
	keys, err := s.creds.GetKeys(ctx, AppStateSyncKeyCategory, hexID)
	if err != nil {
		return nil, err
	}
	data, ok := keys[hexID]
	if !ok {
		return nil, nil
	}
	key := &wastore.AppStateSyncKey{}
	if err := json.Unmarshal(data, key); err != nil {
		return nil, fmt.Errorf("failed to decode app state sync key %s: %w", hexID, err)
	}
	return key, nil
}

// GetLatestAppStateSyncKeyID returns the id of the newest key, or nil when
// none is stored.
func (s *appStateKeyStore) GetLatestAppStateSyncKeyID(ctx context.Context) ([]byte, error) {
	keys, err := s.creds.ListKeys(ctx, AppStateSyncKeyCategory)
	if err != nil {
		return nil, err
	}
	var latest string
	var latestTS int64
	for id, data := range keys {
		var key wastore.AppStateSyncKey
		if err := json.Unmarshal(data, &key); err != nil {
			s.creds.log.Warnf("Skipping undecodable app state sync key %s: %v", id, err)
			continue
		}
		if latest == "" || key.Timestamp > latestTS || (key.Timestamp == latestTS && id > latest) {
			latest, latestTS = id, key.Timestamp
		}
	}
	if latest == "" {
		return nil, nil
	}
	return hex.DecodeString(latest)
}

// InstallKeyStores routes the device's sender keys, signal sessions and
// app state sync keys to this store. Devices are only initialized once
// paired, so this is called again after pairing.
func (c *CredentialStore) InstallKeyStores(device *wastore.Device) {
	if device == nil || device.ID == nil {
		return
	}
	if _, ok := device.SenderKeys.(*senderKeyStore); !ok {
		device.SenderKeys = &senderKeyStore{creds: c}
	}
	if _, ok := device.Sessions.(*sessionStore); !ok {
		device.Sessions = &sessionStore{SessionStore: device.Sessions, creds: c}
	}
	if _, ok := device.AppStateKeys.(*appStateKeyStore); !ok {
		device.AppStateKeys = &appStateKeyStore{AppStateSyncKeyStore: device.AppStateKeys, creds: c}
	}
}
