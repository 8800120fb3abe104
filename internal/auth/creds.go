// Package auth persists per-session credentials and renders pairing codes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/data/store"
)

// CredsID is the record holding the session identity.
const CredsID = "creds"

var idReplacer = strings.NewReplacer("/", "__", ":", "-")

// FixID turns a semantic record key into a storage key.
func FixID(id string) string {
	return idReplacer.Replace(id)
}

// KeyID builds the semantic key of one key-material record.
func KeyID(category, id string) string {
	return category + "-" + id
}

// Credentials is the identity part of a session, stored under CredsID.
// Key material lives in the protocol device store and in key records.
type Credentials struct {
	Me           string    `json:"me,omitempty"`
	LID          string    `json:"lid,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	BusinessName string    `json:"businessName,omitempty"`
	PairedAt     time.Time `json:"pairedAt,omitempty"`
}

// KeyBatch maps category -> id -> value. A nil value removes the record.
type KeyBatch map[string]map[string][]byte

// CredentialStore reads and writes the records of one session.
type CredentialStore struct {
	sessionID string
	records   *store.RecordStore
	container *sqlstore.Container
	log       waLog.Logger

	maxGoroutines int
}

// NewCredentialStore creates a CredentialStore for sessionID.
func NewCredentialStore(sessionID string, records *store.RecordStore, container *sqlstore.Container, log waLog.Logger) *CredentialStore {
	return &CredentialStore{
		sessionID:     sessionID,
		records:       records,
		container:     container,
		log:           log.Sub("Creds"),
		maxGoroutines: 16,
	}
}

// Get returns the blob stored under id. ok is false when nothing was
// ever written; err only reports failed reads.
func (c *CredentialStore) Get(ctx context.Context, id string) (data []byte, ok bool, err error) {
	data, ok, err = c.records.Get(ctx, c.sessionID, FixID(id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return data, ok, nil
}

// Put stores blob under id.
func (c *CredentialStore) Put(ctx context.Context, id string, blob []byte) error {
	if err := c.records.Put(ctx, c.sessionID, FixID(id), blob); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	return nil
}

// Delete removes the record stored under id.
func (c *CredentialStore) Delete(ctx context.Context, id string) error {
	if err := c.records.Delete(ctx, c.sessionID, FixID(id)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// Set applies a key batch. Every put and delete runs concurrently and Set
// returns once all of them settled. Failures are logged one by one and
// returned joined; a failure never cancels its siblings.
func (c *CredentialStore) Set(ctx context.Context, batch KeyBatch) error {
	p := pool.New().WithErrors().WithMaxGoroutines(c.maxGoroutines)
	for category, entries := range batch {
		for id, value := range entries {
			key := KeyID(category, id)
			if value != nil {
				p.Go(func() error {
					err := c.Put(ctx, key, value)
					if err != nil {
						c.log.Errorf("Key update failed: %v", err)
					}
					return err
				})
			} else {
				p.Go(func() error {
					err := c.Delete(ctx, key)
					if err != nil {
						c.log.Errorf("Key removal failed: %v", err)
					}
					return err
				})
			}
		}
	}
	return p.Wait()
}

// GetKeys returns the stored values of the named ids of a category.
// Missing ids are absent from the result.
func (c *CredentialStore) GetKeys(ctx context.Context, category string, ids ...string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(ids))
	for _, id := range ids {
		data, ok, err := c.Get(ctx, KeyID(category, id))
		if err != nil {
			return nil, err
		}
		if ok {
			found[id] = data
		}
	}
	return found, nil
}

// ListKeys returns every stored value of a category keyed by the
// sanitized id.
func (c *CredentialStore) ListKeys(ctx context.Context, category string) (map[string][]byte, error) {
	prefix := FixID(KeyID(category, ""))
	records, err := c.records.ListSessionPrefix(ctx, c.sessionID, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", category, err)
	}
	found := make(map[string][]byte, len(records))
	for _, r := range records {
		found[strings.TrimPrefix(r.ID, prefix)] = r.Data
	}
	return found, nil
}

// LoadCreds returns the stored identity, or ok=false for a session that
// never paired.
func (c *CredentialStore) LoadCreds(ctx context.Context) (creds *Credentials, ok bool, err error) {
	data, ok, err := c.Get(ctx, CredsID)
	if err != nil || !ok {
		return nil, false, err
	}
	creds = &Credentials{}
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, false, fmt.Errorf("failed to decode creds: %w", err)
	}
	return creds, true, nil
}

// SaveCreds stores the identity.
func (c *CredentialStore) SaveCreds(ctx context.Context, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return c.Put(ctx, CredsID, data)
}

// Device resolves the protocol device for this session: the paired device
// named by the stored creds, or a fresh unpaired one.
func (c *CredentialStore) Device(ctx context.Context) (*wastore.Device, error) {
	creds, ok, err := c.LoadCreds(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || creds.Me == "" {
		c.log.Debugf("No stored creds, creating a new device")
		return c.container.NewDevice(), nil
	}

	jid, err := types.ParseJID(creds.Me)
	if err != nil {
		return nil, fmt.Errorf("invalid stored jid %q: %w", creds.Me, err)
	}
	device, err := c.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if device == nil {
		c.log.Warnf("Device %s vanished from the device store, pairing again", jid)
		return c.container.NewDevice(), nil
	}
	c.InstallKeyStores(device)
	return device, nil
}

// Purge removes every record of the session and the paired device.
func (c *CredentialStore) Purge(ctx context.Context) error {
	var errs []error
	if creds, ok, err := c.LoadCreds(ctx); err == nil && ok && creds.Me != "" {
		if jid, err := types.ParseJID(creds.Me); err == nil {
			if device, err := c.container.GetDevice(ctx, jid); err == nil && device != nil {
				if err := c.container.DeleteDevice(ctx, device); err != nil {
					errs = append(errs, fmt.Errorf("failed to delete device: %w", err))
				}
			}
		}
	}
	if err := c.records.DeleteBySession(ctx, c.sessionID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete records: %w", err))
	}
	return errors.Join(errs...)
}
