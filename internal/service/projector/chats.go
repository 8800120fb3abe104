package projector

import (
	"errors"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// ChatProjector maintains the chats table.
type ChatProjector struct {
	projectorBase
}

// Listen attaches the projector. Attaching twice is a no-op.
func (p *ChatProjector) Listen() { p.listen(p) }

// Unlisten detaches the projector. Detaching twice is a no-op.
func (p *ChatProjector) Unlisten() { p.unlisten(p) }

// OnHistorySet stores the chats of a resync, replacing all stored chats
// when the snapshot is the latest one.
func (p *ChatProjector) OnHistorySet(evt *event.HistorySet) {
	if len(evt.Chats) == 0 && !evt.IsLatest {
		return
	}
	err := p.stores.WithTx(p.ctx, func(tx *store.Container) error {
		if evt.IsLatest {
			if err := tx.Chats.DeleteBySession(p.ctx, p.sessionID); err != nil {
				return err
			}
		}
		for i := range evt.Chats {
			if err := tx.Chats.InsertIgnore(p.ctx, p.sessionID, &evt.Chats[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.log.Errorf("An error occured during chats set: %v", err)
		return
	}
	p.log.Infof("Synced %d chats", len(evt.Chats))
}

// OnChatsUpsert stores new or changed chats.
func (p *ChatProjector) OnChatsUpsert(evt *event.ChatsUpsert) {
	for i := range evt.Chats {
		if err := p.stores.Chats.Upsert(p.ctx, p.sessionID, &evt.Chats[i]); err != nil {
			p.log.Errorf("An error occured during chat upsert of %s: %v", evt.Chats[i].ID, err)
		}
	}
}

// OnChatsUpdate applies partial chat changes.
func (p *ChatProjector) OnChatsUpdate(evt *event.ChatsUpdate) {
	for i := range evt.Updates {
		u := &evt.Updates[i]
		err := p.stores.Chats.Update(p.ctx, p.sessionID, u)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got update for non existent chat %s", u.ID)
		case err != nil:
			p.log.Errorf("An error occured during chat update of %s: %v", u.ID, err)
		}
	}
}

// OnChatsDelete removes chats.
func (p *ChatProjector) OnChatsDelete(evt *event.ChatsDelete) {
	if err := p.stores.Chats.Delete(p.ctx, p.sessionID, evt.IDs...); err != nil {
		p.log.Errorf("An error occured during chats delete: %v", err)
	}
}
