package projector

import (
	"errors"
	"slices"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// MessageProjector maintains the messages table, including the receipt
// and reaction lists nested in each message.
type MessageProjector struct {
	projectorBase
}

// Listen attaches the projector. Attaching twice is a no-op.
func (p *MessageProjector) Listen() { p.listen(p) }

// Unlisten detaches the projector. Detaching twice is a no-op.
func (p *MessageProjector) Unlisten() { p.unlisten(p) }

// OnHistorySet stores the messages of a resync in one transaction,
// replacing all stored messages when the snapshot is the latest one.
func (p *MessageProjector) OnHistorySet(evt *event.HistorySet) {
	if len(evt.Messages) == 0 && !evt.IsLatest {
		return
	}
	err := p.stores.WithTx(p.ctx, func(tx *store.Container) error {
		if evt.IsLatest {
			if err := tx.Messages.DeleteBySession(p.ctx, p.sessionID); err != nil {
				return err
			}
		}
		for i := range evt.Messages {
			if err := tx.Messages.InsertIgnore(p.ctx, p.sessionID, &evt.Messages[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.log.Errorf("An error occured during messages set: %v", err)
		return
	}
	p.log.Infof("Synced %d messages", len(evt.Messages))
}

// OnMessagesUpsert stores messages. A live message for a chat without a
// row makes the projector emit a chat upsert for it.
func (p *MessageProjector) OnMessagesUpsert(evt *event.MessagesUpsert) {
	for i := range evt.Messages {
		m := &evt.Messages[i]
		jid := m.Key.RemoteJID
		if err := p.stores.Messages.Upsert(p.ctx, p.sessionID, m); err != nil {
			p.log.Errorf("An error occured during message upsert of %s: %v", m.Key.ID, err)
			continue
		}
		if evt.Type != event.UpsertNotify {
			continue
		}

		exists, err := p.stores.Chats.Exists(p.ctx, p.sessionID, jid)
		if err != nil {
			p.log.Errorf("An error occured during chat lookup of %s: %v", jid, err)
			continue
		}
		if !exists {
			p.dispatcher.Handle(&event.ChatsUpsert{Chats: []store.Chat{{
				ID:                    jid,
				ConversationTimestamp: m.MessageTimestamp,
				UnreadCount:           1,
			}}})
		}
	}
}

// OnMessagesUpdate merges partial changes into stored messages. The row
// is fetched, merged and recreated inside one transaction.
func (p *MessageProjector) OnMessagesUpdate(evt *event.MessagesUpdate) {
	for i := range evt.Updates {
		u := &evt.Updates[i]
		err := p.withMessage(u.Key, func(tx *store.Container, m *store.Message) error {
			m.Apply(u)
			if err := tx.Messages.Delete(p.ctx, p.sessionID, m.Key.RemoteJID, m.Key.ID); err != nil {
				return err
			}
			return tx.Messages.Insert(p.ctx, p.sessionID, m)
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got update for non existent message %s", u.Key.ID)
		case err != nil:
			p.log.Errorf("An error occured during message update of %s: %v", u.Key.ID, err)
		}
	}
}

// OnMessagesDelete removes either a whole chat history or the named ids.
func (p *MessageProjector) OnMessagesDelete(evt *event.MessagesDelete) {
	if evt.All {
		if err := p.stores.Messages.DeleteChat(p.ctx, p.sessionID, evt.JID); err != nil {
			p.log.Errorf("An error occured during messages delete of %s: %v", evt.JID, err)
		}
		return
	}
	if len(evt.Keys) == 0 {
		return
	}

	jid := evt.Keys[0].RemoteJID
	ids := make([]string, 0, len(evt.Keys))
	for _, k := range evt.Keys {
		ids = append(ids, k.ID)
	}
	if err := p.stores.Messages.DeleteIDs(p.ctx, p.sessionID, jid, ids...); err != nil {
		p.log.Errorf("An error occured during messages delete of %s: %v", jid, err)
	}
}

// OnReceiptUpdate keeps one receipt per recipient, the latest one.
func (p *MessageProjector) OnReceiptUpdate(evt *event.ReceiptUpdate) {
	for _, r := range evt.Receipts {
		err := p.withMessage(r.Key, func(tx *store.Container, m *store.Message) error {
			return tx.Messages.SetUserReceipt(p.ctx, p.sessionID, r.Key, MergeReceipt(m.UserReceipt, r.Receipt))
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got receipt update for non existent message %s", r.Key.ID)
		case err != nil:
			p.log.Errorf("An error occured during receipt update of %s: %v", r.Key.ID, err)
		}
	}
}

// OnReactionUpdate keeps at most one reaction per author. An empty
// reaction text removes the author's reaction.
func (p *MessageProjector) OnReactionUpdate(evt *event.ReactionUpdate) {
	for _, r := range evt.Reactions {
		err := p.withMessage(r.Key, func(tx *store.Container, m *store.Message) error {
			return tx.Messages.SetReactions(p.ctx, p.sessionID, r.Key, MergeReaction(m.Reactions, r.Reaction))
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got reaction update for non existent message %s", r.Key.ID)
		case err != nil:
			p.log.Errorf("An error occured during reaction update of %s: %v", r.Key.ID, err)
		}
	}
}

// withMessage runs fn on the stored message named by key, holding the
// record lock and a transaction.
func (p *MessageProjector) withMessage(key store.MessageKey, fn func(tx *store.Container, m *store.Message) error) error {
	unlock := p.locks.Lock("message:" + key.RemoteJID + "/" + key.ID)
	defer unlock()

	return p.stores.WithTx(p.ctx, func(tx *store.Container) error {
		m, err := tx.Messages.Find(p.ctx, p.sessionID, key.RemoteJID, key.ID)
		if err != nil {
			return err
		}
		return fn(tx, m)
	})
}

// MergeReceipt replaces the receipt of r.UserJID with r.
func MergeReceipt(current []store.Receipt, r store.Receipt) []store.Receipt {
	out := slices.DeleteFunc(slices.Clone(current), func(c store.Receipt) bool {
		return c.UserJID == r.UserJID
	})
	return append(out, r)
}

// MergeReaction replaces the reaction of r's author with r, or drops it
// when r has no text.
func MergeReaction(current []store.Reaction, r store.Reaction) []store.Reaction {
	author := r.Key.Author()
	out := slices.DeleteFunc(slices.Clone(current), func(c store.Reaction) bool {
		return c.Key.Author() == author
	})
	if r.Text != "" {
		out = append(out, r)
	}
	if out == nil {
		out = []store.Reaction{}
	}
	return out
}
