package projector

import (
	"errors"

	"github.com/sourcegraph/conc/pool"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// ContactProjector maintains the contacts table.
type ContactProjector struct {
	projectorBase
}

// Listen attaches the projector. Attaching twice is a no-op.
func (p *ContactProjector) Listen() { p.listen(p) }

// Unlisten detaches the projector. Detaching twice is a no-op.
func (p *ContactProjector) Unlisten() { p.unlisten(p) }

// OnHistorySet treats the contact list of a snapshot as complete: stored
// contacts missing from it are deleted while the incoming ones are
// upserted. All writes run concurrently and the batch completes once every
// one of them settled; failures are aggregated.
func (p *ContactProjector) OnHistorySet(evt *event.HistorySet) {
	if evt.Contacts == nil {
		return
	}

	incoming := make(map[string]struct{}, len(evt.Contacts))
	for _, c := range evt.Contacts {
		incoming[c.ID] = struct{}{}
	}
	stored, err := p.stores.Contacts.IDs(p.ctx, p.sessionID)
	if err != nil {
		p.log.Errorf("An error occured during contacts set: %v", err)
		return
	}
	var stale []string
	for _, id := range stored {
		if _, ok := incoming[id]; !ok {
			stale = append(stale, id)
		}
	}

	wp := pool.New().WithErrors()
	for i := range evt.Contacts {
		c := &evt.Contacts[i]
		wp.Go(func() error {
			return p.stores.Contacts.Upsert(p.ctx, p.sessionID, c)
		})
	}
	wp.Go(func() error {
		return p.stores.Contacts.Delete(p.ctx, p.sessionID, stale...)
	})
	if err := wp.Wait(); err != nil {
		p.log.Errorf("An error occured during contacts set: %v", err)
		return
	}
	p.log.Infof("Synced contacts: %d deleted, %d new", len(stale), len(evt.Contacts))
}

// OnContactsUpsert stores new or changed contacts.
func (p *ContactProjector) OnContactsUpsert(evt *event.ContactsUpsert) {
	wp := pool.New().WithErrors()
	for i := range evt.Contacts {
		c := &evt.Contacts[i]
		wp.Go(func() error {
			return p.stores.Contacts.Upsert(p.ctx, p.sessionID, c)
		})
	}
	if err := wp.Wait(); err != nil {
		p.log.Errorf("An error occured during contacts upsert: %v", err)
	}
}

// OnContactsUpdate applies partial contact changes.
func (p *ContactProjector) OnContactsUpdate(evt *event.ContactsUpdate) {
	for i := range evt.Updates {
		u := &evt.Updates[i]
		err := p.stores.Contacts.Update(p.ctx, p.sessionID, u)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got update for non existent contact %s", u.ID)
		case err != nil:
			p.log.Errorf("An error occured during contact update of %s: %v", u.ID, err)
		}
	}
}
