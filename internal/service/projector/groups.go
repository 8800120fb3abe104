package projector

import (
	"errors"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// GroupProjector maintains the group_metadata table.
type GroupProjector struct {
	projectorBase
}

// Listen attaches the projector. Attaching twice is a no-op.
func (p *GroupProjector) Listen() { p.listen(p) }

// Unlisten detaches the projector. Detaching twice is a no-op.
func (p *GroupProjector) Unlisten() { p.unlisten(p) }

// OnGroupsUpsert stores whole groups.
func (p *GroupProjector) OnGroupsUpsert(evt *event.GroupsUpsert) {
	wp := pool.New().WithErrors()
	for i := range evt.Groups {
		g := &evt.Groups[i]
		wp.Go(func() error {
			return p.stores.Groups.Upsert(p.ctx, p.sessionID, g)
		})
	}
	if err := wp.Wait(); err != nil {
		p.log.Errorf("An error occured during groups upsert: %v", err)
	}
}

// OnGroupsUpdate applies partial group changes.
func (p *GroupProjector) OnGroupsUpdate(evt *event.GroupsUpdate) {
	for i := range evt.Updates {
		u := &evt.Updates[i]
		err := p.stores.Groups.Update(p.ctx, p.sessionID, u)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.log.Infof("Got metadata update for non existent group %s", u.ID)
		case err != nil:
			p.log.Errorf("An error occured during group metadata update of %s: %v", u.ID, err)
		}
	}
}

// OnGroupParticipantsUpdate loads the participant list, applies the
// membership change and writes the whole list back.
func (p *GroupProjector) OnGroupParticipantsUpdate(evt *event.GroupParticipantsUpdate) {
	unlock := p.locks.Lock("group:" + evt.ID)
	defer unlock()

	err := p.stores.WithTx(p.ctx, func(tx *store.Container) error {
		g, err := tx.Groups.Get(p.ctx, p.sessionID, evt.ID)
		if err != nil {
			return err
		}
		participants := ApplyParticipants(g.Participants, evt.Action, evt.Participants)
		return tx.Groups.Update(p.ctx, p.sessionID, &store.GroupUpdate{ID: evt.ID, Participants: &participants})
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		p.log.Infof("Got participants update for non existent group %s", evt.ID)
	case err != nil:
		p.log.Errorf("An error occured during group participants update of %s: %v", evt.ID, err)
	}
}

// ApplyParticipants returns the participant list after action. Added
// members join as non-admins and ids stay unique.
func ApplyParticipants(current []store.Participant, action event.ParticipantAction, ids []string) []store.Participant {
	out := slices.Clone(current)
	if out == nil {
		out = []store.Participant{}
	}

	switch action {
	case event.ParticipantAdd:
		for _, id := range ids {
			if slices.ContainsFunc(out, func(p store.Participant) bool { return p.ID == id }) {
				continue
			}
			out = append(out, store.Participant{ID: id})
		}
	case event.ParticipantPromote, event.ParticipantDemote:
		for i := range out {
			if slices.Contains(ids, out[i].ID) {
				out[i].IsAdmin = action == event.ParticipantPromote
			}
		}
	case event.ParticipantRemove, event.ParticipantLeave:
		out = slices.DeleteFunc(out, func(p store.Participant) bool {
			return slices.Contains(ids, p.ID)
		})
	}
	return out
}
